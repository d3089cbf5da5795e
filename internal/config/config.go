// Package config provides configuration loading for the Furnace.
//
// Configuration comes from a YAML file overridden by environment variables,
// with hardcoded defaults underneath. The torture schedules themselves are
// NOT configurable: identical artifacts must produce identical verdicts, so
// schedule values are compiled constants in the furnace package.
package config

import (
	"errors"
	"fmt"
	"time"
)

// Config holds the complete Furnace configuration.
type Config struct {
	Workspace string        `koanf:"workspace"`
	Database  string        `koanf:"database"`
	Sandbox   SandboxConfig `koanf:"sandbox"`
	Runtime   RuntimeConfig `koanf:"runtime"`
}

// SandboxConfig holds execution-environment settings.
type SandboxConfig struct {
	// Engine selects the runner: "docker" (network-disabled container per
	// invocation) or "exec" (bare process; development and tests only).
	Engine string `koanf:"engine"`

	// Image is the pinned base runtime image, tag included. Every sandbox of
	// every tier runs the same image.
	Image string `koanf:"image"`

	// Timeout is the hard wall-clock limit per sandbox invocation. On expiry
	// the process is force-terminated and reported as NONTERMINATION.
	Timeout time.Duration `koanf:"timeout"`

	MemoryMB  int     `koanf:"memory_mb"`
	CPUs      float64 `koanf:"cpus"`
	PidsLimit int     `koanf:"pids_limit"`
}

// RuntimeConfig holds the argv templates used to drive artifact code inside
// the sandbox. Templates keep the harness language-neutral: the loader never
// interprets the implementation module, it only substitutes placeholders.
//
// Placeholders: {impl} implementation module path, {selftest} self-test
// script path, {op} contract operation name.
type RuntimeConfig struct {
	Selftest    []string `koanf:"selftest"`
	ImportCheck []string `koanf:"import_check"`
	Invoke      []string `koanf:"invoke"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Workspace: "/tmp/furnace",
		Database:  "furnace.db",
		Sandbox: SandboxConfig{
			Engine:    "docker",
			Image:     "python:3.11.9-slim",
			Timeout:   300 * time.Second,
			MemoryMB:  512,
			CPUs:      1.0,
			PidsLimit: 64,
		},
		Runtime: RuntimeConfig{
			Selftest:    []string{"python3", "{selftest}"},
			ImportCheck: []string{"python3", "-c", "import importlib.util as u, sys; spec = u.spec_from_file_location('artifact', '{impl}'); m = u.module_from_spec(spec); spec.loader.exec_module(m)"},
			Invoke:      []string{"python3", "{impl}", "{op}", "io/request.json", "io/response.json"},
		},
	}
}

// Validate checks invariants that would otherwise surface mid-pipeline.
func (c *Config) Validate() error {
	if c.Workspace == "" {
		return errors.New("workspace must not be empty")
	}
	if c.Database == "" {
		return errors.New("database must not be empty")
	}
	if c.Sandbox.Engine != "docker" && c.Sandbox.Engine != "exec" {
		return fmt.Errorf("sandbox.engine must be \"docker\" or \"exec\", got %q", c.Sandbox.Engine)
	}
	if c.Sandbox.Engine == "docker" && c.Sandbox.Image == "" {
		return errors.New("sandbox.image must be set for the docker engine")
	}
	if c.Sandbox.Timeout <= 0 {
		return errors.New("sandbox.timeout must be positive")
	}
	for name, argv := range map[string][]string{
		"runtime.selftest":     c.Runtime.Selftest,
		"runtime.import_check": c.Runtime.ImportCheck,
		"runtime.invoke":       c.Runtime.Invoke,
	} {
		if len(argv) == 0 {
			return fmt.Errorf("%s must not be empty", name)
		}
	}
	return nil
}

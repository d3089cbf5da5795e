package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces Furnace environment variables.
const envPrefix = "FURNACE_"

// Load loads configuration from an optional YAML file, then overrides with
// environment variables.
//
// Precedence (highest to lowest):
//  1. Environment variables (FURNACE_SANDBOX_TIMEOUT, FURNACE_DATABASE, ...)
//  2. YAML config file (path argument; skipped when empty or absent)
//  3. Built-in defaults
//
// Environment variables map to config keys by stripping the prefix,
// lowercasing, and replacing the first underscore after a known section with
// a dot:
//
//	FURNACE_WORKSPACE        -> workspace
//	FURNACE_SANDBOX_TIMEOUT  -> sandbox.timeout
//	FURNACE_SANDBOX_MEMORY_MB -> sandbox.memory_mb
func Load(configPath string) (*Config, error) {
	k := koanf.New(".")

	if configPath != "" {
		content, err := os.ReadFile(configPath)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		} else {
			if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", configPath, err)
			}
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", transformEnvKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// transformEnvKey maps FURNACE_SANDBOX_MEMORY_MB to sandbox.memory_mb.
// Sections are matched by prefix so compound field names keep their
// underscores.
func transformEnvKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, envPrefix))
	for _, section := range []string{"sandbox", "runtime"} {
		if strings.HasPrefix(key, section+"_") {
			return section + "." + strings.TrimPrefix(key, section+"_")
		}
	}
	return key
}

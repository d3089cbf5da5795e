// Package artifact loads and validates submitted packages and binds the
// three-operation contract.
//
// Loading is purely structural: no artifact code is ever executed here. A
// package that fails loading is rejected before any sandbox exists.
package artifact

import (
	"fmt"

	"github.com/emberforge/furnace/internal/verdict"
)

// Fixed file names of the five-file package unit. The implementation module
// and self-test script carry manifest-chosen names; the other three are
// fixed.
const (
	ManifestFile    = "manifest.json"
	SchemaFile      = "schema.json"
	DescriptionFile = "description.txt"
)

// Contract arities, fixed by the SAIF contract:
//
//	ingest(event, state)                  -> (new_state, lineage_item)
//	compact(state, lineage, target_bytes) -> new_state
//	audit(state, lineage)                 -> OK | (HALT, reason)
const (
	ArityIngest  = 2
	ArityCompact = 3
	ArityAudit   = 2
)

// Operation names of the contract.
const (
	OpIngest  = "ingest"
	OpCompact = "compact"
	OpAudit   = "audit"
)

// Manifest is the parsed manifest.json: the name→location mapping for the
// three contract operations plus package identity.
type Manifest struct {
	Name           string                   `json:"name"`
	Version        string                   `json:"version,omitempty"`
	Implementation string                   `json:"implementation"`
	Selftest       string                   `json:"selftest"`
	Operations     map[string]OperationSpec `json:"operations"`
}

// OperationSpec locates one contract operation inside the implementation
// module.
type OperationSpec struct {
	Symbol string `json:"symbol"`
	Arity  int    `json:"arity"`
}

// Binding is one resolved contract operation.
type Binding struct {
	Name   string
	File   string
	Symbol string
	Arity  int
}

// Contract holds the three bindings, resolved once at load time. The
// pipeline never re-resolves mid-run.
type Contract struct {
	Ingest  Binding
	Compact Binding
	Audit   Binding
}

// Package is a validated five-file artifact package, immutable once loaded.
type Package struct {
	Path     string
	Manifest Manifest
	Contract Contract
}

// ID returns the artifact identifier recorded in verdicts.
func (p *Package) ID() string {
	if p.Manifest.Version != "" {
		return p.Manifest.Name + "@" + p.Manifest.Version
	}
	return p.Manifest.Name
}

// LoadError is a structural rejection, classified into the public taxonomy.
type LoadError struct {
	Reason  verdict.Reason // FORMAT_INVALID or MANIFEST_INVALID
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.Reason, e.Message)
}

func formatInvalid(format string, args ...any) *LoadError {
	return &LoadError{Reason: verdict.ReasonFormatInvalid, Message: fmt.Sprintf(format, args...)}
}

func manifestInvalid(format string, args ...any) *LoadError {
	return &LoadError{Reason: verdict.ReasonManifestInvalid, Message: fmt.Sprintf(format, args...)}
}

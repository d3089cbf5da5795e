package artifact

import (
	_ "embed"
	"encoding/json"
	"os"
	"path/filepath"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cuejson "cuelang.org/go/encoding/json"
)

//go:embed manifest_schema.cue
var manifestSchemaCUE string

// packageFileCount is the exact number of files a package must contain:
// manifest, schema document, implementation module, self-test, description.
const packageFileCount = 5

// Load validates the package at path and binds the contract.
//
// Checks, in order:
//  1. Directory structure: exactly five regular files, including the three
//     fixed names (FORMAT_INVALID otherwise).
//  2. Manifest: well-formed JSON unifying with the embedded CUE schema
//     (MANIFEST_INVALID otherwise).
//  3. Resolution: the manifest's implementation and self-test names must be
//     the two remaining files, and each operation's declared arity must
//     match the fixed contract arity (MANIFEST_INVALID otherwise).
//
// No artifact code runs. Side effects: none.
func Load(path string) (*Package, error) {
	entries, err := os.ReadDir(path)
	if err != nil {
		return nil, formatInvalid("cannot read package directory: %v", err)
	}

	files := make(map[string]bool, len(entries))
	for _, e := range entries {
		if e.IsDir() || !e.Type().IsRegular() {
			return nil, formatInvalid("package entry %q is not a regular file", e.Name())
		}
		files[e.Name()] = true
	}

	if len(files) != packageFileCount {
		return nil, formatInvalid("package must contain exactly %d files, found %d", packageFileCount, len(files))
	}
	for _, required := range []string{ManifestFile, SchemaFile, DescriptionFile} {
		if !files[required] {
			return nil, formatInvalid("package is missing %s", required)
		}
	}

	raw, err := os.ReadFile(filepath.Join(path, ManifestFile))
	if err != nil {
		return nil, formatInvalid("cannot read %s: %v", ManifestFile, err)
	}

	if err := validateManifestSchema(raw); err != nil {
		return nil, manifestInvalid("manifest does not satisfy schema: %v", err)
	}

	var m Manifest
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, manifestInvalid("malformed manifest JSON: %v", err)
	}

	// The implementation and self-test names must account for exactly the
	// two files not covered by the fixed names.
	if m.Implementation == m.Selftest {
		return nil, manifestInvalid("implementation and selftest must be distinct files")
	}
	for _, named := range []string{m.Implementation, m.Selftest} {
		switch {
		case !files[named]:
			return nil, manifestInvalid("manifest references missing file %q", named)
		case named == ManifestFile || named == SchemaFile || named == DescriptionFile:
			return nil, manifestInvalid("manifest may not bind reserved file %q", named)
		}
	}

	contract, err := bindContract(m)
	if err != nil {
		return nil, err
	}

	return &Package{Path: path, Manifest: m, Contract: *contract}, nil
}

// validateManifestSchema unifies the raw manifest with the embedded CUE
// schema. Structural errors (wrong types, missing fields, empty strings)
// surface here with CUE's field-level messages.
func validateManifestSchema(raw []byte) error {
	ctx := cuecontext.New()

	schema := ctx.CompileString(manifestSchemaCUE).LookupPath(cue.ParsePath("#Manifest"))
	if err := schema.Err(); err != nil {
		return err
	}

	expr, err := cuejson.Extract(ManifestFile, raw)
	if err != nil {
		return err
	}

	unified := schema.Unify(ctx.BuildExpr(expr))
	return unified.Validate(cue.Concrete(true))
}

// bindContract resolves the three named operations and checks arity against
// the fixed contract signatures.
func bindContract(m Manifest) (*Contract, error) {
	want := map[string]int{
		OpIngest:  ArityIngest,
		OpCompact: ArityCompact,
		OpAudit:   ArityAudit,
	}

	bindings := make(map[string]Binding, len(want))
	for name, arity := range want {
		spec, ok := m.Operations[name]
		if !ok {
			return nil, manifestInvalid("operation %q is not mapped", name)
		}
		if spec.Symbol == "" {
			return nil, manifestInvalid("operation %q resolves to an empty symbol", name)
		}
		if spec.Arity != arity {
			return nil, manifestInvalid("operation %q declares arity %d, contract requires %d", name, spec.Arity, arity)
		}
		bindings[name] = Binding{
			Name:   name,
			File:   m.Implementation,
			Symbol: spec.Symbol,
			Arity:  spec.Arity,
		}
	}

	for name := range m.Operations {
		if _, ok := want[name]; !ok {
			return nil, manifestInvalid("unknown operation %q in manifest", name)
		}
	}

	return &Contract{
		Ingest:  bindings[OpIngest],
		Compact: bindings[OpCompact],
		Audit:   bindings[OpAudit],
	}, nil
}

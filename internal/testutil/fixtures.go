package testutil

import (
	"fmt"
	"os"
	"path/filepath"
)

// demoManifest is the counter demo package's manifest.
const demoManifest = `{
	"name": "demo-counter",
	"version": "1.0.0",
	"implementation": "impl.py",
	"selftest": "selftest.py",
	"operations": {
		"ingest":  {"symbol": "ingest", "arity": 2},
		"compact": {"symbol": "compact", "arity": 3},
		"audit":   {"symbol": "audit", "arity": 2}
	}
}`

// WritePackage lays out a valid five-file package for the counter demo
// artifact and returns its directory.
func WritePackage(dir string) (string, error) {
	pkgDir := filepath.Join(dir, "demo-counter")
	if err := os.MkdirAll(pkgDir, 0o755); err != nil {
		return "", err
	}

	files := map[string]string{
		"manifest.json":   demoManifest,
		"schema.json":     `{"type": "object", "properties": {"count": {"type": "integer"}}}`,
		"description.txt": "Reference counter artifact used by the harness tests.",
		"impl.py":         "# counter implementation (driven by the scripted runner in tests)\n",
		"selftest.py":     "# counter selftest\n",
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(pkgDir, name), []byte(content), 0o644); err != nil {
			return "", fmt.Errorf("write %s: %w", name, err)
		}
	}
	return pkgDir, nil
}

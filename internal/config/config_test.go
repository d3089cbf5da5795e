package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 300*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, "docker", cfg.Sandbox.Engine)
}

func TestLoad_NoFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Sandbox.Image, cfg.Sandbox.Image)
}

func TestLoad_MissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "does-not-exist.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default().Database, cfg.Database)
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "furnace.yaml")
	content := `
database: /var/lib/furnace/outcomes.db
sandbox:
  engine: exec
  timeout: 30s
  memory_mb: 128
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/var/lib/furnace/outcomes.db", cfg.Database)
	assert.Equal(t, "exec", cfg.Sandbox.Engine)
	assert.Equal(t, 30*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, 128, cfg.Sandbox.MemoryMB)
	// Untouched fields keep defaults.
	assert.Equal(t, Default().Sandbox.PidsLimit, cfg.Sandbox.PidsLimit)
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "furnace.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sandbox:\n  timeout: 30s\n"), 0o600))

	t.Setenv("FURNACE_SANDBOX_TIMEOUT", "45s")
	t.Setenv("FURNACE_WORKSPACE", "/srv/furnace")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 45*time.Second, cfg.Sandbox.Timeout)
	assert.Equal(t, "/srv/furnace", cfg.Workspace)
}

func TestLoad_InvalidConfigRejected(t *testing.T) {
	t.Setenv("FURNACE_SANDBOX_ENGINE", "chroot")
	_, err := Load("")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "sandbox.engine")
}

func TestTransformEnvKey(t *testing.T) {
	assert.Equal(t, "workspace", transformEnvKey("FURNACE_WORKSPACE"))
	assert.Equal(t, "sandbox.timeout", transformEnvKey("FURNACE_SANDBOX_TIMEOUT"))
	assert.Equal(t, "sandbox.memory_mb", transformEnvKey("FURNACE_SANDBOX_MEMORY_MB"))
	assert.Equal(t, "runtime.import_check", transformEnvKey("FURNACE_RUNTIME_IMPORT_CHECK"))
}

func TestValidate_Errors(t *testing.T) {
	cfg := Default()
	cfg.Sandbox.Timeout = 0
	require.Error(t, cfg.Validate())

	cfg = Default()
	cfg.Runtime.Invoke = nil
	require.Error(t, cfg.Validate())
}

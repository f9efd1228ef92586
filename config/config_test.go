package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsValidate(t *testing.T) {
	assert.NoError(t, Defaults().Validate())
}

func TestValidateRejectsNonPowerOfTwoBuffer(t *testing.T) {
	cfg := Defaults()
	cfg.Buffer.Size = 100
	assert.Error(t, cfg.Validate())
}

func TestValidateRejectsOutOfRangePort(t *testing.T) {
	cfg := Defaults()
	cfg.Server.Port = 70000
	assert.Error(t, cfg.Validate())
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "argus.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"server":{"port":9999},"buffer":{"size":1024}}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
	assert.Equal(t, 1024, cfg.Buffer.Size)
	assert.Equal(t, 100, cfg.RecentEvents.Size)
}

func TestLoadAppliesEnvPortOverride(t *testing.T) {
	t.Setenv(EnvServerPort, "9333")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9333, cfg.Server.Port)
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "anerun.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "/dev/dri/renderD129", cfg.Device)
	assert.False(t, cfg.Strict)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Run("Overrides", func(t *testing.T) {
		path := writeConfig(t, `
device = "/dev/dri/renderD128"
strict = true
model = "add.cbor"
inputs = ["a.bin", "b.bin"]
`)
		cfg, err := Load(path)
		require.NoError(t, err)
		assert.Equal(t, "/dev/dri/renderD128", cfg.Device)
		assert.True(t, cfg.Strict)
		assert.Equal(t, []string{"a.bin", "b.bin"}, cfg.Inputs)
		// Untouched keys keep defaults.
		assert.Equal(t, 64, cfg.MaxQueue)
		assert.Equal(t, "-", cfg.Output)
	})

	t.Run("Unknown key", func(t *testing.T) {
		_, err := Load(writeConfig(t, `devcie = "/dev/x"`))
		assert.Error(t, err)
	})

	t.Run("Invalid value", func(t *testing.T) {
		_, err := Load(writeConfig(t, `max_queue = 0`))
		assert.Error(t, err)
	})

	t.Run("Missing file", func(t *testing.T) {
		_, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
		assert.Error(t, err)
	})
}

package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultPassesValidate(t *testing.T) {
	assert.NoError(t, Default().Validate())
}

func TestLoadWithEmptyPathReturnsDefault(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadMergesFileOverDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("speed_factor: 4.0\nmodbus:\n  port: 15020\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 4.0, cfg.SpeedFactor)
	assert.Equal(t, 15020, cfg.Modbus.Port)
	// unspecified fields still carry their defaults.
	assert.Equal(t, 100, cfg.TickIntervalMS)
}

func TestLoadRejectsInvalidSpeedFactor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("speed_factor: -1\n"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestTickIntervalConversion(t *testing.T) {
	cfg := Default()
	cfg.TickIntervalMS = 250
	assert.Equal(t, 250_000_000, int(cfg.TickInterval()))
}

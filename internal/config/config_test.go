package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/iptsd-go/iptsd/contacts"
	"github.com/iptsd-go/iptsd/internal/config"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	require.Equal(t, "mode", cfg.Contacts.Neutral)
	require.Greater(t, cfg.Width, 0.0)
	require.Greater(t, cfg.Dft.PositionMinMag, 0.0)
}

func TestLoadAppliesFileOnTopOfDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iptsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
invert_x: true
width: 26.0
contacts:
  neutral: average
  activation_threshold: 0.2
`), 0o644))

	cfg, err := config.Load(path)
	require.NoError(t, err)

	require.True(t, cfg.InvertX)
	require.Equal(t, 26.0, cfg.Width)
	require.Equal(t, "average", cfg.Contacts.Neutral)
	require.Equal(t, 0.2, cfg.Contacts.ActivationThreshold)

	// Keys not in the file keep their defaults.
	require.Greater(t, cfg.Height, 0.0)
	require.Greater(t, cfg.Contacts.AspectMax, 0.0)
}

func TestLoadRejectsInvalidNeutralMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "iptsd.yaml")
	require.NoError(t, os.WriteFile(path, []byte("contacts: {neutral: median}\n"), 0o644))

	_, err := config.Load(path)
	require.ErrorIs(t, err, contacts.ErrInvalidNeutralMode)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "iptsd.yaml")

	cfg, err := config.Load(path)
	require.NoError(t, err)

	values := cfg.Snapshot()
	values.Width = 31.5
	cfg.Update(values)

	require.NoError(t, cfg.Save())

	reloaded, err := config.Load(path)
	require.NoError(t, err)
	require.Equal(t, 31.5, reloaded.Width)
}

func TestForDeviceOverride(t *testing.T) {
	cfg := config.Default()

	override := cfg.Snapshot()
	override.Width = 31.0
	override.Contacts.Neutral = "constant"

	cfg.Devices = []config.DeviceOverride{
		{Vendor: 0x045E, Product: 0x0C1A, Overrides: override},
	}

	matched := cfg.ForDevice(0x045E, 0x0C1A)
	require.Equal(t, 31.0, matched.Width)
	require.Equal(t, "constant", matched.Contacts.Neutral)

	other := cfg.ForDevice(0x045E, 0x9999)
	require.NotEqual(t, 31.0, other.Width)
}

func TestRuntimeTranslation(t *testing.T) {
	cfg := config.Default()

	runtime, err := cfg.Snapshot().Runtime()
	require.NoError(t, err)

	require.Equal(t, cfg.Width, runtime.Width)
	require.True(t, runtime.Detection.Normalize)
	require.NotNil(t, runtime.Validation.SizeLimits)
	require.NotNil(t, runtime.Stabilizer.PositionThreshold)
	require.GreaterOrEqual(t, runtime.Checker.TemporalWindow, 2)
}

func TestRuntimeRejectsBadEnum(t *testing.T) {
	values := config.Default().Snapshot()
	values.Contacts.Neutral = "garbage"

	_, err := values.Runtime()
	require.ErrorIs(t, err, contacts.ErrInvalidNeutralMode)
}

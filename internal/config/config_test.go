package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultsMatchSpecDefaults(t *testing.T) {
	cfg := Defaults()

	assert.Equal(t, 9500, cfg.Server.Port)
	assert.Equal(t, float64(60), cfg.Server.ClientInactivityTimeout.Seconds())
	assert.Equal(t, float32(0.5), cfg.Tuning.ReconciliationThreshold)
	assert.Equal(t, int64(33), cfg.Tuning.ReconciliationCooldown.Milliseconds())
	assert.Equal(t, int64(100), cfg.Tuning.InterpolationDelay.Milliseconds())
	assert.Equal(t, float32(5.0), cfg.Tuning.MaxInterpolationDistance)
	assert.True(t, cfg.PredictionIsEnabled())
	assert.True(t, cfg.InterpolationIsEnabled())
}

func TestLoadWithoutConfigFileUsesDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 9500, cfg.Server.Port)
}

func TestLoadMissingFileIsNotAnError(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yaml")
	require.NoError(t, err)
	assert.Equal(t, 9500, cfg.Server.Port)
}

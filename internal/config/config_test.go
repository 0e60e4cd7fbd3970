package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultValidates(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, cfg.FrameSize/4, cfg.HopSize)
}

func TestValidateRejectsBadTempoRange(t *testing.T) {
	cfg := Default()
	cfg.MinTempo, cfg.MaxTempo = 200, 60
	require.Error(t, cfg.Validate())
}

func TestValidateRenormalizesWeights(t *testing.T) {
	cfg := Default()
	cfg.OnsetWeight, cfg.TempoWeight, cfg.SpectralWeight = 2, 2, 2
	require.NoError(t, cfg.Validate())
	assert.InDelta(t, 1.0/3, cfg.OnsetWeight, 1e-9)
}

func TestValidateRejectsUnknownFormat(t *testing.T) {
	cfg := Default()
	cfg.OutputFormat = "yaml"
	require.Error(t, cfg.Validate())
}

func TestValidateRejectsFrameSizeTooSmall(t *testing.T) {
	cfg := Default()
	cfg.FrameSize = 8
	require.Error(t, cfg.Validate())
}

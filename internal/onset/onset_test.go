package onset

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jota2rz/beat-parser/internal/frame"
)

func TestSpectralFluxNonNegative(t *testing.T) {
	frames := []frame.FeatureFrame{
		{MagnitudeSpectrum: []float64{0.1, 0.2, 0.1}, StartTime: 0},
		{MagnitudeSpectrum: []float64{0.5, 0.1, 0.3}, StartTime: 0.1},
		{MagnitudeSpectrum: []float64{0.1, 0.1, 0.1}, StartTime: 0.2},
	}
	fn := SpectralFlux(frames, FluxOptions{})
	for _, s := range fn.Scores {
		assert.GreaterOrEqual(t, s, 0.0)
	}
}

func TestEnergyTracksRMS(t *testing.T) {
	frames := []frame.FeatureFrame{
		{RMS: 0.1, StartTime: 0},
		{RMS: 0.9, StartTime: 0.1},
	}
	fn := Energy(frames, EnergyOptions{})
	assert.Equal(t, []float64{0.1, 0.9}, fn.Scores)

	fnSq := Energy(frames, EnergyOptions{UseSquaredL2: true})
	assert.InDelta(t, 0.81, fnSq.Scores[1], 1e-9)
}

func TestCombineWeightsRenormalize(t *testing.T) {
	a := Function{Scores: []float64{1, 1}, StartTimes: []float64{0, 0.1}}
	b := Function{Scores: []float64{0, 0}, StartTimes: []float64{0, 0.1}}
	c := Function{Scores: []float64{0, 0}, StartTimes: []float64{0, 0.1}}

	out := Combine(a, b, c, Weights{Onset: 2, Spectral: 0, Energy: 0})
	assert.InDelta(t, 1.0, out.Scores[0], 1e-9)
}

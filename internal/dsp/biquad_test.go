package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLowPassAttenuatesHighFrequency(t *testing.T) {
	const sr = 44100.0
	f, err := NewBiquad(LowPass, 2, 500, sr)
	require.NoError(t, err)

	n := 4096
	low := make([]float64, n)
	high := make([]float64, n)
	for i := 0; i < n; i++ {
		low[i] = math.Sin(2 * math.Pi * 100 * float64(i) / sr)
		high[i] = math.Sin(2 * math.Pi * 8000 * float64(i) / sr)
	}

	lowOut, err := f.Process(low)
	require.NoError(t, err)
	f.Reset()
	highOut, err := f.Process(high)
	require.NoError(t, err)

	assert.Greater(t, rmsOf(lowOut[n/2:]), rmsOf(highOut[n/2:]))
}

func TestBiquadUnsupportedOrder(t *testing.T) {
	_, err := NewBiquad(LowPass, 3, 500, 44100)
	require.Error(t, err)
}

func TestBandPassRejectsDegenerateBand(t *testing.T) {
	// center 5Hz, bandwidth 4Hz: lowF = max(10, 3) = 10 >= highF = 7.
	_, err := NewBandPass(5, 4, 8000)
	require.Error(t, err)
}

func rmsOf(x []float64) float64 {
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

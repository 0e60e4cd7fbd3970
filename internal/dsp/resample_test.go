package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sineWave(freq, sampleRate float64, n int) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = math.Sin(2 * math.Pi * freq * float64(i) / sampleRate)
	}
	return out
}

func TestResampleEqualRatesReturnsBitwiseCopy(t *testing.T) {
	x := sineWave(440, 44100, 1024)
	out, err := Resample(x, 44100, 44100, true)
	require.NoError(t, err)
	assert.Equal(t, x, out)
}

func TestResampleDownsampleLengthAndPeakBin(t *testing.T) {
	const fromRate, toRate = 48000, 44100
	const freq = 10000
	n := 8192
	x := sineWave(freq, fromRate, n)

	out, err := Resample(x, fromRate, toRate, true)
	require.NoError(t, err)

	wantLen := int(float64(len(x)) * float64(toRate) / float64(fromRate))
	assert.InDelta(t, wantLen, len(out), 1)

	mag, err := MagnitudeSpectrum(out)
	require.NoError(t, err)
	fftSize := NextPowerOfTwo(len(out))

	peakBin := 0
	peakVal := 0.0
	for i, m := range mag {
		if m > peakVal {
			peakVal = m
			peakBin = i
		}
	}
	peakHz := float64(peakBin) * float64(toRate) / float64(fftSize)
	assert.InDelta(t, freq, peakHz, 50)
}

package dsp

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFFTSineBin(t *testing.T) {
	const n = 256
	const freqBin = 16
	x := make([]float64, n)
	for i := range x {
		x[i] = math.Sin(2 * math.Pi * float64(freqBin) * float64(i) / float64(n))
	}

	spec, err := FFT(x)
	require.NoError(t, err)
	require.Len(t, spec, n/2+1)

	mag := Magnitude(spec)
	peak := 0
	for i, m := range mag {
		if m > mag[peak] {
			peak = i
		}
	}
	assert.Equal(t, freqBin, peak)
}

func TestFFTEmptyInput(t *testing.T) {
	_, err := FFT(nil)
	require.Error(t, err)
}

func TestNextPowerOfTwo(t *testing.T) {
	cases := map[int]int{1: 1, 2: 2, 3: 4, 5: 8, 1024: 1024, 1025: 2048}
	for in, want := range cases {
		assert.Equal(t, want, NextPowerOfTwo(in), "input %d", in)
	}
}

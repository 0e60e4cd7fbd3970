package dsp

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMelFilterbankDimensions(t *testing.T) {
	fb := MelFilterbank(26, 1024, 16000)
	require.Len(t, fb, 26)
	for _, filt := range fb {
		require.Len(t, filt, 1024/2+1)
	}
}

func TestMFCCCoefficientCount(t *testing.T) {
	frame := make([]float64, 1024)
	for i := range frame {
		frame[i] = 0.01 * float64(i%7)
	}
	coeffs := MFCC(frame, MFCCOptions{SampleRate: 44100, NumFilters: DefaultMelFilters, NumCoeffs: DefaultMFCCCoeffs})
	assert.Len(t, coeffs, DefaultMFCCCoeffs)
}

func TestHzMelRoundTrip(t *testing.T) {
	for _, hz := range []float64{0, 100, 1000, 8000} {
		mel := hzToMel(hz)
		back := melToHz(mel)
		assert.InDelta(t, hz, back, 1e-6)
	}
}

package onset

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jota2rz/beat-parser/internal/errs"
)

func TestPickPeaksFindsIsolatedSpike(t *testing.T) {
	scores := make([]float64, 50)
	times := make([]float64, 50)
	for i := range scores {
		times[i] = float64(i) * 0.01
	}
	scores[10] = 5.0
	scores[30] = 5.0

	peaks, err := PickPeaks(Function{Scores: scores, StartTimes: times}, PeakOptions{MaxTempo: 600})
	require.NoError(t, err)
	require.Len(t, peaks, 2)
	assert.Equal(t, 10, peaks[0].FrameIndex)
	assert.Equal(t, 30, peaks[1].FrameIndex)
}

func TestPickPeaksEmptyIsInsufficientSignal(t *testing.T) {
	_, err := PickPeaks(Function{}, PeakOptions{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InsufficientSignal))
}

func TestPickPeaksRefractoryMergesCloseSpikes(t *testing.T) {
	scores := make([]float64, 30)
	times := make([]float64, 30)
	for i := range scores {
		times[i] = float64(i) * 0.01
	}
	scores[10] = 3.0
	scores[12] = 5.0 // 20ms after frame 10, inside the 0.3s refractory period at 200bpm

	peaks, err := PickPeaks(Function{Scores: scores, StartTimes: times}, PeakOptions{MaxTempo: 200})
	require.NoError(t, err)
	require.Len(t, peaks, 1)
	assert.Equal(t, 12, peaks[0].FrameIndex)
}

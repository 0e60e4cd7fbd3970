package tempo

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jota2rz/beat-parser/internal/errs"
	"github.com/jota2rz/beat-parser/internal/onset"
)

// synthClickTrack builds an onset function with isolated pulses at the
// given BPM over duration seconds, sampled at hopSeconds intervals.
func synthClickTrack(bpm, duration, hopSeconds float64) onset.Function {
	n := int(duration / hopSeconds)
	scores := make([]float64, n)
	times := make([]float64, n)
	period := 60.0 / bpm
	for i := range scores {
		times[i] = float64(i) * hopSeconds
	}
	for t := 0.0; t < duration; t += period {
		idx := int(math.Round(t / hopSeconds))
		if idx < n {
			scores[idx] = 1.0
		}
	}
	return onset.Function{Scores: scores, StartTimes: times}
}

func TestAnalyzeRecovers120BPMClickTrack(t *testing.T) {
	const hop = 0.01
	fn := synthClickTrack(120, 20, hop)

	est, err := Analyze(fn, hop, Options{MinTempo: 60, MaxTempo: 200})
	require.NoError(t, err)
	assert.InDelta(t, 120, est.BPM, 3)
}

func TestAnalyzeRejectsInvertedRange(t *testing.T) {
	fn := synthClickTrack(120, 5, 0.01)
	_, err := Analyze(fn, 0.01, Options{MinTempo: 200, MaxTempo: 60})
	require.Error(t, err)
}

func TestAnalyzeInsufficientSignalOnShortInput(t *testing.T) {
	fn := onset.Function{Scores: []float64{0, 0}, StartTimes: []float64{0, 0.01}}
	_, err := Analyze(fn, 0.01, Options{MinTempo: 60, MaxTempo: 200})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.InsufficientSignal))
}

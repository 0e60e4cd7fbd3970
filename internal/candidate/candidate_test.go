package candidate

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/jota2rz/beat-parser/internal/onset"
)

func TestBuildFusesGridAndOnsetPeaks(t *testing.T) {
	peaks := []onset.Peak{
		{Time: 0.50, Strength: 2.0},
		{Time: 1.00, Strength: 2.0},
		{Time: 1.51, Strength: 2.0},
	}
	out := Build(peaks, Options{BPM: 120, Phase: 0.5, Duration: 2.0})

	var fused int
	for _, c := range out {
		if c.Source == SourceFused {
			fused++
		}
	}
	assert.GreaterOrEqual(t, fused, 2)
}

func TestBuildDedupesCloseCandidates(t *testing.T) {
	peaks := []onset.Peak{
		{Time: 1.000, Strength: 1.0},
		{Time: 1.010, Strength: 2.0}, // within 30ms dedup window
	}
	out := Build(peaks, Options{BPM: 0, Duration: 2.0, OnsetKeepThreshold: 0})
	assert.Len(t, out, 1)
	assert.Equal(t, 1.010, out[0].Timestamp)
}

func TestBuildWithZeroBPMYieldsOnsetOnly(t *testing.T) {
	peaks := []onset.Peak{{Time: 0.3, Strength: 5.0}}
	out := Build(peaks, Options{BPM: 0, Duration: 1.0, OnsetKeepThreshold: 0})
	assert.Len(t, out, 1)
	assert.Equal(t, SourceOnset, out[0].Source)
}

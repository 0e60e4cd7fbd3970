package selector

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jota2rz/beat-parser/internal/candidate"
)

func makeCandidates(n int) []candidate.Candidate {
	out := make([]candidate.Candidate, n)
	for i := range out {
		out[i] = candidate.Candidate{
			Timestamp:  float64(i),
			Confidence: 0.5,
			Strength:   float64(i % 3),
		}
	}
	return out
}

func TestSelectZeroNReturnsEmpty(t *testing.T) {
	res, err := Select(makeCandidates(10), Options{N: 0})
	require.NoError(t, err)
	assert.Empty(t, res.Selected)
}

func TestSelectFewerThanNReturnsAll(t *testing.T) {
	res, err := Select(makeCandidates(3), Options{N: 10, Duration: 3})
	require.NoError(t, err)
	assert.Len(t, res.Selected, 3)
}

func TestSelectCapsNByMaxTempo(t *testing.T) {
	res, err := Select(makeCandidates(100), Options{N: 1000, Duration: 10, MaxTempo: 120})
	require.NoError(t, err)
	assert.True(t, res.WasCapped)
	assert.LessOrEqual(t, len(res.Selected), 20) // 10s * 120bpm/60 = 20
}

func TestSelectRegularStride(t *testing.T) {
	res, err := Select(makeCandidates(10), Options{N: 5, Policy: Regular, Duration: 10})
	require.NoError(t, err)
	assert.Len(t, res.Selected, 5)
}

func TestSelectEnergyPicksStrongest(t *testing.T) {
	cands := []candidate.Candidate{
		{Timestamp: 0, Strength: 1, Confidence: 0.5},
		{Timestamp: 1, Strength: 9, Confidence: 0.5},
		{Timestamp: 2, Strength: 3, Confidence: 0.5},
	}
	res, err := Select(cands, Options{N: 1, Policy: Energy, Duration: 3})
	require.NoError(t, err)
	require.Len(t, res.Selected, 1)
	assert.Equal(t, 1.0, res.Selected[0].Timestamp)
}

func TestSelectNegativeNErrors(t *testing.T) {
	_, err := Select(makeCandidates(1), Options{N: -1})
	require.Error(t, err)
}

package cacheplugin

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jota2rz/beat-parser/internal/candidate"
	"github.com/jota2rz/beat-parser/internal/config"
)

// TestProcessBeatsWriteThroughThenReadThrough confirms the cache's
// processBeats hook writes on a miss and, given the same digest/config
// pair again, replaces the candidate set on the subsequent hit instead of
// persisting whatever was passed in.
func TestProcessBeatsWriteThroughThenReadThrough(t *testing.T) {
	cfg := config.Default()
	p := New(":memory:", time.Hour)
	require.NoError(t, p.Initialize(cfg))
	defer p.Cleanup()

	samples := []float64{0.1, 0.2, 0.3}
	p.SetDigest(samples)

	computed := []candidate.Candidate{{Timestamp: 1.0, Confidence: 0.9, Strength: 0.5}}
	out, err := p.ProcessBeats(computed, cfg)
	require.NoError(t, err)
	assert.Equal(t, computed, out)

	// A fresh call against the same digest/config must now read through the
	// cache and ignore whatever candidates are passed in.
	p.SetDigest(samples)
	stale := []candidate.Candidate{{Timestamp: 9.0, Confidence: 0.1, Strength: 0.1}}
	out, err = p.ProcessBeats(stale, cfg)
	require.NoError(t, err)
	assert.Equal(t, computed, out)
	assert.NotEqual(t, stale, out)
}

// TestProcessBeatsDifferentDigestMisses confirms a different input digest
// does not read through another buffer's cached candidates.
func TestProcessBeatsDifferentDigestMisses(t *testing.T) {
	cfg := config.Default()
	p := New(":memory:", time.Hour)
	require.NoError(t, p.Initialize(cfg))
	defer p.Cleanup()

	p.SetDigest([]float64{0.1, 0.2, 0.3})
	first := []candidate.Candidate{{Timestamp: 1.0, Confidence: 0.9, Strength: 0.5}}
	_, err := p.ProcessBeats(first, cfg)
	require.NoError(t, err)

	p.SetDigest([]float64{0.9, 0.8, 0.7})
	second := []candidate.Candidate{{Timestamp: 2.0, Confidence: 0.8, Strength: 0.4}}
	out, err := p.ProcessBeats(second, cfg)
	require.NoError(t, err)
	assert.Equal(t, second, out)
}

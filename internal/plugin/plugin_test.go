package plugin

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jota2rz/beat-parser/internal/candidate"
	"github.com/jota2rz/beat-parser/internal/config"
	"github.com/jota2rz/beat-parser/internal/errs"
)

type recorder struct {
	name        string
	cleanupOrder *[]string
	failAudio   bool
	shrinkRatio float64
}

func (r *recorder) Name() string    { return r.name }
func (r *recorder) Version() string { return "test" }

func (r *recorder) ProcessAudio(samples []float64, _ config.Config) ([]float64, error) {
	if r.failAudio {
		return nil, errors.New("boom")
	}
	if r.shrinkRatio > 0 {
		n := int(float64(len(samples)) * r.shrinkRatio)
		return samples[:n], nil
	}
	return samples, nil
}

func (r *recorder) Cleanup() error {
	*r.cleanupOrder = append(*r.cleanupOrder, r.name)
	return nil
}

func TestProcessAudioChainsPassThroughPlugins(t *testing.T) {
	p := NewPipeline()
	p.Add(&recorder{name: "a"})
	p.Add(&recorder{name: "b"})

	out, err := p.ProcessAudio([]float64{1, 2, 3, 4}, config.Config{})
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 2, 3, 4}, out)
}

func TestProcessAudioWrapsFailureAsPluginFailure(t *testing.T) {
	p := NewPipeline()
	p.Add(&recorder{name: "broken", failAudio: true})

	_, err := p.ProcessAudio([]float64{1, 2, 3}, config.Config{})
	require.Error(t, err)
	assert.True(t, errs.Is(err, errs.PluginFailure))
}

func TestProcessAudioRejectsOversizedShrink(t *testing.T) {
	p := NewPipeline()
	p.Add(&recorder{name: "shrinker", shrinkRatio: 0.5})

	samples := make([]float64, 100)
	_, err := p.ProcessAudio(samples, config.Config{})
	require.Error(t, err)
}

func TestCleanupRunsInReverseOrder(t *testing.T) {
	var order []string
	p := NewPipeline()
	p.Add(&recorder{name: "a", cleanupOrder: &order})
	p.Add(&recorder{name: "b", cleanupOrder: &order})

	p.Cleanup()
	assert.Equal(t, []string{"b", "a"}, order)
}

func TestProcessBeatsRejectsOutOfRangeTimestamp(t *testing.T) {
	p := NewPipeline()
	p.Add(&beatShifter{})
	_, err := p.ProcessBeats([]candidate.Candidate{{Timestamp: 1}}, config.Config{}, 2.0)
	require.Error(t, err)
}

type beatShifter struct{}

func (b *beatShifter) Name() string    { return "shifter" }
func (b *beatShifter) Version() string { return "test" }
func (b *beatShifter) ProcessBeats(cands []candidate.Candidate, _ config.Config) ([]candidate.Candidate, error) {
	for i := range cands {
		cands[i].Timestamp += 100
	}
	return cands, nil
}

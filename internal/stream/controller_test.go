package stream

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testOptions() Options {
	return Options{
		ChunkSize:  64,
		FrameSize:  16,
		HopSize:    8,
		SampleRate: 8000,
	}
}

// TestIngestNeverExceedsRingCapacity feeds far more chunks than fit in one
// ring window and asserts the controller's raw-sample retention stays
// bounded throughout, the core guarantee behind "bounded-memory ingestion".
func TestIngestNeverExceedsRingCapacity(t *testing.T) {
	opts := testOptions()
	ctrl, err := New(opts, 0)
	require.NoError(t, err)

	chunk := make([]float64, opts.ChunkSize)
	for i := range chunk {
		chunk[i] = math.Sin(float64(i))
	}
	for i := 0; i < 200; i++ {
		require.NoError(t, ctrl.Ingest(chunk))
		assert.LessOrEqual(t, len(ctrl.ring), ctrl.RingCapacity())
	}

	res := ctrl.Finalize()
	assert.Equal(t, 200*opts.ChunkSize, res.SamplesProcessed)
	assert.NotEmpty(t, res.Flux.Scores)
	assert.Equal(t, len(res.Flux.Scores), len(res.Energy.Scores))
	assert.Equal(t, len(res.Flux.Scores), len(res.Complex.Scores))
}

func TestIngestAfterFinalizeErrors(t *testing.T) {
	ctrl, err := New(testOptions(), 0)
	require.NoError(t, err)
	ctrl.Finalize()
	require.Error(t, ctrl.Ingest([]float64{1}))
}

func TestProgressReportsMonotonicAndReaches100AtFinalize(t *testing.T) {
	var pcts []float64
	opts := testOptions()
	opts.Progress = func(_, _ int, pct float64) { pcts = append(pcts, pct) }
	ctrl, err := New(opts, opts.ChunkSize*4)
	require.NoError(t, err)

	chunk := make([]float64, opts.ChunkSize)
	require.NoError(t, ctrl.Ingest(chunk))
	require.NoError(t, ctrl.Ingest(chunk))
	ctrl.Finalize()

	require.NotEmpty(t, pcts)
	for i := 1; i < len(pcts); i++ {
		assert.GreaterOrEqual(t, pcts[i], pcts[i-1])
	}
	assert.Equal(t, 100.0, pcts[len(pcts)-1])
}

func TestNewRejectsBadOverlap(t *testing.T) {
	opts := testOptions()
	opts.Overlap = 0.9
	_, err := New(opts, 0)
	require.Error(t, err)
}

func TestNewRejectsZeroSampleRate(t *testing.T) {
	opts := testOptions()
	opts.SampleRate = 0
	_, err := New(opts, 0)
	require.Error(t, err)
}

// TestIngestRejectsNonFiniteWithoutCleanup confirms the streaming path
// mirrors audio.Standardize's cleanup contract: non-finite samples fail
// fast unless EnableCleanup is set.
func TestIngestRejectsNonFiniteWithoutCleanup(t *testing.T) {
	ctrl, err := New(testOptions(), 0)
	require.NoError(t, err)
	chunk := make([]float64, testOptions().ChunkSize)
	chunk[3] = math.NaN()
	require.Error(t, ctrl.Ingest(chunk))
}

func TestIngestCleansNonFiniteWhenEnabled(t *testing.T) {
	opts := testOptions()
	opts.EnableCleanup = true
	ctrl, err := New(opts, 0)
	require.NoError(t, err)
	chunk := make([]float64, opts.ChunkSize)
	chunk[3] = math.Inf(1)
	require.NoError(t, ctrl.Ingest(chunk))
	res := ctrl.Finalize()
	assert.True(t, res.Cleaned)
}

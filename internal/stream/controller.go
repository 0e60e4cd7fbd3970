// Package stream implements bounded-memory chunk ingestion: a small ring
// buffer of raw samples (sized frameSize + overlap*chunkSize) plus the
// onset detectors' own rolling state (previous magnitude/phase spectra) is
// all that is carried across Ingest calls. Each hop boundary crossed
// immediately turns into an onset score and is appended to a compact,
// per-frame Function; the raw samples behind it are then dropped. Finalize
// hands back those accumulated onset functions, not raw audio, for the
// caller to run tempo analysis over exactly as it would for a whole buffer.
package stream

import (
	"math"

	"github.com/jota2rz/beat-parser/internal/dsp"
	"github.com/jota2rz/beat-parser/internal/errs"
	"github.com/jota2rz/beat-parser/internal/frame"
	"github.com/jota2rz/beat-parser/internal/onset"
)

// ProgressFunc is invoked at chunk granularity; percentage is monotonically
// non-decreasing across calls for a given Controller and reaches 100 only
// at Finalize.
type ProgressFunc func(current, total int, percentage float64)

// Options configures the streaming controller. FrameSize/HopSize/SampleRate
// must match the analysis Config the caller will use for tempo tracking,
// since the onset functions accumulated here are meaningless against a
// different hop spacing.
type Options struct {
	ChunkSize  int
	Overlap    float64 // [0, 0.5)
	FrameSize  int
	HopSize    int
	SampleRate int

	// EnableCleanup replaces non-finite chunk samples with 0 instead of
	// failing, mirroring audio.Standardize's cleanup flag.
	EnableCleanup bool
	// EnableNormalize peak-normalizes each consumed frame against the
	// highest-magnitude sample observed so far across the whole stream.
	// Because the true global peak cannot be known until the stream ends,
	// this is a running approximation of audio.Standardize's whole-buffer
	// normalize, and converges to the same scale once the loudest sample
	// has been seen; frames consumed before then are scaled against a
	// still-rising peak estimate.
	EnableNormalize   bool
	NormalizeHeadroom float64 // default 0.95

	Progress ProgressFunc
}

// Result is what Finalize hands back: the three onset detector outputs
// accumulated incrementally across every Ingest call, ready for
// onset.Combine and tempo.Analyze exactly as if they had been computed
// from one whole buffer.
type Result struct {
	Flux             onset.Function
	Energy           onset.Function
	Complex          onset.Function
	SamplesProcessed int
	Duration         float64
	Cleaned          bool
}

// Controller ingests chunks under a bounded memory budget: it retains only
// a ring window of raw samples sized frameSize + overlap*chunkSize,
// consuming a complete frame (and advancing by HopSize) as soon as the ring
// holds enough samples, and carries the onset detectors' rolling state
// (previous magnitude/phase spectra, running normalization peak) across
// chunk boundaries rather than re-deriving it from a concatenated buffer.
type Controller struct {
	opts    Options
	ringCap int
	win     []float64

	ring      []float64
	ringStart int // absolute sample index of ring[0], for frame StartTime
	frameIdx  int

	runningPeak float64
	cleaned     bool

	flux, energy, cplx onset.Function
	fluxState          onset.FluxState
	cplxState          onset.ComplexState

	totalSeen int
	expected  int
	done      bool
}

// New validates Options and returns a Controller. expectedTotalSamples may
// be 0 if unknown (progress percentage is then reported as 0 after each
// chunk, with samples seen so far as current, until Finalize reports 100).
func New(opts Options, expectedTotalSamples int) (*Controller, error) {
	if opts.ChunkSize <= 0 {
		return nil, errs.New(errs.InvalidParameter, "stream: chunkSize must be > 0")
	}
	if opts.Overlap < 0 || opts.Overlap >= 0.5 {
		return nil, errs.New(errs.InvalidParameter, "stream: overlap must be in [0, 0.5)")
	}
	if opts.FrameSize < 2 {
		return nil, errs.New(errs.InvalidParameter, "stream: frameSize must be >= 2")
	}
	if opts.HopSize < 1 || opts.HopSize > opts.FrameSize {
		return nil, errs.New(errs.InvalidParameter, "stream: hopSize must satisfy 1 <= hop <= frameSize")
	}
	if opts.SampleRate <= 0 {
		return nil, errs.New(errs.InvalidParameter, "stream: sampleRate must be > 0")
	}
	if opts.NormalizeHeadroom <= 0 {
		opts.NormalizeHeadroom = 0.95
	}
	ringCap := opts.FrameSize + int(opts.Overlap*float64(opts.ChunkSize))
	return &Controller{
		opts:     opts,
		ringCap:  ringCap,
		win:      dsp.Window(dsp.WindowHanning, opts.FrameSize),
		expected: expectedTotalSamples,
	}, nil
}

// Ingest folds chunk into the ring, consuming every complete frame it now
// contains (possibly more than one, if chunk is larger than HopSize) before
// trimming the ring back down to its capacity.
func (c *Controller) Ingest(chunk []float64) error {
	if c.done {
		return errs.New(errs.InvalidParameter, "stream: Ingest called after Finalize")
	}

	clean, err := c.scrub(chunk)
	if err != nil {
		return err
	}
	if c.opts.EnableNormalize {
		for _, s := range clean {
			if a := math.Abs(s); a > c.runningPeak {
				c.runningPeak = a
			}
		}
	}

	c.ring = append(c.ring, clean...)
	c.totalSeen += len(clean)

	for len(c.ring) >= c.opts.FrameSize {
		if err := c.consumeFrame(c.ring[:c.opts.FrameSize]); err != nil {
			return err
		}
		adv := c.opts.HopSize
		if adv > len(c.ring) {
			adv = len(c.ring)
		}
		c.ring = c.ring[adv:]
		c.ringStart += adv
	}

	// The loop above already keeps the ring at or below one frame's worth of
	// lookback; this just enforces the documented cap as a hard backstop.
	if len(c.ring) > c.ringCap {
		excess := len(c.ring) - c.ringCap
		c.ring = c.ring[excess:]
		c.ringStart += excess
	}

	c.reportProgress()
	return nil
}

// scrub replaces non-finite samples with 0 when EnableCleanup is set,
// otherwise fails fast, mirroring audio.Standardize's cleanup contract.
func (c *Controller) scrub(chunk []float64) ([]float64, error) {
	for i, s := range chunk {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			if !c.opts.EnableCleanup {
				return nil, errs.New(errs.InvalidAudio, "stream: non-finite sample in chunk at offset %d", i)
			}
			out := append([]float64(nil), chunk...)
			out[i] = 0
			c.cleaned = true
			for j := i + 1; j < len(out); j++ {
				if math.IsNaN(out[j]) || math.IsInf(out[j], 0) {
					out[j] = 0
				}
			}
			return out, nil
		}
	}
	return chunk, nil
}

// consumeFrame runs one frame's worth of samples through feature extraction
// and every onset detector's stepping state, appending the result and
// discarding the samples themselves.
func (c *Controller) consumeFrame(samples []float64) error {
	startTime := float64(c.ringStart) / float64(c.opts.SampleRate)

	if c.opts.EnableNormalize && c.runningPeak > 0 {
		scale := c.opts.NormalizeHeadroom / c.runningPeak
		scaled := make([]float64, len(samples))
		for i, v := range samples {
			scaled[i] = v * scale
		}
		samples = scaled
	}

	ff, err := frame.Extract(frame.Frame{Samples: samples, StartTime: startTime, Index: c.frameIdx}, frame.ExtractOptions{
		Window:     dsp.WindowHanning,
		SampleRate: c.opts.SampleRate,
	})
	if err != nil {
		return err
	}

	spec, err := dsp.FFT(dsp.Apply(samples, c.win))
	if err != nil {
		return err
	}

	c.flux.Scores = append(c.flux.Scores, c.fluxState.Step(ff.MagnitudeSpectrum, onset.FluxOptions{Logarithmic: true}))
	c.flux.StartTimes = append(c.flux.StartTimes, startTime)

	c.energy.Scores = append(c.energy.Scores, ff.RMS)
	c.energy.StartTimes = append(c.energy.StartTimes, startTime)

	c.cplx.Scores = append(c.cplx.Scores, c.cplxState.Step(spec))
	c.cplx.StartTimes = append(c.cplx.StartTimes, startTime)

	c.frameIdx++
	return nil
}

// Finalize marks the stream complete, reports 100% progress, and returns
// the onset functions accumulated across every Ingest call.
func (c *Controller) Finalize() Result {
	c.done = true
	if c.opts.Progress != nil {
		total := c.expected
		if total <= 0 {
			total = c.totalSeen
		}
		c.opts.Progress(total, total, 100)
	}
	return Result{
		Flux:             c.flux,
		Energy:           c.energy,
		Complex:          c.cplx,
		SamplesProcessed: c.totalSeen,
		Duration:         float64(c.totalSeen) / float64(c.opts.SampleRate),
		Cleaned:          c.cleaned,
	}
}

// RingCapacity returns the bounded cross-chunk context window size; raw
// sample retention never exceeds this.
func (c *Controller) RingCapacity() int { return c.ringCap }

func (c *Controller) reportProgress() {
	if c.opts.Progress == nil {
		return
	}
	total := c.expected
	pct := 0.0
	if total > 0 {
		pct = 100 * float64(c.totalSeen) / float64(total)
		if pct > 99 {
			pct = 99 // 100% is reserved for Finalize
		}
	}
	c.opts.Progress(c.totalSeen, total, pct)
}

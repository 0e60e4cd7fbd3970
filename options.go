package beatparser

import (
	"github.com/jota2rz/beat-parser/internal/selector"
)

// SelectionPolicy names a beat-reduction strategy, re-exported so
// callers never import internal/selector directly.
type SelectionPolicy = selector.Policy

const (
	SelectUniform  = selector.Uniform
	SelectRegular  = selector.Regular
	SelectEnergy   = selector.Energy
	SelectAdaptive = selector.Adaptive // default
)

// ProgressFunc reports streaming progress; percentage is in [0, 100]. Only
// ParseStream invokes it; ParseBuffer and ProcessBatch report no progress.
type ProgressFunc func(current, total int, percentage float64)

// OnsetOptions exposes advanced per-call onset-detection tuning beyond
// Config's fusion weights. Zero-valued fields fall back to
// internal/onset's own defaults (median window 20 frames, k=1.5, etc.).
type OnsetOptions struct {
	MedianWindow int     // adaptive-threshold window, in frames
	K            float64 // threshold = median + K*MAD
	MinPeakGap   float64 // seconds; refractory floor alongside 60/maxTempo
	EnergyFloor  float64 // total combined-score energy below this -> InsufficientSignal
}

// TempoOptions exposes advanced per-call tempo-tracker tuning. A zero field
// keeps the constructed Config's MinTempo/MaxTempo.
type TempoOptions struct {
	MinTempo float64
	MaxTempo float64
}

// ParseOptions are per-call overrides that do not belong in the
// construction-time Config: how many beats to keep and under which
// policy, per-call overrides of a handful of Config fields, and progress
// reporting for streams (Progress is not called for single buffers).
type ParseOptions struct {
	// TargetBeatCount caps the number of beats returned; 0 returns an empty
	// result (see internal/selector.Select).
	TargetBeatCount int
	Policy          SelectionPolicy
	Progress        ProgressFunc

	// MinConfidence overrides Config.ConfidenceThreshold for this call only;
	// 0 keeps the constructed Config's value.
	MinConfidence float64
	// WindowSize overrides Config.FrameSize for this call only; 0 keeps the
	// constructed Config's value.
	WindowSize int
	// HopSize overrides Config.HopSize for this call only; 0 keeps the
	// constructed Config's value.
	HopSize int
	// SampleRate overrides Config.SampleRate (the standardization target)
	// for this call only; 0 keeps the constructed Config's value.
	SampleRate int

	// Filename is informational only; carried through to Metadata.Filename.
	Filename string

	Onset OnsetOptions
	Tempo TempoOptions
}

// StreamOptions configures ParseStream's chunking discipline.
type StreamOptions struct {
	ChunkSize int
	Overlap   float64
	Parse     ParseOptions
}

// BatchItem is one buffer of an Parser.ProcessBatch call: its own
// interleaved PCM, source format, and per-call ParseOptions, so a batch can
// mix buffers recorded at different rates/channel counts.
type BatchItem struct {
	Interleaved []float64
	SourceRate  int
	Channels    int
	Options     ParseOptions
}

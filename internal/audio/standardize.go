package audio

import (
	"math"

	"github.com/jota2rz/beat-parser/internal/dsp"
	"github.com/jota2rz/beat-parser/internal/errs"
)

// StandardizeOptions controls the standardization transform.
type StandardizeOptions struct {
	TargetSampleRate  int
	EnableNormalize   bool
	NormalizeHeadroom float64 // default 0.95
	EnableCleanup     bool    // replace non-finite samples with 0 instead of failing
}

// Standardize collapses possibly-interleaved multi-channel input to mono,
// resamples to TargetSampleRate with an anti-alias prefilter, and optionally
// peak-normalizes to NormalizeHeadroom. Returns (buffer, cleanedUp, error);
// cleanedUp is true iff EnableCleanup masked non-finite input samples.
func Standardize(interleaved []float64, sourceRate, channels int, opts StandardizeOptions) (*Buffer, bool, error) {
	if len(interleaved) == 0 {
		return nil, false, errs.New(errs.EmptyInput, "standardize: zero-length input")
	}
	if channels <= 0 {
		channels = 1
	}

	cleaned := false
	work := interleaved
	for i, s := range work {
		if math.IsNaN(s) || math.IsInf(s, 0) {
			if !opts.EnableCleanup {
				return nil, false, errs.New(errs.InvalidAudio, "standardize: non-finite sample at index %d", i)
			}
			if !cleaned {
				work = append([]float64(nil), interleaved...)
				cleaned = true
			}
			work[i] = 0
		}
	}

	mono := downmix(work, channels)

	target := opts.TargetSampleRate
	if target <= 0 {
		target = sourceRate
	}
	resampled, err := dsp.Resample(mono, sourceRate, target, true)
	if err != nil {
		return nil, cleaned, err
	}

	if opts.EnableNormalize {
		headroom := opts.NormalizeHeadroom
		if headroom <= 0 {
			headroom = 0.95
		}
		resampled = normalize(resampled, headroom)
	}

	f32 := make([]float32, len(resampled))
	for i, v := range resampled {
		f32[i] = float32(v)
	}
	buf, err := New(f32, target)
	if err != nil {
		return nil, cleaned, err
	}
	return buf, cleaned, nil
}

func downmix(interleaved []float64, channels int) []float64 {
	if channels == 1 {
		out := make([]float64, len(interleaved))
		copy(out, interleaved)
		return out
	}
	n := len(interleaved) / channels
	out := make([]float64, n)
	for i := 0; i < n; i++ {
		var sum float64
		for ch := 0; ch < channels; ch++ {
			sum += interleaved[i*channels+ch]
		}
		out[i] = sum / float64(channels)
	}
	return out
}

// normalize scales x so its peak absolute value equals headroom. A silent
// (all-zero) buffer is returned unchanged.
func normalize(x []float64, headroom float64) []float64 {
	peak := 0.0
	for _, v := range x {
		if a := math.Abs(v); a > peak {
			peak = a
		}
	}
	if peak == 0 {
		out := make([]float64, len(x))
		copy(out, x)
		return out
	}
	scale := headroom / peak
	out := make([]float64, len(x))
	for i, v := range x {
		out[i] = v * scale
	}
	return out
}

// Package onset implements the three onset detection functions
// (spectral flux, energy, complex-domain), their weighted combination, and
// adaptive peak picking with a refractory period.
package onset

import (
	"math"

	"github.com/jota2rz/beat-parser/internal/frame"
)

// Function is a per-frame scalar onset detection function paired with each
// frame's start time.
type Function struct {
	Scores     []float64
	StartTimes []float64
}

// FluxOptions configures the spectral flux detector.
type FluxOptions struct {
	Logarithmic       bool
	HighFrequencyWeight bool
}

// SpectralFlux computes sum_k max(0, mag_t[k]-mag_{t-1}[k]) across frames,
// optionally in log-magnitude and/or with linear high-frequency weighting.
func SpectralFlux(frames []frame.FeatureFrame, opts FluxOptions) Function {
	n := len(frames)
	scores := make([]float64, n)
	times := make([]float64, n)
	var st FluxState
	for i, f := range frames {
		times[i] = f.StartTime
		scores[i] = st.Step(f.MagnitudeSpectrum, opts)
	}
	return Function{Scores: scores, StartTimes: times}
}

// FluxState carries spectral flux's one-frame magnitude history across
// incremental Step calls, so a streaming caller can reproduce SpectralFlux's
// output frame-by-frame without holding every frame in memory at once.
type FluxState struct {
	prev []float64
}

// Step scores one frame's magnitude spectrum against the previous frame
// this state has seen, returning 0 for the very first call.
func (s *FluxState) Step(magnitude []float64, opts FluxOptions) float64 {
	mag := magnitude
	if opts.Logarithmic {
		mag = logMagnitude(mag)
	}
	if s.prev == nil {
		s.prev = append([]float64(nil), mag...)
		return 0
	}
	var flux float64
	for k := 0; k < len(mag) && k < len(s.prev); k++ {
		d := mag[k] - s.prev[k]
		if d > 0 {
			if opts.HighFrequencyWeight {
				d *= float64(k + 1)
			}
			flux += d
		}
	}
	s.prev = append(s.prev[:0], mag...)
	return flux
}

func logMagnitude(mag []float64) []float64 {
	out := make([]float64, len(mag))
	for i, m := range mag {
		out[i] = math.Log1p(m)
	}
	return out
}

// EnergyOptions configures the energy detector.
type EnergyOptions struct {
	UseSquaredL2 bool // false = RMS, true = squared L2 norm
}

// Energy computes a per-frame energy-based onset score (RMS or squared L2).
// High-frequency emphasis is expected to be applied upstream via a
// high-pass prefilter on the source samples before framing.
func Energy(frames []frame.FeatureFrame, opts EnergyOptions) Function {
	n := len(frames)
	scores := make([]float64, n)
	times := make([]float64, n)
	for i, f := range frames {
		times[i] = f.StartTime
		if opts.UseSquaredL2 {
			scores[i] = f.RMS * f.RMS
		} else {
			scores[i] = f.RMS
		}
	}
	return Function{Scores: scores, StartTimes: times}
}

// ComplexDomain estimates onset strength from the deviation between the
// observed complex spectrum and a one-step linear predictor (previous
// magnitude held, previous phase advanced by the last observed phase
// increment), combining magnitude and phase deviation.
func ComplexDomain(spectra [][]complex128, startTimes []float64) Function {
	n := len(spectra)
	scores := make([]float64, n)
	var st ComplexState
	for i, spec := range spectra {
		scores[i] = st.Step(spec)
	}
	return Function{Scores: scores, StartTimes: startTimes}
}

// ComplexState carries the one-step linear predictor's history (previous
// magnitude, phase, and phase increment) across incremental Step calls, so
// a streaming caller can reproduce ComplexDomain's output frame-by-frame.
type ComplexState struct {
	prevMag, prevPhase, prevPhaseDelta []float64
}

// Step scores one frame's complex spectrum against the prediction built
// from the previous frame this state has seen, returning 0 for the very
// first call.
func (s *ComplexState) Step(spec []complex128) float64 {
	mag := make([]float64, len(spec))
	phase := make([]float64, len(spec))
	for k, c := range spec {
		mag[k] = math.Hypot(real(c), imag(c))
		phase[k] = math.Atan2(imag(c), real(c))
	}
	if s.prevMag == nil {
		s.prevMag, s.prevPhase = mag, phase
		s.prevPhaseDelta = make([]float64, len(spec))
		return 0
	}
	var score float64
	newPhaseDelta := make([]float64, len(spec))
	for k := range spec {
		predictedPhase := wrapPhase(s.prevPhase[k] + s.prevPhaseDelta[k])
		phaseDev := wrapPhase(phase[k] - predictedPhase)
		newPhaseDelta[k] = wrapPhase(phase[k] - s.prevPhase[k])

		re := mag[k]*math.Cos(phase[k]) - s.prevMag[k]*math.Cos(predictedPhase)
		im := mag[k]*math.Sin(phase[k]) - s.prevMag[k]*math.Sin(predictedPhase)
		dev := math.Hypot(re, im)
		// Euclidean deviation already blends magnitude and phase implicitly;
		// add an explicit magnitude-weighted phase-deviation term on top so a
		// bin that holds its magnitude but jumps in phase still registers.
		score += dev + mag[k]*math.Abs(phaseDev)
	}
	s.prevMag, s.prevPhase, s.prevPhaseDelta = mag, phase, newPhaseDelta
	return score
}

func wrapPhase(p float64) float64 {
	for p > math.Pi {
		p -= 2 * math.Pi
	}
	for p < -math.Pi {
		p += 2 * math.Pi
	}
	return p
}

// Weights are the fusion weights for the combined score,
// renormalized to sum to 1.
type Weights struct {
	Onset    float64
	Spectral float64
	Energy   float64
}

// Combine produces a weighted-sum onset function from up to three component
// functions (any of which may be nil/empty to exclude it). Scores are
// aligned by index; all inputs must share frame count.
func Combine(onsetFn, spectralFn, energyFn Function, w Weights) Function {
	total := w.Onset + w.Spectral + w.Energy
	if total <= 0 {
		total = 1
	}
	on, sp, en := w.Onset/total, w.Spectral/total, w.Energy/total

	n := 0
	for _, f := range []Function{onsetFn, spectralFn, energyFn} {
		if len(f.Scores) > n {
			n = len(f.Scores)
		}
	}
	scores := make([]float64, n)
	times := make([]float64, n)
	for i := 0; i < n; i++ {
		var v float64
		if i < len(onsetFn.Scores) {
			v += on * onsetFn.Scores[i]
		}
		if i < len(spectralFn.Scores) {
			v += sp * spectralFn.Scores[i]
		}
		if i < len(energyFn.Scores) {
			v += en * energyFn.Scores[i]
		}
		scores[i] = v
		switch {
		case i < len(onsetFn.StartTimes):
			times[i] = onsetFn.StartTimes[i]
		case i < len(spectralFn.StartTimes):
			times[i] = spectralFn.StartTimes[i]
		case i < len(energyFn.StartTimes):
			times[i] = energyFn.StartTimes[i]
		}
	}
	return Function{Scores: scores, StartTimes: times}
}

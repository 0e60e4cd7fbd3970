package dsp

import (
	"math"

	"github.com/jota2rz/beat-parser/internal/errs"
)

// FilterKind names a supported biquad topology.
type FilterKind string

const (
	LowPass  FilterKind = "lowpass"
	HighPass FilterKind = "highpass"
	BandPass FilterKind = "bandpass"
	Notch    FilterKind = "notch"
)

// DefaultNotchQ is used when a caller does not specify one.
const DefaultNotchQ = 10.0

// biquadCoeffs holds a Direct-Form II transfer function's coefficients,
// normalized so a0 = 1.
type biquadCoeffs struct {
	b0, b1, b2 float64
	a1, a2     float64
}

// Biquad is a single Direct-Form II IIR section with one delay line (the
// spec requires Direct-Form II specifically, so only w[n-1]/w[n-2] are kept,
// never separate x/y histories).
type Biquad struct {
	c      biquadCoeffs
	w1, w2 float64
}

// NewBiquad designs a Butterworth biquad of order 1 or 2 via the bilinear
// transform. Orders above 2 are Unsupported; an invalid cutoff relative to
// the Nyquist frequency is InvalidParameter.
func NewBiquad(kind FilterKind, order int, cutoff, sampleRate float64) (*Biquad, error) {
	if order != 1 && order != 2 {
		return nil, errs.New(errs.Unsupported, "biquad: order %d not implemented (only 1 and 2)", order)
	}
	if sampleRate <= 0 {
		return nil, errs.New(errs.InvalidParameter, "biquad: sampleRate must be positive")
	}
	nyquist := sampleRate / 2
	if !(cutoff > 0 && cutoff < nyquist) {
		return nil, errs.New(errs.InvalidParameter, "biquad: cutoff %.3f must satisfy 0 < f_c < %.3f", cutoff, nyquist)
	}

	c, err := design(kind, order, cutoff, sampleRate, math.Sqrt2/2)
	if err != nil {
		return nil, err
	}
	return &Biquad{c: c}, nil
}

// NewNotch designs a notch filter at centerFreq with the given Q (<=0 uses
// DefaultNotchQ).
func NewNotch(centerFreq, q, sampleRate float64) (*Biquad, error) {
	if sampleRate <= 0 {
		return nil, errs.New(errs.InvalidParameter, "notch: sampleRate must be positive")
	}
	nyquist := sampleRate / 2
	if !(centerFreq > 0 && centerFreq < nyquist) {
		return nil, errs.New(errs.InvalidParameter, "notch: center %.3f must satisfy 0 < f_c < %.3f", centerFreq, nyquist)
	}
	if q <= 0 {
		q = DefaultNotchQ
	}

	w0 := 2 * math.Pi * centerFreq / sampleRate
	alpha := math.Sin(w0) / (2 * q)
	cosW0 := math.Cos(w0)

	a0 := 1 + alpha
	c := biquadCoeffs{
		b0: 1 / a0,
		b1: -2 * cosW0 / a0,
		b2: 1 / a0,
		a1: -2 * cosW0 / a0,
		a2: (1 - alpha) / a0,
	}
	return &Biquad{c: c}, nil
}

// design computes bilinear-transform coefficients for a Butterworth
// low/high-pass of order 1 or 2. q is the pole Q for the 2nd-order case
// (1/sqrt(2) gives the maximally-flat Butterworth response).
func design(kind FilterKind, order int, cutoff, sampleRate, q float64) (biquadCoeffs, error) {
	w0 := 2 * math.Pi * cutoff / sampleRate
	cosW0 := math.Cos(w0)
	sinW0 := math.Sin(w0)

	if order == 1 {
		// First-order bilinear-transformed RC section.
		k := math.Tan(w0 / 2)
		switch kind {
		case LowPass:
			a0 := k + 1
			return biquadCoeffs{
				b0: k / a0, b1: k / a0, b2: 0,
				a1: (k - 1) / a0, a2: 0,
			}, nil
		case HighPass:
			a0 := k + 1
			return biquadCoeffs{
				b0: 1 / a0, b1: -1 / a0, b2: 0,
				a1: (k - 1) / a0, a2: 0,
			}, nil
		default:
			return biquadCoeffs{}, errs.New(errs.Unsupported, "biquad: order 1 supports only lowpass/highpass")
		}
	}

	alpha := sinW0 / (2 * q)
	a0 := 1 + alpha
	switch kind {
	case LowPass:
		b0 := (1 - cosW0) / 2
		b1 := 1 - cosW0
		b2 := (1 - cosW0) / 2
		return biquadCoeffs{
			b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
			a1: -2 * cosW0 / a0, a2: (1 - alpha) / a0,
		}, nil
	case HighPass:
		b0 := (1 + cosW0) / 2
		b1 := -(1 + cosW0)
		b2 := (1 + cosW0) / 2
		return biquadCoeffs{
			b0: b0 / a0, b1: b1 / a0, b2: b2 / a0,
			a1: -2 * cosW0 / a0, a2: (1 - alpha) / a0,
		}, nil
	default:
		return biquadCoeffs{}, errs.New(errs.Unsupported, "biquad: order 2 direct design supports only lowpass/highpass (bandpass/notch use dedicated constructors)")
	}
}

// NewBandPass cascades a high-pass and a low-pass Butterworth section to
// realize a band-pass around center with the given bandwidth.
func NewBandPass(center, bandwidth, sampleRate float64) (*Cascade, error) {
	if sampleRate <= 0 {
		return nil, errs.New(errs.InvalidParameter, "bandpass: sampleRate must be positive")
	}
	lowF := math.Max(10, center-bandwidth/2)
	highF := math.Min(sampleRate/2-10, center+bandwidth/2)
	if lowF >= highF {
		return nil, errs.New(errs.InvalidParameter, "bandpass: degenerate band [%.3f, %.3f]", lowF, highF)
	}
	hp, err := NewBiquad(HighPass, 2, lowF, sampleRate)
	if err != nil {
		return nil, err
	}
	lp, err := NewBiquad(LowPass, 2, highF, sampleRate)
	if err != nil {
		return nil, err
	}
	return &Cascade{stages: []*Biquad{hp, lp}}, nil
}

// Cascade chains biquad sections (e.g. the band-pass high-pass->low-pass
// pair).
type Cascade struct {
	stages []*Biquad
}

// Process filters x through every stage in order, returning a new slice.
func (c *Cascade) Process(x []float64) ([]float64, error) {
	out := x
	var err error
	for _, s := range c.stages {
		out, err = s.Process(out)
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

// Process runs x through the Direct-Form II section, returning a new slice
// and leaving the filter's delay line primed for the next call (so chunked
// streaming input filters continuously across calls).
func (b *Biquad) Process(x []float64) ([]float64, error) {
	out := make([]float64, len(x))
	for i, xn := range x {
		w := xn - b.c.a1*b.w1 - b.c.a2*b.w2
		if math.IsNaN(w) || math.IsInf(w, 0) {
			return nil, errs.New(errs.NumericInstability, "biquad: non-finite intermediate at sample %d", i)
		}
		y := b.c.b0*w + b.c.b1*b.w1 + b.c.b2*b.w2
		b.w2 = b.w1
		b.w1 = w
		out[i] = y
	}
	return out, nil
}

// Reset clears the delay line (e.g. when starting a new logical stream).
func (b *Biquad) Reset() { b.w1, b.w2 = 0, 0 }

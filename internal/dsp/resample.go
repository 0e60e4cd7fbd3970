package dsp

import (
	"github.com/jota2rz/beat-parser/internal/errs"
)

// Resample converts x from fromRate to toRate via linear interpolation,
// optionally preceded by a 4th-order Butterworth anti-alias low-pass at
// toRate/2 when downsampling. Output length is floor(len(x) * toRate /
// fromRate). Equal rates return a bitwise copy of x.
func Resample(x []float64, fromRate, toRate int, antiAlias bool) ([]float64, error) {
	if fromRate <= 0 || toRate <= 0 {
		return nil, errs.New(errs.InvalidParameter, "resample: rates must be positive (from=%d to=%d)", fromRate, toRate)
	}
	if fromRate == toRate {
		out := make([]float64, len(x))
		copy(out, x)
		return out, nil
	}

	src := x
	if antiAlias && toRate < fromRate {
		filtered, err := antiAliasFilter(x, float64(toRate)/2, float64(fromRate))
		if err != nil {
			return nil, err
		}
		src = filtered
	}

	outLen := int(float64(len(src)) * float64(toRate) / float64(fromRate))
	out := make([]float64, outLen)
	ratio := float64(fromRate) / float64(toRate)
	for i := 0; i < outLen; i++ {
		srcPos := float64(i) * ratio
		i0 := int(srcPos)
		frac := srcPos - float64(i0)
		var s0, s1 float64
		if i0 < len(src) {
			s0 = src[i0]
		}
		if i0+1 < len(src) {
			s1 = src[i0+1]
		} else {
			s1 = s0
		}
		out[i] = s0 + frac*(s1-s0)
	}
	return out, nil
}

// antiAliasFilter applies a 4th-order Butterworth low-pass (two cascaded
// 2nd-order Direct-Form II sections) at cutoff, forward-only (no
// zero-phase requirement here — onset/tempo tracking only needs a clean
// anti-alias roll-off, not phase preservation).
func antiAliasFilter(x []float64, cutoff, sampleRate float64) ([]float64, error) {
	s1, err := NewBiquad(LowPass, 2, cutoff, sampleRate)
	if err != nil {
		return nil, err
	}
	s2, err := NewBiquad(LowPass, 2, cutoff, sampleRate)
	if err != nil {
		return nil, err
	}
	stage1, err := s1.Process(x)
	if err != nil {
		return nil, err
	}
	return s2.Process(stage1)
}

// Package dsp implements the DSP primitives: resampling, IIR biquad
// filtering, framing support, windowing, radix-2 FFT, magnitude/power
// spectra, MFCC and autocorrelation, built on gonum.org/v1/gonum/dsp/fourier
// as validated, reusable primitives.
package dsp

import (
	"math"
	"math/bits"
	"sync"

	"gonum.org/v1/gonum/dsp/fourier"

	"github.com/jota2rz/beat-parser/internal/errs"
)

// fftCache memoizes gonum FFT plans by size, computed lazily and cached
// behind a read-only shared handle.
var fftCache sync.Map // map[int]*fourier.FFT

func planFor(n int) *fourier.FFT {
	if v, ok := fftCache.Load(n); ok {
		return v.(*fourier.FFT)
	}
	plan := fourier.NewFFT(n)
	actual, _ := fftCache.LoadOrStore(n, plan)
	return actual.(*fourier.FFT)
}

// NextPowerOfTwo returns the smallest power of two >= n (1 if n <= 1).
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// FFT computes the one-sided spectrum (length floor(N/2)+1, N = next power of
// two >= len(x)) of a real input, zero-padding as required by the radix-2
// Cooley-Tukey algorithm. Returns InvalidParameter for empty input and
// NumericInstability if any coefficient is non-finite.
func FFT(x []float64) ([]complex128, error) {
	if len(x) == 0 {
		return nil, errs.New(errs.InvalidParameter, "fft: empty input")
	}
	n := NextPowerOfTwo(len(x))
	padded := make([]float64, n)
	copy(padded, x)

	plan := planFor(n)
	full := plan.Coefficients(nil, padded)

	// gonum returns the full N-length conjugate-symmetric spectrum for a
	// real sequence; callers only need the one-sided half.
	oneSided := full[:n/2+1]

	for _, c := range oneSided {
		if math.IsNaN(real(c)) || math.IsInf(real(c), 0) ||
			math.IsNaN(imag(c)) || math.IsInf(imag(c), 0) {
			return nil, errs.New(errs.NumericInstability, "fft: non-finite coefficient")
		}
	}
	return oneSided, nil
}

// Magnitude returns |coeffs[i]| for each bin.
func Magnitude(coeffs []complex128) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		out[i] = math.Hypot(real(c), imag(c))
	}
	return out
}

// Power returns |coeffs[i]|^2 for each bin.
func Power(coeffs []complex128) []float64 {
	out := make([]float64, len(coeffs))
	for i, c := range coeffs {
		r, im := real(c), imag(c)
		out[i] = r*r + im*im
	}
	return out
}

// MagnitudeSpectrum is a convenience wrapper returning FFT(x) reduced to its
// magnitude spectrum.
func MagnitudeSpectrum(x []float64) ([]float64, error) {
	coeffs, err := FFT(x)
	if err != nil {
		return nil, err
	}
	return Magnitude(coeffs), nil
}

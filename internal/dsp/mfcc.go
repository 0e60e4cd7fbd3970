package dsp

import (
	"math"
	"sync"
)

// DefaultMelFilters and DefaultMFCCCoeffs are the documented defaults
// (26 filters, 13 coefficients kept).
const (
	DefaultMelFilters = 26
	DefaultMFCCCoeffs = 13
	preEmphasisAlpha  = 0.97
	logFloor          = 1e-10
)

type melKey struct {
	numFilters, fftSize, sampleRate int
}

// melCache memoizes triangular mel filterbanks, keyed by (filters, fftSize,
// sampleRate), computed lazily and shared as immutable tables.
var melCache sync.Map // map[melKey][][]float64

// MelFilterbank returns (building and caching, if needed) a triangular mel
// filterbank spanning [0, sampleRate/2], for an arbitrary filter count.
func MelFilterbank(numFilters, fftSize, sampleRate int) [][]float64 {
	key := melKey{numFilters, fftSize, sampleRate}
	if v, ok := melCache.Load(key); ok {
		return v.([][]float64)
	}
	fb := buildMelFilterbank(numFilters, fftSize, sampleRate)
	actual, _ := melCache.LoadOrStore(key, fb)
	return actual.([][]float64)
}

func hzToMel(hz float64) float64 { return 2595 * math.Log10(1+hz/700) }
func melToHz(mel float64) float64 { return 700 * (math.Pow(10, mel/2595) - 1) }

func buildMelFilterbank(numFilters, fftSize, sampleRate int) [][]float64 {
	nyquist := float64(sampleRate) / 2
	lowMel, highMel := hzToMel(0), hzToMel(nyquist)

	melPoints := make([]float64, numFilters+2)
	for i := range melPoints {
		melPoints[i] = lowMel + float64(i)*(highMel-lowMel)/float64(numFilters+1)
	}
	binPoints := make([]int, numFilters+2)
	for i, mel := range melPoints {
		binPoints[i] = int(math.Floor(melToHz(mel) * float64(fftSize) / float64(sampleRate)))
	}

	half := fftSize/2 + 1
	filters := make([][]float64, numFilters)
	for i := 0; i < numFilters; i++ {
		filters[i] = make([]float64, half)
		for j := binPoints[i]; j < binPoints[i+1] && j < half; j++ {
			if binPoints[i+1] != binPoints[i] {
				filters[i][j] = float64(j-binPoints[i]) / float64(binPoints[i+1]-binPoints[i])
			}
		}
		for j := binPoints[i+1]; j < binPoints[i+2] && j < half; j++ {
			if binPoints[i+2] != binPoints[i+1] {
				filters[i][j] = float64(binPoints[i+2]-j) / float64(binPoints[i+2]-binPoints[i+1])
			}
		}
	}
	return filters
}

// MFCCOptions configures MFCC extraction; zero values fall back to defaults.
type MFCCOptions struct {
	NumFilters int
	NumCoeffs  int
	SampleRate int
}

// MFCC computes Mel-frequency cepstral coefficients for one frame: a
// pre-emphasis filter, power spectrum, mel filterbank, log compression, and
// an orthonormal DCT-II, keeping the first NumCoeffs.
func MFCC(frame []float64, opts MFCCOptions) []float64 {
	numFilters := opts.NumFilters
	if numFilters <= 0 {
		numFilters = DefaultMelFilters
	}
	numCoeffs := opts.NumCoeffs
	if numCoeffs <= 0 {
		numCoeffs = DefaultMFCCCoeffs
	}

	emphasized := preEmphasis(frame, preEmphasisAlpha)
	n := NextPowerOfTwo(len(emphasized))
	coeffs, err := FFT(emphasized)
	if err != nil {
		return make([]float64, numCoeffs)
	}
	power := Power(coeffs)

	fb := MelFilterbank(numFilters, n, opts.SampleRate)
	melEnergies := make([]float64, numFilters)
	for i := 0; i < numFilters; i++ {
		var e float64
		for j := 0; j < len(power) && j < len(fb[i]); j++ {
			e += power[j] * fb[i][j]
		}
		if e < logFloor {
			e = logFloor
		}
		melEnergies[i] = math.Log(e)
	}

	return dctII(melEnergies, numCoeffs)
}

func preEmphasis(x []float64, alpha float64) []float64 {
	if len(x) == 0 {
		return x
	}
	out := make([]float64, len(x))
	out[0] = x[0]
	for i := 1; i < len(x); i++ {
		out[i] = x[i] - alpha*x[i-1]
	}
	return out
}

// dctII computes an orthonormally-scaled DCT-II of in, keeping the first
// keep coefficients.
func dctII(in []float64, keep int) []float64 {
	n := len(in)
	out := make([]float64, keep)
	for k := 0; k < keep; k++ {
		var sum float64
		for i := 0; i < n; i++ {
			sum += in[i] * math.Cos(math.Pi*float64(k)*(float64(i)+0.5)/float64(n))
		}
		scale := math.Sqrt(2.0 / float64(n))
		if k == 0 {
			scale = math.Sqrt(1.0 / float64(n))
		}
		out[k] = sum * scale
	}
	return out
}

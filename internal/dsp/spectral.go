package dsp

import "math"

// SpectralCentroid computes the magnitude-weighted mean frequency of a
// one-sided spectrum sampled at sampleRate: f_i = i*sr/(2*(L-1)).
// Returns 0 for all-zero-energy input.
func SpectralCentroid(mag []float64, sampleRate float64) float64 {
	l := len(mag)
	if l < 2 {
		return 0
	}
	var num, den float64
	step := sampleRate / (2 * float64(l-1))
	for i, m := range mag {
		f := float64(i) * step
		num += f * m
		den += m
	}
	if den == 0 {
		return 0
	}
	return num / den
}

// SpectralRolloff is the smallest frequency at which cumulative magnitude
// reaches the given threshold fraction (default 0.85) of total magnitude.
// Returns 0 for all-zero-energy input.
func SpectralRolloff(mag []float64, sampleRate float64, threshold float64) float64 {
	l := len(mag)
	if l < 2 {
		return 0
	}
	var total float64
	for _, m := range mag {
		total += m
	}
	if total == 0 {
		return 0
	}
	if threshold <= 0 {
		threshold = 0.85
	}
	target := total * threshold
	step := sampleRate / (2 * float64(l-1))
	var cum float64
	for i, m := range mag {
		cum += m
		if cum >= target {
			return float64(i) * step
		}
	}
	return float64(l-1) * step
}

// RMS returns the root-mean-square of x.
func RMS(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	var sum float64
	for _, v := range x {
		sum += v * v
	}
	return math.Sqrt(sum / float64(len(x)))
}

// ZeroCrossingRate returns the fraction of adjacent-sample sign changes.
func ZeroCrossingRate(x []float64) float64 {
	if len(x) < 2 {
		return 0
	}
	crossings := 0
	for i := 1; i < len(x); i++ {
		if (x[i-1] >= 0) != (x[i] >= 0) {
			crossings++
		}
	}
	return float64(crossings) / float64(len(x)-1)
}

package dsp

import "github.com/jota2rz/beat-parser/internal/errs"

// Autocorrelation computes the biased autocorrelation of x up to maxLag
// (inclusive), acf[k] = (1/(N-k)) * sum_{i=0}^{N-k-1} x[i]*x[i+k]. Biased
// normalization trades unbiasedness for stability at large lags relative to
// N, which is what the tempo tracker needs.
func Autocorrelation(x []float64, maxLag int) ([]float64, error) {
	n := len(x)
	if n == 0 {
		return nil, errs.New(errs.InvalidParameter, "autocorrelation: empty input")
	}
	if maxLag < 0 || maxLag >= n {
		return nil, errs.New(errs.InvalidParameter, "autocorrelation: maxLag %d out of range for length %d", maxLag, n)
	}
	out := make([]float64, maxLag+1)
	for k := 0; k <= maxLag; k++ {
		var sum float64
		count := n - k
		for i := 0; i < count; i++ {
			sum += x[i] * x[i+k]
		}
		out[k] = sum / float64(count)
	}
	return out, nil
}

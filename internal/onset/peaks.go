package onset

import (
	"math"
	"sort"

	"github.com/jota2rz/beat-parser/internal/errs"
)

// Peak is a detected onset with its frame index, time, and strength.
type Peak struct {
	FrameIndex int
	Time       float64
	Strength   float64
}

// PeakOptions configures adaptive threshold peak picking.
type PeakOptions struct {
	MedianWindow int     // default 20 frames
	K            float64 // threshold = median + K*MAD
	MaxTempo     float64 // BPM, used for the refractory-period floor
	MinPeakGap   float64 // seconds
	EnergyFloor  float64 // total energy below this -> InsufficientSignal
}

// PickPeaks finds local maxima of fn.Scores exceeding an adaptive
// median+MAD threshold, enforcing a refractory period of at least
// max(60/maxTempo, minPeakGap) seconds between successive peaks.
func PickPeaks(fn Function, opts PeakOptions) ([]Peak, error) {
	n := len(fn.Scores)
	if n == 0 {
		return nil, errs.New(errs.InsufficientSignal, "onset: empty onset function")
	}

	var totalEnergy float64
	for _, s := range fn.Scores {
		totalEnergy += s
	}
	if opts.EnergyFloor > 0 && totalEnergy < opts.EnergyFloor {
		return nil, errs.New(errs.InsufficientSignal, "onset: total energy %.6f below floor %.6f", totalEnergy, opts.EnergyFloor)
	}

	window := opts.MedianWindow
	if window <= 0 {
		window = 20
	}
	k := opts.K
	if k == 0 {
		k = 1.5
	}

	refractory := 60.0 / math.Max(opts.MaxTempo, 1)
	if opts.MinPeakGap > refractory {
		refractory = opts.MinPeakGap
	}

	var peaks []Peak
	var lastTime float64 = math.Inf(-1)
	for t := 1; t < n-1; t++ {
		thresh := adaptiveThreshold(fn.Scores, t, window, k)
		if fn.Scores[t] > fn.Scores[t-1] && fn.Scores[t] >= fn.Scores[t+1] && fn.Scores[t] > thresh {
			if fn.StartTimes[t]-lastTime < refractory {
				// Keep the stronger of the two competing peaks.
				if len(peaks) > 0 && fn.Scores[t] > peaks[len(peaks)-1].Strength {
					peaks[len(peaks)-1] = Peak{FrameIndex: t, Time: fn.StartTimes[t], Strength: fn.Scores[t]}
					lastTime = fn.StartTimes[t]
				}
				continue
			}
			peaks = append(peaks, Peak{FrameIndex: t, Time: fn.StartTimes[t], Strength: fn.Scores[t]})
			lastTime = fn.StartTimes[t]
		}
	}
	return peaks, nil
}

// adaptiveThreshold returns median(window around t) + k*MAD(window around t).
func adaptiveThreshold(scores []float64, t, window int, k float64) float64 {
	lo := t - window/2
	if lo < 0 {
		lo = 0
	}
	hi := t + window/2
	if hi > len(scores) {
		hi = len(scores)
	}
	slice := scores[lo:hi]
	med := median(slice)

	devs := make([]float64, len(slice))
	for i, v := range slice {
		devs[i] = math.Abs(v - med)
	}
	mad := median(devs)

	return med + k*mad
}

func median(x []float64) float64 {
	if len(x) == 0 {
		return 0
	}
	cp := make([]float64, len(x))
	copy(cp, x)
	sort.Float64s(cp)
	mid := len(cp) / 2
	if len(cp)%2 == 0 {
		return (cp[mid-1] + cp[mid]) / 2
	}
	return cp[mid]
}

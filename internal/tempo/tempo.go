// Package tempo implements autocorrelation-based BPM estimation over the
// combined onset function, at a single resolution and fused across three
// (half/base/double hop) resolutions, with tempo-multiple resolution and a
// confidence score.
package tempo

import (
	"math"
	"sort"

	"github.com/jota2rz/beat-parser/internal/dsp"
	"github.com/jota2rz/beat-parser/internal/errs"
	"github.com/jota2rz/beat-parser/internal/onset"
)

// Alternative is a runner-up BPM estimate.
type Alternative struct {
	BPM        float64
	Confidence float64
}

// Estimate is the tempo tracker's result.
type Estimate struct {
	BPM          float64
	Confidence   float64
	Phase        float64 // seconds, grid offset of the first beat
	Stability    float64
	Alternatives []Alternative
}

// Options configures tempo estimation.
type Options struct {
	MinTempo float64
	MaxTempo float64
}

// Analyze analyses the combined onset function fn (one score per frame,
// frames spaced hopSeconds apart) and returns a tempo estimate. Returns
// InsufficientSignal if the onset function has too few frames to resolve
// the requested tempo range, and NumericInstability if the autocorrelation
// produces non-finite values.
func Analyze(fn onset.Function, hopSeconds float64, opts Options) (Estimate, error) {
	if opts.MinTempo <= 0 || opts.MaxTempo <= opts.MinTempo {
		return Estimate{}, errs.New(errs.InvalidParameter, "tempo: invalid range [%v, %v]", opts.MinTempo, opts.MaxTempo)
	}

	base, err := analyzeAtHop(fn.Scores, hopSeconds, opts)
	if err != nil {
		return Estimate{}, err
	}

	// Multi-scale: decimate (double hop) and upsample (half hop) the onset
	// function, re-analyze, and combine via weighted voting.
	votes := map[int]float64{ // rounded BPM -> accumulated weight
		int(math.Round(base.bpm)): base.confidence * 1.0,
	}
	bpmWeight := map[int]float64{int(math.Round(base.bpm)): base.bpm}

	if decimated := decimate(fn.Scores, 2); len(decimated) > 4 {
		if r, err := analyzeAtHop(decimated, hopSeconds*2, opts); err == nil {
			key := int(math.Round(r.bpm))
			votes[key] += r.confidence * 0.5
			bpmWeight[key] = r.bpm
		}
	}
	if upsampled := upsample(fn.Scores, 2); len(upsampled) > 4 {
		if r, err := analyzeAtHop(upsampled, hopSeconds/2, opts); err == nil {
			key := int(math.Round(r.bpm))
			votes[key] += r.confidence * 0.5
			bpmWeight[key] = r.bpm
		}
	}

	bestKey := int(math.Round(base.bpm))
	bestVote := -1.0
	for k, v := range votes {
		if v > bestVote {
			bestVote, bestKey = v, k
		}
	}
	finalBPM := bpmWeight[bestKey]
	if finalBPM == 0 {
		finalBPM = base.bpm
	}

	finalBPM = resolveTempoMultiple(finalBPM, base.runnerUpBPM, base.runnerUpConfidence, fn, hopSeconds)

	// maxLag is a ceil() of 60/minTempo/hopSeconds, so the lag-derived BPM at
	// the edge of the search range can fall a hair under minTempo (and,
	// symmetrically, over maxTempo at minLag); clamp into the documented
	// range rather than let a rounding artifact violate it.
	finalBPM = clampTempo(finalBPM, opts.MinTempo, opts.MaxTempo)

	alts := runnerUps(base, 2)
	for i := range alts {
		alts[i].BPM = clampTempo(alts[i].BPM, opts.MinTempo, opts.MaxTempo)
	}

	return Estimate{
		BPM:          finalBPM,
		Confidence:   base.confidence,
		Phase:        estimatePhase(fn, finalBPM),
		Stability:    base.confidence,
		Alternatives: alts,
	}, nil
}

type scaleResult struct {
	bpm                 float64
	confidence          float64
	runnerUpBPM         float64
	runnerUpConfidence  float64
}

func analyzeAtHop(scores []float64, hopSeconds float64, opts Options) (scaleResult, error) {
	if len(scores) < 4 {
		return scaleResult{}, errs.New(errs.InsufficientSignal, "tempo: onset function too short (%d frames)", len(scores))
	}
	maxLag := int(math.Ceil(60.0 / opts.MinTempo / hopSeconds))
	minLag := int(math.Ceil(60.0 / opts.MaxTempo / hopSeconds))
	if maxLag >= len(scores) {
		maxLag = len(scores) - 1
	}
	if minLag < 1 {
		minLag = 1
	}
	if minLag >= maxLag {
		return scaleResult{}, errs.New(errs.InsufficientSignal, "tempo: tempo range unresolvable at this hop size")
	}

	acf, err := dsp.Autocorrelation(scores, maxLag)
	if err != nil {
		return scaleResult{}, err
	}
	for _, v := range acf {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return scaleResult{}, errs.New(errs.NumericInstability, "tempo: non-finite autocorrelation value")
		}
	}

	type lagScore struct {
		lag   int
		value float64
	}
	var candidates []lagScore
	for lag := minLag; lag <= maxLag; lag++ {
		candidates = append(candidates, lagScore{lag, acf[lag]})
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].value > candidates[j].value })
	if len(candidates) == 0 {
		return scaleResult{}, errs.New(errs.InsufficientSignal, "tempo: no candidate lags in range")
	}

	best := candidates[0]
	bpm := 60.0 / (float64(best.lag) * hopSeconds)

	mean, std := meanStd(acf[minLag : maxLag+1])
	confidence := 0.0
	if std > 0 {
		confidence = clamp01((best.value - mean) / (std * 3))
	}

	result := scaleResult{bpm: bpm, confidence: confidence}
	if len(candidates) > 1 {
		result.runnerUpBPM = 60.0 / (float64(candidates[1].lag) * hopSeconds)
		if std > 0 {
			result.runnerUpConfidence = clamp01((candidates[1].value - mean) / (std * 3))
		}
	}
	return result, nil
}

// resolveTempoMultiple implements the tempo-multiple resolution rule:
// if the runner-up is within 5% of 2x or 0.5x the best, pick whichever grid
// best aligns (phase score) with onset peaks.
func resolveTempoMultiple(best, runnerUp, runnerUpConf float64, fn onset.Function, hopSeconds float64) float64 {
	if runnerUp <= 0 {
		return best
	}
	isDouble := math.Abs(runnerUp-2*best)/(2*best) < 0.05
	isHalf := math.Abs(runnerUp-best/2)/(best/2) < 0.05
	if !isDouble && !isHalf {
		return best
	}
	if phaseScore(fn, runnerUp, hopSeconds) > phaseScore(fn, best, hopSeconds) {
		return runnerUp
	}
	return best
}

// phaseScore measures how well a tempo's beat grid aligns with the energy
// in the onset function, used to break tempo-multiple ambiguity.
func phaseScore(fn onset.Function, bpm float64, hopSeconds float64) float64 {
	if bpm <= 0 || len(fn.Scores) == 0 {
		return 0
	}
	period := 60.0 / bpm
	lag := int(math.Round(period / hopSeconds))
	if lag < 1 || lag >= len(fn.Scores) {
		return 0
	}
	var score float64
	count := 0
	for i := 0; i+lag < len(fn.Scores); i += lag {
		score += fn.Scores[i+lag]
		count++
	}
	if count == 0 {
		return 0
	}
	return score / float64(count)
}

// estimatePhase finds the sub-grid offset (0..period) that best aligns a
// bpm-spaced grid with onset energy.
func estimatePhase(fn onset.Function, bpm float64) float64 {
	if bpm <= 0 || len(fn.StartTimes) == 0 {
		return 0
	}
	period := 60.0 / bpm
	hop := fn.StartTimes[1] - fn.StartTimes[0]
	if len(fn.StartTimes) < 2 || hop <= 0 {
		return 0
	}
	steps := int(period / hop)
	if steps < 1 {
		return 0
	}
	bestPhase, bestScore := 0.0, -1.0
	for s := 0; s < steps; s++ {
		var score float64
		for i := s; i < len(fn.Scores); i += steps {
			score += fn.Scores[i]
		}
		if score > bestScore {
			bestScore = score
			bestPhase = float64(s) * hop
		}
	}
	return bestPhase
}

func runnerUps(r scaleResult, n int) []Alternative {
	if r.runnerUpBPM <= 0 {
		return nil
	}
	alts := []Alternative{{BPM: r.runnerUpBPM, Confidence: r.runnerUpConfidence}}
	if len(alts) > n {
		alts = alts[:n]
	}
	return alts
}

func decimate(x []float64, factor int) []float64 {
	if factor < 1 {
		factor = 1
	}
	out := make([]float64, 0, len(x)/factor+1)
	for i := 0; i < len(x); i += factor {
		out = append(out, x[i])
	}
	return out
}

func upsample(x []float64, factor int) []float64 {
	if factor < 1 {
		factor = 1
	}
	out := make([]float64, 0, len(x)*factor)
	for i, v := range x {
		out = append(out, v)
		var next float64
		if i+1 < len(x) {
			next = x[i+1]
		} else {
			next = v
		}
		for s := 1; s < factor; s++ {
			frac := float64(s) / float64(factor)
			out = append(out, v+frac*(next-v))
		}
	}
	return out
}

func meanStd(x []float64) (mean, std float64) {
	if len(x) == 0 {
		return 0, 0
	}
	var sum float64
	for _, v := range x {
		sum += v
	}
	mean = sum / float64(len(x))
	var varSum float64
	for _, v := range x {
		d := v - mean
		varSum += d * d
	}
	std = math.Sqrt(varSum / float64(len(x)))
	return mean, std
}

// clampTempo forces bpm into [minTempo, maxTempo], the range invariant every
// returned Estimate and Alternative must satisfy.
func clampTempo(bpm, minTempo, maxTempo float64) float64 {
	if bpm < minTempo {
		return minTempo
	}
	if bpm > maxTempo {
		return maxTempo
	}
	return bpm
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

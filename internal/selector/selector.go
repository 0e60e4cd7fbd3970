// Package selector implements reducing beat candidates to at most N
// beats under a selection policy.
package selector

import (
	"math"
	"sort"

	"github.com/jota2rz/beat-parser/internal/candidate"
	"github.com/jota2rz/beat-parser/internal/errs"
)

// Policy names a beat selection strategy.
type Policy string

const (
	Uniform  Policy = "uniform"
	Regular  Policy = "regular"
	Energy   Policy = "energy"
	Adaptive Policy = "adaptive" // default
)

// Options configures Select.
type Options struct {
	N        int
	Policy   Policy
	Duration float64
	MaxTempo float64 // with Duration, caps N at Duration*MaxTempo/60
}

// Result carries the selected candidates plus whether N was capped.
type Result struct {
	Selected  []candidate.Candidate
	CappedN   int // the capped value, if capping occurred
	WasCapped bool
}

// Select reduces candidates to at most N beats. N == 0 returns an empty
// result; if N exceeds duration*maxTempo/60, N is silently capped.
func Select(candidates []candidate.Candidate, opts Options) (Result, error) {
	if opts.N == 0 {
		return Result{Selected: nil}, nil
	}
	if opts.N < 0 {
		return Result{}, errs.New(errs.InvalidParameter, "selector: N must be >= 0")
	}

	n := opts.N
	result := Result{}
	if opts.MaxTempo > 0 && opts.Duration > 0 {
		bound := int(opts.Duration * opts.MaxTempo / 60)
		if n > bound {
			n = bound
			result.WasCapped = true
			result.CappedN = n
		}
	}

	sorted := make([]candidate.Candidate, len(candidates))
	copy(sorted, candidates)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Timestamp < sorted[j].Timestamp })

	if len(sorted) <= n {
		result.Selected = sorted
		return result, nil
	}
	if n == 0 {
		result.Selected = nil
		return result, nil
	}

	policy := opts.Policy
	if policy == "" {
		policy = Adaptive
	}

	var chosen []candidate.Candidate
	switch policy {
	case Uniform:
		chosen = selectUniform(sorted, n, opts.Duration)
	case Regular:
		chosen = selectRegular(sorted, n)
	case Energy:
		chosen = selectEnergy(sorted, n)
	default:
		chosen = selectAdaptive(sorted, n)
	}

	sort.Slice(chosen, func(i, j int) bool { return chosen[i].Timestamp < chosen[j].Timestamp })
	result.Selected = chosen
	return result, nil
}

func selectUniform(sorted []candidate.Candidate, n int, duration float64) []candidate.Candidate {
	used := make([]bool, len(sorted))
	out := make([]candidate.Candidate, 0, n)
	for i := 0; i < n; i++ {
		target := duration * (float64(i) + 0.5) / float64(n)
		best := -1
		bestDist := math.Inf(1)
		for j, c := range sorted {
			if used[j] {
				continue
			}
			d := math.Abs(c.Timestamp - target)
			if d < bestDist {
				bestDist = d
				best = j
			}
		}
		if best >= 0 {
			used[best] = true
			out = append(out, sorted[best])
		}
	}
	return out
}

func selectRegular(sorted []candidate.Candidate, n int) []candidate.Candidate {
	step := int(math.Ceil(float64(len(sorted)) / float64(n)))
	if step < 1 {
		step = 1
	}
	var out []candidate.Candidate
	for i := 0; i < len(sorted) && len(out) < n; i += step {
		out = append(out, sorted[i])
	}
	return out
}

func selectEnergy(sorted []candidate.Candidate, n int) []candidate.Candidate {
	byStrength := make([]candidate.Candidate, len(sorted))
	copy(byStrength, sorted)
	sort.SliceStable(byStrength, func(i, j int) bool { return byStrength[i].Strength > byStrength[j].Strength })
	return append([]candidate.Candidate(nil), byStrength[:n]...)
}

// selectAdaptive greedily picks the candidate maximizing
// alpha*confidence + beta*strength - gamma*proximityPenalty(nearestChosen).
func selectAdaptive(sorted []candidate.Candidate, n int) []candidate.Candidate {
	const alpha, beta, gamma = 0.5, 0.3, 0.2
	used := make([]bool, len(sorted))
	var chosenTimes []float64
	out := make([]candidate.Candidate, 0, n)

	for len(out) < n {
		bestIdx := -1
		bestScore := math.Inf(-1)
		for j, c := range sorted {
			if used[j] {
				continue
			}
			penalty := proximityPenalty(c.Timestamp, chosenTimes)
			score := alpha*c.Confidence + beta*c.Strength - gamma*penalty
			if score > bestScore || (score == bestScore && bestIdx >= 0 && c.Timestamp < sorted[bestIdx].Timestamp) {
				bestScore = score
				bestIdx = j
			}
		}
		if bestIdx < 0 {
			break
		}
		used[bestIdx] = true
		chosenTimes = append(chosenTimes, sorted[bestIdx].Timestamp)
		out = append(out, sorted[bestIdx])
	}
	return out
}

func proximityPenalty(t float64, chosen []float64) float64 {
	if len(chosen) == 0 {
		return 0
	}
	minDist := math.Inf(1)
	for _, c := range chosen {
		d := math.Abs(t - c)
		if d < minDist {
			minDist = d
		}
	}
	// Closer chosen neighbors -> higher penalty, saturating at 1.
	return 1 / (1 + minDist)
}

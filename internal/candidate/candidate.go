// Package candidate implements fusing onset peaks and the tempo grid
// into BeatCandidate records with per-candidate confidence and strength.
package candidate

import (
	"math"
	"sort"

	"github.com/jota2rz/beat-parser/internal/onset"
)

// Source identifies how a candidate was produced.
type Source string

const (
	SourceOnset Source = "onset"
	SourceGrid  Source = "grid"
	SourceFused Source = "fused"
)

// Candidate is a BeatCandidate.
type Candidate struct {
	Timestamp  float64
	Confidence float64
	Strength   float64
	Source     Source
}

// Options configures candidate construction.
type Options struct {
	BPM                float64
	Phase              float64
	Duration           float64
	MatchWindow        float64 // default 60ms
	DedupWindow        float64 // default 30ms
	OnsetKeepThreshold float64
}

// Build constructs the tempo grid from bpm/phase, matches it against onset
// peaks within MatchWindow, keeps strong unmatched onset peaks, and
// deduplicates within DedupWindow.
func Build(peaks []onset.Peak, opts Options) []Candidate {
	matchWindow := opts.MatchWindow
	if matchWindow <= 0 {
		matchWindow = 0.06
	}
	dedupWindow := opts.DedupWindow
	if dedupWindow <= 0 {
		dedupWindow = 0.03
	}

	grid := buildGrid(opts.BPM, opts.Phase, opts.Duration)
	used := make([]bool, len(peaks))

	var out []Candidate
	for _, g := range grid {
		idx, dist := nearestPeak(peaks, used, g, matchWindow)
		if idx >= 0 {
			used[idx] = true
			p := peaks[idx]
			onsetConf := normalizedStrength(p.Strength)
			gridConf := 1 - dist/matchWindow
			out = append(out, Candidate{
				Timestamp:  p.Time,
				Confidence: clamp01(0.5*onsetConf + 0.5*gridConf),
				Strength:   p.Strength,
				Source:     SourceFused,
			})
		} else {
			out = append(out, Candidate{
				Timestamp:  g,
				Confidence: 0.3,
				Strength:   0,
				Source:     SourceGrid,
			})
		}
	}

	for i, p := range peaks {
		if used[i] {
			continue
		}
		conf := normalizedStrength(p.Strength)
		if conf >= opts.OnsetKeepThreshold {
			out = append(out, Candidate{
				Timestamp:  p.Time,
				Confidence: conf,
				Strength:   p.Strength,
				Source:     SourceOnset,
			})
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp < out[j].Timestamp })
	return dedup(out, dedupWindow)
}

func buildGrid(bpm, phase, duration float64) []float64 {
	if bpm <= 0 {
		return nil
	}
	period := 60.0 / bpm
	var grid []float64
	for g := phase; g <= duration; g += period {
		grid = append(grid, g)
	}
	return grid
}

func nearestPeak(peaks []onset.Peak, used []bool, t, window float64) (int, float64) {
	bestIdx := -1
	bestDist := window
	for i, p := range peaks {
		if used[i] {
			continue
		}
		d := math.Abs(p.Time - t)
		if d <= bestDist {
			bestDist = d
			bestIdx = i
		}
	}
	return bestIdx, bestDist
}

// dedup collapses candidates within window seconds of each other, keeping
// the higher-confidence one. Input must be sorted by Timestamp.
func dedup(in []Candidate, window float64) []Candidate {
	if len(in) == 0 {
		return in
	}
	var out []Candidate
	cur := in[0]
	for i := 1; i < len(in); i++ {
		if in[i].Timestamp-cur.Timestamp <= window {
			if in[i].Confidence > cur.Confidence {
				cur = in[i]
			}
			continue
		}
		out = append(out, cur)
		cur = in[i]
	}
	out = append(out, cur)
	return out
}

// normalizedStrength maps an onset peak's raw strength to a [0,1]
// confidence via a soft saturating curve, since raw onset strengths are
// unbounded and detector-dependent.
func normalizedStrength(s float64) float64 {
	if s <= 0 {
		return 0
	}
	return clamp01(s / (s + 1))
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

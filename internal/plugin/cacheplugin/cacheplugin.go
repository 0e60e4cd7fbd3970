// Package cacheplugin adapts internal/store into a Plugin, giving the
// parser an opt-in result cache without the core pipeline knowing SQLite
// exists: look up before recomputing, write back after.
package cacheplugin

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jota2rz/beat-parser/internal/candidate"
	"github.com/jota2rz/beat-parser/internal/config"
	"github.com/jota2rz/beat-parser/internal/store"
)

// Plugin caches the candidate set handed to its ProcessBeats hook (before
// confidence filtering and selection) for a given audio digest and config
// fingerprint.
type Plugin struct {
	path    string
	maxAge  time.Duration
	st      *store.Store
	digest  string
	cfgKey  string
	hit     bool
}

// New returns an unopened cache plugin; Initialize opens the database.
func New(path string, maxAge time.Duration) *Plugin {
	if maxAge <= 0 {
		maxAge = 30 * 24 * time.Hour
	}
	return &Plugin{path: path, maxAge: maxAge}
}

func (p *Plugin) Name() string    { return "cache" }
func (p *Plugin) Version() string { return "1.0.0" }

// Initialize opens the backing store. Called once by the pipeline.
func (p *Plugin) Initialize(cfg config.Config) error {
	st, err := store.Open(p.path)
	if err != nil {
		return fmt.Errorf("cacheplugin: open store: %w", err)
	}
	p.st = st
	p.cfgKey = configKey(cfg)
	if _, err := p.st.Evict(p.maxAge); err != nil {
		return fmt.Errorf("cacheplugin: evict stale entries: %w", err)
	}
	return nil
}

// SetDigest tells the plugin which input buffer is about to be processed.
// The Parser never calls it; whoever owns the raw samples (the CLI, for
// instance) must call it before the parse, or ProcessBeats passes
// candidates through uncached.
func (p *Plugin) SetDigest(samples []float64) {
	h := sha256.New()
	buf := make([]byte, 8)
	for _, s := range samples {
		bits := int64(s * 1e9)
		for i := 0; i < 8; i++ {
			buf[i] = byte(bits >> (8 * i))
		}
		h.Write(buf)
	}
	p.digest = hex.EncodeToString(h.Sum(nil))
	p.hit = false
}

// Lookup returns a cached candidate set for the current digest, if any.
func (p *Plugin) Lookup() ([]candidate.Candidate, bool) {
	if p.st == nil || p.digest == "" {
		return nil, false
	}
	raw, ok := p.st.Get(p.digest, p.cfgKey)
	if !ok {
		return nil, false
	}
	var cands []candidate.Candidate
	if err := json.Unmarshal(raw, &cands); err != nil {
		return nil, false
	}
	p.hit = true
	return cands, true
}

// ProcessBeats implements the read-through-on-hit/write-through-on-miss
// cache contract: a hit replaces the candidate set outright (the selector
// still runs downstream, so TargetBeatCount/policy are honored against the
// cached beats); a miss persists the freshly computed candidates for the
// next call with this digest/config pair.
func (p *Plugin) ProcessBeats(candidates []candidate.Candidate, cfg config.Config) ([]candidate.Candidate, error) {
	if p.st == nil || p.digest == "" {
		return candidates, nil
	}
	if cached, ok := p.Lookup(); ok {
		return cached, nil
	}
	raw, err := json.Marshal(candidates)
	if err != nil {
		return candidates, fmt.Errorf("cacheplugin: marshal candidates: %w", err)
	}
	if err := p.st.Set(p.digest, p.cfgKey, raw); err != nil {
		return candidates, fmt.Errorf("cacheplugin: store candidates: %w", err)
	}
	return candidates, nil
}

// Cleanup closes the backing store.
func (p *Plugin) Cleanup() error {
	if p.st == nil {
		return nil
	}
	return p.st.Close()
}

func configKey(cfg config.Config) string {
	return fmt.Sprintf("%d|%d|%d|%.2f|%.2f|%.2f|%.2f|%.2f|%v|%v",
		cfg.SampleRate, cfg.FrameSize, cfg.HopSize,
		cfg.MinTempo, cfg.MaxTempo,
		cfg.OnsetWeight, cfg.TempoWeight, cfg.SpectralWeight,
		cfg.EnableFiltering, cfg.EnableNormalization)
}

// Package plugin implements an ordered pre-audio/post-beats transform
// pipeline with lifecycle hooks: dynamic polymorphism of plugins via a
// capability interface with optional hooks, registered in an ordered
// sequence.
package plugin

import (
	"log/slog"

	"github.com/jota2rz/beat-parser/internal/candidate"
	"github.com/jota2rz/beat-parser/internal/config"
	"github.com/jota2rz/beat-parser/internal/errs"
)

// Plugin is the capability interface a registered plugin may implement.
// Name/Version are the only required methods; a plugin opts into
// Initialize/ProcessAudio/ProcessBeats/Cleanup by also implementing
// Initializer/AudioProcessor/BeatProcessor/Cleaner.
type Plugin interface {
	Name() string
	Version() string
}

// Initializer is implemented by plugins needing one-time setup before the
// first parse.
type Initializer interface {
	Initialize(cfg config.Config) error
}

// AudioProcessor transforms standardized samples before framing. Output
// length must stay within [0.9, 1.1] x input length; violating that
// bound is a hard failure, not a silent clamp.
type AudioProcessor interface {
	ProcessAudio(samples []float64, cfg config.Config) ([]float64, error)
}

// BeatProcessor transforms candidate beats before selection. It may reorder
// or drop candidates but must not invent timestamps outside [0, duration].
type BeatProcessor interface {
	ProcessBeats(candidates []candidate.Candidate, cfg config.Config) ([]candidate.Candidate, error)
}

// Cleaner is invoked on parser teardown and on fatal pipeline failure, in
// reverse registration order.
type Cleaner interface {
	Cleanup() error
}

// Pipeline holds plugins in registration order and runs their hooks.
type Pipeline struct {
	plugins     []Plugin
	initialized bool
}

// NewPipeline returns an empty pipeline.
func NewPipeline() *Pipeline { return &Pipeline{} }

// Add registers a plugin. Forbidden after the first parse by the caller
// (Parser enforces that; this type just appends).
func (p *Pipeline) Add(pl Plugin) {
	p.plugins = append(p.plugins, pl)
}

// Remove unregisters the plugin with the given name, if present.
func (p *Pipeline) Remove(name string) {
	out := p.plugins[:0]
	for _, pl := range p.plugins {
		if pl.Name() != name {
			out = append(out, pl)
		}
	}
	p.plugins = out
}

// Len reports how many plugins are registered.
func (p *Pipeline) Len() int { return len(p.plugins) }

// Initialize invokes Initialize on every plugin implementing Initializer,
// in registration order, once.
func (p *Pipeline) Initialize(cfg config.Config) error {
	if p.initialized {
		return nil
	}
	for _, pl := range p.plugins {
		if init, ok := pl.(Initializer); ok {
			if err := init.Initialize(cfg); err != nil {
				return errs.PluginErr(pl.Name(), err)
			}
		}
	}
	p.initialized = true
	return nil
}

// ProcessAudio runs every plugin's ProcessAudio hook in registration order,
// enforcing the output-length bound after each hook.
func (p *Pipeline) ProcessAudio(samples []float64, cfg config.Config) ([]float64, error) {
	out := samples
	for _, pl := range p.plugins {
		ap, ok := pl.(AudioProcessor)
		if !ok {
			continue
		}
		inLen := len(out)
		next, err := ap.ProcessAudio(out, cfg)
		if err != nil {
			return nil, errs.PluginErr(pl.Name(), err)
		}
		if inLen > 0 {
			lo := float64(inLen) * 0.9
			hi := float64(inLen) * 1.1
			if float64(len(next)) < lo || float64(len(next)) > hi {
				return nil, errs.PluginErr(pl.Name(), errs.New(errs.InvalidParameter,
					"processAudio output length %d outside [%.0f, %.0f] bound for input length %d",
					len(next), lo, hi, inLen))
			}
		}
		out = next
	}
	return out, nil
}

// ProcessBeats runs every plugin's ProcessBeats hook in registration order,
// rejecting any candidate whose timestamp falls outside [0, duration].
func (p *Pipeline) ProcessBeats(candidates []candidate.Candidate, cfg config.Config, duration float64) ([]candidate.Candidate, error) {
	out := candidates
	for _, pl := range p.plugins {
		bp, ok := pl.(BeatProcessor)
		if !ok {
			continue
		}
		next, err := bp.ProcessBeats(out, cfg)
		if err != nil {
			return nil, errs.PluginErr(pl.Name(), err)
		}
		for _, c := range next {
			if c.Timestamp < 0 || c.Timestamp > duration {
				return nil, errs.PluginErr(pl.Name(), errs.New(errs.InvalidParameter,
					"processBeats produced timestamp %.6f outside [0, %.6f]", c.Timestamp, duration))
			}
		}
		out = next
	}
	return out, nil
}

// Cleanup invokes Cleanup on every plugin implementing Cleaner, in reverse
// registration order. Every call invokes every Cleaner again, so repeated
// calls are only as safe as each plugin's own Cleanup. Errors are
// logged, not returned, since cleanup runs on the teardown and
// fatal-failure paths where a caller is already unwinding.
func (p *Pipeline) Cleanup() {
	for i := len(p.plugins) - 1; i >= 0; i-- {
		pl := p.plugins[i]
		if c, ok := pl.(Cleaner); ok {
			if err := c.Cleanup(); err != nil {
				slog.Warn("plugin cleanup failed", "plugin", pl.Name(), "error", err)
			}
		}
	}
}

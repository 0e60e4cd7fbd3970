// Package config defines the Parser's read-only Config value object
// and its validation. There is no mutable shared state beyond
// precomputed constant tables, so Config is captured once at parser
// construction as a plain value and never mutated afterward. The
// get/set-with-upsert idiom it would otherwise need for live reload is
// instead reused by internal/store for a persisted candidate-set cache.
package config

import "github.com/jota2rz/beat-parser/internal/errs"

// OutputFormat names the external formatting hint; formatting itself
// is out of scope (external collaborator).
type OutputFormat string

const (
	FormatJSON OutputFormat = "json"
	FormatXML  OutputFormat = "xml"
	FormatCSV  OutputFormat = "csv"
)

// Config holds every recognized parser-construction option.
type Config struct {
	SampleRate     int
	FrameSize      int
	HopSize        int
	MinTempo       float64
	MaxTempo       float64
	OnsetWeight    float64
	TempoWeight    float64
	SpectralWeight float64

	MultiPassEnabled bool
	GenreAdaptive    bool

	ConfidenceThreshold float64

	IncludeMetadata         bool
	IncludeConfidenceScores bool

	EnablePreprocessing bool
	EnableNormalization bool
	EnableFiltering     bool
	EnableCleanup       bool

	OutputFormat OutputFormat
}

// Default returns the documented defaults.
func Default() Config {
	return Config{
		SampleRate:              44100,
		FrameSize:               2048,
		HopSize:                 0, // resolved to FrameSize/4 by Validate
		MinTempo:                60,
		MaxTempo:                200,
		OnsetWeight:             0.4,
		TempoWeight:             0.4,
		SpectralWeight:          0.2,
		ConfidenceThreshold:     0.6,
		IncludeMetadata:         true,
		IncludeConfidenceScores: true,
		EnablePreprocessing:     true,
		EnableNormalization:     true,
		EnableFiltering:         true,
		OutputFormat:            FormatJSON,
	}
}

// Validate resolves defaulted fields and re-checks every derived numeric
// constraint. The parser runs it at construction, and again on a per-call
// copy whenever ParseOptions override a Config field.
func (c *Config) Validate() error {
	if c.SampleRate <= 0 {
		return errs.New(errs.InvalidParameter, "config: sampleRate must be > 0")
	}
	if c.FrameSize < 64 {
		return errs.New(errs.InvalidParameter, "config: frameSize must be >= 64")
	}
	if c.HopSize == 0 {
		c.HopSize = c.FrameSize / 4
	}
	if c.HopSize < 1 || c.HopSize > c.FrameSize {
		return errs.New(errs.InvalidParameter, "config: hopSize must satisfy 1 <= hop <= frameSize")
	}
	if c.MinTempo <= 0 || c.MaxTempo <= c.MinTempo {
		return errs.New(errs.InvalidParameter, "config: minTempo < maxTempo, both > 0 required")
	}
	if c.ConfidenceThreshold < 0 || c.ConfidenceThreshold > 1 {
		return errs.New(errs.InvalidParameter, "config: confidenceThreshold must be in [0,1]")
	}

	total := c.OnsetWeight + c.TempoWeight + c.SpectralWeight
	if total <= 0 {
		c.OnsetWeight, c.TempoWeight, c.SpectralWeight = 0.4, 0.4, 0.2
	} else {
		c.OnsetWeight /= total
		c.TempoWeight /= total
		c.SpectralWeight /= total
	}

	switch c.OutputFormat {
	case "", FormatJSON, FormatXML, FormatCSV:
		if c.OutputFormat == "" {
			c.OutputFormat = FormatJSON
		}
	default:
		return errs.New(errs.InvalidParameter, "config: unrecognized outputFormat %q", c.OutputFormat)
	}

	return nil
}

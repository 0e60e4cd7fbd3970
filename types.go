package beatparser

// Beat is a single detected beat in the output timeline.
type Beat struct {
	Timestamp  float64 `json:"timestamp"`
	Confidence float64 `json:"confidence"`
	Strength   float64 `json:"strength"`
}

// TimeSignature is an informational best-guess meter; beat-parser does not
// attempt bar-line detection, so this is always 4/4.
type TimeSignature struct {
	Numerator   int `json:"numerator"`
	Denominator int `json:"denominator"`
}

// Metadata carries informational, non-authoritative fields about a parse.
// Populated only when Config.IncludeMetadata is true.
type Metadata struct {
	Duration      float64       `json:"duration"`
	SampleRate    int           `json:"sampleRate"`
	TimeSignature TimeSignature `json:"timeSignature"`
	ProcessedAt   int64         `json:"processedAt"` // unix seconds, set when the result is assembled

	// SamplesProcessed is the sample count after standardization (mono
	// mix, resample, optional normalize), before any plugin ProcessAudio
	// hook runs.
	SamplesProcessed int `json:"samplesProcessed"`
	// ProcessingTimeMs is the wall-clock duration of the analysis
	// pipeline, from standardization through selection.
	ProcessingTimeMs int64 `json:"processingTimeMs"`
	// Parameters snapshots the effective config/options this parse ran
	// with, for reproducibility.
	Parameters Parameters `json:"parameters"`
	// Filename is carried through verbatim from ParseOptions.Filename;
	// omitted when the caller didn't set one.
	Filename string `json:"filename,omitempty"`
	// CappedCount is set when the requested TargetBeatCount exceeded
	// duration*maxTempo/60 and was silently capped.
	CappedCount int `json:"cappedCount,omitempty"`
	// Warnings lists non-fatal conditions noticed during the parse, e.g.
	// that standardization had to replace NaN/Inf input samples with zero.
	Warnings []string `json:"warnings,omitempty"`
	// LowSignal is true when the tempo estimate's confidence fell below a
	// usability floor; beats and tempo are still returned, but callers
	// should treat them as low-trust.
	LowSignal bool `json:"lowSignal,omitempty"`
}

// Parameters is the subset of effective Config/ParseOptions values worth
// recording alongside a result, so a caller can tell which knobs produced
// it without holding onto the Config/ParseOptions values themselves.
type Parameters struct {
	SampleRate          int             `json:"sampleRate"`
	FrameSize           int             `json:"frameSize"`
	HopSize             int             `json:"hopSize"`
	MinTempo            float64         `json:"minTempo"`
	MaxTempo            float64         `json:"maxTempo"`
	ConfidenceThreshold float64         `json:"confidenceThreshold"`
	Policy              SelectionPolicy `json:"policy"`
	TargetBeatCount     int             `json:"targetBeatCount"`
}

// TempoInfo is the public projection of the tempo tracker's estimate.
type TempoInfo struct {
	BPM          float64            `json:"bpm"`
	Confidence   float64            `json:"confidence"`
	Alternatives []TempoAlternative `json:"alternatives,omitempty"`
}

// TempoAlternative is a runner-up BPM hypothesis.
type TempoAlternative struct {
	BPM        float64 `json:"bpm"`
	Confidence float64 `json:"confidence"`
}

// ParseResult is the top-level output of ParseBuffer/ParseStream.
type ParseResult struct {
	Beats    []Beat    `json:"beats"`
	Tempo    TempoInfo `json:"tempo"`
	Metadata *Metadata `json:"metadata,omitempty"`
}

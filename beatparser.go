// Package beatparser implements a monophonic audio beat and tempo
// detection engine: audio standardization, framing and feature extraction,
// multi-detector onset detection, autocorrelation-based tempo tracking,
// beat candidate fusion, and policy-driven beat selection, wired through a
// plugin pipeline and a cancellable worker protocol.
package beatparser

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jota2rz/beat-parser/internal/audio"
	"github.com/jota2rz/beat-parser/internal/candidate"
	"github.com/jota2rz/beat-parser/internal/config"
	"github.com/jota2rz/beat-parser/internal/dsp"
	"github.com/jota2rz/beat-parser/internal/errs"
	"github.com/jota2rz/beat-parser/internal/frame"
	"github.com/jota2rz/beat-parser/internal/onset"
	"github.com/jota2rz/beat-parser/internal/plugin"
	"github.com/jota2rz/beat-parser/internal/selector"
	"github.com/jota2rz/beat-parser/internal/stream"
	"github.com/jota2rz/beat-parser/internal/tempo"
	"github.com/jota2rz/beat-parser/internal/worker"
)

// Parser is the top-level engine. A Parser is safe for concurrent
// ParseBuffer/ParseStream calls; the underlying worker serializes actual
// analysis work, matching the worker's single-threaded cooperative execution
// model.
type Parser struct {
	cfg config.Config

	mu        sync.Mutex
	pipeline  *plugin.Pipeline
	w         *worker.Worker
	waiters   map[string]chan worker.Response
	started   bool
	cleanedUp bool
}

// NewParser validates cfg (applying documented defaults for zero-valued
// fields) and returns a ready-to-use Parser.
func NewParser(cfg config.Config) (*Parser, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	p := &Parser{
		cfg:      cfg,
		pipeline: plugin.NewPipeline(),
		w:        worker.New(16),
		waiters:  make(map[string]chan worker.Response),
	}
	go p.w.Run()
	go p.dispatch()
	return p, nil
}

// dispatch routes each worker Response to the channel its originating
// run() call is waiting on. It is the single reader of p.w.Results(),
// since a channel shared by multiple concurrent readers cannot guarantee a
// response reaches the caller that submitted the matching request.
func (p *Parser) dispatch() {
	for resp := range p.w.Results() {
		p.mu.Lock()
		ch, ok := p.waiters[resp.ID]
		if ok {
			delete(p.waiters, resp.ID)
		}
		p.mu.Unlock()
		if ok {
			ch <- resp
		}
	}
}

// AddPlugin registers a plugin. Forbidden once the first parse has started.
func (p *Parser) AddPlugin(pl plugin.Plugin) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errs.New(errs.InvalidParameter, "beatparser: cannot add plugin after first parse")
	}
	p.pipeline.Add(pl)
	return nil
}

// RemovePlugin unregisters a plugin by name. Forbidden once the first parse
// has started.
func (p *Parser) RemovePlugin(name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return errs.New(errs.InvalidParameter, "beatparser: cannot remove plugin after first parse")
	}
	p.pipeline.Remove(name)
	return nil
}

// GetConfig returns the parser's effective configuration.
func (p *Parser) GetConfig() config.Config { return p.cfg }

// ParseBuffer runs the full synchronous pipeline over one buffer of
// interleaved PCM samples.
func (p *Parser) ParseBuffer(ctx context.Context, interleaved []float64, sourceRate, channels int, opts ParseOptions) (ParseResult, error) {
	if err := p.markStarted(); err != nil {
		return ParseResult{}, err
	}

	req := worker.Request{
		Kind:    worker.KindParseBuffer,
		Timeout: worker.DefaultTimeout,
		Exec: func(ctx context.Context) (any, error) {
			return p.process(ctx, interleaved, sourceRate, channels, opts)
		},
	}
	return p.run(ctx, req)
}

// ParseStream runs the pipeline over a sequence of chunks under a bounded
// memory budget (internal/stream retains only a ring of raw samples plus
// the onset detectors' own rolling state across chunk boundaries, never
// the whole stream). Chunks must already be mono and at the effective
// Config's sample rate: per-chunk resampling would need a persistent
// anti-alias filter state internal/dsp does not carry across calls, so
// ParseStream rejects a mismatched sourceRate/channels pair up front
// rather than silently drifting from ParseBuffer's output.
func (p *Parser) ParseStream(ctx context.Context, chunks <-chan []float64, sourceRate, channels int, opts StreamOptions) (ParseResult, error) {
	if err := p.markStarted(); err != nil {
		return ParseResult{}, err
	}

	cfg, minTempo, maxTempo, err := p.effectiveConfig(opts.Parse)
	if err != nil {
		return ParseResult{}, err
	}
	if channels != 1 {
		return ParseResult{}, errs.New(errs.InvalidParameter,
			"beatparser: ParseStream requires pre-mixed mono chunks, got channels=%d", channels)
	}
	if sourceRate != cfg.SampleRate {
		return ParseResult{}, errs.New(errs.InvalidParameter,
			"beatparser: ParseStream requires chunks already at the configured sample rate (%d), got %d", cfg.SampleRate, sourceRate)
	}

	chunkSize := opts.ChunkSize
	if chunkSize <= 0 {
		chunkSize = cfg.FrameSize * 8
	}

	ctrl, err := stream.New(stream.Options{
		ChunkSize:         chunkSize,
		Overlap:           opts.Overlap,
		FrameSize:         cfg.FrameSize,
		HopSize:           cfg.HopSize,
		SampleRate:        cfg.SampleRate,
		EnableCleanup:     cfg.EnableCleanup,
		EnableNormalize:   cfg.EnableNormalization,
		NormalizeHeadroom: 0.95,
		Progress: func(cur, total int, pct float64) {
			if opts.Parse.Progress != nil {
				opts.Parse.Progress(cur, total, pct)
			}
		},
	}, 0)
	if err != nil {
		return ParseResult{}, err
	}

	start := time.Now()
	req := worker.Request{
		Kind:    worker.KindParseStream,
		Timeout: worker.DefaultTimeout,
		Exec: func(ctx context.Context) (any, error) {
			for {
				select {
				case chunk, ok := <-chunks:
					if !ok {
						return p.finishStream(ctx, ctrl, cfg, opts.Parse, start, minTempo, maxTempo)
					}
					if err := ctrl.Ingest(chunk); err != nil {
						return nil, err
					}
				case <-ctx.Done():
					return nil, errs.Wrap(errs.Cancelled, ctx.Err(), "beatparser: stream parse cancelled")
				}
			}
		},
	}
	return p.run(ctx, req)
}

// finishStream finalizes ctrl's incrementally accumulated onset functions,
// combines them, and runs the same tempo-through-selection tail process
// uses, keeping the two entry points' post-onset behavior identical.
func (p *Parser) finishStream(ctx context.Context, ctrl *stream.Controller, cfg config.Config, opts ParseOptions, start time.Time, minTempo, maxTempo float64) (ParseResult, error) {
	res := ctrl.Finalize()
	if res.SamplesProcessed == 0 {
		return ParseResult{}, errs.New(errs.EmptyInput, "beatparser: stream closed with no chunks ingested")
	}

	var warnings []string
	if res.Cleaned {
		warnings = append(warnings, "input required cleanup (NaN/Inf samples were replaced with zero)")
	}

	// tempoWeight doubles as the energy detector's fusion weight in the
	// combined onset score; onsetWeight drives the complex-domain
	// component and spectralWeight the flux component, matching process's
	// own combination.
	combined := onset.Combine(res.Complex, res.Flux, res.Energy, onset.Weights{
		Onset:    cfg.OnsetWeight,
		Spectral: cfg.SpectralWeight,
		Energy:   cfg.TempoWeight,
	})

	hopSeconds := frame.Params{FrameSize: cfg.FrameSize, HopSize: cfg.HopSize, SampleRate: cfg.SampleRate}.HopSeconds()
	return p.finishPipeline(ctx, combined, hopSeconds, res.Duration, res.SamplesProcessed, cfg, opts, start, minTempo, maxTempo, warnings)
}

// ProcessBatch runs the full pipeline over each item in order, as a single
// worker request budgeted by worker.BatchTimeout(len(items)). Results
// preserve input order regardless of how long any individual item takes; a
// failure on one item aborts the whole batch rather than returning partial
// results, matching ParseBuffer's all-or-nothing error contract.
func (p *Parser) ProcessBatch(ctx context.Context, items []BatchItem) ([]ParseResult, error) {
	if err := p.markStarted(); err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, errs.New(errs.EmptyInput, "beatparser: ProcessBatch called with zero items")
	}

	req := worker.Request{
		Kind:    worker.KindProcessBatch,
		Timeout: worker.BatchTimeout(len(items)),
		Exec: func(ctx context.Context) (any, error) {
			results := make([]ParseResult, len(items))
			for i, item := range items {
				if err := stageCancelled(ctx); err != nil {
					return nil, err
				}
				result, err := p.process(ctx, item.Interleaved, item.SourceRate, item.Channels, item.Options)
				if err != nil {
					return nil, err
				}
				results[i] = result
			}
			return results, nil
		},
	}
	return p.runBatch(ctx, req)
}

// CancelAll requests cooperative cancellation of every parse currently in
// flight on this Parser, matching the worker protocol's Cancel{"all"}
// message. Each cancelled request still resolves with its own Cancelled
// error through the waiter that submitted it.
func (p *Parser) CancelAll() {
	p.w.CancelAll()
}

// Cleanup releases plugin resources. Idempotent; safe to call multiple
// times and safe to call even if no parse ever ran.
func (p *Parser) Cleanup() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.cleanedUp {
		return
	}
	p.pipeline.Cleanup()
	p.w.Close()
	p.cleanedUp = true
}

// markStarted flips the started flag (forbidding further AddPlugin/
// RemovePlugin calls) and runs plugin Initialize exactly once, lazily on
// first use rather than in NewParser so plugins registered right after
// construction are still included. An Initialize failure aborts the
// call that triggered it, per §4.9.
func (p *Parser) markStarted() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	p.started = true
	return p.pipeline.Initialize(p.cfg)
}

func requestID() string { return uuid.NewString() }

// run submits req and waits for its Response, owning the request's
// wall-clock budget itself: the worker only ever cancels cooperatively
// on our say-so, so a timeout here is what actually bounds a stuck Exec.
func (p *Parser) run(ctx context.Context, req worker.Request) (ParseResult, error) {
	resp, err := p.await(ctx, req)
	if err != nil {
		return ParseResult{}, err
	}
	result, ok := resp.Result.(ParseResult)
	if !ok {
		return ParseResult{}, errs.New(errs.WorkerFailed, "beatparser: worker returned unexpected result type")
	}
	return result, nil
}

// runBatch is run's counterpart for ProcessBatch's []ParseResult terminal.
func (p *Parser) runBatch(ctx context.Context, req worker.Request) ([]ParseResult, error) {
	resp, err := p.await(ctx, req)
	if err != nil {
		return nil, err
	}
	results, ok := resp.Result.([]ParseResult)
	if !ok {
		return nil, errs.New(errs.WorkerFailed, "beatparser: worker returned unexpected result type")
	}
	return results, nil
}

// await submits req and waits for its Response, owning the request's
// wall-clock budget itself: the worker only ever cancels cooperatively on
// our say-so, so a timeout here is what actually bounds a stuck Exec.
func (p *Parser) await(ctx context.Context, req worker.Request) (worker.Response, error) {
	req.ID = requestID()

	runCtx := ctx
	if req.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	done := make(chan worker.Response, 1)

	p.mu.Lock()
	p.waiters[req.ID] = done
	p.mu.Unlock()

	p.w.Submit(req)

	select {
	case resp := <-done:
		if resp.Err != nil {
			return worker.Response{}, resp.Err
		}
		return resp, nil
	case <-runCtx.Done():
		p.w.Cancel(req.ID)
		if ctx.Err() == nil && errors.Is(runCtx.Err(), context.DeadlineExceeded) {
			return worker.Response{}, errs.Wrap(errs.Timeout, runCtx.Err(), "beatparser: parse exceeded %s timeout", req.Timeout)
		}
		return worker.Response{}, errs.Wrap(errs.Cancelled, runCtx.Err(), "beatparser: parse cancelled by caller")
	}
}

// effectiveConfig applies ParseOptions' call-level overrides onto the
// parser's constructed Config, re-validating only if anything changed, and
// resolves the per-call tempo search range. Shared by process and
// ParseStream so both call-level override rules stay identical.
func (p *Parser) effectiveConfig(opts ParseOptions) (cfg config.Config, minTempo, maxTempo float64, err error) {
	cfg = p.cfg
	if opts.MinConfidence > 0 {
		cfg.ConfidenceThreshold = opts.MinConfidence
	}
	if opts.WindowSize > 0 {
		cfg.FrameSize = opts.WindowSize
	}
	if opts.HopSize > 0 {
		cfg.HopSize = opts.HopSize
	}
	if opts.SampleRate > 0 {
		cfg.SampleRate = opts.SampleRate
	}
	if opts.MinConfidence > 0 || opts.WindowSize > 0 || opts.HopSize > 0 || opts.SampleRate > 0 {
		if err := cfg.Validate(); err != nil {
			return config.Config{}, 0, 0, err
		}
	}
	minTempo, maxTempo = cfg.MinTempo, cfg.MaxTempo
	if opts.Tempo.MinTempo > 0 {
		minTempo = opts.Tempo.MinTempo
	}
	if opts.Tempo.MaxTempo > 0 {
		maxTempo = opts.Tempo.MaxTempo
	}
	return cfg, minTempo, maxTempo, nil
}

// process is the actual analysis pipeline: standardize -> preprocess ->
// frame+extract -> onset -> tempo -> candidates -> plugin hooks -> select.
func (p *Parser) process(ctx context.Context, interleaved []float64, sourceRate, channels int, opts ParseOptions) (ParseResult, error) {
	start := time.Now()
	cfg, minTempo, maxTempo, err := p.effectiveConfig(opts)
	if err != nil {
		return ParseResult{}, err
	}

	buf, cleaned, err := audio.Standardize(interleaved, sourceRate, channels, audio.StandardizeOptions{
		TargetSampleRate: cfg.SampleRate,
		EnableNormalize:  cfg.EnableNormalization,
		EnableCleanup:    cfg.EnableCleanup,
	})
	if err != nil {
		return ParseResult{}, err
	}
	samples := buf.Float64()
	samplesProcessed := len(samples)

	var warnings []string
	if cleaned {
		warnings = append(warnings, "input required cleanup (NaN/Inf samples were replaced with zero)")
	}

	if err := stageCancelled(ctx); err != nil {
		return ParseResult{}, err
	}

	if cfg.EnablePreprocessing {
		samples, err = p.pipeline.ProcessAudio(samples, cfg)
		if err != nil {
			p.pipeline.Cleanup()
			return ParseResult{}, err
		}
	}

	frames, err := frame.Slice(samples, frame.Params{
		FrameSize:  cfg.FrameSize,
		HopSize:    cfg.HopSize,
		SampleRate: buf.SampleRate(),
	})
	if err != nil {
		return ParseResult{}, err
	}
	if len(frames) == 0 {
		return ParseResult{}, errs.New(errs.InsufficientSignal, "beatparser: input too short to yield a single frame")
	}

	if err := stageCancelled(ctx); err != nil {
		return ParseResult{}, err
	}

	featureFrames, err := frame.ExtractAll(frames, frame.ExtractOptions{
		Window:     dsp.WindowHanning,
		SampleRate: buf.SampleRate(),
	})
	if err != nil {
		return ParseResult{}, err
	}

	if err := stageCancelled(ctx); err != nil {
		return ParseResult{}, err
	}

	flux := onset.SpectralFlux(featureFrames, onset.FluxOptions{Logarithmic: true})
	energy := onset.Energy(featureFrames, onset.EnergyOptions{})

	complexSpectra := make([][]complex128, len(frames))
	startTimes := make([]float64, len(frames))
	win := dsp.Window(dsp.WindowHanning, cfg.FrameSize)
	const yieldEvery = 256 // ~one suspension point per batch of hot-loop work
	for i, f := range frames {
		if i%yieldEvery == 0 {
			if err := stageCancelled(ctx); err != nil {
				return ParseResult{}, err
			}
		}
		spec, err := dsp.FFT(dsp.Apply(f.Samples, win))
		if err != nil {
			return ParseResult{}, err
		}
		complexSpectra[i] = spec
		startTimes[i] = f.StartTime
	}
	complexFn := onset.ComplexDomain(complexSpectra, startTimes)

	if err := stageCancelled(ctx); err != nil {
		return ParseResult{}, err
	}

	// tempoWeight doubles as the energy detector's fusion weight in the
	// combined onset score; onsetWeight drives the complex-domain
	// component and spectralWeight the flux component.
	combined := onset.Combine(complexFn, flux, energy, onset.Weights{
		Onset:    cfg.OnsetWeight,
		Spectral: cfg.SpectralWeight,
		Energy:   cfg.TempoWeight,
	})

	hopSeconds := frame.Params{FrameSize: cfg.FrameSize, HopSize: cfg.HopSize, SampleRate: buf.SampleRate()}.HopSeconds()
	return p.finishPipeline(ctx, combined, hopSeconds, buf.Duration(), samplesProcessed, cfg, opts, start, minTempo, maxTempo, warnings)
}

// finishPipeline runs the tail shared by process and finishStream: peak
// picking, tempo tracking, candidate fusion, plugin beat hooks, and
// selection. combined is one onset score (plus start time) per hop; it may
// have come from a single whole-buffer pass or from stream.Controller's
// incrementally accumulated functions, the two are indistinguishable from
// here on.
func (p *Parser) finishPipeline(ctx context.Context, combined onset.Function, hopSeconds, duration float64, samplesProcessed int, cfg config.Config, opts ParseOptions, start time.Time, minTempo, maxTempo float64, warnings []string) (ParseResult, error) {
	peaks, err := onset.PickPeaks(combined, onset.PeakOptions{
		MedianWindow: opts.Onset.MedianWindow,
		K:            opts.Onset.K,
		MaxTempo:     maxTempo,
		MinPeakGap:   opts.Onset.MinPeakGap,
		EnergyFloor:  opts.Onset.EnergyFloor,
	})
	if err != nil {
		return ParseResult{}, err
	}

	est, err := tempo.Analyze(combined, hopSeconds, tempo.Options{MinTempo: minTempo, MaxTempo: maxTempo})
	if err != nil {
		return ParseResult{}, err
	}

	if err := stageCancelled(ctx); err != nil {
		return ParseResult{}, err
	}

	cands := candidate.Build(peaks, candidate.Options{
		BPM:                est.BPM,
		Phase:              est.Phase,
		Duration:           duration,
		OnsetKeepThreshold: cfg.ConfidenceThreshold,
	})

	cands, err = p.pipeline.ProcessBeats(cands, cfg, duration)
	if err != nil {
		p.pipeline.Cleanup()
		return ParseResult{}, err
	}

	cands = dropBelowConfidence(cands, cfg.ConfidenceThreshold)
	if len(cands) == 0 && len(peaks) > 0 {
		return ParseResult{}, errs.New(errs.InsufficientSignal,
			"beatparser: no candidates survive confidenceThreshold %.2f; try lowering it", cfg.ConfidenceThreshold)
	}

	sel, err := selector.Select(cands, selector.Options{
		N:        opts.TargetBeatCount,
		Policy:   opts.Policy,
		Duration: duration,
		MaxTempo: maxTempo,
	})
	if err != nil {
		return ParseResult{}, err
	}

	beats := make([]Beat, len(sel.Selected))
	for i, c := range sel.Selected {
		beats[i] = Beat{Timestamp: c.Timestamp, Confidence: c.Confidence, Strength: c.Strength}
	}

	alts := make([]TempoAlternative, len(est.Alternatives))
	for i, a := range est.Alternatives {
		alts[i] = TempoAlternative{BPM: a.BPM, Confidence: a.Confidence}
	}

	result := ParseResult{
		Beats: beats,
		Tempo: TempoInfo{BPM: est.BPM, Confidence: est.Confidence, Alternatives: alts},
	}
	// lowSignalConfidence is the floor below which a tempo estimate is
	// reported with a low-signal caveat; candidate.Build already
	// uses the onset confidence threshold to prune individual beats, this is
	// a separate floor on the tempo tracker's own confidence.
	const lowSignalConfidence = 0.2
	if est.Confidence < lowSignalConfidence {
		warnings = append(warnings, "tempo confidence is low; beats and BPM may be unreliable")
	}

	if cfg.IncludeMetadata {
		result.Metadata = &Metadata{
			Duration:         duration,
			SampleRate:       cfg.SampleRate,
			TimeSignature:    TimeSignature{Numerator: 4, Denominator: 4},
			ProcessedAt:      time.Now().Unix(),
			SamplesProcessed: samplesProcessed,
			ProcessingTimeMs: time.Since(start).Milliseconds(),
			Filename:         opts.Filename,
			CappedCount:      sel.CappedN,
			Warnings:         warnings,
			LowSignal:        est.Confidence < lowSignalConfidence,
			Parameters: Parameters{
				SampleRate:          cfg.SampleRate,
				FrameSize:           cfg.FrameSize,
				HopSize:             cfg.HopSize,
				MinTempo:            minTempo,
				MaxTempo:            maxTempo,
				ConfidenceThreshold: cfg.ConfidenceThreshold,
				Policy:              opts.Policy,
				TargetBeatCount:     opts.TargetBeatCount,
			},
		}
	}
	return result, nil
}

// stageCancelled checks ctx at a coarse pipeline-stage boundary, the
// suspension points §5 requires cancellation and progress to be observed
// within bounded time. analysis itself never re-checks a deadline the
// worker imposed; it only ever observes cooperative cancellation.
func stageCancelled(ctx context.Context) error {
	if ctx.Err() == nil {
		return nil
	}
	return errs.Wrap(errs.Cancelled, ctx.Err(), "beatparser: parse cancelled")
}

// dropBelowConfidence removes candidates whose confidence falls below
// threshold. A zero threshold keeps everything.
func dropBelowConfidence(cands []candidate.Candidate, threshold float64) []candidate.Candidate {
	if threshold <= 0 {
		return cands
	}
	out := cands[:0:0]
	for _, c := range cands {
		if c.Confidence >= threshold {
			out = append(out, c)
		}
	}
	return out
}

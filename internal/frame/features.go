package frame

import (
	"github.com/jota2rz/beat-parser/internal/dsp"
)

// FeatureFrame is the per-frame record produced by feature extraction.
// RMS == 0 implies ZCR == 0 and SpectralCentroid == 0.
type FeatureFrame struct {
	RMS               float64
	ZCR               float64
	SpectralCentroid  float64
	SpectralRolloff   float64
	MagnitudeSpectrum []float64
	StartTime         float64
}

// ExtractOptions configures windowing and the rolloff threshold used during
// extraction.
type ExtractOptions struct {
	Window          dsp.WindowType
	SampleRate      int
	RolloffThreshold float64 // default 0.85
}

// Extract computes a FeatureFrame for a single frame's samples.
func Extract(f Frame, opts ExtractOptions) (FeatureFrame, error) {
	rms := dsp.RMS(f.Samples)
	if rms == 0 {
		return FeatureFrame{RMS: 0, StartTime: f.StartTime, MagnitudeSpectrum: make([]float64, len(f.Samples)/2+1)}, nil
	}

	w := dsp.Window(opts.Window, len(f.Samples))
	windowed := dsp.Apply(f.Samples, w)

	mag, err := dsp.MagnitudeSpectrum(windowed)
	if err != nil {
		return FeatureFrame{}, err
	}

	centroid := dsp.SpectralCentroid(mag, float64(opts.SampleRate))
	rolloff := dsp.SpectralRolloff(mag, float64(opts.SampleRate), opts.RolloffThreshold)
	zcr := dsp.ZeroCrossingRate(f.Samples)

	return FeatureFrame{
		RMS:               rms,
		ZCR:               zcr,
		SpectralCentroid:  centroid,
		SpectralRolloff:   rolloff,
		MagnitudeSpectrum: mag,
		StartTime:         f.StartTime,
	}, nil
}

// ExtractAll extracts features for every frame in frames.
func ExtractAll(frames []Frame, opts ExtractOptions) ([]FeatureFrame, error) {
	out := make([]FeatureFrame, len(frames))
	for i, f := range frames {
		ff, err := Extract(f, opts)
		if err != nil {
			return nil, err
		}
		out[i] = ff
	}
	return out, nil
}

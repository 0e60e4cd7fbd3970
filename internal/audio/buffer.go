// Package audio implements the audio buffer model: a validated mono
// float32 sample container plus the standardization transform (mono mix ->
// resample -> optional normalize), built around an explicit validated
// value type instead of an inline slice.
package audio

import (
	"math"

	"github.com/jota2rz/beat-parser/internal/errs"
)

// Buffer is an immutable, validated mono PCM sample container.
type Buffer struct {
	data       []float32
	sampleRate int
}

// New validates and wraps data as a Buffer. data must be non-empty and
// every sample finite.
func New(data []float32, sampleRate int) (*Buffer, error) {
	if len(data) == 0 {
		return nil, errs.New(errs.EmptyInput, "audio buffer: zero-length samples")
	}
	if sampleRate <= 0 {
		return nil, errs.New(errs.InvalidParameter, "audio buffer: sampleRate must be positive")
	}
	for i, s := range data {
		if math.IsNaN(float64(s)) || math.IsInf(float64(s), 0) {
			return nil, errs.New(errs.InvalidAudio, "audio buffer: non-finite sample at index %d", i)
		}
	}
	out := make([]float32, len(data))
	copy(out, data)
	return &Buffer{data: out, sampleRate: sampleRate}, nil
}

// Data returns the underlying mono samples. Callers within the owning parse
// call may read but must not retain the slice beyond that call.
func (b *Buffer) Data() []float32 { return b.data }

// SampleRate returns the buffer's sample rate in Hz.
func (b *Buffer) SampleRate() int { return b.sampleRate }

// Channels is always 1 after standardization.
func (b *Buffer) Channels() int { return 1 }

// Duration returns len(data)/sampleRate in seconds.
func (b *Buffer) Duration() float64 {
	return float64(len(b.data)) / float64(b.sampleRate)
}

// Len returns the sample count.
func (b *Buffer) Len() int { return len(b.data) }

// Float64 returns a float64 copy of the samples, the working precision used
// by the rest of the analysis pipeline.
func (b *Buffer) Float64() []float64 {
	out := make([]float64, len(b.data))
	for i, s := range b.data {
		out[i] = float64(s)
	}
	return out
}

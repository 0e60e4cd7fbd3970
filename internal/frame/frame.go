// Package frame implements sliding windowed frames over a mono sample
// buffer, and per-frame feature extraction (FeatureFrame).
package frame

import "github.com/jota2rz/beat-parser/internal/errs"

// Frame is a fixed-length, read-only view into a sample buffer at a given
// hop offset.
type Frame struct {
	Samples   []float64
	StartTime float64 // seconds
	Index     int
}

// Params controls how Slice divides a buffer into frames.
type Params struct {
	FrameSize  int
	HopSize    int
	SampleRate int
	Pad        bool
}

// Validate checks the documented constraints (frameSize >= 2, hopSize
// 1..frameSize, sampleRate > 0). A frameSize larger than the data is not an
// error; Slice then returns no frames unless Pad is set.
func (p Params) Validate(dataLen int) error {
	if p.FrameSize < 2 {
		return errs.New(errs.InvalidParameter, "frame: frameSize must be >= 2, got %d", p.FrameSize)
	}
	if p.HopSize < 1 || p.HopSize > p.FrameSize {
		return errs.New(errs.InvalidParameter, "frame: hopSize must satisfy 1 <= hop <= frameSize, got %d (frameSize=%d)", p.HopSize, p.FrameSize)
	}
	if p.SampleRate <= 0 {
		return errs.New(errs.InvalidParameter, "frame: sampleRate must be positive")
	}
	_ = dataLen
	return nil
}

// Slice splits data into frames of FrameSize advancing by HopSize. When
// len(data) < FrameSize and Pad is false, it returns no frames. When Pad is true, a final
// zero-padded frame is appended if one would otherwise be dropped.
func Slice(data []float64, p Params) ([]Frame, error) {
	if err := p.Validate(len(data)); err != nil {
		return nil, err
	}
	n := len(data)
	if n < p.FrameSize && !p.Pad {
		return nil, nil
	}

	var frames []Frame
	idx := 0
	start := 0
	for start+p.FrameSize <= n {
		f := make([]float64, p.FrameSize)
		copy(f, data[start:start+p.FrameSize])
		frames = append(frames, Frame{
			Samples:   f,
			StartTime: float64(start) / float64(p.SampleRate),
			Index:     idx,
		})
		idx++
		start += p.HopSize
	}

	if p.Pad && start < n {
		f := make([]float64, p.FrameSize)
		copy(f, data[start:])
		frames = append(frames, Frame{
			Samples:   f,
			StartTime: float64(start) / float64(p.SampleRate),
			Index:     idx,
		})
	} else if p.Pad && len(frames) == 0 && n > 0 {
		f := make([]float64, p.FrameSize)
		copy(f, data)
		frames = append(frames, Frame{Samples: f, StartTime: 0, Index: 0})
	}

	return frames, nil
}

// Count returns the number of frames Slice would produce, using the
// formula floor((N-F)/H)+1 (plus one more when pad is requested and the
// next hop start still lies inside the data, where Slice appends a
// zero-padded frame).
func Count(n int, p Params) int {
	if n < p.FrameSize {
		if p.Pad && n > 0 {
			return 1
		}
		return 0
	}
	count := (n-p.FrameSize)/p.HopSize + 1
	if p.Pad && count*p.HopSize < n {
		count++
	}
	return count
}

// HopSeconds returns the time, in seconds, each frame advances.
func (p Params) HopSeconds() float64 {
	return float64(p.HopSize) / float64(p.SampleRate)
}

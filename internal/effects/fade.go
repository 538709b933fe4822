package effects

import (
	"fmt"
	"log/slog"

	"mixdeck.click/internal/source"
)

// Fade ramps amplitude linearly over a duration measured in frames.
// A fade-in runs 0.0 -> 1.0 and stays at 1.0; a fade-out runs
// 1.0 -> 0.0 and stays at 0.0. The ramp hits its endpoint exactly at
// the duration boundary.
type Fade struct {
	inner     source.Source
	format    source.Format
	duration  int64
	elapsed   int64
	out       bool // true for fade-out
	exhausted bool
}

// NewFadeIn wraps inner with a linear fade from silence to full scale
// over the given number of frames
func NewFadeIn(inner source.Source, frames int64) (*Fade, error) {
	return newFade(inner, frames, false)
}

// NewFadeOut wraps inner with a linear fade from full scale to silence
// over the given number of frames
func NewFadeOut(inner source.Source, frames int64) (*Fade, error) {
	return newFade(inner, frames, true)
}

func newFade(inner source.Source, frames int64, out bool) (*Fade, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	format := inner.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frames <= 0 {
		return nil, fmt.Errorf("%w: fade duration %d frames must be positive", source.ErrInvalidFormat, frames)
	}

	slog.Debug("creating fade effect",
		"format", format.String(),
		"duration_frames", frames,
		"direction", map[bool]string{false: "in", true: "out"}[out])

	return &Fade{inner: inner, format: format, duration: frames, out: out}, nil
}

// ramp returns the amplitude multiplier for the frame at the given
// elapsed position; monotonic, exact at the boundary, clamped after
func (f *Fade) ramp(elapsed int64) float64 {
	if elapsed >= f.duration {
		if f.out {
			return 0
		}
		return 1
	}
	progress := float64(elapsed) / float64(f.duration)
	if f.out {
		return 1 - progress
	}
	return progress
}

// ReadFrames reads inner frames and applies the ramp per frame
func (f *Fade) ReadFrames(dst []float64) (int, bool) {
	if f.exhausted {
		return 0, false
	}

	n, ok := f.inner.ReadFrames(dst)
	ch := f.format.Channels
	for i := 0; i < n; i++ {
		m := f.ramp(f.elapsed + int64(i))
		if m == 1 {
			continue
		}
		frame := dst[i*ch : (i+1)*ch]
		for c := range frame {
			frame[c] *= m
		}
	}
	f.elapsed += int64(n)

	if !ok {
		f.exhausted = true
		if n == 0 {
			return 0, false
		}
	}
	return n, true
}

// Format is unchanged by fading
func (f *Fade) Format() source.Format {
	return f.format
}

// Remaining is unchanged by fading
func (f *Fade) Remaining() (int64, bool) {
	return f.inner.Remaining()
}

// Err forwards the inner source's out-of-band error
func (f *Fade) Err() error {
	if errer, ok := f.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

package source

import (
	"fmt"
	"log/slog"
)

// Silence produces zero-valued frames: a fixed number of them, or an
// unbounded stream for keep-alive duty (a mixer with no inputs, an
// empty queue).
type Silence struct {
	format    Format
	remaining int64 // < 0 means unbounded
	exhausted bool
}

// NewSilence creates a finite silence source of the given length in frames
func NewSilence(format Format, frames int64) (*Silence, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frames < 0 {
		return nil, fmt.Errorf("%w: silence length %d must not be negative", ErrInvalidFormat, frames)
	}
	slog.Debug("creating finite silence source", "format", format.String(), "frames", frames)
	return &Silence{format: format, remaining: frames}, nil
}

// NewInfiniteSilence creates a silence source that never exhausts
func NewInfiniteSilence(format Format) (*Silence, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	slog.Debug("creating infinite silence source", "format", format.String())
	return &Silence{format: format, remaining: -1}, nil
}

// ReadFrames fills dst with zeros
func (s *Silence) ReadFrames(dst []float64) (int, bool) {
	if s.exhausted {
		return 0, false
	}

	frames := len(dst) / s.format.Channels
	if s.remaining >= 0 && int64(frames) > s.remaining {
		frames = int(s.remaining)
	}
	if frames == 0 && s.remaining == 0 {
		s.exhausted = true
		return 0, false
	}

	for i := 0; i < frames*s.format.Channels; i++ {
		dst[i] = 0
	}
	if s.remaining > 0 {
		s.remaining -= int64(frames)
	}
	return frames, true
}

// Format returns the declared stream format
func (s *Silence) Format() Format {
	return s.format
}

// Remaining returns the frames left; unbounded silence reports unknown
func (s *Silence) Remaining() (int64, bool) {
	if s.remaining < 0 {
		return 0, false
	}
	return s.remaining, true
}

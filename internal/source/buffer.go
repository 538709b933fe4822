package source

import (
	"fmt"
	"log/slog"
)

// Buffer is an in-memory source over a slice of interleaved samples.
// Decoded files land here, and it is the workhorse of the test suite.
type Buffer struct {
	format    Format
	data      []float64
	pos       int
	exhausted bool
}

// NewBuffer creates a source over interleaved normalized samples.
// len(data) must be a multiple of the channel count so frames are
// never split.
func NewBuffer(format Format, data []float64) (*Buffer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if len(data)%format.Channels != 0 {
		return nil, fmt.Errorf("%w: %d samples is not a whole number of %d-channel frames",
			ErrInvalidFormat, len(data), format.Channels)
	}
	slog.Debug("creating buffer source",
		"format", format.String(),
		"frames", len(data)/format.Channels)
	return &Buffer{format: format, data: data}, nil
}

// ReadFrames copies the next run of whole frames into dst
func (b *Buffer) ReadFrames(dst []float64) (int, bool) {
	if b.exhausted {
		return 0, false
	}
	if b.pos >= len(b.data) {
		b.exhausted = true
		return 0, false
	}

	frames := len(dst) / b.format.Channels
	avail := (len(b.data) - b.pos) / b.format.Channels
	if frames > avail {
		frames = avail
	}

	n := frames * b.format.Channels
	copy(dst[:n], b.data[b.pos:b.pos+n])
	b.pos += n
	return frames, true
}

// Format returns the declared stream format
func (b *Buffer) Format() Format {
	return b.format
}

// Remaining returns the exact number of frames left
func (b *Buffer) Remaining() (int64, bool) {
	if b.exhausted {
		return 0, true
	}
	return int64((len(b.data) - b.pos) / b.format.Channels), true
}

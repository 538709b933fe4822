package effects

import (
	"fmt"
	"log/slog"

	"mixdeck.click/internal/source"
)

// Delay prepends a run of silence before the inner source's first real
// frame. The length is expressed in frames of the inner format, so no
// rate conversion is involved.
type Delay struct {
	inner     source.Source
	format    source.Format
	silence   int64
	exhausted bool
}

// NewDelay wraps inner behind the given number of silent frames
func NewDelay(inner source.Source, frames int64) (*Delay, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	format := inner.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frames < 0 {
		return nil, fmt.Errorf("%w: delay %d frames must not be negative", source.ErrInvalidFormat, frames)
	}

	slog.Debug("creating delay effect", "format", format.String(), "silent_frames", frames)
	return &Delay{inner: inner, format: format, silence: frames}, nil
}

// ReadFrames emits the remaining silence first, then the inner stream
func (d *Delay) ReadFrames(dst []float64) (int, bool) {
	if d.exhausted {
		return 0, false
	}

	ch := d.format.Channels
	want := len(dst) / ch
	written := 0

	if d.silence > 0 {
		quiet := want
		if int64(quiet) > d.silence {
			quiet = int(d.silence)
		}
		for i := 0; i < quiet*ch; i++ {
			dst[i] = 0
		}
		d.silence -= int64(quiet)
		written = quiet
		if written == want {
			return written, true
		}
	}

	n, ok := d.inner.ReadFrames(dst[written*ch:])
	written += n
	if !ok {
		d.exhausted = true
		if written == 0 {
			return 0, false
		}
	}
	return written, true
}

// Format is unchanged by the delay
func (d *Delay) Format() source.Format {
	return d.format
}

// Remaining adds the silence still owed to the inner count
func (d *Delay) Remaining() (int64, bool) {
	rem, known := d.inner.Remaining()
	if !known {
		return 0, false
	}
	return rem + d.silence, true
}

// Err forwards the inner source's out-of-band error
func (d *Delay) Err() error {
	if errer, ok := d.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

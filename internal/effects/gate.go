package effects

import (
	"fmt"
	"log/slog"
	"sync/atomic"

	"mixdeck.click/internal/source"
)

// Gate substitutes silence for the inner stream while an atomic flag
// is set, without consuming the inner source, so playback resumes
// exactly where it paused. The sink's pause/resume transport control
// is a Gate read by the mixer tick.
type Gate struct {
	inner     source.Source
	format    source.Format
	closed    atomic.Bool
	exhausted bool
}

// NewGate wraps inner with a pause gate, initially open (playing)
func NewGate(inner source.Source) (*Gate, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	format := inner.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}

	slog.Debug("creating pause gate", "format", format.String())
	return &Gate{inner: inner, format: format}, nil
}

// SetClosed pauses (true) or resumes (false) the stream
func (g *Gate) SetClosed(closed bool) {
	g.closed.Store(closed)
}

// Closed reports whether the gate is currently substituting silence
func (g *Gate) Closed() bool {
	return g.closed.Load()
}

// ReadFrames emits silence while closed, inner frames while open
func (g *Gate) ReadFrames(dst []float64) (int, bool) {
	if g.exhausted {
		return 0, false
	}

	if g.closed.Load() {
		for i := range dst {
			dst[i] = 0
		}
		return len(dst) / g.format.Channels, true
	}

	n, ok := g.inner.ReadFrames(dst)
	if !ok {
		g.exhausted = true
		if n == 0 {
			return 0, false
		}
	}
	return n, true
}

// Format is unchanged by gating
func (g *Gate) Format() source.Format {
	return g.format
}

// Remaining reports the inner count; time spent paused is not part of
// the stream
func (g *Gate) Remaining() (int64, bool) {
	return g.inner.Remaining()
}

// Err forwards the inner source's out-of-band error
func (g *Gate) Err() error {
	if errer, ok := g.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

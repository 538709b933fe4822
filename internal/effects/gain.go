package effects

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// Gain scales every sample by a live factor. The factor is read fresh
// on every call through an atomic cell, so the control side can turn a
// volume knob while the real-time side is mid-stream without locks or
// snapshot staleness beyond one read.
type Gain struct {
	inner     source.Source
	format    source.Format
	factor    atomic.Uint64 // float64 bits
	exhausted bool
}

// NewGain wraps inner with an amplitude scaler starting at factor
func NewGain(inner source.Source, factor float64) (*Gain, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	format := inner.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}

	g := &Gain{inner: inner, format: format}
	if err := g.SetFactor(factor); err != nil {
		return nil, err
	}

	slog.Debug("creating gain effect", "format", format.String(), "factor", factor)
	return g, nil
}

// SetFactor updates the live gain. Values above 1.0 are allowed; the
// output is clamped per sample, never wrapped.
func (g *Gain) SetFactor(factor float64) error {
	if factor < 0 || math.IsNaN(factor) || math.IsInf(factor, 0) {
		return fmt.Errorf("%w: gain factor %f must be a non-negative finite number", source.ErrInvalidFormat, factor)
	}
	g.factor.Store(math.Float64bits(factor))
	return nil
}

// Factor returns the current gain
func (g *Gain) Factor() float64 {
	return math.Float64frombits(g.factor.Load())
}

// ReadFrames scales the inner frames in place
func (g *Gain) ReadFrames(dst []float64) (int, bool) {
	if g.exhausted {
		return 0, false
	}

	n, ok := g.inner.ReadFrames(dst)
	factor := g.Factor()
	if factor != 1.0 {
		for i := 0; i < n*g.format.Channels; i++ {
			dst[i] = sample.Clamp(dst[i] * factor)
		}
	}
	if !ok {
		g.exhausted = true
		if n == 0 {
			return 0, false
		}
	}
	return n, true
}

// Format is unchanged by gain
func (g *Gain) Format() source.Format {
	return g.format
}

// Remaining is unchanged by gain
func (g *Gain) Remaining() (int64, bool) {
	return g.inner.Remaining()
}

// Err forwards the inner source's out-of-band error
func (g *Gain) Err() error {
	if errer, ok := g.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

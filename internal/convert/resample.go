package convert

import (
	"fmt"
	"log/slog"
	"math"
	"sync/atomic"

	"mixdeck.click/internal/source"
)

// pullFrame outcomes
const (
	pullOK = iota
	pullStarved
	pullDone
)

// Resample converts a stream from its native rate to a target rate by
// linear interpolation between the two nearest input frames. A
// fractional cursor advances by in/out per output frame, so the work
// is O(1) amortized per frame with no lookahead beyond one frame.
//
// The base ratio can be multiplied by a live scale factor (SetRatio),
// which is how the speed effect and the sink's set_speed drive pitch
// and duration together without rebuilding the chain.
type Resample struct {
	inner   source.Source
	format  source.Format
	inRate  int
	outRate int
	scale   atomic.Uint64 // float64 bits, multiplier on in/out

	prev, next []float64
	havePrev   bool
	haveNext   bool
	holdLast   bool // inner exhausted, playing out the final window
	t          float64

	innerDone bool
	exhausted bool
}

// NewResample wraps inner and re-exposes it at the target sample rate.
// The same rate is accepted so a live ratio can still be applied on
// top of it; Normalize elides the adapter when nothing changes.
func NewResample(inner source.Source, rate int) (*Resample, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	inFormat := inner.Format()
	if err := inFormat.Validate(); err != nil {
		return nil, err
	}
	if rate <= 0 {
		return nil, fmt.Errorf("%w: target sample rate %d must be positive", source.ErrInvalidFormat, rate)
	}

	outFormat := inFormat
	outFormat.SampleRate = rate

	slog.Debug("creating resampler",
		"from", inFormat.String(),
		"to", outFormat.String())

	ch := inFormat.Channels
	r := &Resample{
		inner:   inner,
		format:  outFormat,
		inRate:  inFormat.SampleRate,
		outRate: rate,
		prev:    make([]float64, ch),
		next:    make([]float64, ch),
	}
	r.scale.Store(math.Float64bits(1.0))
	return r, nil
}

// SetRatio sets the live multiplier on the base conversion ratio.
// 2.0 consumes input twice as fast (double speed, pitch up an octave).
func (r *Resample) SetRatio(scale float64) error {
	if scale <= 0 || math.IsNaN(scale) || math.IsInf(scale, 0) {
		return fmt.Errorf("%w: resample ratio %f must be a positive finite number", source.ErrInvalidFormat, scale)
	}
	r.scale.Store(math.Float64bits(scale))
	return nil
}

// Ratio returns the current live multiplier
func (r *Resample) Ratio() float64 {
	return math.Float64frombits(r.scale.Load())
}

// step is the input-frame advance per output frame, read once per call
func (r *Resample) step() float64 {
	return float64(r.inRate) / float64(r.outRate) * r.Ratio()
}

// pullFrame reads exactly one whole frame from the inner source. One
// frame of lookahead is all linear interpolation needs; pulling more
// would run live sources (the sink's queue) ahead of playback.
func (r *Resample) pullFrame(dst []float64) int {
	if r.innerDone {
		return pullDone
	}
	n, ok := r.inner.ReadFrames(dst)
	if !ok {
		r.innerDone = true
		return pullDone
	}
	if n == 0 {
		return pullStarved
	}
	return pullOK
}

// ReadFrames synthesizes output frames at the target rate. When the
// inner source exhausts mid-window the last frame is held flat until
// the window completes, then the resampler reports exhaustion.
func (r *Resample) ReadFrames(dst []float64) (int, bool) {
	if r.exhausted {
		return 0, false
	}

	step := r.step()
	ch := r.format.Channels
	want := len(dst) / ch
	i := 0

	for i < want {
		if !r.havePrev {
			switch r.pullFrame(r.prev) {
			case pullStarved:
				return i, true
			case pullDone:
				r.exhausted = true
				if i == 0 {
					return 0, false
				}
				return i, true
			}
			r.havePrev = true
		}

		if !r.haveNext {
			switch r.pullFrame(r.next) {
			case pullOK:
				r.haveNext = true
			case pullStarved:
				return i, true
			case pullDone:
				copy(r.next, r.prev)
				r.haveNext = true
				r.holdLast = true
			}
		}

		// consume whole input frames the cursor has passed
		for r.t >= 1.0 {
			if r.holdLast {
				r.exhausted = true
				if i == 0 {
					return 0, false
				}
				return i, true
			}
			copy(r.prev, r.next)
			r.haveNext = false
			r.t -= 1.0
			switch r.pullFrame(r.next) {
			case pullOK:
				r.haveNext = true
			case pullStarved:
				return i, true
			case pullDone:
				copy(r.next, r.prev)
				r.haveNext = true
				r.holdLast = true
			}
		}

		out := dst[i*ch : (i+1)*ch]
		for c := 0; c < ch; c++ {
			out[c] = r.prev[c] + (r.next[c]-r.prev[c])*r.t
		}
		i++
		r.t += step
	}
	return i, true
}

// Format returns the stream format at the target rate
func (r *Resample) Format() source.Format {
	return r.format
}

// Remaining scales the inner count by the current conversion ratio
func (r *Resample) Remaining() (int64, bool) {
	rem, known := r.inner.Remaining()
	if !known {
		return 0, false
	}
	return int64(math.Ceil(float64(rem) / r.step())), true
}

// Err forwards the inner source's out-of-band error
func (r *Resample) Err() error {
	if errer, ok := r.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

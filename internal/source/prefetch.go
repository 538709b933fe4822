package source

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
)

// Prefetch pumps an inner source on a background goroutine into a
// bounded ring of blocks, so a source backed by blocking I/O (a file
// decoder) can be drained from the real-time path without ever
// blocking there. If the pump falls behind, ReadFrames returns a short
// count and the caller pads silence; it never waits.
type Prefetch struct {
	format Format

	blocks chan []float64 // filled blocks, pump -> reader
	free   chan []float64 // recycled block storage, reader -> pump
	quit   chan struct{}

	// reader-side state, touched only by the real-time consumer
	cur       []float64
	off       int
	exhausted bool

	// delivered is written by the reader and read by Remaining, which
	// control goroutines may call mid-playback
	delivered      atomic.Int64
	remaining      int64
	remainingKnown bool

	err       atomic.Value // error, set once by the pump on exit
	closeOnce sync.Once
}

// NewPrefetch wraps inner with a pump of depth blocks of blockFrames
// frames each. The wrapper takes ownership of inner; nothing else may
// read it afterwards.
func NewPrefetch(inner Source, blockFrames, depth int) (*Prefetch, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", ErrInvalidFormat)
	}
	if blockFrames <= 0 || depth <= 0 {
		return nil, fmt.Errorf("%w: prefetch block %d x depth %d must be positive", ErrInvalidFormat, blockFrames, depth)
	}
	format := inner.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}

	p := &Prefetch{
		format: format,
		blocks: make(chan []float64, depth),
		free:   make(chan []float64, depth),
		quit:   make(chan struct{}),
	}
	p.remaining, p.remainingKnown = inner.Remaining()

	blockSamples := blockFrames * format.Channels
	for i := 0; i < depth; i++ {
		p.free <- make([]float64, blockSamples)
	}

	slog.Debug("starting prefetch pump",
		"format", format.String(),
		"block_frames", blockFrames,
		"depth", depth)

	go p.pump(inner, blockSamples)
	return p, nil
}

// pump runs off the real-time path and is the only reader of inner
func (p *Prefetch) pump(inner Source, blockSamples int) {
	defer func() {
		if errer, ok := inner.(Errer); ok {
			if err := errer.Err(); err != nil {
				p.err.Store(err)
				slog.Error("prefetch inner source failed", "error", err)
			}
		}
		close(p.blocks)
	}()

	for {
		var block []float64
		select {
		case <-p.quit:
			return
		case block = <-p.free:
		}
		block = block[:cap(block)]

		filled := 0
		for filled < blockSamples {
			n, ok := inner.ReadFrames(block[filled:blockSamples])
			if n > 0 {
				filled += n * p.format.Channels
			}
			if !ok {
				if filled > 0 {
					select {
					case <-p.quit:
					case p.blocks <- block[:filled]:
					}
				}
				return
			}
		}

		select {
		case <-p.quit:
			return
		case p.blocks <- block[:filled]:
		}
	}
}

// ReadFrames drains buffered blocks without blocking. A starved pump
// produces a short read with ok still true; only a finished pump with
// nothing buffered reports exhaustion.
func (p *Prefetch) ReadFrames(dst []float64) (int, bool) {
	if p.exhausted && p.cur == nil {
		return 0, false
	}

	want := len(dst) / p.format.Channels * p.format.Channels
	copied := 0
	for copied < want {
		if p.cur != nil && p.off < len(p.cur) {
			n := copy(dst[copied:want], p.cur[p.off:])
			copied += n
			p.off += n
			continue
		}

		// current block drained, hand the storage back to the pump
		if p.cur != nil {
			select {
			case p.free <- p.cur:
			default:
			}
			p.cur = nil
			p.off = 0
		}

		select {
		case block, ok := <-p.blocks:
			if !ok {
				p.exhausted = true
				if copied == 0 {
					return 0, false
				}
				frames := copied / p.format.Channels
				p.delivered.Add(int64(frames))
				return frames, true
			}
			p.cur = block
			p.off = 0
		default:
			// pump starved, do not wait on the real-time path
			frames := copied / p.format.Channels
			p.delivered.Add(int64(frames))
			return frames, true
		}
	}

	frames := copied / p.format.Channels
	p.delivered.Add(int64(frames))
	return frames, true
}

// Format returns the inner source's format
func (p *Prefetch) Format() Format {
	return p.format
}

// Remaining reports the inner count captured at construction, less
// what has already been delivered
func (p *Prefetch) Remaining() (int64, bool) {
	if !p.remainingKnown {
		return 0, false
	}
	left := p.remaining - p.delivered.Load()
	if left < 0 {
		left = 0
	}
	return left, true
}

// Err returns the inner source's out-of-band error, if the pump saw one
func (p *Prefetch) Err() error {
	if err, ok := p.err.Load().(error); ok {
		return err
	}
	return nil
}

// Close stops the pump goroutine. The source reports exhaustion once
// the already-buffered blocks are drained.
func (p *Prefetch) Close() error {
	p.closeOnce.Do(func() {
		close(p.quit)
		slog.Debug("prefetch pump stopped")
	})
	return nil
}

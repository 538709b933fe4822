package convert

import (
	"fmt"
	"log/slog"

	"mixdeck.click/internal/source"
)

// scratchFrames is the fixed chunk the adapters stage inner reads
// through, so a single preallocated buffer serves reads of any size.
const scratchFrames = 2048

// Channels remaps a stream from N input channels to M output channels
// frame by frame with no lookahead. Output channel j is fed from input
// channel j%N on upmix, and is the average of input channels c with
// c%M == j on downmix. Mono fan-out and fold-down fall out of the same
// rule.
type Channels struct {
	inner     source.Source
	format    source.Format
	inCh      int
	scratch   []float64
	exhausted bool
}

// NewChannels wraps inner and re-exposes it with the given channel
// count. A matching count is rejected; callers use Normalize, which
// elides the adapter entirely.
func NewChannels(inner source.Source, channels int) (*Channels, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	inFormat := inner.Format()
	if err := inFormat.Validate(); err != nil {
		return nil, err
	}
	if channels <= 0 {
		return nil, fmt.Errorf("%w: channel count %d must be positive", source.ErrInvalidFormat, channels)
	}
	if channels == inFormat.Channels {
		return nil, fmt.Errorf("%w: channel adapter from %d to %d channels is a no-op",
			source.ErrInvalidFormat, inFormat.Channels, channels)
	}

	outFormat := inFormat
	outFormat.Channels = channels

	slog.Debug("creating channel adapter",
		"from", inFormat.String(),
		"to", outFormat.String())

	return &Channels{
		inner:   inner,
		format:  outFormat,
		inCh:    inFormat.Channels,
		scratch: make([]float64, scratchFrames*inFormat.Channels),
	}, nil
}

// ReadFrames pulls inner frames through the scratch buffer and remaps
// each one into the output channel layout
func (c *Channels) ReadFrames(dst []float64) (int, bool) {
	if c.exhausted {
		return 0, false
	}

	outCh := c.format.Channels
	want := len(dst) / outCh
	written := 0

	for written < want {
		chunk := want - written
		if chunk > scratchFrames {
			chunk = scratchFrames
		}

		n, ok := c.inner.ReadFrames(c.scratch[:chunk*c.inCh])
		for f := 0; f < n; f++ {
			in := c.scratch[f*c.inCh : (f+1)*c.inCh]
			out := dst[(written+f)*outCh : (written+f+1)*outCh]
			c.mapFrame(in, out)
		}
		written += n

		if !ok {
			c.exhausted = true
			if written == 0 {
				return 0, false
			}
			return written, true
		}
		if n < chunk {
			// inner is starved, hand back what we have
			return written, true
		}
	}
	return written, true
}

// mapFrame applies the up/downmix rule to a single frame
func (c *Channels) mapFrame(in, out []float64) {
	outCh := len(out)
	if outCh >= c.inCh {
		// upmix: cycle input channels across the wider layout
		for j := 0; j < outCh; j++ {
			out[j] = in[j%c.inCh]
		}
		return
	}
	// downmix: average every input channel folding onto the slot
	for j := 0; j < outCh; j++ {
		sum := 0.0
		count := 0
		for ch := j; ch < c.inCh; ch += outCh {
			sum += in[ch]
			count++
		}
		out[j] = sum / float64(count)
	}
}

// Format returns the remapped stream format
func (c *Channels) Format() source.Format {
	return c.format
}

// Remaining is unchanged by channel mapping
func (c *Channels) Remaining() (int64, bool) {
	return c.inner.Remaining()
}

// Err forwards the inner source's out-of-band error
func (c *Channels) Err() error {
	if errer, ok := c.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

package output

import (
	"errors"
	"fmt"
	"log/slog"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// Bridge errors, all surfaced at construction
var (
	ErrDeviceMismatch = errors.New("device format incompatible with source format")
)

// bridgeChunkFrames bounds the per-iteration scratch so one
// preallocated buffer serves callbacks of any size
const bridgeChunkFrames = 4096

// Bridge is the single component that runs inside the hardware
// deadline. On every device callback it pulls exactly the requested
// frames from its source (the mixer output), re-encodes them into the
// destination byte buffer, and pads any shortfall with silence. After
// construction it allocates nothing and takes no locks; it must not
// log either, so the hot path is kept free of slog calls.
type Bridge struct {
	src      source.Source
	format   source.Format // device format: source channels/rate, device encoding
	scratch  []float64
	frameLen int // bytes per frame in the device encoding
}

// NewBridge ties a source to a negotiated device format. Channel count
// and sample rate must match the source exactly (the mixer is built
// from the negotiated values); only the encoding may differ, and the
// bridge converts per sample on the way out.
func NewBridge(src source.Source, device source.Format) (*Bridge, error) {
	if src == nil {
		return nil, fmt.Errorf("%w: source is nil", source.ErrInvalidFormat)
	}
	if err := device.Validate(); err != nil {
		return nil, err
	}
	sf := src.Format()
	if sf.Channels != device.Channels || sf.SampleRate != device.SampleRate {
		return nil, fmt.Errorf("%w: source %s, device %s", ErrDeviceMismatch, sf, device)
	}

	slog.Info("creating output bridge",
		"source", sf.String(),
		"device", device.String())

	return &Bridge{
		src:      src,
		format:   device,
		scratch:  make([]float64, bridgeChunkFrames*device.Channels),
		frameLen: device.Channels * device.Encoding.Bytes(),
	}, nil
}

// Format returns the negotiated device format
func (b *Bridge) Format() source.Format {
	return b.format
}

// FrameBytes returns the byte size of one device frame
func (b *Bridge) FrameBytes() int {
	return b.frameLen
}

// Fill writes exactly len(dst)/FrameBytes() frames of encoded audio
// into dst. A source shortfall becomes silence, never stale memory and
// never a block; trailing bytes beyond the last whole frame are zeroed.
func (b *Bridge) Fill(dst []byte) {
	ch := b.format.Channels
	enc := b.format.Encoding
	sb := enc.Bytes()
	frames := len(dst) / b.frameLen

	done := 0
	for done < frames {
		chunk := frames - done
		if chunk > bridgeChunkFrames {
			chunk = bridgeChunkFrames
		}

		n, _ := b.src.ReadFrames(b.scratch[:chunk*ch])
		off := done * b.frameLen
		for i := 0; i < n*ch; i++ {
			sample.Put(dst[off+i*sb:], enc, b.scratch[i])
		}
		// silence for whatever the source did not deliver
		for i := n * ch; i < chunk*ch; i++ {
			sample.Put(dst[off+i*sb:], enc, 0)
		}
		done += chunk
	}

	for i := frames * b.frameLen; i < len(dst); i++ {
		dst[i] = 0
	}
}

// Read implements io.Reader over the encoded stream, for backends
// that pull bytes instead of invoking a callback (oto). Partial
// frames are never emitted.
func (b *Bridge) Read(p []byte) (int, error) {
	usable := len(p) / b.frameLen * b.frameLen
	if usable == 0 {
		return 0, nil
	}
	b.Fill(p[:usable])
	return usable, nil
}

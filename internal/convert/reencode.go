package convert

import (
	"fmt"
	"log/slog"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// Reencode re-declares a stream in a different sample encoding. The
// pipeline carries normalized float64 either way, so the adapter's
// work is quantizing every sample to the target encoding's grid —
// pure, stateless, per sample.
type Reencode struct {
	inner     source.Source
	format    source.Format
	exhausted bool
}

// NewReencode wraps inner and re-exposes it in the target encoding.
// A matching encoding is rejected; Normalize elides the adapter.
func NewReencode(inner source.Source, encoding sample.Encoding) (*Reencode, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	inFormat := inner.Format()
	if err := inFormat.Validate(); err != nil {
		return nil, err
	}
	if !encoding.Valid() {
		return nil, fmt.Errorf("%w: encoding %v", source.ErrInvalidFormat, encoding)
	}
	if encoding == inFormat.Encoding {
		return nil, fmt.Errorf("%w: encoding adapter from %s to %s is a no-op",
			source.ErrInvalidFormat, inFormat.Encoding, encoding)
	}

	outFormat := inFormat
	outFormat.Encoding = encoding

	slog.Debug("creating encoding adapter",
		"from", inFormat.String(),
		"to", outFormat.String())

	return &Reencode{inner: inner, format: outFormat}, nil
}

// ReadFrames reads from the inner source and quantizes in place
func (e *Reencode) ReadFrames(dst []float64) (int, bool) {
	if e.exhausted {
		return 0, false
	}

	n, ok := e.inner.ReadFrames(dst)
	for i := 0; i < n*e.format.Channels; i++ {
		dst[i] = sample.Quantize(dst[i], e.format.Encoding)
	}
	if !ok {
		e.exhausted = true
		if n == 0 {
			return 0, false
		}
	}
	return n, true
}

// Format returns the stream format with the target encoding
func (e *Reencode) Format() source.Format {
	return e.format
}

// Remaining is unchanged by re-encoding
func (e *Reencode) Remaining() (int64, bool) {
	return e.inner.Remaining()
}

// Err forwards the inner source's out-of-band error
func (e *Reencode) Err() error {
	if errer, ok := e.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

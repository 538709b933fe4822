package source

import (
	"errors"
	"fmt"

	"mixdeck.click/internal/sample"
)

// Common errors for Source implementations and format validation
var (
	ErrInvalidFormat   = errors.New("invalid stream format")
	ErrSourceExhausted = errors.New("source is exhausted")
)

// Format describes the shape of a sample stream. It is fixed for the
// lifetime of a source; there are no mid-stream format changes.
type Format struct {
	Channels   int             // number of interleaved channels, > 0
	SampleRate int             // frames per second, > 0
	Encoding   sample.Encoding // declared quantization domain
}

// Validate rejects formats that can never describe a real stream.
// All construction-time validation funnels through here so the
// real-time path never has to check.
func (f Format) Validate() error {
	if f.Channels <= 0 {
		return fmt.Errorf("%w: channel count %d must be positive", ErrInvalidFormat, f.Channels)
	}
	if f.SampleRate <= 0 {
		return fmt.Errorf("%w: sample rate %d must be positive", ErrInvalidFormat, f.SampleRate)
	}
	if !f.Encoding.Valid() {
		return fmt.Errorf("%w: encoding %v", ErrInvalidFormat, f.Encoding)
	}
	return nil
}

// String returns a compact human-readable form, e.g. "2ch/44100Hz/s16"
func (f Format) String() string {
	return fmt.Sprintf("%dch/%dHz/%s", f.Channels, f.SampleRate, f.Encoding)
}

// Source is a lazy, pull-based, single-pass sequence of interleaved
// audio frames. One frame is Format().Channels samples.
//
// ReadFrames fills dst with as many whole frames as it can produce
// right now and returns the number of frames written. dst's length is
// always a multiple of the channel count. ok == false means the source
// is exhausted: no frames were written and none will ever follow.
// A short read with ok == true is not exhaustion; the caller decides
// what to do with the shortfall (the mixer pads silence).
//
// Implementations must never block on external I/O inside ReadFrames;
// anything backed by a blocking producer goes through Prefetch first.
// Once exhausted a source stays exhausted.
type Source interface {
	ReadFrames(dst []float64) (n int, ok bool)
	Format() Format
	// Remaining returns the number of frames left, if known.
	Remaining() (frames int64, known bool)
}

// Errer is implemented by sources that can fail out of band, such as
// decoders hitting malformed data. The source still just reports
// exhaustion on its frame path; the control side asks Err afterwards.
type Errer interface {
	Err() error
}

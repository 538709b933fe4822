package source

import (
	"fmt"
	"log/slog"
	"math"
)

// Tone generates an endless sine wave, identical on every channel.
// Used by the play --tone debug path and as a deterministic signal in
// tests.
type Tone struct {
	format    Format
	frequency float64
	amplitude float64
	phase     float64
	step      float64
}

// NewTone creates a sine generator at the given frequency and amplitude
func NewTone(format Format, frequency, amplitude float64) (*Tone, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if frequency <= 0 {
		return nil, fmt.Errorf("%w: tone frequency %f must be positive", ErrInvalidFormat, frequency)
	}
	if amplitude < 0 || amplitude > 1 {
		return nil, fmt.Errorf("%w: tone amplitude %f must be within 0.0-1.0", ErrInvalidFormat, amplitude)
	}

	slog.Debug("creating tone source",
		"format", format.String(),
		"frequency_hz", frequency,
		"amplitude", amplitude)

	return &Tone{
		format:    format,
		frequency: frequency,
		amplitude: amplitude,
		step:      2 * math.Pi * frequency / float64(format.SampleRate),
	}, nil
}

// ReadFrames fills dst with the next stretch of the sine wave
func (t *Tone) ReadFrames(dst []float64) (int, bool) {
	frames := len(dst) / t.format.Channels
	idx := 0
	for i := 0; i < frames; i++ {
		v := t.amplitude * math.Sin(t.phase)
		for c := 0; c < t.format.Channels; c++ {
			dst[idx] = v
			idx++
		}
		t.phase += t.step
		if t.phase > 2*math.Pi {
			t.phase -= 2 * math.Pi
		}
	}
	return frames, true
}

// Format returns the declared stream format
func (t *Tone) Format() Format {
	return t.format
}

// Remaining always reports unknown; a tone never ends
func (t *Tone) Remaining() (int64, bool) {
	return 0, false
}

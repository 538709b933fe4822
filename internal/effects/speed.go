package effects

import (
	"fmt"
	"log/slog"

	"mixdeck.click/internal/convert"
	"mixdeck.click/internal/source"
)

// Speed plays the inner source faster or slower by resampling against
// a synthetic target rate, changing pitch and duration together. It
// rides on the resampler's live ratio, so the factor can be changed
// while playing. The declared format is unchanged: the stream still
// claims the inner rate, it just runs out sooner or later.
type Speed struct {
	resampler *convert.Resample
	format    source.Format
}

// NewSpeed wraps inner with a playback-speed scaler
func NewSpeed(inner source.Source, factor float64) (*Speed, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	format := inner.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}

	// same-rate resampler whose live ratio does all the work
	rs, err := convert.NewResample(inner, format.SampleRate)
	if err != nil {
		return nil, err
	}
	if err := rs.SetRatio(factor); err != nil {
		return nil, fmt.Errorf("invalid speed factor: %w", err)
	}

	slog.Debug("creating speed effect", "format", format.String(), "factor", factor)
	return &Speed{resampler: rs, format: format}, nil
}

// SetFactor updates the live speed factor
func (s *Speed) SetFactor(factor float64) error {
	if err := s.resampler.SetRatio(factor); err != nil {
		return fmt.Errorf("invalid speed factor: %w", err)
	}
	return nil
}

// Factor returns the current speed factor
func (s *Speed) Factor() float64 {
	return s.resampler.Ratio()
}

// ReadFrames delegates to the underlying resampler
func (s *Speed) ReadFrames(dst []float64) (int, bool) {
	return s.resampler.ReadFrames(dst)
}

// Format is unchanged by the speed effect
func (s *Speed) Format() source.Format {
	return s.format
}

// Remaining shrinks or grows with the current factor
func (s *Speed) Remaining() (int64, bool) {
	return s.resampler.Remaining()
}

// Err forwards the inner source's out-of-band error
func (s *Speed) Err() error {
	return s.resampler.Err()
}

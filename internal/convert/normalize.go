package convert

import (
	"log/slog"

	"mixdeck.click/internal/source"
)

// Normalize composes whichever of the three adapters are needed to
// bring src to the target format. Matching dimensions are elided
// entirely, so normalizing an already-conforming source returns it
// unchanged. This is the only constructor the mixer's callers need.
func Normalize(src source.Source, target source.Format) (source.Source, error) {
	if src == nil {
		return nil, source.ErrInvalidFormat
	}
	if err := target.Validate(); err != nil {
		return nil, err
	}
	from := src.Format()
	if err := from.Validate(); err != nil {
		return nil, err
	}

	out := src
	if from.Channels != target.Channels {
		ch, err := NewChannels(out, target.Channels)
		if err != nil {
			return nil, err
		}
		out = ch
	}
	if from.SampleRate != target.SampleRate {
		rs, err := NewResample(out, target.SampleRate)
		if err != nil {
			return nil, err
		}
		out = rs
	}
	if from.Encoding != target.Encoding {
		re, err := NewReencode(out, target.Encoding)
		if err != nil {
			return nil, err
		}
		out = re
	}

	if out == src {
		slog.Debug("normalize is a passthrough", "format", from.String())
	} else {
		slog.Debug("normalized source",
			"from", from.String(),
			"to", target.String())
	}
	return out, nil
}

package decode

import (
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/youpy/go-wav"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// WavDecoder handles WAV audio format decoding
type WavDecoder struct{}

// NewWavDecoder creates a new WAV decoder instance
func NewWavDecoder() *WavDecoder {
	slog.Debug("creating new WAV decoder instance")
	return &WavDecoder{}
}

// Decode validates the RIFF header and returns a streaming source over
// the sample data. Frames are pulled from the reader on demand, so the
// reader must stay open for the life of the source; wrap the result in
// source.NewPrefetch before handing it to anything real-time.
func (d *WavDecoder) Decode(reader io.Reader) (source.Source, error) {
	slog.Debug("starting WAV decode operation")

	wavReader := wav.NewReader(reader)

	format, err := wavReader.Format()
	if err != nil {
		slog.Error("failed to read WAV format", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	slog.Debug("WAV format detected",
		"sample_rate", format.SampleRate,
		"channels", format.NumChannels,
		"bits_per_sample", format.BitsPerSample)

	if format.NumChannels == 0 || format.SampleRate == 0 {
		slog.Error("invalid WAV format parameters",
			"channels", format.NumChannels,
			"sample_rate", format.SampleRate)
		return nil, ErrInvalidData
	}
	if format.NumChannels > 2 {
		slog.Error("unsupported WAV channel count", "channels", format.NumChannels)
		return nil, fmt.Errorf("%w: %d channels", ErrUnsupportedFormat, format.NumChannels)
	}

	var encoding sample.Encoding
	switch format.BitsPerSample {
	case 16:
		encoding = sample.EncodingS16
	case 24:
		encoding = sample.EncodingS24
	case 32:
		encoding = sample.EncodingS32
	default:
		slog.Error("unsupported bit depth", "bits", format.BitsPerSample)
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, format.BitsPerSample)
	}

	streamFormat := source.Format{
		Channels:   int(format.NumChannels),
		SampleRate: int(format.SampleRate),
		Encoding:   encoding,
	}
	if err := streamFormat.Validate(); err != nil {
		return nil, err
	}

	return &wavSource{
		reader: wavReader,
		format: streamFormat,
		scale:  1.0 / float64(int64(1)<<(format.BitsPerSample-1)),
	}, nil
}

// CanDecode checks if this decoder can handle the given filename
func (d *WavDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".wav") || strings.HasSuffix(lower, ".wave")
}

// FormatName returns the name of the format this decoder handles
func (d *WavDecoder) FormatName() string {
	return "WAV"
}

// wavSource pulls interleaved samples from a wav.Reader on demand
type wavSource struct {
	reader    *wav.Reader
	format    source.Format
	scale     float64
	exhausted bool
	err       error
}

func (ws *wavSource) ReadFrames(dst []float64) (int, bool) {
	if ws.exhausted {
		return 0, false
	}
	frames := len(dst) / ws.format.Channels
	if frames == 0 {
		return 0, true
	}

	samples, err := ws.reader.ReadSamples(uint32(frames))
	for i, s := range samples {
		for c := 0; c < ws.format.Channels; c++ {
			var v int
			if c < len(s.Values) {
				v = s.Values[c]
			}
			dst[i*ws.format.Channels+c] = sample.Clamp(float64(v) * ws.scale)
		}
	}

	if err != nil || len(samples) == 0 {
		ws.exhausted = true
		if err != nil && err != io.EOF {
			ws.err = fmt.Errorf("%w: %v", ErrReadFailure, err)
		}
		if len(samples) == 0 {
			return 0, false
		}
	}
	return len(samples), true
}

func (ws *wavSource) Format() source.Format {
	return ws.format
}

// Remaining is unknown: the wav reader does not expose the data chunk
// length in frames
func (ws *wavSource) Remaining() (int64, bool) {
	return 0, false
}

func (ws *wavSource) Err() error {
	return ws.err
}

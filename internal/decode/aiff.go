package decode

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/go-audio/aiff"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// AiffDecoder handles AIFF audio format decoding
type AiffDecoder struct{}

// NewAiffDecoder creates a new AIFF decoder instance
func NewAiffDecoder() *AiffDecoder {
	slog.Debug("creating new AIFF decoder instance")
	return &AiffDecoder{}
}

// FormatName returns the name of the format this decoder handles
func (d *AiffDecoder) FormatName() string {
	return "AIFF"
}

// CanDecode checks if this decoder can handle the given filename
func (d *AiffDecoder) CanDecode(filename string) bool {
	lower := strings.ToLower(filename)
	return strings.HasSuffix(lower, ".aiff") || strings.HasSuffix(lower, ".aif")
}

// Decode reads the whole AIFF file into memory and returns a buffer
// source over it. go-audio/aiff needs a ReadSeeker, so AIFF cannot be
// decoded lazily; files of this format are fully resident.
func (d *AiffDecoder) Decode(reader io.Reader) (source.Source, error) {
	slog.Debug("starting AIFF decode operation")

	data, err := io.ReadAll(reader)
	if err != nil {
		slog.Error("failed to read AIFF data", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if len(data) == 0 {
		slog.Error("empty AIFF data")
		return nil, ErrInvalidData
	}

	decoder := aiff.NewDecoder(bytes.NewReader(data))
	decoder.ReadInfo()

	if !decoder.IsValidFile() {
		slog.Error("invalid AIFF file format")
		return nil, ErrInvalidData
	}

	sampleRate := int(decoder.SampleRate)
	channels := int(decoder.NumChans)
	bitDepth := int(decoder.SampleBitDepth())

	slog.Debug("AIFF format detected",
		"sample_rate", sampleRate,
		"channels", channels,
		"bits_per_sample", bitDepth)

	if channels == 0 || sampleRate == 0 || bitDepth == 0 {
		slog.Error("invalid AIFF format parameters",
			"channels", channels,
			"sample_rate", sampleRate,
			"bit_depth", bitDepth)
		return nil, ErrInvalidData
	}

	var encoding sample.Encoding
	switch bitDepth {
	case 8:
		encoding = sample.EncodingU8
	case 16:
		encoding = sample.EncodingS16
	case 24:
		encoding = sample.EncodingS24
	case 32:
		encoding = sample.EncodingS32
	default:
		slog.Error("unsupported bit depth", "bits", bitDepth)
		return nil, fmt.Errorf("%w: %d bits per sample", ErrUnsupportedFormat, bitDepth)
	}

	pcmBuffer, err := decoder.FullPCMBuffer()
	if err != nil {
		slog.Error("failed to read AIFF samples", "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	if pcmBuffer == nil || len(pcmBuffer.Data) == 0 {
		slog.Error("no audio data found in AIFF file")
		return nil, ErrInvalidData
	}

	// AIFF stores signed big-endian PCM; go-audio hands the samples
	// back as ints at the file's bit depth
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	normalized := make([]float64, len(pcmBuffer.Data))
	for i, v := range pcmBuffer.Data {
		normalized[i] = sample.Clamp(float64(v) * scale)
	}
	// whole frames only: an odd trailing sample run is truncated
	normalized = normalized[:(len(normalized)/channels)*channels]

	streamFormat := source.Format{
		Channels:   channels,
		SampleRate: sampleRate,
		Encoding:   encoding,
	}
	buf, err := source.NewBuffer(streamFormat, normalized)
	if err != nil {
		return nil, err
	}

	slog.Info("AIFF decode completed",
		"frames", len(normalized)/channels,
		"format", streamFormat.String())
	return buf, nil
}

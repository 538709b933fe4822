package decode

import (
	"bytes"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/afero"

	"mixdeck.click/internal/source"
)

// Registry manages audio format decoders and provides format detection
type Registry struct {
	decoders []Decoder
}

// NewRegistry creates a new empty decoder registry
func NewRegistry() *Registry {
	slog.Debug("creating new decoder registry")
	return &Registry{
		decoders: make([]Decoder, 0),
	}
}

// NewDefaultRegistry creates a registry with default WAV, MP3, and AIFF decoders
func NewDefaultRegistry() *Registry {
	registry := NewRegistry()

	registry.Register(NewWavDecoder())
	registry.Register(NewMp3Decoder())
	registry.Register(NewAiffDecoder())

	slog.Info("default decoder registry initialized",
		"supported_formats", registry.SupportedFormats())
	return registry
}

// Register adds a decoder to the registry
func (r *Registry) Register(decoder Decoder) {
	if decoder == nil {
		slog.Warn("attempted to register nil decoder")
		return
	}
	slog.Debug("registering decoder", "format", decoder.FormatName())
	r.decoders = append(r.decoders, decoder)
}

// Decoders returns all registered decoders
func (r *Registry) Decoders() []Decoder {
	return r.decoders
}

// SupportedFormats returns a list of all supported format names
func (r *Registry) SupportedFormats() []string {
	formats := make([]string, 0, len(r.decoders))
	for _, decoder := range r.decoders {
		formats = append(formats, decoder.FormatName())
	}
	return formats
}

// DetectFormat detects the appropriate decoder based on filename extension only
func (r *Registry) DetectFormat(filename string) Decoder {
	if filename == "" {
		return nil
	}
	// registration order is priority order
	for _, decoder := range r.decoders {
		if decoder.CanDecode(filename) {
			slog.Debug("format detected by extension",
				"filename", filename,
				"format", decoder.FormatName())
			return decoder
		}
	}
	slog.Debug("no decoder found for filename", "filename", filename)
	return nil
}

// DetectFormatFromHeader detects format by magic bytes first, falling
// back to the filename extension. header holds the first bytes of the
// file; it is not consumed.
func (r *Registry) DetectFormatFromHeader(filename string, header []byte) Decoder {
	if len(header) == 0 {
		slog.Debug("empty content, using extension fallback")
		return r.DetectFormat(filename)
	}

	mtype := mimetype.Detect(header)
	mimeStr := strings.ToLower(mtype.String())

	slog.Debug("magic byte detection result",
		"filename", filename,
		"detected_mime", mimeStr,
		"bytes_analyzed", len(header))

	var decoder Decoder
	switch {
	case strings.Contains(mimeStr, "wav") || strings.Contains(mimeStr, "wave"):
		decoder = r.findDecoderByFormat("WAV")
	case strings.Contains(mimeStr, "mpeg") || strings.Contains(mimeStr, "mp3"):
		decoder = r.findDecoderByFormat("MP3")
	case strings.Contains(mimeStr, "aiff"):
		decoder = r.findDecoderByFormat("AIFF")
	}

	// magic bytes win over extension when both speak
	if decoder != nil {
		slog.Debug("format detected by magic bytes",
			"filename", filename,
			"format", decoder.FormatName(),
			"mime_type", mimeStr)
		return decoder
	}

	return r.DetectFormat(filename)
}

// findDecoderByFormat finds a decoder by its format name
func (r *Registry) findDecoderByFormat(formatName string) Decoder {
	for _, decoder := range r.decoders {
		if strings.EqualFold(decoder.FormatName(), formatName) {
			return decoder
		}
	}
	return nil
}

// headerProbeBytes is how much of the file the magic-byte sniff sees
const headerProbeBytes = 512

// Decode picks a decoder for the named stream and decodes it. The
// probe bytes are stitched back in front of the reader, so streaming
// decoders see the file from its first byte.
func (r *Registry) Decode(filename string, reader io.Reader) (source.Source, error) {
	header := make([]byte, headerProbeBytes)
	n, err := io.ReadFull(reader, header)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		slog.Error("failed to read header for format detection",
			"filename", filename, "error", err)
		return nil, fmt.Errorf("%w: %v", ErrReadFailure, err)
	}
	header = header[:n]

	decoder := r.DetectFormatFromHeader(filename, header)
	if decoder == nil {
		slog.Error("no decoder for file", "filename", filename)
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFormat, filename)
	}

	src, err := decoder.Decode(io.MultiReader(bytes.NewReader(header), reader))
	if err != nil {
		return nil, fmt.Errorf("decoding %s as %s: %w", filename, decoder.FormatName(), err)
	}

	slog.Info("file decode started",
		"filename", filename,
		"decoder", decoder.FormatName(),
		"format", src.Format().String())
	return src, nil
}

// Stream is an open decoded file: a sample source that owns the file
// handle underneath it. Close releases the handle; reads after Close
// report exhaustion.
type Stream struct {
	source.Source
	name   string
	closer io.Closer
	closed bool
}

// Name returns the path the stream was opened from
func (s *Stream) Name() string {
	return s.name
}

// Err reports the inner decoder's out-of-band error, if any
func (s *Stream) Err() error {
	if errer, ok := s.Source.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

// ReadFrames delegates to the decoded source until Close
func (s *Stream) ReadFrames(dst []float64) (int, bool) {
	if s.closed {
		return 0, false
	}
	return s.Source.ReadFrames(dst)
}

// Close releases the underlying file handle
func (s *Stream) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	if s.closer == nil {
		return nil
	}
	return s.closer.Close()
}

// OpenFile opens path on the given filesystem and decodes it. The
// returned Stream keeps the file open for lazy decoders; callers close
// it when playback of the stream is done.
func (r *Registry) OpenFile(fsys afero.Fs, path string) (*Stream, error) {
	f, err := fsys.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}

	src, err := r.Decode(path, f)
	if err != nil {
		f.Close()
		return nil, err
	}

	return &Stream{Source: src, name: path, closer: f}, nil
}

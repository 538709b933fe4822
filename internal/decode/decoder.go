package decode

import (
	"errors"
	"io"

	"mixdeck.click/internal/source"
)

// Common decoder errors
var (
	ErrInvalidData       = errors.New("invalid audio data")
	ErrReadFailure       = errors.New("failed to read audio data")
	ErrUnsupportedFormat = errors.New("unsupported audio format")
)

// Decoder turns an encoded byte stream into a pull-based sample source.
// Decode validates the container header eagerly and returns a source
// whose Format reflects the file, not a guess; frame data is pulled
// lazily where the container allows it. Mid-stream corruption surfaces
// as exhaustion on the frame path plus an Err on the returned source.
type Decoder interface {
	// Decode reads encoded audio from reader and returns a sample source
	Decode(reader io.Reader) (source.Source, error)

	// CanDecode checks if this decoder can handle the given filename
	CanDecode(filename string) bool

	// FormatName returns the name of the format this decoder handles
	FormatName() string
}

package output

import (
	"errors"

	"mixdeck.click/internal/source"
)

// Common errors for Backend implementations
var (
	ErrBackendClosed       = errors.New("output backend is closed")
	ErrBackendNotOpen      = errors.New("output backend has no open stream")
	ErrAlreadyOpen         = errors.New("output backend already has an open stream")
	ErrEncodingUnsupported = errors.New("device encoding not supported by this backend")
)

// Backend drives a hardware output device. Open negotiates a stream
// for the given device format and wires the source to the device's
// period callback through a Bridge; Start and Stop control the device;
// Close releases it. Implementations own the platform specifics
// (malgo's data callback, oto's reader pull); the Bridge owns the
// format conversion and underrun policy either way.
type Backend interface {
	Open(src source.Source, device source.Format) error
	Start() error
	Stop() error
	Close() error
	IsRunning() bool
	Name() string
}

package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/gen2brain/malgo"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// MalgoBackend plays through miniaudio (malgo): a playback device is
// opened in the negotiated format and its data callback is answered by
// the bridge on every hardware period. This is the default backend on
// every platform malgo supports.
type MalgoBackend struct {
	ctx     *malgo.AllocatedContext
	device  *malgo.Device
	bridge  *Bridge
	running bool
	closed  bool
	mutex   sync.Mutex
}

// NewMalgoBackend creates an unopened malgo backend
func NewMalgoBackend() *MalgoBackend {
	slog.Debug("creating malgo backend")
	return &MalgoBackend{}
}

// Name returns the backend identifier used by config and the factory
func (mb *MalgoBackend) Name() string {
	return "malgo"
}

// malgoFormat maps the sample encoding to malgo's format enum
func malgoFormat(e sample.Encoding) (malgo.FormatType, error) {
	switch e {
	case sample.EncodingU8:
		return malgo.FormatU8, nil
	case sample.EncodingS16:
		return malgo.FormatS16, nil
	case sample.EncodingS24:
		return malgo.FormatS24, nil
	case sample.EncodingS32:
		return malgo.FormatS32, nil
	case sample.EncodingF32:
		return malgo.FormatF32, nil
	default:
		return 0, fmt.Errorf("%w: %v", ErrEncodingUnsupported, e)
	}
}

// Open initializes the context and a playback device in the device
// format, wiring its period callback to a bridge over src
func (mb *MalgoBackend) Open(src source.Source, device source.Format) error {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	if mb.closed {
		return ErrBackendClosed
	}
	if mb.device != nil {
		return ErrAlreadyOpen
	}

	format, err := malgoFormat(device.Encoding)
	if err != nil {
		return err
	}

	bridge, err := NewBridge(src, device)
	if err != nil {
		return fmt.Errorf("building output bridge: %w", err)
	}

	ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, func(message string) {
		slog.Debug("malgo internal", "message", message)
	})
	if err != nil {
		return fmt.Errorf("initializing malgo context: %w", err)
	}

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = format
	deviceConfig.Playback.Channels = uint32(device.Channels)
	deviceConfig.SampleRate = uint32(device.SampleRate)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		// the real-time path: bridge only, no locks, no logging
		Data: func(pOutputSample, pInputSamples []byte, framecount uint32) {
			bridge.Fill(pOutputSample)
		},
	}

	dev, err := malgo.InitDevice(ctx.Context, deviceConfig, callbacks)
	if err != nil {
		ctx.Uninit()
		ctx.Free()
		return fmt.Errorf("initializing playback device: %w", err)
	}

	mb.ctx = ctx
	mb.device = dev
	mb.bridge = bridge

	slog.Info("malgo stream opened",
		"device", device.String(),
		"malgo_format", format)
	return nil
}

// Start begins invoking the period callback
func (mb *MalgoBackend) Start() error {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	if mb.closed {
		return ErrBackendClosed
	}
	if mb.device == nil {
		return ErrBackendNotOpen
	}
	if mb.running {
		return nil
	}

	if err := mb.device.Start(); err != nil {
		return fmt.Errorf("starting playback device: %w", err)
	}
	mb.running = true
	slog.Debug("malgo device started")
	return nil
}

// Stop halts the period callback without releasing the device
func (mb *MalgoBackend) Stop() error {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	if mb.closed {
		return ErrBackendClosed
	}
	if mb.device == nil {
		return ErrBackendNotOpen
	}
	if !mb.running {
		return nil
	}

	if err := mb.device.Stop(); err != nil {
		return fmt.Errorf("stopping playback device: %w", err)
	}
	mb.running = false
	slog.Debug("malgo device stopped")
	return nil
}

// IsRunning reports whether the device callback is live
func (mb *MalgoBackend) IsRunning() bool {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()
	return mb.running
}

// Close releases the device and the context
func (mb *MalgoBackend) Close() error {
	mb.mutex.Lock()
	defer mb.mutex.Unlock()

	if mb.closed {
		slog.Debug("malgo backend already closed")
		return nil
	}
	mb.closed = true
	mb.running = false

	if mb.device != nil {
		mb.device.Uninit()
		mb.device = nil
	}
	if mb.ctx != nil {
		if err := mb.ctx.Uninit(); err != nil {
			slog.Error("failed to uninitialize malgo context", "error", err)
		}
		mb.ctx.Free()
		mb.ctx = nil
	}

	slog.Info("malgo backend closed")
	return nil
}

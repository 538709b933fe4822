package output

import (
	"fmt"
	"log/slog"
	"sync"

	"github.com/ebitengine/oto/v3"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// OtoBackend plays through ebitengine/oto: instead of a period
// callback, oto's player pulls encoded bytes from the bridge's
// io.Reader face on its own schedule. Useful where miniaudio is
// unavailable; oto only speaks u8, s16, and f32.
type OtoBackend struct {
	ctx     *oto.Context
	player  *oto.Player
	bridge  *Bridge
	running bool
	closed  bool
	mutex   sync.Mutex
}

// NewOtoBackend creates an unopened oto backend
func NewOtoBackend() *OtoBackend {
	slog.Debug("creating oto backend")
	return &OtoBackend{}
}

// Name returns the backend identifier used by config and the factory
func (ob *OtoBackend) Name() string {
	return "oto"
}

// otoFormat maps the sample encoding to oto's format enum
func otoFormat(e sample.Encoding) (oto.Format, error) {
	switch e {
	case sample.EncodingU8:
		return oto.FormatUnsignedInt8, nil
	case sample.EncodingS16:
		return oto.FormatSignedInt16LE, nil
	case sample.EncodingF32:
		return oto.FormatFloat32LE, nil
	default:
		return 0, fmt.Errorf("%w: oto cannot play %v", ErrEncodingUnsupported, e)
	}
}

// Open creates the oto context in the device format and a player
// reading from the bridge
func (ob *OtoBackend) Open(src source.Source, device source.Format) error {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	if ob.closed {
		return ErrBackendClosed
	}
	if ob.player != nil {
		return ErrAlreadyOpen
	}

	format, err := otoFormat(device.Encoding)
	if err != nil {
		return err
	}

	bridge, err := NewBridge(src, device)
	if err != nil {
		return fmt.Errorf("building output bridge: %w", err)
	}

	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   device.SampleRate,
		ChannelCount: device.Channels,
		Format:       format,
	})
	if err != nil {
		return fmt.Errorf("initializing oto context: %w", err)
	}
	<-ready

	ob.ctx = ctx
	ob.player = ctx.NewPlayer(bridge)
	ob.bridge = bridge

	slog.Info("oto stream opened", "device", device.String())
	return nil
}

// Start begins pulling from the bridge
func (ob *OtoBackend) Start() error {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	if ob.closed {
		return ErrBackendClosed
	}
	if ob.player == nil {
		return ErrBackendNotOpen
	}
	if ob.running {
		return nil
	}

	ob.player.Play()
	ob.running = true
	slog.Debug("oto player started")
	return nil
}

// Stop pauses the player without releasing it
func (ob *OtoBackend) Stop() error {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	if ob.closed {
		return ErrBackendClosed
	}
	if ob.player == nil {
		return ErrBackendNotOpen
	}
	if !ob.running {
		return nil
	}

	ob.player.Pause()
	ob.running = false
	slog.Debug("oto player paused")
	return nil
}

// IsRunning reports whether the player is pulling audio
func (ob *OtoBackend) IsRunning() bool {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()
	return ob.running
}

// Close releases the player. oto contexts cannot be torn down; the
// player is closed and the context left to the process lifetime.
func (ob *OtoBackend) Close() error {
	ob.mutex.Lock()
	defer ob.mutex.Unlock()

	if ob.closed {
		slog.Debug("oto backend already closed")
		return nil
	}
	ob.closed = true
	ob.running = false

	if ob.player != nil {
		if err := ob.player.Close(); err != nil {
			slog.Error("failed to close oto player", "error", err)
		}
		ob.player = nil
	}

	slog.Info("oto backend closed")
	return nil
}

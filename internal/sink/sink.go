package sink

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"mixdeck.click/internal/convert"
	"mixdeck.click/internal/effects"
	"mixdeck.click/internal/mixer"
	"mixdeck.click/internal/source"
)

// Common sink errors
var (
	ErrSinkClosed = errors.New("sink is stopped")
	ErrQueueFull  = errors.New("sink queue is full")
)

// Config tunes a sink. Zero values select the defaults.
type Config struct {
	// QueueDepth bounds the number of pending sources.
	QueueDepth int
	// EventDepth bounds the track-event channel.
	EventDepth int
	// Volume and Speed are the initial transport parameters; zero
	// means 1.0 for both.
	Volume float64
	Speed  float64
}

func (c Config) withDefaults() Config {
	if c.QueueDepth <= 0 {
		c.QueueDepth = 64
	}
	if c.EventDepth <= 0 {
		c.EventDepth = 64
	}
	if c.Volume == 0 {
		c.Volume = 1.0
	}
	if c.Speed == 0 {
		c.Speed = 1.0
	}
	return c
}

// Sink is the control-plane handle for sequencing playback: a FIFO of
// sources played gapless through one mixer slot, with live transport
// parameters (volume, speed, paused) the mixing tick reads through
// atomics on every pull. All methods are safe to call from any
// application goroutine; none of them ever block the mixing context.
type Sink struct {
	format source.Format
	mix    *mixer.Mixer
	handle mixer.Handle
	queue  *queueSource
	gate   *effects.Gate
	gain   *effects.Gain
	speed  *effects.Speed
	closed atomic.Bool
}

// NewSink installs a new queue-backed slot into the mixer and returns
// its controller. The effect stack between the queue and the mixer is
// queue -> speed -> gain -> pause gate, all in the mixer's format.
func NewSink(m *mixer.Mixer, cfg Config) (*Sink, error) {
	if m == nil {
		return nil, fmt.Errorf("%w: mixer is nil", source.ErrInvalidFormat)
	}
	cfg = cfg.withDefaults()
	format := m.Format()

	queue := newQueueSource(format, cfg.QueueDepth, cfg.EventDepth)

	speed, err := effects.NewSpeed(queue, cfg.Speed)
	if err != nil {
		return nil, fmt.Errorf("building speed stage: %w", err)
	}
	gain, err := effects.NewGain(speed, cfg.Volume)
	if err != nil {
		return nil, fmt.Errorf("building gain stage: %w", err)
	}
	gate, err := effects.NewGate(gain)
	if err != nil {
		return nil, fmt.Errorf("building pause gate: %w", err)
	}

	handle, err := m.Add(gate)
	if err != nil {
		return nil, fmt.Errorf("installing sink slot: %w", err)
	}

	slog.Info("sink installed",
		"format", format.String(),
		"handle", handle,
		"queue_depth", cfg.QueueDepth)

	return &Sink{
		format: format,
		mix:    m,
		handle: handle,
		queue:  queue,
		gate:   gate,
		gain:   gain,
		speed:  speed,
	}, nil
}

// Append enqueues a source for playback. The source is normalized to
// the sink's format first, so any decoder output is accepted. If
// nothing is playing it is promoted at the next mixing tick.
func (s *Sink) Append(src source.Source) error {
	return s.AppendNamed(src, "")
}

// AppendNamed enqueues a source with a name carried through to the
// track events, which is how play tracking attributes history rows.
func (s *Sink) AppendNamed(src source.Source, name string) error {
	if s.closed.Load() {
		return ErrSinkClosed
	}

	normalized, err := convert.Normalize(src, s.format)
	if err != nil {
		return fmt.Errorf("normalizing queued source: %w", err)
	}

	select {
	case s.queue.pending <- entry{src: normalized, name: name}:
		s.queue.queued.Add(1)
	default:
		return fmt.Errorf("%w: %d pending", ErrQueueFull, cap(s.queue.pending))
	}

	slog.Debug("source appended to sink queue",
		"name", name,
		"format", src.Format().String(),
		"queued", s.queue.queued.Load())
	return nil
}

// Skip cuts the current track and promotes the next queued one.
// Skipping with nothing queued just goes idle; it is not an error.
func (s *Sink) Skip() error {
	if s.closed.Load() {
		return ErrSinkClosed
	}
	select {
	case s.queue.cmds <- cmdSkip:
		return nil
	default:
		return ErrQueueFull
	}
}

// Stop clears the queue, ends the current track, and removes the
// mixer slot. The sink cannot be reused afterwards; make a new one.
func (s *Sink) Stop() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}

	select {
	case s.queue.cmds <- cmdStop:
	default:
		// command path jammed; the explicit slot removal below still
		// silences the sink at the next tick
		slog.Warn("sink stop command dropped, relying on slot removal")
	}

	if err := s.mix.Remove(s.handle); err != nil {
		return fmt.Errorf("removing sink slot: %w", err)
	}
	slog.Info("sink stopped", "handle", s.handle)
	return nil
}

// Pause substitutes silence without losing position
func (s *Sink) Pause() {
	s.gate.SetClosed(true)
	slog.Debug("sink paused")
}

// Resume continues from where Pause left off
func (s *Sink) Resume() {
	s.gate.SetClosed(false)
	slog.Debug("sink resumed")
}

// Paused reports whether the pause gate is closed
func (s *Sink) Paused() bool {
	return s.gate.Closed()
}

// SetVolume sets the live gain factor; observed within one tick
func (s *Sink) SetVolume(v float64) error {
	if err := s.gain.SetFactor(v); err != nil {
		return err
	}
	slog.Debug("sink volume changed", "volume", v)
	return nil
}

// Volume returns the current gain factor
func (s *Sink) Volume() float64 {
	return s.gain.Factor()
}

// SetSpeed sets the live playback speed; observed within one tick
func (s *Sink) SetSpeed(v float64) error {
	if err := s.speed.SetFactor(v); err != nil {
		return err
	}
	slog.Debug("sink speed changed", "speed", v)
	return nil
}

// Speed returns the current speed factor
func (s *Sink) Speed() float64 {
	return s.speed.Factor()
}

// Playing reports whether a track is currently installed (it may
// still be paused)
func (s *Sink) Playing() bool {
	return s.queue.playing.Load()
}

// QueueLen returns the number of sources waiting behind the current one
func (s *Sink) QueueLen() int {
	return int(s.queue.queued.Load())
}

// Position returns the elapsed time within the current track, in the
// track's own timeline (speed changes do not warp it)
func (s *Sink) Position() time.Duration {
	frames := s.queue.pos.Load()
	return time.Duration(frames) * time.Second / time.Duration(s.format.SampleRate)
}

// Events returns the channel of track endings. Delivery is best
// effort; the mixing tick never blocks on it.
func (s *Sink) Events() <-chan TrackEvent {
	return s.queue.events
}

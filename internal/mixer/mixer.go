package mixer

import (
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// Common mixer errors, all surfaced on the control side at
// registration time; the tick itself cannot fail
var (
	ErrFormatMismatch = errors.New("source format does not match mixer format")
	ErrMixerFull      = errors.New("mixer slot arena is full")
	ErrBacklog        = errors.New("mixer command channel is full")
)

// Handle is an opaque reference to a mixer input slot. The control
// side only ever holds handles, never slot pointers; the slot itself
// lives on the mixing context.
type Handle uint64

// Reason says why a slot left the mixer
type Reason int

const (
	// ReasonFinished means the source exhausted naturally and drained
	ReasonFinished Reason = iota
	// ReasonStopped means the control side removed the slot explicitly
	ReasonStopped
)

// Event is published on the mixer's event channel when a slot is
// removed. The control context polls these; the tick never blocks to
// deliver one.
type Event struct {
	Handle Handle
	Reason Reason
}

// slot states
const (
	slotActive = iota
	slotDraining
	slotRemoved
)

type slot struct {
	handle Handle
	src    source.Source
	state  int
	drain  int // silent ticks left before a draining slot is removed
}

// commands travel control -> tick over a bounded channel
type command struct {
	add    *slot
	remove Handle
}

// Config tunes the mixer. Zero values select the defaults.
type Config struct {
	// ChunkFrames is the tick granularity: every slot advances by
	// whole chunks of this many frames.
	ChunkFrames int
	// DrainTicks is the number of extra silent chunks a naturally
	// exhausted slot contributes before removal, giving stateful
	// downstream adapters a settle period.
	DrainTicks int
	// MaxSlots bounds the arena so the tick never reallocates it.
	MaxSlots int
	// CommandDepth and EventDepth bound the two channels.
	CommandDepth int
	EventDepth   int
}

func (c Config) withDefaults() Config {
	if c.ChunkFrames <= 0 {
		c.ChunkFrames = 512
	}
	if c.DrainTicks <= 0 {
		c.DrainTicks = 1
	}
	if c.MaxSlots <= 0 {
		c.MaxSlots = 32
	}
	if c.CommandDepth <= 0 {
		c.CommandDepth = 64
	}
	if c.EventDepth <= 0 {
		c.EventDepth = 64
	}
	return c
}

// Mixer sums a dynamic set of same-format sources into one stream. It
// implements source.Source itself: reading from it is the mixing tick.
// With zero inputs it produces silence, never exhaustion, because the
// output device expects a continuous signal.
//
// ReadFrames runs on the real-time context. Everything it touches is
// preallocated; the only cross-context traffic is the bounded command
// channel it drains at chunk boundaries and the atomic slot counter.
type Mixer struct {
	format source.Format
	cfg    Config

	slots    []*slot
	commands chan command
	events   chan Event
	scratch  []float64

	slotCount  atomic.Int64 // control-side admission counter
	nextHandle atomic.Uint64
}

// NewMixer creates a mixer producing streams in the given format
func NewMixer(format source.Format, cfg Config) (*Mixer, error) {
	if err := format.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	slog.Info("creating mixer",
		"format", format.String(),
		"chunk_frames", cfg.ChunkFrames,
		"drain_ticks", cfg.DrainTicks,
		"max_slots", cfg.MaxSlots)

	return &Mixer{
		format:   format,
		cfg:      cfg,
		slots:    make([]*slot, 0, cfg.MaxSlots),
		commands: make(chan command, cfg.CommandDepth),
		events:   make(chan Event, cfg.EventDepth),
		scratch:  make([]float64, cfg.ChunkFrames*format.Channels),
	}, nil
}

// Add registers a source as a new input slot and returns its handle.
// The source must already be in the mixer's exact format; callers
// normalize first. The slot starts contributing no earlier than the
// next chunk boundary.
func (m *Mixer) Add(src source.Source) (Handle, error) {
	if src == nil {
		return 0, fmt.Errorf("%w: source is nil", source.ErrInvalidFormat)
	}
	if src.Format() != m.format {
		return 0, fmt.Errorf("%w: source is %s, mixer is %s",
			ErrFormatMismatch, src.Format(), m.format)
	}

	if m.slotCount.Add(1) > int64(m.cfg.MaxSlots) {
		m.slotCount.Add(-1)
		return 0, fmt.Errorf("%w: %d slots", ErrMixerFull, m.cfg.MaxSlots)
	}

	handle := Handle(m.nextHandle.Add(1))
	sl := &slot{handle: handle, src: src, state: slotActive}

	select {
	case m.commands <- command{add: sl}:
	default:
		m.slotCount.Add(-1)
		return 0, ErrBacklog
	}

	slog.Debug("mixer slot queued", "handle", handle)
	return handle, nil
}

// Remove stops a slot explicitly. It is marked removed at the next
// chunk boundary with no drain period; an unknown or already-removed
// handle is a no-op.
func (m *Mixer) Remove(handle Handle) error {
	select {
	case m.commands <- command{remove: handle}:
	default:
		return ErrBacklog
	}
	slog.Debug("mixer slot removal queued", "handle", handle)
	return nil
}

// Events returns the channel on which slot departures are published.
// Delivery is best effort: if nobody drains the channel, events are
// dropped rather than blocking the tick.
func (m *Mixer) Events() <-chan Event {
	return m.events
}

// applyCommands drains the command channel. Runs at chunk boundaries
// only, so additions and removals never splice into the middle of a
// frame run.
func (m *Mixer) applyCommands() {
	for {
		select {
		case cmd := <-m.commands:
			if cmd.add != nil {
				m.slots = append(m.slots, cmd.add)
				continue
			}
			for _, sl := range m.slots {
				if sl.handle == cmd.remove && sl.state != slotRemoved {
					sl.state = slotRemoved
					m.publish(Event{Handle: sl.handle, Reason: ReasonStopped})
				}
			}
		default:
			return
		}
	}
}

// compact purges removed slots in place, outside the summing loop
func (m *Mixer) compact() {
	kept := m.slots[:0]
	for _, sl := range m.slots {
		if sl.state == slotRemoved {
			m.slotCount.Add(-1)
			continue
		}
		kept = append(kept, sl)
	}
	// clear the tail so dropped slots do not linger past compaction
	for i := len(kept); i < len(m.slots); i++ {
		m.slots[i] = nil
	}
	m.slots = kept
}

// publish delivers an event without ever blocking the tick
func (m *Mixer) publish(ev Event) {
	select {
	case m.events <- ev:
	default:
	}
}

// ReadFrames is the mixing tick. It fills dst completely on every
// call: the sum of all active slots, clamped, or silence where no slot
// has signal. It never reports exhaustion.
func (m *Mixer) ReadFrames(dst []float64) (int, bool) {
	ch := m.format.Channels
	want := len(dst) / ch

	for i := range dst[:want*ch] {
		dst[i] = 0
	}

	done := 0
	for done < want {
		chunk := want - done
		if chunk > m.cfg.ChunkFrames {
			chunk = m.cfg.ChunkFrames
		}

		m.applyCommands()
		m.compact()
		m.mixChunk(dst[done*ch:(done+chunk)*ch], chunk)
		done += chunk
	}
	return want, true
}

// mixChunk advances every slot by exactly chunk frames and sums them
func (m *Mixer) mixChunk(out []float64, chunk int) {
	ch := m.format.Channels
	for _, sl := range m.slots {
		switch sl.state {
		case slotDraining:
			// contributes silence while downstream state settles
			sl.drain--
			if sl.drain <= 0 {
				sl.state = slotRemoved
				m.publish(Event{Handle: sl.handle, Reason: ReasonFinished})
			}
		case slotActive:
			n, ok := sl.src.ReadFrames(m.scratch[:chunk*ch])
			for i := 0; i < n*ch; i++ {
				out[i] = sample.Mix(out[i], m.scratch[i])
			}
			// a short read is padded with silence implicitly; only
			// true exhaustion starts the drain countdown
			if !ok {
				sl.state = slotDraining
				sl.drain = m.cfg.DrainTicks
			}
		}
	}
}

// Format returns the mixer's fixed output format
func (m *Mixer) Format() source.Format {
	return m.format
}

// Remaining is always unknown; the mix never ends
func (m *Mixer) Remaining() (int64, bool) {
	return 0, false
}

// Active returns the number of registered slots, counting those still
// queued or draining. Control-side introspection only.
func (m *Mixer) Active() int {
	return int(m.slotCount.Load())
}

package sink

import (
	"log/slog"
	"sync/atomic"

	"mixdeck.click/internal/source"
)

// TrackReason says how a track ended
type TrackReason int

const (
	// TrackFinished means the source exhausted naturally
	TrackFinished TrackReason = iota
	// TrackSkipped means the control side cut it with Skip
	TrackSkipped
	// TrackStopped means the whole sink was stopped
	TrackStopped
)

// String renders the reason the way play history stores it
func (r TrackReason) String() string {
	switch r {
	case TrackFinished:
		return "finished"
	case TrackSkipped:
		return "skipped"
	case TrackStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// TrackEvent is published when the currently-playing track ends
type TrackEvent struct {
	Name   string
	Frames int64 // frames of the track actually played
	Reason TrackReason
}

type entry struct {
	src  source.Source
	name string
}

type qcmd int

const (
	cmdSkip qcmd = iota
	cmdStop
)

// queueSource is the sink's end of the mixer slot: a source that plays
// the queued entries back to back and silence while the queue is
// empty, so the slot stays alive across queue underflow. All frame
// pulling happens on the mixing context; the control side talks to it
// only through the bounded pending and command channels and the atomic
// counters.
type queueSource struct {
	format   source.Format
	pending  chan entry
	cmds     chan qcmd
	events   chan TrackEvent
	current  source.Source
	name     string
	pos      atomic.Int64
	playing  atomic.Bool
	queued   atomic.Int32
	finished bool
}

func newQueueSource(format source.Format, queueDepth, eventDepth int) *queueSource {
	return &queueSource{
		format:  format,
		pending: make(chan entry, queueDepth),
		cmds:    make(chan qcmd, queueDepth),
		events:  make(chan TrackEvent, eventDepth),
	}
}

// publish delivers a track event without blocking the mixing context
func (q *queueSource) publish(ev TrackEvent) {
	select {
	case q.events <- ev:
	default:
		slog.Warn("track event dropped, consumer not draining", "name", ev.Name)
	}
}

// endCurrent retires the playing track and publishes why
func (q *queueSource) endCurrent(reason TrackReason) {
	if q.current == nil {
		return
	}
	q.publish(TrackEvent{Name: q.name, Frames: q.pos.Load(), Reason: reason})
	q.current = nil
	q.name = ""
	q.pos.Store(0)
	q.playing.Store(false)
}

// promote installs the next queued entry, if any
func (q *queueSource) promote() bool {
	select {
	case e := <-q.pending:
		q.queued.Add(-1)
		q.current = e.src
		q.name = e.name
		q.pos.Store(0)
		q.playing.Store(true)
		return true
	default:
		return false
	}
}

// drainCommands applies control commands at the read boundary, in the
// order they were issued
func (q *queueSource) drainCommands() {
	for {
		select {
		case cmd := <-q.cmds:
			switch cmd {
			case cmdSkip:
				if q.current != nil {
					q.endCurrent(TrackSkipped)
				} else {
					// skip with an empty queue is a no-op, not an error
					q.promote()
					q.endCurrent(TrackSkipped)
				}
			case cmdStop:
				q.endCurrent(TrackStopped)
				// queued-but-never-played entries are dropped silently
				for {
					select {
					case <-q.pending:
						q.queued.Add(-1)
					default:
						q.finished = true
						return
					}
				}
			}
		default:
			return
		}
	}
}

// ReadFrames plays the queue gapless: when the current track exhausts,
// the next one continues within the same read. With nothing queued it
// emits silence and stays alive.
func (q *queueSource) ReadFrames(dst []float64) (int, bool) {
	q.drainCommands()
	if q.finished {
		return 0, false
	}

	ch := q.format.Channels
	want := len(dst) / ch
	done := 0

	for done < want {
		if q.current == nil && !q.promote() {
			break
		}

		n, ok := q.current.ReadFrames(dst[done*ch : want*ch])
		q.pos.Add(int64(n))
		done += n

		if !ok {
			q.endCurrent(TrackFinished)
			continue
		}
		if n == 0 {
			// starved upstream; pad the rest rather than spin
			break
		}
	}

	// silence for whatever no track covered
	for i := done * ch; i < want*ch; i++ {
		dst[i] = 0
	}
	return want, true
}

// Format returns the queue's fixed stream format
func (q *queueSource) Format() source.Format {
	return q.format
}

// Remaining is unknown; the queue plays silence forever if left alone
func (q *queueSource) Remaining() (int64, bool) {
	return 0, false
}

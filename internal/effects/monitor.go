package effects

import (
	"fmt"
	"log/slog"

	"mixdeck.click/internal/source"
)

// Monitor invokes a callback every period frames without touching the
// samples. The callback receives the total frames elapsed so far and
// runs on whatever goroutine is pulling the stream — on the real-time
// path that means it must not block or allocate; position counters and
// event hooks are the intended use.
type Monitor struct {
	inner     source.Source
	format    source.Format
	period    int64
	elapsed   int64
	nextFire  int64
	callback  func(elapsedFrames int64)
	exhausted bool
}

// NewMonitor wraps inner with a periodic position callback
func NewMonitor(inner source.Source, period int64, callback func(elapsedFrames int64)) (*Monitor, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner source is nil", source.ErrInvalidFormat)
	}
	format := inner.Format()
	if err := format.Validate(); err != nil {
		return nil, err
	}
	if period <= 0 {
		return nil, fmt.Errorf("%w: monitor period %d frames must be positive", source.ErrInvalidFormat, period)
	}
	if callback == nil {
		return nil, fmt.Errorf("%w: monitor callback is nil", source.ErrInvalidFormat)
	}

	slog.Debug("creating monitor effect", "format", format.String(), "period_frames", period)
	return &Monitor{
		inner:    inner,
		format:   format,
		period:   period,
		nextFire: period,
		callback: callback,
	}, nil
}

// ReadFrames passes frames through unmodified and fires the callback
// for every period boundary the read crossed
func (m *Monitor) ReadFrames(dst []float64) (int, bool) {
	if m.exhausted {
		return 0, false
	}

	n, ok := m.inner.ReadFrames(dst)
	m.elapsed += int64(n)
	for m.elapsed >= m.nextFire {
		m.callback(m.nextFire)
		m.nextFire += m.period
	}

	if !ok {
		m.exhausted = true
		if n == 0 {
			return 0, false
		}
	}
	return n, true
}

// Format is unchanged by monitoring
func (m *Monitor) Format() source.Format {
	return m.format
}

// Remaining is unchanged by monitoring
func (m *Monitor) Remaining() (int64, bool) {
	return m.inner.Remaining()
}

// Err forwards the inner source's out-of-band error
func (m *Monitor) Err() error {
	if errer, ok := m.inner.(source.Errer); ok {
		return errer.Err()
	}
	return nil
}

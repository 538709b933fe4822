package cli

import (
	"log/slog"
	"os"

	"golang.org/x/term"

	"mixdeck.click/internal/sink"
)

// volumeStep is how much one +/- keypress moves the gain
const volumeStep = 0.1

// startKeyReader pumps single keypresses from stdin into a channel.
// The goroutine exits when stdin errors out; in raw mode that happens
// when the terminal is restored and the process is on its way down.
func startKeyReader() <-chan byte {
	keys := make(chan byte, 8)
	go func() {
		defer close(keys)
		buf := make([]byte, 1)
		for {
			n, err := os.Stdin.Read(buf)
			if err != nil {
				return
			}
			if n == 1 {
				keys <- buf[0]
			}
		}
	}()
	return keys
}

// enableRawKeys puts the controlling terminal into raw mode for
// transport keys. Returns a restore func, or nil when stdin is not an
// interactive terminal.
func (c *CLI) enableRawKeys() func() {
	fd := int(os.Stdin.Fd())
	if !c.isInteractiveTerminal(fd) {
		return nil
	}
	state, err := term.MakeRaw(fd)
	if err != nil {
		slog.Warn("failed to enable raw terminal mode", "error", err)
		return nil
	}
	slog.Debug("transport keys enabled", "fd", fd)
	return func() {
		if err := term.Restore(fd, state); err != nil {
			slog.Warn("failed to restore terminal mode", "error", err)
		}
	}
}

// handleKey applies one transport keypress to the sink. Returns true
// when the key asks to quit playback.
func handleKey(key byte, snk *sink.Sink) bool {
	switch key {
	case 'q', 'Q', 3: // q or Ctrl-C
		slog.Debug("quit key pressed")
		return true
	case ' ':
		if snk.Paused() {
			snk.Resume()
		} else {
			snk.Pause()
		}
	case 's', 'n':
		if err := snk.Skip(); err != nil {
			slog.Warn("skip key failed", "error", err)
		}
	case '+', '=':
		v := snk.Volume() + volumeStep
		if v > 2.0 {
			v = 2.0
		}
		if err := snk.SetVolume(v); err != nil {
			slog.Warn("volume key failed", "error", err)
		}
	case '-', '_':
		v := snk.Volume() - volumeStep
		if v < 0 {
			v = 0
		}
		if err := snk.SetVolume(v); err != nil {
			slog.Warn("volume key failed", "error", err)
		}
	}
	return false
}

package cli

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"

	"mixdeck.click/internal/config"
	"mixdeck.click/internal/decode"
	"mixdeck.click/internal/mixer"
	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/sink"
	"mixdeck.click/internal/source"
	"mixdeck.click/internal/tracking"
)

// prefetchDepth is how many read-ahead blocks may sit buffered between
// the file reader and the mixer
const prefetchDepth = 4

// uniqueTrackName disambiguates repeated paths so every append gets its
// own event identity and its own stream handle
func uniqueTrackName(seen map[string]int, path string) string {
	seen[path]++
	if seen[path] == 1 {
		return path
	}
	return fmt.Sprintf("%s #%d", path, seen[path])
}

// newPlayCommand creates the play subcommand
func newPlayCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "play [files...]",
		Short: "Play audio files gapless through the mixer",
		Long:  "Decodes the given files and plays them back to back through one mixer slot. Formats are detected by magic bytes with an extension fallback.",
		Args:  cobra.ArbitraryArgs,
		RunE:  runPlayE,
	}
	cmd.Flags().Float64("tone", 0, "Play a sine test tone at this frequency in Hz instead of files")
	cmd.Flags().Float64("tone-seconds", 2.0, "Test tone duration in seconds")
	return cmd
}

// runPlayE is the play entrypoint, shared with the bare root command
func runPlayE(cmd *cobra.Command, args []string) error {
	cli := cliFromContext(cmd.Context())
	if cli == nil {
		return fmt.Errorf("internal error: CLI instance not available")
	}
	cli.initializeSystems()

	cfg, err := loadAndValidateConfig(cmd, cli)
	if err != nil {
		return err
	}
	setupLogging(cfg, cmd.ErrOrStderr())

	toneFreq, _ := cmd.Flags().GetFloat64("tone")
	toneSeconds, _ := cmd.Flags().GetFloat64("tone-seconds")
	silent, _ := cmd.Flags().GetBool("silent")

	if toneFreq == 0 && len(args) == 0 {
		cmd.PrintErrln("Error: nothing to play, give file paths or --tone")
		return fmt.Errorf("nothing to play")
	}

	if silent {
		return cli.reportFiles(cmd, args)
	}

	cli.initializeTracking(cfg)
	return cli.play(cmd, cfg, args, toneFreq, toneSeconds)
}

// reportFiles is the --silent path: decode headers and report formats
// without touching any audio device
func (c *CLI) reportFiles(cmd *cobra.Command, paths []string) error {
	failures := 0
	for _, path := range paths {
		stream, err := c.registry.OpenFile(c.configManager.Fs(), path)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			failures++
			continue
		}
		format := stream.Format()
		if rem, known := stream.Remaining(); known {
			seconds := float64(rem) / float64(format.SampleRate)
			cmd.Printf("%s: %s, %.1fs\n", path, format.String(), seconds)
		} else {
			cmd.Printf("%s: %s\n", path, format.String())
		}
		stream.Close()
	}
	if failures == len(paths) && len(paths) > 0 {
		return fmt.Errorf("no playable files")
	}
	return nil
}

// play builds the engine, enqueues everything, and pumps events until
// every track has ended
func (c *CLI) play(cmd *cobra.Command, cfg *config.Config, paths []string, toneFreq, toneSeconds float64) error {
	deviceFormat, err := c.configManager.DeviceFormat(cfg)
	if err != nil {
		return err
	}
	// mixing happens in the float domain; the bridge quantizes to the
	// device encoding at the very end
	mixFormat := source.Format{
		Channels:   deviceFormat.Channels,
		SampleRate: deviceFormat.SampleRate,
		Encoding:   sample.EncodingF32,
	}

	mix, err := mixer.NewMixer(mixFormat, mixer.Config{
		ChunkFrames: cfg.ChunkFrames,
		DrainTicks:  cfg.DrainTicks,
	})
	if err != nil {
		return fmt.Errorf("building mixer: %w", err)
	}

	snk, err := sink.NewSink(mix, sink.Config{
		Volume: cfg.Volume,
		Speed:  cfg.Speed,
	})
	if err != nil {
		return fmt.Errorf("building sink: %w", err)
	}

	expected := 0
	streams := make(map[string]*decode.Stream)
	defer func() {
		for _, stream := range streams {
			stream.Close()
		}
	}()

	var toneTimer <-chan time.Time
	if toneFreq > 0 {
		tone, err := source.NewTone(mixFormat, toneFreq, 0.5)
		if err != nil {
			return fmt.Errorf("building test tone: %w", err)
		}
		name := fmt.Sprintf("tone %.0f Hz", toneFreq)
		if err := snk.AppendNamed(tone, name); err != nil {
			return err
		}
		toneTimer = time.After(time.Duration(toneSeconds * float64(time.Second)))
		expected++
	}

	prefetchFrames := cfg.PrefetchFrames
	if prefetchFrames == 0 {
		prefetchFrames = c.configManager.DefaultConfig().PrefetchFrames
	}

	seen := make(map[string]int)
	for _, path := range paths {
		stream, err := c.registry.OpenFile(c.configManager.Fs(), path)
		if err != nil {
			cmd.PrintErrf("%s: %v\n", path, err)
			continue
		}
		prefetched, err := source.NewPrefetch(stream, prefetchFrames, prefetchDepth)
		if err != nil {
			stream.Close()
			cmd.PrintErrf("%s: %v\n", path, err)
			continue
		}
		name := uniqueTrackName(seen, path)
		if err := snk.AppendNamed(prefetched, name); err != nil {
			prefetched.Close()
			stream.Close()
			cmd.PrintErrf("%s: %v\n", path, err)
			continue
		}
		streams[name] = stream
		expected++
	}

	if expected == 0 {
		return fmt.Errorf("no playable files")
	}

	backend, err := c.backendFactory.CreateBackend(cfg.Backend)
	if err != nil {
		return fmt.Errorf("creating output backend: %w", err)
	}
	defer backend.Close()

	if err := backend.Open(mix, deviceFormat); err != nil {
		return fmt.Errorf("opening output stream: %w", err)
	}
	if err := backend.Start(); err != nil {
		return fmt.Errorf("starting output stream: %w", err)
	}

	slog.Info("playback started",
		"tracks", expected,
		"backend", backend.Name(),
		"device", deviceFormat.String())

	interactive := c.isInteractiveTerminal(int(os.Stdout.Fd()))
	ticker := time.NewTicker(200 * time.Millisecond)
	defer ticker.Stop()

	// transport keys only when stdin is a real terminal
	eol := "\n"
	var keys <-chan byte
	if restore := c.enableRawKeys(); restore != nil {
		defer restore()
		keys = startKeyReader()
		eol = "\r\n" // raw mode disables output post-processing
	}

	done := 0
	quit := false
	for done < expected && !quit {
		select {
		case ev := <-snk.Events():
			done++
			if interactive {
				cmd.Printf("\r\033[K")
			}
			seconds := float64(ev.Frames) / float64(mixFormat.SampleRate)
			cmd.Printf("%s: %.1fs (%s)%s", ev.Name, seconds, ev.Reason, eol)
			if stream, ok := streams[ev.Name]; ok {
				if decodeErr := stream.Err(); decodeErr != nil {
					cmd.PrintErrf("%s: playback cut short: %v%s", ev.Name, decodeErr, eol)
				}
				stream.Close()
				delete(streams, ev.Name)
			}
			c.recordPlay(ev, mixFormat.SampleRate)

		case <-toneTimer:
			toneTimer = nil
			if err := snk.Skip(); err != nil {
				slog.Warn("failed to end test tone", "error", err)
			}

		case key, ok := <-keys:
			if !ok {
				keys = nil
				continue
			}
			quit = handleKey(key, snk)

		case <-ticker.C:
			if interactive {
				paused := ""
				if snk.Paused() {
					paused = " [paused]"
				}
				cmd.Printf("\rplaying %6.1fs%s ", snk.Position().Seconds(), paused)
			}
		}
	}

	if err := snk.Stop(); err != nil {
		slog.Warn("sink stop failed", "error", err)
	}
	if err := backend.Stop(); err != nil {
		slog.Warn("backend stop failed", "error", err)
	}

	slog.Info("playback finished", "tracks", done)
	return nil
}

// recordPlay writes one history row; tracking failures never interrupt
// playback
func (c *CLI) recordPlay(ev sink.TrackEvent, sampleRate int) {
	if c.recorder == nil {
		return
	}
	played := time.Duration(float64(ev.Frames) / float64(sampleRate) * float64(time.Second))
	_, err := c.recorder.Record(tracking.Play{
		StartedAt:  time.Now().Add(-played),
		Path:       ev.Name,
		SampleRate: sampleRate,
		Frames:     ev.Frames,
		Completed:  ev.Reason == sink.TrackFinished,
		Reason:     ev.Reason.String(),
	})
	if err != nil {
		slog.Error("failed to record play", "name", ev.Name, "error", err)
	}
}

package cli

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"mixdeck.click/internal/config"
	"mixdeck.click/internal/decode"
	"mixdeck.click/internal/output"
	"mixdeck.click/internal/tracking"
)

const Version = "0.3.0"

// CLI represents the command-line interface
type CLI struct {
	rootCmd          *cobra.Command
	configManager    *config.Manager
	registry         *decode.Registry
	backendFactory   output.BackendFactory
	terminalDetector TerminalDetector
	trackingDB       *sql.DB
	recorder         *tracking.Recorder
}

// NewCLI creates a new CLI instance
func NewCLI() *CLI {
	slog.Debug("creating new CLI instance")

	rootCmd := &cobra.Command{
		Use:   "mixdeck [files...]",
		Short: "Gapless audio player",
		Long:  "Mixdeck decodes audio files and plays them gapless through a real-time software mixer, with live volume, speed, pause, and skip control.",
		Args:  cobra.ArbitraryArgs,
		RunE:  runPlayE, // bare `mixdeck song.mp3` behaves like `mixdeck play song.mp3`
	}

	rootCmd.AddCommand(newPlayCommand())
	rootCmd.AddCommand(newFormatsCommand())
	rootCmd.AddCommand(newHistoryCommand())

	rootCmd.PersistentFlags().String("config", "", "Path to config file")
	rootCmd.PersistentFlags().String("volume", "", "Playback volume (0.0 and up)")
	rootCmd.PersistentFlags().String("speed", "", "Playback speed multiplier (> 0)")
	rootCmd.PersistentFlags().String("backend", "", "Output backend (auto, malgo, oto)")
	rootCmd.PersistentFlags().Bool("silent", false, "Silent mode - decode and report, no audio playback")

	rootCmd.Flags().BoolP("version", "v", false, "Show version information")

	return &CLI{
		rootCmd: rootCmd,
		// Lazy initialization - only create subsystems when a command needs them
	}
}

// contextWithCLI stores CLI instance in context for command handlers
func contextWithCLI(cli *CLI) context.Context {
	return context.WithValue(context.Background(), "cli", cli)
}

// cliFromContext extracts CLI instance from context
func cliFromContext(ctx context.Context) *CLI {
	if cli, ok := ctx.Value("cli").(*CLI); ok {
		return cli
	}
	return nil
}

// Run executes the CLI with the given arguments and I/O streams
func (c *CLI) Run(args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	slog.Debug("CLI run started", "args", args)

	// Version never touches the audio or database subsystems
	if len(args) > 1 && (args[1] == "--version" || args[1] == "-v") {
		fmt.Fprintf(stdout, "mixdeck version %s\nGapless audio player\n", Version)
		return 0
	}

	c.initializeSystems()

	defer func() {
		if c.trackingDB != nil {
			if err := c.trackingDB.Close(); err != nil {
				slog.Error("error closing tracking database", "error", err)
			}
		}
	}()

	c.rootCmd.SetArgs(args[1:]) // Skip program name
	c.rootCmd.SetIn(stdin)
	c.rootCmd.SetOut(stdout)
	c.rootCmd.SetErr(stderr)
	c.rootCmd.SetContext(contextWithCLI(c))

	if err := c.rootCmd.Execute(); err != nil {
		slog.Error("cobra execution failed", "error", err)
		return 1
	}
	return 0
}

// initializeSystems wires the default collaborators for anything a
// test has not already injected
func (c *CLI) initializeSystems() {
	if c.configManager == nil {
		c.configManager = config.NewManager()
	}
	if c.registry == nil {
		c.registry = decode.NewDefaultRegistry()
	}
	if c.backendFactory == nil {
		c.backendFactory = output.NewBackendFactory()
	}
	if c.terminalDetector == nil {
		c.terminalDetector = &DefaultTerminalDetector{}
	}
}

// loadAndValidateConfig loads configuration from flags and files,
// applies overrides, and validates the result
func loadAndValidateConfig(cmd *cobra.Command, cli *CLI) (*config.Config, error) {
	configFile, _ := cmd.Flags().GetString("config")
	volumeStr, _ := cmd.Flags().GetString("volume")
	speedStr, _ := cmd.Flags().GetString("speed")
	backendFlag, _ := cmd.Flags().GetString("backend")

	var cfg *config.Config
	var err error
	if configFile != "" {
		cfg, err = cli.configManager.LoadFromFile(configFile)
		if err != nil {
			slog.Warn("config file not usable, using defaults", "file", configFile, "error", err)
			cfg = cli.configManager.DefaultConfig()
		}
	} else {
		cfg, err = cli.configManager.LoadConfig()
		if err != nil {
			cmd.PrintErrf("Error loading config: %v\n", err)
			return nil, fmt.Errorf("error loading config: %w", err)
		}
	}

	cfg = cli.configManager.ApplyEnvironmentOverrides(cfg)

	if volumeStr != "" {
		vol, err := strconv.ParseFloat(volumeStr, 64)
		if err != nil {
			cmd.PrintErrf("Error: invalid volume value '%s': %v\n", volumeStr, err)
			return nil, fmt.Errorf("invalid volume value '%s': %w", volumeStr, err)
		}
		cfg.Volume = vol
		slog.Debug("volume override applied", "value", vol)
	}

	if speedStr != "" {
		speed, err := strconv.ParseFloat(speedStr, 64)
		if err != nil {
			cmd.PrintErrf("Error: invalid speed value '%s': %v\n", speedStr, err)
			return nil, fmt.Errorf("invalid speed value '%s': %w", speedStr, err)
		}
		cfg.Speed = speed
		slog.Debug("speed override applied", "value", speed)
	}

	if backendFlag != "" {
		cfg.Backend = backendFlag
		slog.Debug("backend override applied", "value", backendFlag)
	}

	if err := cli.configManager.Validate(cfg); err != nil {
		cmd.PrintErrf("Error: invalid configuration: %v\n", err)
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// setupLogging configures slog with file logging when enabled
func setupLogging(cfg *config.Config, stderrWriter io.Writer) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.LogLevel)); err != nil {
		level = slog.LevelInfo
	}

	// A test may have installed a more verbose logger already; keep it
	currentHandler := slog.Default().Handler()
	if textHandler, ok := currentHandler.(*slog.TextHandler); ok {
		if textHandler.Enabled(context.Background(), slog.LevelDebug) && level > slog.LevelDebug {
			slog.Debug("preserving existing verbose logger setup", "config_level", level.String())
			return
		}
	}

	writers := []io.Writer{stderrWriter}

	if cfg.FileLogging != nil && cfg.FileLogging.Enabled {
		logFilePath := config.NewManager().ResolveLogFilePath(cfg.FileLogging.Filename)

		logDir := filepath.Dir(logFilePath)
		if err := os.MkdirAll(logDir, 0755); err != nil {
			slog.Error("failed to create log directory", "path", logDir, "error", err)
			// continue without file logging rather than failing
		} else {
			fileWriter := &lumberjack.Logger{
				Filename:   logFilePath,
				MaxSize:    cfg.FileLogging.MaxSizeMB,
				MaxBackups: cfg.FileLogging.MaxBackups,
				MaxAge:     cfg.FileLogging.MaxAgeDays,
				Compress:   cfg.FileLogging.Compress,
			}
			writers = append(writers, fileWriter)
			slog.Debug("file logging enabled", "path", logFilePath)
		}
	}

	handler := slog.NewTextHandler(io.MultiWriter(writers...), &slog.HandlerOptions{
		Level: level,
	})
	slog.SetDefault(slog.New(handler))

	slog.Debug("logging setup completed",
		"level", level.String(),
		"writers", len(writers))
}

// initializeTracking opens the play-history database if enabled.
// Failure degrades gracefully: playback works, history is just not
// written.
func (c *CLI) initializeTracking(cfg *config.Config) {
	if c.trackingDB != nil {
		return
	}
	if cfg.Tracking == nil || !cfg.Tracking.Enabled {
		slog.Debug("play tracking disabled")
		return
	}

	dbPath := cfg.Tracking.DatabasePath
	if dbPath == "" {
		var err error
		dbPath, err = tracking.DefaultDatabasePath()
		if err != nil {
			slog.Error("failed to resolve history database path, continuing without tracking", "error", err)
			return
		}
	}

	db, err := tracking.NewDatabase(dbPath)
	if err != nil {
		slog.Error("failed to open history database, continuing without tracking",
			"path", dbPath, "error", err)
		return
	}

	c.trackingDB = db
	c.recorder = tracking.NewRecorder(db)
	slog.Debug("play tracking initialized", "path", dbPath)
}

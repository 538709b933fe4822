package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/spf13/afero"

	"mixdeck.click/internal/sample"
	"mixdeck.click/internal/source"
)

// FileLoggingConfig represents file-based logging configuration
type FileLoggingConfig struct {
	Enabled    bool   `json:"enabled"`      // Whether file logging is enabled
	Filename   string `json:"filename"`     // Log file path (empty = XDG cache path)
	MaxSizeMB  int    `json:"max_size_mb"`  // Max file size in MB before rotation
	MaxBackups int    `json:"max_backups"`  // Max number of backup files to keep
	MaxAgeDays int    `json:"max_age_days"` // Max age in days before deletion
	Compress   bool   `json:"compress"`     // Whether to compress rotated files
}

// DeviceConfig describes the hardware output stream to negotiate
type DeviceConfig struct {
	Channels   int    `json:"channels"`    // Output channel count
	SampleRate int    `json:"sample_rate"` // Output rate in Hz
	Encoding   string `json:"encoding"`    // u8, s16, s24, s32, f32
}

// TrackingConfig controls the play-history database
type TrackingConfig struct {
	Enabled      bool   `json:"enabled"`       // Whether play tracking is enabled
	DatabasePath string `json:"database_path"` // SQLite path (empty = XDG data path)
}

// Config represents mixdeck configuration
type Config struct {
	Volume         float64            `json:"volume"`                 // Playback gain (0.0 and up, clamped at the samples)
	Speed          float64            `json:"speed"`                  // Playback speed multiplier (> 0)
	Backend        string             `json:"backend"`                // Output backend (auto, malgo, oto)
	Device         *DeviceConfig      `json:"device,omitempty"`       // Hardware stream format
	ChunkFrames    int                `json:"chunk_frames"`           // Mixer tick granularity in frames
	DrainTicks     int                `json:"drain_ticks"`            // Silent chunks before slot removal
	PrefetchFrames int                `json:"prefetch_frames"`        // File read-ahead block size in frames
	LogLevel       string             `json:"log_level"`              // Log level (debug, info, warn, error)
	FileLogging    *FileLoggingConfig `json:"file_logging,omitempty"` // File logging configuration
	Tracking       *TrackingConfig    `json:"tracking,omitempty"`     // Play history configuration
}

// Manager handles loading, saving, and validating configuration
type Manager struct {
	fs afero.Fs
}

// NewManager creates a configuration manager over the real filesystem
func NewManager() *Manager {
	return NewManagerWithFs(afero.NewOsFs())
}

// NewManagerWithFs creates a configuration manager over the given
// filesystem; tests hand in a memory filesystem
func NewManagerWithFs(fsys afero.Fs) *Manager {
	slog.Debug("creating new config manager")
	return &Manager{fs: fsys}
}

// Fs returns the filesystem the manager reads from
func (m *Manager) Fs() afero.Fs {
	return m.fs
}

// DefaultConfig returns the default configuration
func (m *Manager) DefaultConfig() *Config {
	cfg := &Config{
		Volume:  1.0,
		Speed:   1.0,
		Backend: "auto",
		Device: &DeviceConfig{
			Channels:   2,
			SampleRate: 44100,
			Encoding:   "f32",
		},
		ChunkFrames:    512,
		DrainTicks:     1,
		PrefetchFrames: 4096,
		LogLevel:       "warn",
		FileLogging: &FileLoggingConfig{
			Enabled:    false,
			Filename:   "",
			MaxSizeMB:  10,
			MaxBackups: 5,
			MaxAgeDays: 30,
			Compress:   true,
		},
		Tracking: &TrackingConfig{
			Enabled:      true,
			DatabasePath: "",
		},
	}

	slog.Debug("generated default config",
		"volume", cfg.Volume,
		"speed", cfg.Speed,
		"backend", cfg.Backend,
		"log_level", cfg.LogLevel)
	return cfg
}

// LoadFromFile loads configuration from a specific file
func (m *Manager) LoadFromFile(filePath string) (*Config, error) {
	slog.Debug("loading config from file", "file_path", filePath)

	data, err := afero.ReadFile(m.fs, filePath)
	if err != nil {
		slog.Error("failed to read config file", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unknown fields land on defaults so partial files are usable
	config := m.DefaultConfig()
	if err := json.Unmarshal(data, config); err != nil {
		slog.Error("failed to parse config JSON", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	if err := m.Validate(config); err != nil {
		slog.Error("config validation failed", "file_path", filePath, "error", err)
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	slog.Debug("config loaded successfully",
		"file_path", filePath,
		"volume", config.Volume,
		"backend", config.Backend)
	return config, nil
}

// SaveToFile saves configuration to a specific file
func (m *Manager) SaveToFile(config *Config, filePath string) error {
	slog.Debug("saving config to file", "file_path", filePath)

	if err := m.Validate(config); err != nil {
		return fmt.Errorf("cannot save invalid config: %w", err)
	}

	dir := filepath.Dir(filePath)
	if err := m.fs.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(config, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := afero.WriteFile(m.fs, filePath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	slog.Info("config saved successfully", "file_path", filePath)
	return nil
}

// LoadConfig loads configuration using XDG path discovery, falling
// back to defaults when no file is found
func (m *Manager) LoadConfig() (*Config, error) {
	configPaths := ConfigPaths("config.json")
	slog.Debug("searching for config file", "paths", configPaths)

	for _, configPath := range configPaths {
		if ok, _ := afero.Exists(m.fs, configPath); ok {
			slog.Debug("found config file", "path", configPath)
			return m.LoadFromFile(configPath)
		}
	}

	slog.Debug("no config file found, using defaults")
	return m.DefaultConfig(), nil
}

// Validate validates configuration values
func (m *Manager) Validate(config *Config) error {
	var errors []string

	if config.Volume < 0.0 {
		errors = append(errors, fmt.Sprintf("volume must be >= 0.0, got %f", config.Volume))
	}
	if config.Speed <= 0.0 {
		errors = append(errors, fmt.Sprintf("speed must be > 0.0, got %f", config.Speed))
	}

	if config.LogLevel != "" {
		validLogLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLogLevels {
			if config.LogLevel == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("invalid log level '%s', must be one of: %s",
				config.LogLevel, strings.Join(validLogLevels, ", ")))
		}
	}

	if !m.IsValidBackend(config.Backend) {
		errors = append(errors, fmt.Sprintf("invalid backend '%s', must be one of: %s",
			config.Backend, strings.Join(m.SupportedBackends(), ", ")))
	}

	if config.Device != nil {
		if _, err := m.DeviceFormat(config); err != nil {
			errors = append(errors, err.Error())
		}
	}

	if config.ChunkFrames < 0 {
		errors = append(errors, fmt.Sprintf("chunk_frames must be >= 0, got %d", config.ChunkFrames))
	}
	if config.DrainTicks < 0 {
		errors = append(errors, fmt.Sprintf("drain_ticks must be >= 0, got %d", config.DrainTicks))
	}
	if config.PrefetchFrames < 0 {
		errors = append(errors, fmt.Sprintf("prefetch_frames must be >= 0, got %d", config.PrefetchFrames))
	}

	if config.FileLogging != nil {
		fl := config.FileLogging
		if fl.MaxSizeMB < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_size_mb must be >= 0, got %d", fl.MaxSizeMB))
		}
		if fl.MaxBackups < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_backups must be >= 0, got %d", fl.MaxBackups))
		}
		if fl.MaxAgeDays < 0 {
			errors = append(errors, fmt.Sprintf("file logging max_age_days must be >= 0, got %d", fl.MaxAgeDays))
		}
	}

	if len(errors) > 0 {
		errMsg := strings.Join(errors, "; ")
		slog.Error("config validation failed", "errors", errMsg)
		return fmt.Errorf("config validation failed: %s", errMsg)
	}
	return nil
}

// DeviceFormat resolves the configured device block into a stream
// format, using the defaults for any unset field
func (m *Manager) DeviceFormat(config *Config) (source.Format, error) {
	device := config.Device
	if device == nil {
		device = m.DefaultConfig().Device
	}

	encoding, err := sample.ParseEncoding(device.Encoding)
	if err != nil {
		return source.Format{}, fmt.Errorf("invalid device encoding '%s'", device.Encoding)
	}

	format := source.Format{
		Channels:   device.Channels,
		SampleRate: device.SampleRate,
		Encoding:   encoding,
	}
	if err := format.Validate(); err != nil {
		return source.Format{}, fmt.Errorf("invalid device format: %v", err)
	}
	return format, nil
}

// ApplyEnvironmentOverrides applies environment variable overrides to config
func (m *Manager) ApplyEnvironmentOverrides(config *Config) *Config {
	result := *config

	if volStr := os.Getenv("MIXDECK_VOLUME"); volStr != "" {
		if vol, err := strconv.ParseFloat(volStr, 64); err == nil {
			result.Volume = vol
			slog.Debug("applied volume override from environment", "value", vol)
		} else {
			slog.Warn("invalid MIXDECK_VOLUME environment variable", "value", volStr, "error", err)
		}
	}

	if speedStr := os.Getenv("MIXDECK_SPEED"); speedStr != "" {
		if speed, err := strconv.ParseFloat(speedStr, 64); err == nil {
			result.Speed = speed
			slog.Debug("applied speed override from environment", "value", speed)
		} else {
			slog.Warn("invalid MIXDECK_SPEED environment variable", "value", speedStr, "error", err)
		}
	}

	if backend := os.Getenv("MIXDECK_BACKEND"); backend != "" {
		if m.IsValidBackend(backend) {
			result.Backend = backend
			slog.Debug("applied backend override from environment", "value", backend)
		} else {
			slog.Warn("invalid MIXDECK_BACKEND environment variable", "value", backend)
		}
	}

	if logLevel := os.Getenv("MIXDECK_LOG_LEVEL"); logLevel != "" {
		result.LogLevel = logLevel
		slog.Debug("applied log level override from environment", "value", logLevel)
	}

	return &result
}

// SupportedBackends returns all configurable backend names
func (m *Manager) SupportedBackends() []string {
	return []string{"auto", "malgo", "oto"}
}

// IsValidBackend checks if a backend name is supported. Empty means
// auto.
func (m *Manager) IsValidBackend(backend string) bool {
	if backend == "" {
		return true
	}
	for _, supported := range m.SupportedBackends() {
		if backend == supported {
			return true
		}
	}
	return false
}

// ResolveLogFilePath resolves the log file path, using the XDG cache
// directory when filename is empty
func (m *Manager) ResolveLogFilePath(filename string) string {
	if filename != "" {
		return filename
	}
	return filepath.Join(CachePath("logs"), "mixdeck.log")
}

package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"
)

const (
	EnvOllamaHost = "LLAMABRIDGE_OLLAMA_HOST"
	EnvModel      = "LLAMABRIDGE_MODEL"
	EnvListen     = "LLAMABRIDGE_LISTEN"
	EnvDataDir    = "LLAMABRIDGE_DATA_DIR"
	EnvDebug      = "LLAMABRIDGE_DEBUG"
)

type OllamaConfig struct {
	Host         string `toml:"host"`
	DefaultModel string `toml:"default_model"`
	// StallTimeout bounds the wait for each daemon response. "0s" or empty
	// means wait forever.
	StallTimeout string `toml:"stall_timeout"`
}

type ServerConfig struct {
	// Listen is host:port, or unix:///path/to.sock
	Listen string `toml:"listen"`
}

type LogConfig struct {
	Level string `toml:"level"`
	File  string `toml:"file,omitempty"`
}

type Settings struct {
	DataDirectory string       `toml:"data_directory"`
	Ollama        OllamaConfig `toml:"ollama"`
	Server        ServerConfig `toml:"server"`
	Log           LogConfig    `toml:"log"`
}

type Config struct {
	DataDirectory string
	OllamaHost    string
	DefaultModel  string
	StallTimeout  time.Duration
	Listen        string
	LogLevel      string
	LogFile       string
}

var Debug = false
var DebugLog *slog.Logger

func (c *Config) OllamaURL() string {
	return c.OllamaHost
}

func (c *Config) Model() string {
	return c.DefaultModel
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

func (c *Config) applyEnvOverrides() {
	if host := os.Getenv(EnvOllamaHost); host != "" {
		c.OllamaHost = host
	}
	if model := os.Getenv(EnvModel); model != "" {
		c.DefaultModel = model
	}
	if listen := os.Getenv(EnvListen); listen != "" {
		c.Listen = listen
	}
	if dataDir := os.Getenv(EnvDataDir); dataDir != "" {
		c.DataDirectory = dataDir
	}
}

func CheckDebug() bool {
	debug := os.Getenv(EnvDebug)
	return debug == "true" || debug == "1"
}

// ParseLevel converts a log level string to slog.Level.
// Returns slog.LevelInfo for unrecognized values.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// InitLogging opens the log file and sets DebugLog. With LLAMABRIDGE_DEBUG
// set it logs at debug level to <data dir>/debug.log (or the configured
// file); otherwise it only logs when a file is configured. DebugLog stays
// nil when logging is off, so call sites check it before use.
//
// The returned cleanup closes the file.
func InitLogging(cfg *Config) (cleanup func(), err error) {
	cleanup = func() {}

	path := ExpandPath(cfg.LogFile)
	level := ParseLevel(cfg.LogLevel)
	if CheckDebug() {
		Debug = true
		level = slog.LevelDebug
		if path == "" {
			path = filepath.Join(cfg.DataDir(), "debug.log")
		}
	}
	if path == "" {
		return cleanup, nil
	}

	if err := EnsureDir(filepath.Dir(path)); err != nil {
		return cleanup, fmt.Errorf("failed to create log directory: %w", err)
	}

	// 0600: prompts and responses end up in debug output
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		return cleanup, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	DebugLog = slog.New(slog.NewTextHandler(f, &slog.HandlerOptions{
		Level:     level,
		AddSource: Debug,
	}))
	DebugLog.Info("logging started", "path", path, "level", level.String())

	return func() {
		DebugLog = nil
		f.Close()
	}, nil
}

// Load reads settings.toml (creating it with defaults on first run), then
// applies environment overrides and makes sure the data directory exists.
func Load() (*Config, error) {
	return LoadFrom(GetSettingsFilePath())
}

func LoadFrom(settingsPath string) (*Config, error) {
	settings, err := LoadSettings(settingsPath)
	if err != nil {
		return nil, err
	}

	cfg, err := settings.toConfig()
	if err != nil {
		return nil, err
	}
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := os.MkdirAll(dataDir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	// Ensure data directory has correct permissions (fix if needed)
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to set data directory permissions: %w", err)
	}

	return cfg, nil
}

func (s *Settings) toConfig() (*Config, error) {
	cfg := &Config{
		DataDirectory: s.DataDirectory,
		OllamaHost:    s.Ollama.Host,
		DefaultModel:  s.Ollama.DefaultModel,
		Listen:        s.Server.Listen,
		LogLevel:      s.Log.Level,
		LogFile:       s.Log.File,
	}

	if s.Ollama.StallTimeout != "" {
		d, err := time.ParseDuration(s.Ollama.StallTimeout)
		if err != nil {
			return nil, fmt.Errorf("invalid ollama.stall_timeout %q: %w", s.Ollama.StallTimeout, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("invalid ollama.stall_timeout %q: must not be negative", s.Ollama.StallTimeout)
		}
		cfg.StallTimeout = d
	}

	return cfg, nil
}

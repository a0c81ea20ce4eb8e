package config

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/tdewey/xhrsim/internal/xhr"
)

const (
	defaultListenAddr = ":8080"
	defaultDBPath     = "xhrsim.db"

	envListenAddr = "XHRSIM_LISTEN_ADDR"
	envDBPath     = "XHRSIM_DB_PATH"
	envLogLevel   = "XHRSIM_LOG_LEVEL"
	envProfile    = "XHRSIM_PROFILE"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	ListenAddr string
	DBPath     string
	LogLevel   slog.Level
	// Profile is the quirk profile assigned to runs that don't name one.
	Profile xhr.Profile
}

// Load reads configuration from environment variables with sensible
// defaults. An unrecognized profile name falls back to the default
// profile rather than failing startup.
func Load() Config {
	cfg := Config{
		ListenAddr: defaultListenAddr,
		DBPath:     defaultDBPath,
		LogLevel:   slog.LevelInfo,
		Profile:    xhr.ProfileDefault,
	}

	if v := os.Getenv(envListenAddr); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv(envDBPath); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		cfg.LogLevel = parseLogLevel(v)
	}
	if v := os.Getenv(envProfile); v != "" {
		if p, err := xhr.ParseProfile(v); err == nil {
			cfg.Profile = p
		}
	}

	return cfg
}

func parseLogLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a structured JSON logger writing to w at the configured level.
func NewLogger(w io.Writer, level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	}))
}

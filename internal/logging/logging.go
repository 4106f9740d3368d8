// Package logging configures the zerolog logger shared by every devtask
// command. Defaults depend on the profile and can be overridden through the
// environment.
package logging

import (
	"io"
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
)

const (
	EnvLogLevel   = "DEVTASK_LOG_LEVEL"
	EnvLogNoColor = "DEVTASK_LOG_NOCOLOR"
	EnvLogJSON    = "DEVTASK_LOG_JSON"
	EnvLogDebug   = "DEVTASK_DEBUG"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

// Config controls how New builds a logger.
type Config struct {
	Level   zerolog.Level
	NoColor bool
	JSON    bool
	// Debug adds every event field and full error traces to console output.
	Debug bool
}

var marshalOnce sync.Once

// DefaultConfig returns the profile defaults with environment overrides applied.
func DefaultConfig(profile Profile) Config {
	cfg := Config{Level: zerolog.InfoLevel}
	if profile == ProfileTest {
		cfg.Level = zerolog.DebugLevel
		cfg.NoColor = true
	}
	applyEnvOverrides(&cfg)
	return cfg
}

// New returns a logger writing to out. Human output goes through the
// colorized console writer unless cfg.JSON is set.
func New(cfg Config, out io.Writer) zerolog.Logger {
	marshalOnce.Do(func() {
		zerolog.ErrorMarshalFunc = func(err error) interface{} {
			return eris.ToString(err, os.Getenv(EnvLogDebug) != "")
		}
	})

	var w io.Writer = out
	if !cfg.JSON {
		w = NewConsoleWriter(out, cfg.NoColor, cfg.Debug)
	}
	return zerolog.New(w).Level(cfg.Level).With().Timestamp().Logger()
}

// ParseLevel accepts zerolog level names plus a few aliases.
func ParseLevel(raw string) (zerolog.Level, bool) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "":
		return zerolog.InfoLevel, false
	case "trace", "diagnostics":
		return zerolog.TraceLevel, true
	case "debug":
		return zerolog.DebugLevel, true
	case "info":
		return zerolog.InfoLevel, true
	case "warn", "warning":
		return zerolog.WarnLevel, true
	case "error":
		return zerolog.ErrorLevel, true
	case "quiet", "off", "disabled":
		return zerolog.Disabled, true
	default:
		return zerolog.InfoLevel, false
	}
}

func applyEnvOverrides(cfg *Config) {
	if lvl, ok := ParseLevel(os.Getenv(EnvLogLevel)); ok {
		cfg.Level = lvl
	}
	if v, ok := parseBool(os.Getenv(EnvLogNoColor)); ok {
		cfg.NoColor = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogJSON)); ok {
		cfg.JSON = v
	}
	if v, ok := parseBool(os.Getenv(EnvLogDebug)); ok {
		cfg.Debug = v
	}
}

func parseBool(raw string) (bool, bool) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return false, false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, false
	}
	return v, true
}

package logging

import (
	"bytes"
	"testing"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("DEBUG")
	require.True(t, ok)
	require.Equal(t, zerolog.DebugLevel, lvl)

	lvl, ok = ParseLevel("quiet")
	require.True(t, ok)
	require.Equal(t, zerolog.Disabled, lvl)

	_, ok = ParseLevel("loud")
	require.False(t, ok)
	_, ok = ParseLevel("")
	require.False(t, ok)
}

func TestDefaultConfigEnvOverrides(t *testing.T) {
	t.Setenv(EnvLogLevel, "warn")
	t.Setenv(EnvLogJSON, "true")
	t.Setenv(EnvLogNoColor, "nope")

	cfg := DefaultConfig(ProfileRuntime)
	require.Equal(t, zerolog.WarnLevel, cfg.Level)
	require.True(t, cfg.JSON)
	require.False(t, cfg.NoColor)
}

func TestConsoleWriterPlain(t *testing.T) {
	var out bytes.Buffer
	log := New(Config{Level: zerolog.InfoLevel, NoColor: true}, &out)

	log.Info().Str("target", "lint").Msg("poetry run flake8 citrex")
	require.Equal(t, "lint: poetry run flake8 citrex\n", out.String())

	out.Reset()
	log.Debug().Msg("hidden")
	require.Empty(t, out.String())
}

func TestConsoleWriterError(t *testing.T) {
	var out bytes.Buffer
	log := New(Config{Level: zerolog.InfoLevel, NoColor: true}, &out)

	log.Error().Err(eris.New("boom")).Str("target", "tests").Msg("target failed")
	require.Contains(t, out.String(), "tests: Error: target failed")
	require.Contains(t, out.String(), "boom")
}

func TestConsoleWriterColor(t *testing.T) {
	var out bytes.Buffer
	log := New(Config{Level: zerolog.InfoLevel}, &out)

	log.Warn().Msg("careful")
	require.Contains(t, out.String(), "\033[")
	require.Contains(t, out.String(), "careful")
}

func TestJSONOutput(t *testing.T) {
	var out bytes.Buffer
	log := New(Config{Level: zerolog.InfoLevel, JSON: true}, &out)

	log.Info().Str("target", "fmt").Msg("ok")
	require.Contains(t, out.String(), `"target":"fmt"`)
}

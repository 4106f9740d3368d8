package utils

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestConfirmReader(t *testing.T) {
	cases := map[string]bool{
		"y\n":     true,
		"YES\n":   true,
		" yes ":   true,
		"n\n":     false,
		"\n":      false,
		"":        false,
		"maybe\n": false,
	}
	for in, want := range cases {
		var out bytes.Buffer
		got := ConfirmReader("Bump 1.0.0 -> 1.0.1?", strings.NewReader(in), &out)
		require.Equal(t, want, got, "input %q", in)
		require.Equal(t, "Bump 1.0.0 -> 1.0.1? [y/N]: ", out.String())
	}
}

func TestIsTerminalRegularFile(t *testing.T) {
	f, err := os.Create(filepath.Join(t.TempDir(), "stdin"))
	require.NoError(t, err)
	defer func() { _ = f.Close() }()
	require.False(t, IsTerminal(f))
}

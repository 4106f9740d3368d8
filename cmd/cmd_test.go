package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/require"

	"github.com/VoxDroid/devtask/internal/config"
)

// setupTempEnv isolates the history database and the task file lookup in
// temp dirs and makes the project dir the working directory.
func setupTempEnv(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv(config.EnvHome, home)
	t.Setenv(config.EnvDB, filepath.Join(home, "devtask.db"))
	t.Setenv(config.EnvFile, "")
	project := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(project))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return project
}

func writeTaskFile(t *testing.T, dir, src string) string {
	t.Helper()
	p := filepath.Join(dir, "devtask.toml")
	require.NoError(t, os.WriteFile(p, []byte(src), 0o644))
	return p
}

// execute runs the root command with fresh flag values and returns stdout
// and stderr separately.
func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out, errOut bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&errOut)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), errOut.String(), err
}

func resetFlags(c *cobra.Command) {
	reset := func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	}
	c.PersistentFlags().VisitAll(reset)
	c.Flags().VisitAll(reset)
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

package cmd

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/devtask/internal/history"
)

var describeCmd = &cobra.Command{
	Use:   "describe <target>",
	Short: "Show details for a target",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := loadTaskFile()
		if err != nil {
			return err
		}
		names, err := targetNames(args)
		if err != nil {
			return err
		}
		t, err := f.Lookup(names[0])
		if err != nil {
			return err
		}

		w := cmd.OutOrStdout()
		_, _ = fmt.Fprintf(w, "Name: %s\n", t.Name)
		if t.Description != "" {
			_, _ = fmt.Fprintf(w, "Description: %s\n", t.Description)
		}
		if f.Path == "" {
			_, _ = fmt.Fprintln(w, "Source: built-in")
		} else {
			_, _ = fmt.Fprintf(w, "Source: %s\n", f.Path)
		}
		if len(t.Deps) > 0 {
			_, _ = fmt.Fprintf(w, "Deps: %s\n", strings.Join(t.Deps, ", "))
		}
		if t.Dir != "" {
			_, _ = fmt.Fprintf(w, "Dir: %s\n", f.TargetDir(t))
		}
		if len(t.Env) > 0 {
			keys := make([]string, 0, len(t.Env))
			for k := range t.Env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			_, _ = fmt.Fprintln(w, "Env:")
			for _, k := range keys {
				_, _ = fmt.Fprintf(w, "  %s=%s\n", k, t.Env[k])
			}
		}
		if len(t.Commands) > 0 {
			_, _ = fmt.Fprintln(w, "Commands:")
			for i, c := range t.Commands {
				_, _ = fmt.Fprintf(w, "%d: %s\n", i+1, c)
			}
		}
		if t.Echo != "" {
			_, _ = fmt.Fprintf(w, "Echo: %s\n", t.Echo)
		}
		if r := t.Release; r != nil {
			_, _ = fmt.Fprintln(w, "Release:")
			_, _ = fmt.Fprintf(w, "  version command: %s\n", r.VersionCommand)
			_, _ = fmt.Fprintf(w, "  bump command: %s\n", r.BumpCommand)
			_, _ = fmt.Fprintf(w, "  part: %s\n", r.Part)
		}

		if noHistory {
			return nil
		}
		conn := openHistory(cmd)
		if conn == nil {
			return nil
		}
		defer func() { _ = conn.Close() }()
		last, err := history.NewRepository(conn).LastRun(t.Name)
		if err != nil {
			return err
		}
		if last != nil {
			_, _ = fmt.Fprintf(w, "Last run: %s at %s (exit %d, %s)\n",
				last.Status, last.StartedAt.Local().Format(time.RFC3339), last.ExitCode, last.Duration.Round(time.Millisecond))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

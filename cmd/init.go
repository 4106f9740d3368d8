package cmd

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/VoxDroid/devtask/internal/taskfile"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the built-in task file to the current directory",
	Long:  "Write the built-in targets to devtask.toml (or devtask.yaml) so they can be edited. Example:\n  devtask init --format yaml",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		raw, _ := cmd.Flags().GetString("format")
		format := taskfile.Format(raw)

		var (
			name string
			data []byte
			err  error
		)
		switch format {
		case taskfile.FormatTOML:
			name, data = "devtask.toml", taskfile.DefaultSource()
		case taskfile.FormatYAML:
			name = "devtask.yaml"
			data, err = taskfile.Marshal(taskfile.Default(), format)
			if err != nil {
				return err
			}
		default:
			return eris.Errorf("unsupported format %q (want toml or yaml)", raw)
		}

		if _, err := os.Stat(name); err == nil && !force {
			return eris.Errorf("%s already exists (use --force to overwrite)", name)
		} else if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return eris.Wrapf(err, "stat %s", name)
		}
		if err := os.WriteFile(name, data, 0o644); err != nil {
			return eris.Wrapf(err, "write %s", name)
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", name)
		return nil
	},
}

func init() {
	initCmd.Flags().String("format", string(taskfile.FormatTOML), "Task file format: toml or yaml")
	rootCmd.AddCommand(initCmd)
}

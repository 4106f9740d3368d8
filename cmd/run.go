package cmd

import (
	"database/sql"
	"fmt"
	"os"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/VoxDroid/devtask/internal/config"
	"github.com/VoxDroid/devtask/internal/db"
	"github.com/VoxDroid/devtask/internal/executor"
	"github.com/VoxDroid/devtask/internal/history"
	"github.com/VoxDroid/devtask/internal/nameutil"
	"github.com/VoxDroid/devtask/internal/release"
	"github.com/VoxDroid/devtask/internal/runner"
	"github.com/VoxDroid/devtask/internal/taskfile"
	"github.com/VoxDroid/devtask/internal/utils"
)

var runCmd = &cobra.Command{
	Use:   "run <target>...",
	Short: "Run one or more targets",
	Long:  "Run targets in order, dependencies first. Example:\n  devtask run fmt lint",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runTargets,
}

func runTargets(cmd *cobra.Command, args []string) error {
	f, err := loadTaskFile()
	if err != nil {
		return err
	}
	names, err := targetNames(args)
	if err != nil {
		return err
	}
	if len(names) == 0 && f.Default == "" {
		return printHint(cmd)
	}

	ex := executor.New(dryRun, verbose, force)
	ex.Stdin = cmd.InOrStdin()
	e := &runner.Engine{
		File:   f,
		Exec:   ex,
		Stdout: cmd.OutOrStdout(),
		Stderr: cmd.ErrOrStderr(),
		DryRun: dryRun,
	}
	if !assumeYes && !dryRun {
		e.ConfirmRelease = confirmRelease
	}
	if !noHistory {
		conn := openHistory(cmd)
		if conn != nil {
			defer func() { _ = conn.Close() }()
			e.Recorder = history.NewRepository(conn)
		}
	}

	err = e.Run(cmd.Context(), names...)
	if eris.Is(err, runner.ErrAborted) {
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), "aborted")
		return nil
	}
	return err
}

// loadTaskFile resolves the task file: --file, then DEVTASK_FILE, then the
// nearest devtask.toml/devtask.yaml, then the built-in targets.
func loadTaskFile() (*taskfile.File, error) {
	path := taskFilePath
	if path == "" {
		path = config.TaskFile()
	}
	if path != "" {
		return taskfile.Load(path)
	}
	wd, err := os.Getwd()
	if err != nil {
		return nil, eris.Wrap(err, "get working directory")
	}
	found, err := taskfile.Find(wd)
	switch {
	case err == nil:
		return taskfile.Load(found)
	case eris.Is(err, taskfile.ErrNotFound):
		return taskfile.Default(), nil
	default:
		return nil, err
	}
}

func targetNames(args []string) ([]string, error) {
	names := make([]string, 0, len(args))
	for _, a := range args {
		name, _ := nameutil.SanitizeName(a)
		if err := nameutil.ValidateName(name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, nil
}

// openHistory returns nil when the database cannot be opened; a broken
// history store never blocks a run.
func openHistory(cmd *cobra.Command) *sql.DB {
	conn, err := db.InitDB()
	if err != nil {
		zerolog.Ctx(cmd.Context()).Warn().Err(err).Msg("run history disabled")
		return nil
	}
	return conn
}

// confirmRelease asks before bumping when a user is at the terminal; in CI
// the bump proceeds.
func confirmRelease(target string, res release.Result) bool {
	if !utils.IsTerminal(os.Stdin) {
		return true
	}
	return utils.Confirm(fmt.Sprintf("%s: bump version %s -> %s?", target, res.Current, res.Next))
}

func init() {
	rootCmd.AddCommand(runCmd)
}

package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/rotisserie/eris"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/VoxDroid/devtask/internal/logging"
	"github.com/VoxDroid/devtask/internal/runner"
	"github.com/VoxDroid/devtask/internal/utils"
)

var (
	taskFilePath string
	dryRun       bool
	verbose      bool
	force        bool
	noHistory    bool
	logLevel     string
	assumeYes    bool
)

var rootCmd = &cobra.Command{
	Use:   "devtask [target]...",
	Short: "devtask runs the project's development tasks",
	Long: `devtask runs named targets (tests, install, fmt, lint, all, test-docs, release)
from devtask.toml or devtask.yaml, found in the current directory or one of its
parents. Without a task file the built-in targets are used.

Examples:
  devtask all
  devtask --dry-run release
  devtask run list     # a target whose name collides with a subcommand`,
	Args:              cobra.ArbitraryArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	RunE:              runTargets,
}

// Execute executes the root command and exits with the failing tool's status.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		log := zerolog.Ctx(rootCmd.Context())
		if log.GetLevel() == zerolog.Disabled {
			fallback := logging.New(logging.DefaultConfig(logging.ProfileRuntime), os.Stderr)
			log = &fallback
		}
		log.Error().Err(err).Msg("devtask failed")
		os.Exit(runner.ExitCode(err))
	}
}

func setupLogger(cmd *cobra.Command, _ []string) error {
	cfg := logging.DefaultConfig(logging.ProfileRuntime)
	if logLevel != "" {
		lvl, ok := logging.ParseLevel(logLevel)
		if !ok {
			return eris.Errorf("invalid log level %q", logLevel)
		}
		cfg.Level = lvl
	}
	out := cmd.ErrOrStderr()
	if f, ok := out.(*os.File); !ok || !utils.IsTerminal(f) {
		cfg.NoColor = true
	}
	log := logging.New(cfg, out)
	ctx := log.WithContext(cmd.Context())
	cmd.SetContext(ctx)
	rootCmd.SetContext(ctx)
	return nil
}

// printHint lists the available targets when nothing was requested.
func printHint(cmd *cobra.Command) error {
	f, err := loadTaskFile()
	if err != nil {
		return err
	}
	w := cmd.OutOrStdout()
	_, _ = fmt.Fprintf(w, "devtask: no target given; run 'devtask list' to see targets or 'devtask --help' for usage\n")
	for _, name := range f.Names() {
		_, _ = fmt.Fprintf(w, "  %s\n", name)
	}
	return nil
}

func init() {
	// assigned here: setupLogger refers to rootCmd
	rootCmd.PersistentPreRunE = setupLogger

	pf := rootCmd.PersistentFlags()
	pf.StringVarP(&taskFilePath, "file", "f", "", "Task file to use instead of searching for devtask.toml/devtask.yaml")
	pf.BoolVarP(&dryRun, "dry-run", "n", false, "Print commands instead of running them")
	pf.BoolVarP(&verbose, "verbose", "v", false, "Log every external process started")
	pf.BoolVar(&force, "force", false, "Override safety checks (and overwrite files on init)")
	pf.BoolVar(&noHistory, "no-history", false, "Do not record runs in the history database")
	pf.StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error, quiet)")
	pf.BoolVarP(&assumeYes, "yes", "y", false, "Do not ask before bumping the version in release targets")
}

package cmd

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/VoxDroid/devtask/internal/db"
	"github.com/VoxDroid/devtask/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history [target]",
	Short: "Show recent target runs",
	Long:  "Show recent runs, newest first (id, start time, target, status, exit code, duration). Example:\n  devtask history lint --limit 5\n  devtask history --prune 50",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		prune, _ := cmd.Flags().GetInt("prune")

		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()
		r := history.NewRepository(dbConn)

		w := cmd.OutOrStdout()
		if cmd.Flags().Changed("prune") {
			n, err := r.Prune(prune)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(w, "pruned %d runs\n", n)
			return nil
		}

		target := ""
		if len(args) == 1 {
			names, err := targetNames(args)
			if err != nil {
				return err
			}
			target = names[0]
		}
		runs, err := r.ListRuns(target, limit)
		if err != nil {
			return err
		}
		if len(runs) == 0 {
			if target == "" {
				_, _ = fmt.Fprintln(w, "no history")
			} else {
				_, _ = fmt.Fprintf(w, "no history for %s\n", target)
			}
			return nil
		}
		for _, run := range runs {
			line := fmt.Sprintf("#%d\t%s\t%s\t%s\t%d\t%s", run.ID,
				run.StartedAt.Local().Format(time.DateTime), run.Target, run.Status, run.ExitCode,
				run.Duration.Round(time.Millisecond))
			if run.DryRun {
				line += "\tdry-run"
			}
			_, _ = fmt.Fprintln(w, line)
		}
		return nil
	},
}

var historyExportCmd = &cobra.Command{
	Use:   "export <dst>",
	Short: "Copy run history into a standalone SQLite database",
	Long:  "Copy run history into a new SQLite file. Example:\n  devtask history export runs.db --target release",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		target, _ := cmd.Flags().GetString("target")
		dbConn, err := db.InitDB()
		if err != nil {
			return err
		}
		defer func() { _ = dbConn.Close() }()

		n, err := history.NewRepository(dbConn).ExportRuns(target, args[0])
		if err != nil {
			return eris.Wrapf(err, "export history to %s", args[0])
		}
		_, _ = fmt.Fprintf(cmd.OutOrStdout(), "exported %d runs to %s\n", n, args[0])
		return nil
	},
}

func init() {
	historyCmd.Flags().Int("limit", 20, "Maximum number of runs to show (0 for all)")
	historyCmd.Flags().Int("prune", 0, "Keep only the newest N runs per target and delete the rest")
	historyExportCmd.Flags().String("target", "", "Only export runs of this target")
	historyCmd.AddCommand(historyExportCmd)
	rootCmd.AddCommand(historyCmd)
}

package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/VoxDroid/devtask/internal/versioning"
)

var semverCmd = &cobra.Command{
	Use:   "semver",
	Short: "Semantic version helpers",
}

var semverNextCmd = &cobra.Command{
	Use:   "next <version>",
	Short: "Print the version that follows <version>",
	Long:  "Print the next version. Example:\n  devtask semver next 1.4.2 --part minor   # 1.5.0",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		raw, _ := cmd.Flags().GetString("part")
		part, err := versioning.ParsePart(raw)
		if err != nil {
			return err
		}
		next, err := versioning.Next(args[0], part)
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(cmd.OutOrStdout(), next)
		return nil
	},
}

func init() {
	semverNextCmd.Flags().String("part", string(versioning.Patch), "Part to bump: major, minor or patch")
	semverCmd.AddCommand(semverNextCmd)
	rootCmd.AddCommand(semverCmd)
}

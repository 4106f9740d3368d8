package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List targets",
	Long:  "List the targets of the task file with their descriptions. Example:\n  devtask list --filter lint",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		f, err := loadTaskFile()
		if err != nil {
			return err
		}
		filter, _ := cmd.Flags().GetString("filter")
		filter = strings.ToLower(filter)

		names := make([]string, 0, len(f.Targets))
		width := 0
		for _, name := range f.Names() {
			t := f.Targets[name]
			if filter != "" && !strings.Contains(strings.ToLower(name), filter) &&
				!strings.Contains(strings.ToLower(t.Description), filter) {
				continue
			}
			names = append(names, name)
			width = max(width, len(name))
		}

		w := cmd.OutOrStdout()
		for _, name := range names {
			line := fmt.Sprintf("%-*s  %s", width, name, f.Targets[name].Description)
			if name == f.Default {
				line += " (default)"
			}
			_, _ = fmt.Fprintln(w, strings.TrimRight(line, " "))
		}
		return nil
	},
}

func init() {
	listCmd.Flags().String("filter", "", "Only show targets whose name or description contains this text")
	rootCmd.AddCommand(listCmd)
}

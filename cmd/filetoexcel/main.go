// filetoexcel writes the z-score workbook for a capture produced by collect.
// Usage: filetoexcel <path-to-.bin-or-.csv>
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Thiagojm/bgtrng/logging"
	"github.com/Thiagojm/bgtrng/report"
)

var rootCmd = &cobra.Command{
	Use:          "filetoexcel <path-to-.bin-or-.csv>",
	Short:        "Write the cumulative z-score of a capture to an .xlsx workbook",
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		out, err := report.Generate(args[0])
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), out)
		return nil
	},
}

func main() {
	slog.SetDefault(logging.New(os.Stderr, slog.LevelInfo))
	if err := rootCmd.Execute(); err != nil {
		slog.Error("filetoexcel failed", "err", err)
		os.Exit(1)
	}
}

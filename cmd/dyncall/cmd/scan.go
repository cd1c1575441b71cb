package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/Swingft/dyncall/internal/logx"
	"github.com/Swingft/dyncall/internal/pipeline"
)

var scanCmd = &cobra.Command{
	Use:   "scan <source-dir>",
	Short: "Classify a project and write the scan dumps without rewriting",
	Long: `Runs discovery and classification in place and writes the dump set
(all/clean/excluded/safe/risky) without modifying any Swift source.

Example:
  dyncall scan ./MyApp --exceptions rules.json --dump-dir ./scan_out`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd, args[0])
		opts.Target = opts.Source
		opts.DryRun = true
		sum, err := pipeline.Run(cmd.Context(), opts)
		if err != nil {
			logx.Errorf("%v", err)
			os.Exit(1)
		}
		if !cfg.Silent {
			printSummary(sum)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
	addRunFlags(scanCmd)
}

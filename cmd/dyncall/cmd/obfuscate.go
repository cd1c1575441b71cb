package cmd

import (
	"fmt"
	"os"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/Swingft/dyncall/internal/audit"
	"github.com/Swingft/dyncall/internal/logx"
	"github.com/Swingft/dyncall/internal/pipeline"
)

var (
	outputDir     string
	overwriteDst  bool
	dryRun        bool
	includeRisky  bool
	keepOverrides bool
	maxParams     int
	skipUI        bool
	withPackages  bool
	jobsFlag      int
	exceptionsArg []string
	dumpDirFlag   string
)

var obfuscateCmd = &cobra.Command{
	Use:   "obfuscate <source-dir>",
	Short: "Clone a project and rewrite its eligible functions",
	Long: `Clones the project tree, discovers member functions, filters them
through the exception rules and safety guards, then rewrites the
survivors to dispatch through generated per-file route tables.

Example:
  dyncall obfuscate ./MyApp -o ./MyApp_obf --overwrite
  dyncall obfuscate ./MyApp -o ./MyApp_obf --exceptions rules.json --include-risky`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		opts := runOptions(cmd, args[0])
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

// runOptions merges the loaded config with this command's flags into
// pipeline options. Flags win only when explicitly set.
func runOptions(cmd *cobra.Command, source string) pipeline.Options {
	c := *cfg
	if source != "" {
		c.SourceDirectory = source
	}
	if cmd.Flags().Changed("output") {
		c.TargetDirectory = outputDir
	}
	if cmd.Flags().Changed("overwrite") {
		c.Overwrite = overwriteDst
	}
	if cmd.Flags().Changed("dry-run") {
		c.DryRun = dryRun
	}
	if cmd.Flags().Changed("include-risky") {
		c.IncludeRisky = includeRisky
	}
	if cmd.Flags().Changed("keep-overrides") {
		c.Policy.KeepOverrides = keepOverrides
	}
	if cmd.Flags().Changed("max-params") {
		c.Policy.MaxParams = maxParams
	}
	if cmd.Flags().Changed("skip-ui") {
		c.SkipUI = skipUI
	}
	if cmd.Flags().Changed("include-packages") {
		c.IncludePackages = withPackages
	}
	if cmd.Flags().Changed("jobs") {
		c.Jobs = jobsFlag
	}
	if cmd.Flags().Changed("exceptions") {
		c.Exceptions = exceptionsArg
	}
	if cmd.Flags().Changed("dump-dir") {
		c.DumpDir = dumpDirFlag
	}

	return pipeline.Options{
		Source:          c.SourceDirectory,
		Target:          c.TargetDirectory,
		Overwrite:       c.Overwrite,
		DryRun:          c.DryRun,
		Inject:          c.Inject,
		SkipUI:          c.SkipUI,
		IncludePackages: c.IncludePackages,
		IncludeRisky:    c.IncludeRisky,
		Jobs:            c.Jobs,
		ExceptionFiles:  c.Exceptions,
		Policy:          c.Policy.Classify(),
		Dumps:           audit.Options{Dir: c.DumpDir},
	}
}

func printSummary(sum *pipeline.Summary) {
	table := tablewriter.NewWriter(os.Stdout)
	table.SetHeader([]string{"Metric", "Count"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetColumnAlignment([]int{tablewriter.ALIGN_LEFT, tablewriter.ALIGN_CENTER})
	table.Append([]string{"Files scanned", fmt.Sprintf("%d", sum.FilesScanned)})
	table.Append([]string{"Functions discovered", fmt.Sprintf("%d", sum.Discovered)})
	table.Append([]string{"Excluded by rules", fmt.Sprintf("%d", sum.Excluded)})
	table.Append([]string{"Safe", fmt.Sprintf("%d", sum.Safe)})
	table.Append([]string{"Risky", fmt.Sprintf("%d", sum.Risky)})
	table.Append([]string{"Files touched", fmt.Sprintf("%d", sum.FilesTouched)})
	table.Append([]string{"Functions wrapped", fmt.Sprintf("%d", sum.FunctionsWrapped)})
	table.Render()
	fmt.Printf("\noutput: %s\n", sum.Root)
}

func addRunFlags(c *cobra.Command) {
	c.Flags().BoolVar(&includeRisky, "include-risky", false, "also wrap functions flagged risky")
	c.Flags().BoolVar(&keepOverrides, "keep-overrides", false, "do not treat override methods as risky")
	c.Flags().IntVar(&maxParams, "max-params", 10, "maximum parameter count for wrapping")
	c.Flags().BoolVar(&skipUI, "skip-ui", false, "skip view and view-controller files")
	c.Flags().BoolVar(&withPackages, "include-packages", true, "scan Swift package subtrees")
	c.Flags().IntVarP(&jobsFlag, "jobs", "j", 0, "parallel rewrite workers (0 = all CPUs)")
	c.Flags().StringSliceVar(&exceptionsArg, "exceptions", nil, "exception rule JSON files")
	c.Flags().StringVar(&dumpDirFlag, "dump-dir", "", "directory for scan dumps (default <target>/"+audit.DumpDirName+")")
}

func init() {
	rootCmd.AddCommand(obfuscateCmd)
	obfuscateCmd.Flags().StringVarP(&outputDir, "output", "o", "", "target directory for the rewritten clone (default: in place)")
	obfuscateCmd.Flags().BoolVar(&overwriteDst, "overwrite", false, "replace the target directory if it exists")
	obfuscateCmd.Flags().BoolVar(&dryRun, "dry-run", false, "classify and dump, but write no source changes")
	addRunFlags(obfuscateCmd)
}

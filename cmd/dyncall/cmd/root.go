// Package cmd implements the command line interface for the tool.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Swingft/dyncall/internal/config"
	"github.com/Swingft/dyncall/internal/logx"
)

var (
	cfgFile string
	cfg     *config.Config

	silentMode bool
	debugMode  bool
)

var rootCmd = &cobra.Command{
	Use:   "dyncall",
	Short: "Obfuscates Swift call sites by routing them through per-file dispatch tables",
	Long: `dyncall clones a Swift project, renames eligible function
implementations, and replaces them with wrappers that dispatch through
a generated per-file route table, so direct call edges disappear from
the binary's static call graph.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			loadedCfg, err := config.LoadConfig(cfgFile)
			if err != nil {
				return fmt.Errorf("loading configuration: %w", err)
			}
			cfg = loadedCfg
			applyRootFlagOverrides(cfg, cmd)
			logx.Silent = cfg.Silent
			logx.Debug = cfg.Debug
		}
		return nil
	},
	Run: func(cmd *cobra.Command, args []string) {
		_ = cmd.Help()
	},
}

// applyRootFlagOverrides applies persistent flag values to the loaded
// config, but only for flags the user actually set.
func applyRootFlagOverrides(cfg *config.Config, cmd *cobra.Command) {
	if cmd.Flags().Changed("silent") {
		cfg.Silent = silentMode
	}
	if cmd.Flags().Changed("debug") {
		cfg.Debug = debugMode
	}
}

// Execute runs the root command. Called once from main.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./dyncall.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&silentMode, "silent", "s", false, "suppress informational output (overrides config)")
	rootCmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "verbose per-function decision logging (overrides config)")
}

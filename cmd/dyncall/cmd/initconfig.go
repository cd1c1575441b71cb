package cmd

import (
	"github.com/spf13/cobra"

	"github.com/Swingft/dyncall/internal/config"
	"github.com/Swingft/dyncall/internal/logx"
)

var initConfigCmd = &cobra.Command{
	Use:   "init-config [path]",
	Short: "Write a default configuration file",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := config.DefaultConfigFile
		if len(args) == 1 {
			path = args[0]
		}
		if err := config.SaveConfig(path); err != nil {
			return err
		}
		logx.Infof("wrote default config to %s", path)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(initConfigCmd)
}

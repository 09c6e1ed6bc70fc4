package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox-triage/internal/model"
)

var configInitCmd = &cobra.Command{
	Use:   "init-config",
	Short: "Write the effective configuration to --config",
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := model.SaveConfig(configPath, cfg); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", configPath)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(configInitCmd)
}

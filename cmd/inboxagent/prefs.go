package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/inbox-triage/internal/prefs"
	"github.com/nhle/inbox-triage/internal/ui/prefsform"
)

var prefsCmd = &cobra.Command{
	Use:   "prefs",
	Short: "Show or edit reply preferences",
}

var prefsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current preferences as JSON",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := prefs.Open(cfg.Preferences.Path, logger)
		out, err := json.MarshalIndent(store.Get(), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

var prefsEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Edit preferences in an interactive form",
	RunE: func(cmd *cobra.Command, args []string) error {
		store := prefs.Open(cfg.Preferences.Path, logger)
		edited, err := prefsform.Run(store.Get())
		if errors.Is(err, huh.ErrUserAborted) {
			return nil
		}
		if err != nil {
			return err
		}
		store.Replace(edited)
		if err := store.Save(); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "saved %s\n", store.Path())
		return nil
	},
}

func init() {
	prefsCmd.AddCommand(prefsShowCmd, prefsEditCmd)
	rootCmd.AddCommand(prefsCmd)
}

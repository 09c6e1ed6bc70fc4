package main

import (
	"context"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/nhle/inbox-triage/internal/ui/watch"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run the autonomous scheduler with a live terminal view",
	RunE: func(cmd *cobra.Command, args []string) error {
		l, closer, err := fileLogger()
		if err != nil {
			return err
		}
		defer closer.Close()

		a, err := openApp(l)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		_, err = tea.NewProgram(watch.New(ctx, a.Scheduler), tea.WithAltScreen()).Run()
		return err
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
}

package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/inbox-triage/internal/model"
	"github.com/nhle/inbox-triage/internal/ui/summary"
)

var (
	processLimit int
	processSkip  int
	processJSON  bool
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Run one triage cycle and print the summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(logger)
		if err != nil {
			return err
		}
		defer a.Close()

		var s model.CycleSummary
		if processSkip > 0 || cmd.Flags().Changed("limit") {
			quota := a.Processor.Quota()
			if cmd.Flags().Changed("limit") {
				quota = processLimit
			}
			s, err = a.Processor.ProcessNextBatch(cmd.Context(), processSkip, quota)
		} else {
			s, err = a.Processor.ProcessInbox(cmd.Context())
		}
		if err != nil {
			return err
		}

		if processJSON {
			out, err := json.MarshalIndent(s, "", "  ")
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(out))
			return nil
		}
		fmt.Fprintln(cmd.OutOrStdout(), summary.Render(s, 100))
		return nil
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print lifetime processing statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := openApp(logger)
		if err != nil {
			return err
		}
		defer a.Close()

		out, err := json.MarshalIndent(a.Processor.Stats(cmd.Context()), "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	processCmd.Flags().IntVar(&processLimit, "limit", 0, "messages to process this run, clamped to 1..50")
	processCmd.Flags().IntVar(&processSkip, "skip", 0, "unread messages to skip before processing")
	processCmd.Flags().BoolVar(&processJSON, "json", false, "print the summary as JSON")
	rootCmd.AddCommand(processCmd, statsCmd)
}

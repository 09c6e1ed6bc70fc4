package main

import (
	"fmt"
	"slices"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/inbox-triage/internal/credential"
	"github.com/nhle/inbox-triage/internal/model"
)

var knownKeys = []string{credential.KeyIMAPPassword, credential.KeyAIAPIKey}

var credentialCmd = &cobra.Command{
	Use:   "credential",
	Short: "Manage secrets in the system keyring",
}

var credentialSetCmd = &cobra.Command{
	Use:       "set <key>",
	Short:     "Store a secret (imap-password or ai-api-key)",
	Args:      cobra.ExactArgs(1),
	ValidArgs: knownKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		key := args[0]
		if !slices.Contains(knownKeys, key) {
			return fmt.Errorf("unknown credential %q, expected one of %v", key, knownKeys)
		}

		ring, err := credential.Open(model.DefaultConfigDir())
		if err != nil {
			return err
		}

		var value string
		err = huh.NewInput().
			Title(key).
			EchoMode(huh.EchoModePassword).
			Validate(func(s string) error {
				if s == "" {
					return fmt.Errorf("value is required")
				}
				return nil
			}).
			Value(&value).
			Run()
		if err != nil {
			return err
		}

		if err := ring.Set(key, value); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s\n", key)
		return nil
	},
}

var credentialDeleteCmd = &cobra.Command{
	Use:       "delete <key>",
	Short:     "Remove a secret",
	Args:      cobra.ExactArgs(1),
	ValidArgs: knownKeys,
	RunE: func(cmd *cobra.Command, args []string) error {
		ring, err := credential.Open(model.DefaultConfigDir())
		if err != nil {
			return err
		}
		return ring.Delete(args[0])
	},
}

func init() {
	credentialCmd.AddCommand(credentialSetCmd, credentialDeleteCmd)
	rootCmd.AddCommand(credentialCmd)
}

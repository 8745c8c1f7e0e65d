package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/berba-q/hospitality-scheduler-sub001/api/internal/infrastructure/crypto"
)

func newGenerateKeyCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "generate-key",
		Short: "Print a fresh base64 256-bit key for SETTINGS_ENCRYPTION_KEY",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			key, err := crypto.GenerateKey()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), key)
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/spf13/cobra"
)

var credentialsCmd = &cobra.Command{
	Use:   "credentials",
	Short: "manage stored API keys",
}

var credentialsSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "store an API key, e.g. OPENAI_API_KEY or SERPER_API_KEY",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		creds, err := config.LoadCredentials(cfg.CredentialsFile)
		if err != nil {
			return err
		}
		if err := creds.Set(args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "stored %s in %s\n", args[0], creds.Path())
		return nil
	},
}

func init() {
	credentialsCmd.AddCommand(credentialsSetCmd)
}

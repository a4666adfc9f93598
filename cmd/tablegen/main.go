// Command tablegen generates tables from the command line.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/melkeydev/mcp-tablegen/config"
	"github.com/melkeydev/mcp-tablegen/logging"
	"github.com/spf13/cobra"
)

var (
	configPath string
	cfg        *config.Config
	closeLog   = func() {}
)

var rootCmd = &cobra.Command{
	Use:           "tablegen",
	Short:         "generate tables with language models, web search, documents and images",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Default()
		if configPath != "" {
			c, err := config.LoadConfig(configPath)
			if err != nil {
				return err
			}
			cfg = c
		}
		var logger *slog.Logger
		logger, closeLog = logging.Setup(cfg.Logging, os.Stderr)
		slog.SetDefault(logger)
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		closeLog()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file")
	rootCmd.AddCommand(generateCmd, explainCmd, credentialsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

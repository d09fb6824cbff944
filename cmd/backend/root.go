package main

import (
	"os"

	"github.com/spf13/cobra"

	"blind-book-reader/internal/config"
)

func newRootCommand() *cobra.Command {
	var configFlag string

	rootCmd := &cobra.Command{
		Use:           "backend",
		Short:         "Blind Book Reader backend",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return serve(cmd, configFlag)
		},
	}

	rootCmd.PersistentFlags().StringVarP(&configFlag, "config", "c", "", "Configuration file path (default $BBR_CONFIG)")

	rootCmd.AddCommand(newServeCommand(&configFlag))
	rootCmd.AddCommand(newBooksCommand(&configFlag))

	return rootCmd
}

// loadConfig resolves the config file from the flag or BBR_CONFIG.
func loadConfig(flagValue string) (*config.Config, error) {
	path := flagValue
	if path == "" {
		path = os.Getenv("BBR_CONFIG")
	}
	return config.Load(path)
}

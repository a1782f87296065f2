// Command accounts serves the accounts API and carries its operational
// subcommands.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/goliatone/go-accounts/config"
)

func main() {
	rootCmd := createRootCmd()
	configManager := config.NewManager(rootCmd.PersistentFlags())

	rootCmd.AddCommand(createServeCmd(configManager))
	rootCmd.AddCommand(createMigrateCmd(configManager))
	rootCmd.AddCommand(createUsersCmd(configManager))
	rootCmd.AddCommand(createTokenCmd(configManager))

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func createRootCmd() *cobra.Command {
	return &cobra.Command{
		Use:           "accounts",
		Short:         "User accounts API",
		Long:          "accounts serves user profiles, follows, notifications and the signed link activation and email change flows.",
		SilenceUsage:  true,
		SilenceErrors: false,
	}
}

func initFatal(err error, message string) {
	fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
	os.Exit(1)
}

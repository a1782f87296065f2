package main

import (
	"fmt"

	"github.com/spf13/cobra"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
)

func createTokenCmd(configManager *config.Manager) *cobra.Command {
	var email string

	tokenCmd := &cobra.Command{
		Use:   "token",
		Short: "Mint an access token for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := configManager.Load()
			if err != nil {
				return err
			}

			app, err := newApplication(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer app.Close()

			var user *accounts.User
			user, err = app.repo.Users().FindByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}

			token, err := app.tokens.Generate(user.Identity(), nil)
			if err != nil {
				return err
			}

			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}

	tokenCmd.Flags().StringVar(&email, "email", "", "Email address of the user")
	tokenCmd.MarkFlagRequired("email")
	return tokenCmd
}

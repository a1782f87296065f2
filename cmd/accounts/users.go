package main

import (
	"fmt"

	"github.com/spf13/cobra"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
)

func createUsersCmd(configManager *config.Manager) *cobra.Command {
	usersCmd := &cobra.Command{
		Use:   "users",
		Short: "Manage user accounts",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	usersCmd.AddCommand(createUsersCreateCmd(configManager))
	usersCmd.AddCommand(createUsersSendActivationCmd(configManager))
	return usersCmd
}

func createUsersCreateCmd(configManager *config.Manager) *cobra.Command {
	msg := accounts.RegisterUserMessage{}

	createCmd := &cobra.Command{
		Use:   "create",
		Short: "Create a user account",
		Long: `
Create a user account

Accounts are created pending unless --activate is given. Pending accounts
receive an activation email only through "users send-activation" or the API.
`,
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

			var created *accounts.User
			msg.OnResponse = func(u *accounts.User) { created = u }

			if err := accounts.NewHandlers(app.deps).RegisterUser.Execute(cmd.Context(), msg); err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s) status=%s\n", created.ID, created.Username, created.Status)
			return nil
		},
	}

	createCmd.Flags().StringVar(&msg.Email, "email", "", "Email address")
	createCmd.Flags().StringVar(&msg.Username, "username", "", "Username, derived from the email when empty")
	createCmd.Flags().StringVar(&msg.Realname, "realname", "", "Display name")
	createCmd.Flags().StringVar(&msg.Password, "password", "", "Password")
	createCmd.Flags().StringVar(&msg.Phone, "phone", "", "Phone number")
	createCmd.Flags().StringVar(&msg.PhoneRegion, "phone-region", accounts.DefaultPhoneRegion, "Region used to parse phone numbers without a country code")
	createCmd.Flags().StringVar(&msg.Role, "role", string(accounts.RoleMember), "Role")
	createCmd.Flags().BoolVar(&msg.Activate, "activate", false, "Create the account active and verified")
	createCmd.Flags().BoolVar(&msg.UseHashid, "hashid", false, "Derive the user id from the email")
	createCmd.MarkFlagRequired("email")
	createCmd.MarkFlagRequired("password")

	return createCmd
}

func createUsersSendActivationCmd(configManager *config.Manager) *cobra.Command {
	var email string

	sendCmd := &cobra.Command{
		Use:   "send-activation",
		Short: "Email a fresh activation link to a pending user",
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

			user, err := app.repo.Users().FindByEmail(cmd.Context(), email)
			if err != nil {
				return err
			}

			return accounts.NewHandlers(app.deps).SendActivation.Execute(cmd.Context(), accounts.SendActivationMessage{
				UserID: user.ID,
				OnResponse: func(r *accounts.MessageResponse) {
					fmt.Fprintln(cmd.OutOrStdout(), r.Message)
				},
			})
		},
	}

	sendCmd.Flags().StringVar(&email, "email", "", "Email address of the pending user")
	sendCmd.MarkFlagRequired("email")
	return sendCmd
}

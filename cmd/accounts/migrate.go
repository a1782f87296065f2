package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/uptrace/bun/migrate"

	accounts "github.com/goliatone/go-accounts"
	"github.com/goliatone/go-accounts/config"
	"github.com/goliatone/go-accounts/persistence"
)

func createMigrateCmd(configManager *config.Manager) *cobra.Command {
	migrateCmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply or roll back database migrations",
		Run: func(cmd *cobra.Command, args []string) {
			cmd.Help()
		},
	}

	run := func(apply func(cmd *cobra.Command) (*migrate.MigrationGroup, error), verb string) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			group, err := apply(cmd)
			if err != nil {
				return err
			}
			if group.IsZero() {
				fmt.Fprintln(cmd.OutOrStdout(), "nothing to do")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", verb, group)
			return nil
		}
	}

	upCmd := &cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: run(func(cmd *cobra.Command) (*migrate.MigrationGroup, error) {
			cfg, err := configManager.Load()
			if err != nil {
				return nil, err
			}
			db, err := persistence.Open(cmd.Context(), cfg.Database.DSN)
			if err != nil {
				return nil, err
			}
			defer db.Close()
			return accounts.Migrate(cmd.Context(), db)
		}, "migrated"),
	}

	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back the last migration group",
		RunE: run(func(cmd *cobra.Command) (*migrate.MigrationGroup, error) {
			cfg, err := configManager.Load()
			if err != nil {
				return nil, err
			}
			db, err := persistence.Open(cmd.Context(), cfg.Database.DSN)
			if err != nil {
				return nil, err
			}
			defer db.Close()
			return accounts.Rollback(cmd.Context(), db)
		}, "rolled back"),
	}

	migrateCmd.AddCommand(upCmd, downCmd)
	return migrateCmd
}

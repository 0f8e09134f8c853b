package main

import (
	"github.com/spf13/cobra"

	"deal-assistant/internal/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create the CRM tables if they do not exist",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		db, err := connectPostgres(ctx, cfg, zapLog)
		if err != nil {
			return err
		}
		defer db.Close()

		if err := store.NewPostgres(db, log, 0).Migrate(ctx); err != nil {
			return err
		}
		log.Info("Schema applied", map[string]interface{}{"database": cfg.Database.Postgres.Database})
		return nil
	},
}

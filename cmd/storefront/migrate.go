package main

import (
	"github.com/spf13/cobra"

	"go-storefront/web/db"
)

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := bootstrap()
			if err != nil {
				return err
			}
			defer a.close()

			if err := db.Sync(a.conn); err != nil {
				return err
			}
			a.logger.Info("schema up to date")
			return nil
		},
	}
}

package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/medelle/practice-api/internal/config"
	"github.com/medelle/practice-api/internal/repository/postgres"
)

func migrateCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd.Context(), *configPath)
			if err != nil {
				return err
			}
			defer a.Close()

			if a.cfg.Storage.Driver != config.DriverPostgres {
				return fmt.Errorf("migrate requires the %s storage driver", config.DriverPostgres)
			}
			if err := postgres.Migrate(cmd.Context(), a.db); err != nil {
				return err
			}
			a.logger.Info().Msg("Schema applied")
			return nil
		},
	}
}

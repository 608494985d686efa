package main

import (
	"github.com/spf13/cobra"

	"github.com/raulbatres90/challenge-estudiantes/internal/store"
)

type migrateOutput struct {
	Version int64 `json:"version"`
}

func newMigrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(true)
			if err != nil {
				return err
			}

			pool, err := connectDB(cmd.Context(), cfg)
			if err != nil {
				return err
			}
			defer pool.Close()

			if err := store.Migrate(cmd.Context(), pool); err != nil {
				return err
			}
			version, err := store.MigrationVersion(cmd.Context(), pool)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), migrateOutput{Version: version})
		},
	}
}

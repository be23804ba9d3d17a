package cmd

import (
	"context"

	"github.com/djeeyo/nmreggae/internal/database"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

// migrateCmd represents the migrate command
var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Runs database migrations to ensure the database schema
is up-to-date. This is useful for CI/CD pipelines or initial setup.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log.Info().Str("driver", cfg.DB.Driver).Msg("Connecting to database")
		db, err := database.ConnectWithRetry(context.Background(), cfg.DB, nil, dbConnectAttempts)
		if err != nil {
			return err
		}
		defer database.Close(db)

		log.Info().Msg("Running database migrations")
		if err := database.Migrate(db); err != nil {
			return err
		}

		log.Info().Msg("Database migrations completed successfully")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

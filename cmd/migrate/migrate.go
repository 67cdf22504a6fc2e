// Package migrate implements the migrate command, which applies the
// database schema.
package migrate

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rankforge/crawlpipe/internal/config"
	"github.com/rankforge/crawlpipe/internal/database"
	"github.com/rankforge/crawlpipe/internal/logger"
)

// Command returns the migrate command.
func Command() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}

			log, err := logger.New(cfg.Logger)
			if err != nil {
				return fmt.Errorf("failed to create logger: %w", err)
			}

			db, err := database.NewPostgresConnection(cfg.Database)
			if err != nil {
				return fmt.Errorf("failed to connect to database: %w", err)
			}
			defer db.Close()

			if err := database.Migrate(cmd.Context(), db); err != nil {
				return fmt.Errorf("failed to apply migrations: %w", err)
			}

			log.Info("migrations applied")
			return nil
		},
	}
}

package commands

import (
	"fmt"

	"github.com/cloo-solutions/meetmind/internal/config"
	"github.com/cloo-solutions/meetmind/internal/database"
	"github.com/spf13/cobra"
)

// MigrateCmd returns the migrate command
func MigrateCmd() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pgvector schema migrations",
		Long:  "Applies pending migrations to MEETMIND_DATABASE_URL. Only needed for the pgvector backend.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("MEETMIND_DATABASE_URL is required")
			}
			return database.Migrate(cfg.DatabaseURL, source)
		},
	}

	cmd.Flags().StringVar(&source, "source", database.DefaultMigrationsURL, "Migration source URL")

	return cmd
}

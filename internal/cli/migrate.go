package cli

import (
	"context"
	"fmt"

	"exam-judge-service/internal/infra/postgres"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewMigrateCmd applies database migrations.
func NewMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Run database migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrations(cmd.Context(), e)
		},
	}
}

func runMigrations(ctx context.Context, e *env) error {
	if e.cfg.Postgres.URL == "" {
		return fmt.Errorf("postgres url not configured")
	}

	db := postgres.OpenBun(e.cfg.Postgres.URL)
	defer db.Close()

	group, err := postgres.Migrate(ctx, db)
	if err != nil {
		return err
	}
	if group.IsZero() {
		e.logger.Info("no new migrations")
		return nil
	}
	e.logger.Info("migrations applied", zap.Stringer("group", group))
	return nil
}

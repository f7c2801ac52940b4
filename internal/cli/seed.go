package cli

import (
	"context"
	"fmt"

	"exam-judge-service/internal/app"
	"exam-judge-service/internal/domain"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewSeedCmd loads the sample question bank into the configured store.
func NewSeedCmd(e *env) *cobra.Command {
	var force bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Load the sample question bank into Postgres or SQLite",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer b.Close()
			n, err := seedQuestions(cmd.Context(), b, app.SampleQuestions(), force)
			if err != nil {
				return err
			}
			e.logger.Info("seeded question bank", zap.String("backend", b.name), zap.Int("questions", n))
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "seed even when the bank already has questions")
	return cmd
}

// seedQuestions adds questions unless the bank is already populated. It
// returns how many were written.
func seedQuestions(ctx context.Context, b *backend, questions []domain.Question, force bool) (int, error) {
	if b.seeder == nil {
		return 0, errNoPersistentStore
	}
	if !force {
		existing := 0
		for _, v := range domain.AllVariants {
			n, err := b.store.Count(ctx, v)
			if err != nil {
				return 0, err
			}
			existing += n
		}
		if existing > 0 {
			return 0, nil
		}
	}
	for i, q := range questions {
		q.ID = 0
		if _, err := b.seeder.AddQuestion(ctx, q); err != nil {
			return i, fmt.Errorf("seed question %d: %w", i+1, err)
		}
	}
	return len(questions), nil
}

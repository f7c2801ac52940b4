package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

// NewSimulateCmd records randomly answered exams, mostly to populate dashboards.
func NewSimulateCmd(e *env) *cobra.Command {
	var (
		userID int64
		count  int
	)
	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Record randomly answered exams for a user",
		RunE: func(cmd *cobra.Command, args []string) error {
			if userID <= 0 {
				return fmt.Errorf("--user must be a positive id")
			}
			b, err := openBackend(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			attempts, err := newService(e.cfg, e.logger, b, nil).Simulate(cmd.Context(), userID, count)
			if err != nil {
				return err
			}
			for _, a := range attempts {
				fmt.Fprintf(cmd.OutOrStdout(), "attempt %d: %g/%g in %ds\n", a.ID, a.Score, a.Total, a.DurationSeconds)
			}
			return nil
		},
	}
	cmd.Flags().Int64Var(&userID, "user", 1, "user id to record attempts for")
	cmd.Flags().IntVar(&count, "count", 5, "number of exams to simulate")
	return cmd
}

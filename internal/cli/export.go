package cli

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// NewExportCmd writes every recorded attempt as CSV.
func NewExportCmd(e *env) *cobra.Command {
	var out string
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export exam attempts as CSV",
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := openBackend(cmd.Context(), e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer b.Close()

			var w io.Writer = cmd.OutOrStdout()
			if out != "" && out != "-" {
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				defer f.Close()
				w = f
			}
			if err := newService(e.cfg, e.logger, b, nil).ExportAttempts(cmd.Context(), w); err != nil {
				return err
			}
			if out != "" && out != "-" {
				e.logger.Info("attempts exported", zap.String("file", out))
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default stdout)")
	return cmd
}

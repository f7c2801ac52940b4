package cli

import (
	"os"

	"exam-judge-service/internal/config"
	"exam-judge-service/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// env carries what every subcommand shares once the root has parsed flags.
type env struct {
	configPath string
	port       string
	verbose    bool

	cfg    config.Config
	logger *zap.Logger
}

// Execute runs the CLI.
func Execute() error {
	return newRootCmd().Execute()
}

func newRootCmd() *cobra.Command {
	envPort := os.Getenv("PORT")
	envConfig := os.Getenv("CONFIG_PATH")
	if envConfig == "" {
		envConfig = "config/config.yaml"
	}

	e := &env{logger: zap.NewNop()}
	cmd := &cobra.Command{
		Use:          "exam-service",
		Short:        "Exam assembly, grading and analytics service with a Go code judge",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			logger, err := logging.New(cfg, e.verbose)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = logger
			return nil
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = e.logger.Sync()
		},
	}

	cmd.PersistentFlags().StringVar(&e.port, "port", envPort, "port to listen on (overrides server.port)")
	cmd.PersistentFlags().StringVar(&e.configPath, "config", envConfig, "path to YAML config")
	cmd.PersistentFlags().BoolVarP(&e.verbose, "verbose", "v", false, "log at debug level")
	cmd.AddCommand(
		NewStartCmd(e),
		NewMigrateCmd(e),
		NewSeedCmd(e),
		NewExportCmd(e),
		NewReportCmd(e),
		NewSimulateCmd(e),
	)
	return cmd
}

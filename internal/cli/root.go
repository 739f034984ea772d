package cli

import (
	"fmt"
	"log/slog"

	"github.com/me/armada/internal/config"
	"github.com/me/armada/internal/logging"
	"github.com/spf13/cobra"
)

var (
	flagConfig    string
	flagDebug     bool
	flagLogLevel  string
	flagLogFormat string

	logger *slog.Logger
	cfg    config.Config
)

// NewRootCmd creates the root cobra command for the armada CLI.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "armada",
		Short: "armada — algorithm-portfolio solver scheduler",
		Long:  "armada trains, runs, and evaluates portfolios of external solvers under CPU-seconds budgets.",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg = config.Default()
			if flagConfig != "" {
				loaded, err := config.Load(flagConfig)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				cfg = loaded
			}
			if !cmd.Flags().Changed("log-level") {
				flagLogLevel = cfg.LogLevel
			}
			if !cmd.Flags().Changed("log-format") {
				flagLogFormat = cfg.LogFormat
			}
			if flagDebug {
				flagLogLevel = "debug"
			}
			logger = logging.NewLogger(logging.ParseLevel(flagLogLevel), flagLogFormat)
			return nil
		},
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a YAML config file")
	root.PersistentFlags().BoolVar(&flagDebug, "debug", false, "Enable debug logging")
	root.PersistentFlags().StringVar(&flagLogLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&flagLogFormat, "log-format", "text", "Log format (text, json)")

	root.AddCommand(
		newSolveCmd(),
		newTrainCmd(),
		newValidateCmd(),
		newPrintRunCmd(),
	)

	return root
}

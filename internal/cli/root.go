// Package cli wires the encbench commands. Each command loads the shared
// configuration, materializes the benchmark definition where needed and
// delegates to the bench, compare and report packages.
package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/gwlsn/encbench/internal/config"
	"github.com/gwlsn/encbench/internal/logger"
)

var (
	configPath string
	logLevel   string

	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:           "encbench",
	Short:         "Benchmark video encoders across revisions and parameter sweeps",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		path := configPath
		if path == "" {
			if envPath := os.Getenv("ENCBENCH_CONFIG"); envPath != "" {
				path = envPath
			} else {
				path = "encbench.yaml"
			}
		}
		loaded, err := config.Load(path)
		if err != nil {
			logger.Init("info")
			logger.Warn("could not load config, using defaults", "path", path, "error", err)
			loaded = config.DefaultConfig()
		}
		if logLevel != "" {
			loaded.LogLevel = logLevel
		}
		logger.Init(loaded.LogLevel)
		cfg = loaded
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "path to config file (default ./encbench.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override configured log level")
}

// Execute runs the CLI. Interrupts cancel the session context so external
// tools get killed instead of orphaned.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

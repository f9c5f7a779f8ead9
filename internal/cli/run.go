package cli

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/gwlsn/encbench/internal/bench"
	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/store"
)

var runCmd = &cobra.Command{
	Use:   "run <benchmark.yaml>",
	Short: "Build, encode and measure everything the benchmark defines",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := materialize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		sess, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer sess.Close()

		runner, err := bench.NewRunner(cfg, tc, sess)
		if err != nil {
			return err
		}
		if err := runner.Run(cmd.Context()); err != nil {
			return err
		}

		counters, err := sess.Counters()
		if err == nil {
			logger.Info("session totals",
				"complete", counters.Complete,
				"skipped", counters.Skipped,
				"failed", counters.Failed,
				"encode_seconds", counters.EncodeSeconds,
				"saved_seconds", counters.SavedSeconds)
		}
		return writeReports(tc)
	},
}

var metricsCmd = &cobra.Command{
	Use:   "metrics <benchmark.yaml>",
	Short: "Recompute quality metrics over existing encodes",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := materialize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		runner, err := bench.NewRunner(cfg, tc, nil)
		if err != nil {
			return err
		}
		return runner.RunMetrics(cmd.Context())
	},
}

func init() {
	rootCmd.AddCommand(runCmd, metricsCmd)
}

// materialize loads a benchmark definition and resolves it against the
// configured workspace.
func materialize(ctx context.Context, path string) (*bench.TesterContext, error) {
	if err := cfg.EnsureDirs(); err != nil {
		return nil, err
	}
	def, err := bench.LoadDefinition(path)
	if err != nil {
		return nil, err
	}
	return def.Materialize(ctx, cfg)
}

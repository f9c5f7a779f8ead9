package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/gwlsn/encbench/internal/bench"
	"github.com/gwlsn/encbench/internal/compare"
	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/report"
)

var reportCmd = &cobra.Command{
	Use:   "report <benchmark.yaml>",
	Short: "Render comparison reports from already collected metrics",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tc, err := materialize(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := tc.ValidateBottom(); err != nil {
			return err
		}
		return writeReports(tc)
	},
}

func init() {
	rootCmd.AddCommand(reportCmd)
}

// writeReports renders the CSV, HTML and RD point dumps into the reports
// directory.
func writeReports(tc *bench.TesterContext) error {
	cmp := compare.New(cfg)
	rep, err := cmp.Compare(tc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(cfg.ReportsPath(), 0o755); err != nil {
		return fmt.Errorf("creating reports dir: %w", err)
	}

	csvPath := filepath.Join(cfg.ReportsPath(), "comparison.csv")
	if err := writeTo(csvPath, func(f *os.File) error {
		return report.WriteCSV(f, rep, cfg.CSVFields)
	}); err != nil {
		return err
	}

	htmlPath := filepath.Join(cfg.ReportsPath(), "comparison.html")
	if err := writeTo(htmlPath, func(f *os.File) error {
		return report.WriteHTML(f, rep)
	}); err != nil {
		return err
	}

	rdPath := filepath.Join(cfg.ReportsPath(), "rd_points.csv")
	if err := writeTo(rdPath, func(f *os.File) error {
		return report.WriteRDPoints(f, cmp, tc)
	}); err != nil {
		return err
	}

	logger.Info("reports written", "csv", csvPath, "html", htmlPath, "rd_points", rdPath)
	return nil
}

func writeTo(path string, render func(*os.File) error) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := render(f); err != nil {
		f.Close()
		return fmt.Errorf("rendering %s: %w", path, err)
	}
	return f.Close()
}

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/gwlsn/encbench/internal/logger"
	"github.com/gwlsn/encbench/internal/store"
)

var clearKeepBinaries bool

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Delete cached encodes, metrics records and session state",
	RunE: func(cmd *cobra.Command, args []string) error {
		outRoot := cfg.OutputPath()
		if err := os.RemoveAll(outRoot); err != nil {
			return fmt.Errorf("clearing outputs: %w", err)
		}
		logger.Info("cleared encoded outputs", "path", outRoot)

		if !clearKeepBinaries {
			if err := os.RemoveAll(cfg.BinariesPath()); err != nil {
				return fmt.Errorf("clearing binaries: %w", err)
			}
			logger.Info("cleared built binaries", "path", cfg.BinariesPath())
		}

		sess, err := store.Open(cfg.DBPath())
		if err != nil {
			return err
		}
		defer sess.Close()
		if err := sess.Clear(); err != nil {
			return err
		}
		logger.Info("cleared session state", "db", cfg.DBPath())
		return nil
	},
}

func init() {
	clearCmd.Flags().BoolVar(&clearKeepBinaries, "keep-binaries", false, "keep built encoder binaries")
	rootCmd.AddCommand(clearCmd)
}

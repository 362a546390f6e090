package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/incore-data/internal/config"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "incore-data",
	Short: "Building inventory and dislocation data preparation",
	Long: "Fetches NSI building points and Census block-group demographics, assigns HAZUS " +
		"structural types, and writes CSV, shapefile, GeoJSON and HTML map outputs.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		c, err := config.Load()
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = c

		if err := config.InitLogger(cfg.Log); err != nil {
			return fmt.Errorf("init logger: %w", err)
		}

		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

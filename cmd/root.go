package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/config"
	"github.com/iwmi/leaf-dss/internal/dataset"
	"github.com/iwmi/leaf-dss/internal/loader"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "leaf",
	Short: "LEAF decision support: geo-indicator integration and feasibility scoring",
	Long: `Loads block and gram panchayat boundaries with their indicator tables,
scores every unit against weighted range criteria or a named intervention,
and serves the results as GeoJSON over HTTP or exports them as CSV, GeoJSON,
SQLite or PostGIS tables.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		_ = godotenv.Load(".env")

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

// newCache builds the dataset cache from the loaded configuration.
func newCache() *dataset.Cache {
	src := loader.New(cfg.Data, cfg.Geometry.SimplifyTolerance)
	return dataset.New(src, cfg.Data.GPDistrict)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

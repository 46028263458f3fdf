package main

import (
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var warmCmd = &cobra.Command{
	Use:   "warm",
	Short: "Load every dataset once and report definition diagnostics",
	Long: `Loads the block and GP collections and the variable definitions the
way the server does at startup, then prints any definition-table
diagnostics. A missing GP level is reported but is not an error.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cfg.Validate("engine"); err != nil {
			return err
		}

		start := time.Now()
		cache := newCache()
		if err := cache.Warm(cmd.Context()); err != nil {
			return eris.Wrap(err, "warm")
		}

		diags, err := cache.Diagnostics(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "warm: diagnostics")
		}
		for _, d := range diags {
			fmt.Println(d.String())
		}

		blocks, err := cache.Blocks(cmd.Context())
		if err != nil {
			return eris.Wrap(err, "warm: blocks")
		}
		fmt.Printf("Blocks: %d\n", blocks.Len())
		if gps, err := cache.GPs(cmd.Context()); err == nil {
			fmt.Printf("GPs:    %d (%s)\n", gps.Len(), cfg.Data.GPDistrict)
		} else {
			fmt.Println("GPs:    unavailable")
		}

		zap.L().Info("datasets warmed",
			zap.Int("diagnostics", len(diags)),
			zap.Duration("elapsed", time.Since(start)))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(warmCmd)
}

package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/iwmi/leaf-dss/internal/api"
	"github.com/iwmi/leaf-dss/internal/dataset"
	"github.com/iwmi/leaf-dss/internal/display"
)

var servePort int

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		cache := newCache()
		if err := cache.Warm(ctx); err != nil {
			return eris.Wrap(err, "serve: warm datasets")
		}

		handler, err := buildHandler(cache)
		if err != nil {
			return err
		}

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server",
			zap.Int("port", port),
			zap.Float64("rate_limit", cfg.Server.RateLimit),
			zap.String("gp_district", cfg.Data.GPDistrict))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

// buildHandler assembles the API handler over cache from the loaded
// configuration.
func buildHandler(cache *dataset.Cache) (http.Handler, error) {
	disp, err := display.Load(cfg.Display.Path)
	if err != nil {
		return nil, eris.Wrap(err, "serve: display config")
	}
	srv := api.New(cache, api.Options{
		Display:        disp,
		GPDistrict:     cfg.Data.GPDistrict,
		RateLimit:      cfg.Server.RateLimit,
		AllowedOrigins: cfg.Server.AllowedOrigins,
	})
	return srv.Routes(), nil
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

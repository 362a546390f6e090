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

	"github.com/sells-group/incore-data/internal/monitoring"
	"github.com/sells-group/incore-data/internal/server"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API for inventories, dislocation maps and run history",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if servePort != 0 {
			cfg.Server.Port = servePort
		}
		if err := cfg.Validate("serve"); err != nil {
			return err
		}

		metrics := monitoring.NewMetrics("incore")
		f := newFetcher(cfg.Fetch)

		builder, err := newInventoryBuilder(ctx, f, metrics)
		if err != nil {
			return err
		}

		deps := server.Deps{
			Inventory:   builder,
			Dislocation: newDislocation(f, metrics),
			Counties:    newResolver(f),
			Metrics:     metrics,
			Upstreams:   f,
			Defaults: server.Defaults{
				Vintage:      cfg.Census.Vintage,
				Dataset:      cfg.Census.Dataset,
				TigerBaseURL: cfg.Tiger.BaseURL,
				TigerYear:    cfg.Tiger.Year,
				Random:       cfg.Classify.Random,
				Seed:         cfg.Classify.Seed,
			},
		}

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck
		deps.Store = st
		deps.Collector = monitoring.NewCollector(storeLister(st))

		if cfg.Monitoring.Enabled {
			checker := monitoring.NewChecker(deps.Collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
			go checker.Run(ctx)
		}

		srv := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
			Handler:           server.New(deps).Router(),
			ReadHeaderTimeout: 10 * time.Second,
		}

		// Graceful shutdown
		go func() {
			<-ctx.Done()
			zap.L().Info("shutting down server")
			shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 15*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				zap.L().Warn("server shutdown", zap.Error(err))
			}
		}()

		zap.L().Info("starting server", zap.Int("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return eris.Wrap(err, "server listen")
		}

		return nil
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}

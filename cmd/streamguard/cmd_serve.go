package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hed1ad/streamguard/internal/cache"
	"github.com/hed1ad/streamguard/internal/server"
)

func newServeCommand(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the detection HTTP API",
		Long: `Serve anomaly detection over HTTP.

Endpoints:
  POST /detect                 detect anomalies in a JSON array of values
  GET  /reports/{id}           fetch a stored detection report
  GET  /reports/{id}/plot.png  render a stored report as a chart
  GET  /health                 liveness probe
  GET  /metrics                Prometheus metrics

Reports are kept in Redis when --redis-addr is set, in memory otherwise.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runServe(ctx)
		},
	}

	cmd.Flags().String("addr", ":8080", "Listen address")
	cmd.Flags().String("redis-addr", "", "Redis address for the report store (empty keeps reports in memory)")
	cmd.Flags().Duration("redis-ttl", time.Hour, "Expiry of reports stored in Redis")
	addDetectorFlags(cmd)

	return cmd
}

func (a *app) runServe(ctx context.Context) error {
	store, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer store.Close()

	return server.New(a.cfg.Server, a.cfg.Detector, store, a.logger).Run(ctx)
}

func (a *app) openStore(ctx context.Context) (cache.Store, error) {
	rc := a.cfg.Redis
	if rc.Addr == "" {
		a.logger.Info("using in-memory report store")
		return cache.NewMemory(), nil
	}

	store, err := cache.NewRedis(ctx, rc.Addr, rc.DB, rc.TTL)
	if err != nil {
		return nil, err
	}
	a.logger.Info("using redis report store", zap.String("addr", rc.Addr), zap.Duration("ttl", rc.TTL))
	return store, nil
}

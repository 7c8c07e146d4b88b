package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/kirillkom/hyena-client/internal/bootstrap"
	"github.com/kirillkom/hyena-client/internal/config"
	"github.com/kirillkom/hyena-client/internal/observability/logging"
	"github.com/kirillkom/hyena-client/internal/observability/metrics"
)

const serviceName = "hyena-watcher"

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	logger := logging.NewJSONLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg, serviceName, logger)
	if err != nil {
		log.Fatalf("bootstrap error: %v", err)
	}
	defer app.Close()

	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler(app.MetricsRegistry))
	metricsServer := &http.Server{
		Addr:              ":" + cfg.WatcherMetricsPort,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("watcher_metrics_listening", "port", cfg.WatcherMetricsPort)
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("watcher_metrics_server_failed", "error", err)
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if n, err := app.IngestUC.Resume(ctx); err != nil {
		logger.Warn("resume_failed", "error", err)
	} else if n > 0 {
		logger.Info("polls_resumed", "count", n)
	}

	if err := app.RunInbox(ctx, cfg.InboxDir); err != nil {
		logger.Error("watcher_stopped", "error", err)
		return
	}
	logger.Info("watcher_stopped")
}

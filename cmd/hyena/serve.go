package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"

	httpadapter "github.com/kirillkom/hyena-client/internal/adapters/http"
	"github.com/kirillkom/hyena-client/internal/observability/metrics"
)

func newServeCmd(c *cli) *cobra.Command {
	var (
		addr   string
		apiKey string
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the companion HTTP server (documents, streamed answers, metrics)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			app, err := c.application(cmd)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = app.Config.ServeAddr
			}
			if apiKey == "" {
				apiKey = app.Config.ServeAPIKey
			}
			ctx := cmd.Context()
			logger := app.Logger

			if err := app.CatalogUC.Refresh(ctx); err != nil {
				logger.Warn("initial_refresh_failed", "error", err)
			}
			if n, err := app.IngestUC.Resume(ctx); err != nil {
				logger.Warn("resume_failed", "error", err)
			} else if n > 0 {
				logger.Info("polls_resumed", "count", n)
			}

			router := httpadapter.NewRouter(app.AskUC, app.CatalogUC, app.Poller, app.Health, httpadapter.RouterOptions{
				Service:        serviceName,
				APIKey:         apiKey,
				RateLimit:      app.Config.ServeRateLimit,
				RateBurst:      app.Config.ServeRateBurst,
				MaxInFlight:    app.Config.ServeMaxInFlight,
				QueueTimeout:   250 * time.Millisecond,
				Metrics:        metrics.NewHTTPServerMetrics(serviceName, app.MetricsRegistry),
				MetricsHandler: metrics.Handler(app.MetricsRegistry),
				Logger:         logger,
			})
			server := &http.Server{
				Addr:              addr,
				Handler:           router.Handler(),
				ReadHeaderTimeout: 10 * time.Second,
				IdleTimeout:       60 * time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("serve_listening", "addr", addr)
				if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				return err
			case <-ctx.Done():
			}
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides SERVE_ADDR)")
	cmd.Flags().StringVar(&apiKey, "api-key", "", "require this bearer token on /v1 routes (overrides SERVE_API_KEY)")
	return cmd
}

package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/hyena-client/internal/config"
	"github.com/kirillkom/hyena-client/internal/core/ports"
	"github.com/kirillkom/hyena-client/internal/core/stream"
	"github.com/kirillkom/hyena-client/internal/core/usecase"
	"github.com/kirillkom/hyena-client/internal/infrastructure/backend/hyena"
	"github.com/kirillkom/hyena-client/internal/infrastructure/clock"
	"github.com/kirillkom/hyena-client/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/hyena-client/internal/infrastructure/pdfcheck"
	"github.com/kirillkom/hyena-client/internal/infrastructure/queue/nats"
	"github.com/kirillkom/hyena-client/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/hyena-client/internal/infrastructure/resilience"
	"github.com/kirillkom/hyena-client/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/hyena-client/internal/observability/metrics"
)

type App struct {
	Config config.Config
	Logger *slog.Logger

	MetricsRegistry *prometheus.Registry
	Metrics         *metrics.ClientMetrics

	Backend   *hyena.Client
	Health    ports.HealthProber
	Documents *usecase.DocumentRegistry
	Poller    *usecase.Poller
	Storage   *localfs.Storage
	// Events is nil unless NATS_URL is set.
	Events *nats.Notifier

	AskUC     *usecase.AskUseCase
	IngestUC  *usecase.IngestUseCase
	CatalogUC *usecase.CatalogUseCase
	ExportUC  *usecase.ExportUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, service string, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}
	registry := metrics.NewRegistry()
	clientMetrics := metrics.NewClientMetrics(service, registry)

	resilienceCfg := resilience.Config{
		RetryMaxAttempts:    cfg.RetryMaxAttempts,
		RetryInitialBackoff: cfg.RetryInitialBackoff,
		BreakerEnabled:      cfg.BreakerEnabled,
		BreakerOpenTimeout:  cfg.BreakerOpenTimeout,
	}.FitWithin(cfg.PollInterval)
	executor := resilience.NewExecutor(resilienceCfg, logger, clientMetrics.ObserveBreakerState)
	backend := hyena.New(cfg.APIBaseURL, cfg.HTTPTimeout, executor)

	storage, err := localfs.New(cfg.StoragePath)
	if err != nil {
		return nil, fmt.Errorf("init export storage: %w", err)
	}

	var (
		closers []func()
		ledger  ports.DocumentLedger
	)
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	documents := usecase.NewDocumentRegistry()
	if cfg.PostgresDSN != "" {
		db, err := openLedger(ctx, cfg.PostgresDSN)
		if err != nil {
			return nil, err
		}
		closers = append(closers, func() { _ = db.Close() })
		l := postgres.NewDocumentLedger(db)
		ledger = l
		documents.Subscribe(usecase.LedgerSync(l, logger))
	}

	sysClock := clock.System{}
	poller := usecase.NewPoller(backend, documents, sysClock, usecase.PollerConfig{
		Interval:       cfg.PollInterval,
		MaxAttempts:    cfg.PollMaxAttempts,
		SurfaceTimeout: cfg.PollSurfaceTimeout,
	}, clientMetrics, logger)
	closers = append(closers, func() {
		poller.CancelAll()
		poller.Wait()
	})

	var events *nats.Notifier
	if cfg.NATSURL != "" {
		events, err = nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubjectPrefix, nats.Options{
			ResilienceExecutor: executor,
			Logger:             logger,
		})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init event notifier: %w", err)
		}
		closers = append(closers, events.Close)
		poller.AddNotifier(events)
	}

	policy := stream.SkipMalformed
	if cfg.StreamStrictFrames {
		policy = stream.FailOnMalformed
	}
	consumer := stream.NewConsumer(stream.Options{
		ReadSize:    cfg.StreamReadSize,
		Policy:      policy,
		OnMalformed: clientMetrics.ObserveMalformedFrame,
		OnDiscard: func(rest string) {
			logger.Debug("stream_trailing_data_discarded", "bytes", len(rest))
		},
	})

	catalogUC := usecase.NewCatalogUseCase(backend, documents, poller)
	poller.SetRefresher(catalogUC)

	return &App{
		Config: cfg,
		Logger: logger,

		MetricsRegistry: registry,
		Metrics:         clientMetrics,

		Backend:   backend,
		Health:    backend,
		Documents: documents,
		Poller:    poller,
		Storage:   storage,
		Events:    events,

		AskUC:     usecase.NewAskUseCase(backend, backend, consumer, clientMetrics, logger),
		IngestUC:  usecase.NewIngestUseCase(backend, pdfcheck.New(), documents, poller, sysClock, ledger),
		CatalogUC: catalogUC,
		ExportUC:  usecase.NewExportUseCase(documents, xlsx.New(), storage, sysClock),

		closeFn: closeAll,
	}, nil
}

func openLedger(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := postgres.OpenDB(dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := postgres.NewDocumentLedger(db).EnsureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ensure schema: %w", err)
	}
	return db, nil
}

// Close stops every poll and releases connections.
func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

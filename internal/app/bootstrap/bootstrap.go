package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	settlementengine "backlot/contexts/finance-core/settlement-engine"
	"backlot/contexts/finance-core/settlement-engine/adapters/facilitator"
	settlementpostgres "backlot/contexts/finance-core/settlement-engine/adapters/postgres"
	settlementworkers "backlot/contexts/finance-core/settlement-engine/application/workers"
	periodscheduler "backlot/contexts/studio-content/period-scheduler"
	schedulerpostgres "backlot/contexts/studio-content/period-scheduler/adapters/postgres"
	schedulerworkers "backlot/contexts/studio-content/period-scheduler/application/workers"
	schedulerports "backlot/contexts/studio-content/period-scheduler/ports"
	productionpipeline "backlot/contexts/studio-content/production-pipeline"
	pipelinepostgres "backlot/contexts/studio-content/production-pipeline/adapters/postgres"
	"backlot/contexts/studio-content/production-pipeline/adapters/providers"
	pipelineapp "backlot/contexts/studio-content/production-pipeline/application"
	pipelineworkers "backlot/contexts/studio-content/production-pipeline/application/workers"
	pipelineentities "backlot/contexts/studio-content/production-pipeline/domain/entities"
	pipelineports "backlot/contexts/studio-content/production-pipeline/ports"
	"backlot/internal/platform/config"
	"backlot/internal/platform/db"
	"backlot/internal/platform/httpserver"
	"backlot/internal/platform/messaging"
	"backlot/internal/platform/storage"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres *db.Postgres

	scheduler periodscheduler.Module

	schedulerRelay  schedulerworkers.OutboxRelay
	pipelineRelay   pipelineworkers.OutboxRelay
	settlementRelay settlementworkers.OutboxRelay
	payouts         settlementworkers.PayoutProcessor

	cfg          config.Config
	pollInterval time.Duration
	logger       *slog.Logger
}

func BuildAPI() (*APIApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "api")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	schedulerModule, pipelineModule, settlementModule, err := buildModules(cfg, pg, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	server := httpserver.New(schedulerModule, pipelineModule, settlementModule, logger, normalizeAddr(cfg.HTTPPort))
	return &APIApp{
		server:   server,
		postgres: pg,
		logger:   logger,
	}, nil
}

func BuildWorker() (*WorkerApp, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	logger := slog.Default().With("service", cfg.ServiceName, "process", "worker")
	if strings.TrimSpace(cfg.PostgresDSN) == "" {
		return nil, errors.New("POSTGRES_DSN is required")
	}

	pg, err := db.Connect(cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}

	schedulerModule, _, _, err := buildModules(cfg, pg, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		_ = pg.Close()
		return nil, err
	}

	schedulerRepo := schedulerpostgres.NewRepository(pg.DB, logger)
	pipelineRepo := pipelinepostgres.NewRepository(pg.DB, logger)
	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)

	var transfers *facilitator.Client
	if strings.TrimSpace(cfg.FacilitatorBaseURL) != "" {
		transfers = &facilitator.Client{
			BaseURL: cfg.FacilitatorBaseURL,
			APIKey:  cfg.FacilitatorAPIKey,
		}
	}

	app := &WorkerApp{
		postgres:  pg,
		scheduler: schedulerModule,
		schedulerRelay: schedulerworkers.OutboxRelay{
			Outbox:    schedulerRepo,
			Publisher: kafka,
			Clock:     schedulerpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		pipelineRelay: pipelineworkers.OutboxRelay{
			Outbox:    pipelineRepo,
			Publisher: kafka,
			Clock:     pipelinepostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		settlementRelay: settlementworkers.OutboxRelay{
			Outbox:    settlementRepo,
			Publisher: kafka,
			Clock:     settlementpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		payouts: settlementworkers.PayoutProcessor{
			Repo: settlementRepo,
			Config: settlementpostgres.SettingsProvider{
				DB:              pg.DB,
				PlatformAddress: cfg.PlatformAddress,
				PlatformWallet:  cfg.PlatformWallet,
			},
			Outbox:    settlementRepo,
			Clock:     settlementpostgres.SystemClock{},
			IDGen:     settlementpostgres.UUIDGenerator{},
			BatchSize: 50,
			Logger:    logger,
		},
		cfg:          cfg,
		pollInterval: cfg.WorkerPollInterval,
		logger:       logger,
	}
	if transfers != nil {
		app.payouts.Transfers = *transfers
	}
	return app, nil
}

// buildModules wires the three bounded contexts against postgres. The
// scheduler drives the pipeline through the production runner adapter so the
// contexts never import each other.
func buildModules(cfg config.Config, pg *db.Postgres, logger *slog.Logger) (periodscheduler.Module, productionpipeline.Module, settlementengine.Module, error) {
	pipelineRepo := pipelinepostgres.NewRepository(pg.DB, logger)

	var video pipelineports.VideoGenerator
	var audio pipelineports.AudioGenerator
	var image pipelineports.ImageGenerator
	if strings.TrimSpace(cfg.ProviderBaseURL) != "" {
		client := providers.Client{
			BaseURL: cfg.ProviderBaseURL,
			APIKey:  cfg.ProviderAPIKey,
			Logger:  logger,
		}
		video, audio, image = client, client, client
	}

	var uploader pipelineports.StorageUploader
	if strings.TrimSpace(cfg.AssetsBucket) != "" {
		s3Uploader, err := storage.NewS3Uploader(context.Background(), cfg.AssetsBucket, cfg.AssetsRegion, cfg.CDNBaseURL, logger)
		if err != nil {
			return periodscheduler.Module{}, productionpipeline.Module{}, settlementengine.Module{}, err
		}
		uploader = s3Uploader
	}

	pipelineModule := productionpipeline.NewModule(productionpipeline.Dependencies{
		Repository:  pipelineRepo,
		Video:       video,
		Audio:       audio,
		Image:       image,
		Uploader:    uploader,
		Config:      pipelinepostgres.SettingsProvider{DB: pg.DB},
		Outbox:      pipelineRepo,
		Clock:       pipelinepostgres.SystemClock{},
		IDGenerator: pipelinepostgres.UUIDGenerator{},
		Logger:      logger,
	})

	var production schedulerports.ProductionRunner
	if cfg.EnableProductionPasses {
		production = productionRunner{pipeline: pipelineModule.Service}
	}

	schedulerRepo := schedulerpostgres.NewRepository(pg.DB, logger)
	schedulerModule := periodscheduler.NewModule(periodscheduler.Dependencies{
		Periods:     schedulerRepo,
		Submissions: schedulerRepo,
		Production:  production,
		Config:      schedulerpostgres.SettingsProvider{DB: pg.DB},
		Outbox:      schedulerRepo,
		Clock:       schedulerpostgres.SystemClock{},
		IDGenerator: schedulerpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	settlementRepo := settlementpostgres.NewRepository(pg.DB, logger)
	settlementModule := settlementengine.NewModule(settlementengine.Dependencies{
		Repository: settlementRepo,
		Facilitator: facilitator.Client{
			BaseURL:    cfg.FacilitatorBaseURL,
			APIKey:     cfg.FacilitatorAPIKey,
			HTTPClient: &http.Client{Timeout: 15 * time.Second},
		},
		Config: settlementpostgres.SettingsProvider{
			DB:              pg.DB,
			PlatformAddress: cfg.PlatformAddress,
			PlatformWallet:  cfg.PlatformWallet,
		},
		Outbox:      settlementRepo,
		Clock:       settlementpostgres.SystemClock{},
		IDGenerator: settlementpostgres.UUIDGenerator{},
		Logger:      logger,
	})

	return schedulerModule, pipelineModule, settlementModule, nil
}

// productionRunner adapts the pipeline service to the scheduler's port.
type productionRunner struct {
	pipeline pipelineapp.Service
}

func (r productionRunner) RunPass(ctx context.Context, kind string, limit int) (schedulerports.PassReport, error) {
	report, err := r.pipeline.Process(ctx, pipelineentities.WorkKind(kind), limit)
	return toSchedulerPass(report), err
}

func (r productionRunner) RunRetrySweep(ctx context.Context, kind string, limit int) (schedulerports.PassReport, error) {
	report, err := r.pipeline.RetrySweep(ctx, pipelineentities.WorkKind(kind), limit)
	return toSchedulerPass(report), err
}

func toSchedulerPass(report pipelineports.PassReport) schedulerports.PassReport {
	return schedulerports.PassReport{
		Selected:  report.Selected,
		Completed: report.Completed,
		Failed:    report.Failed,
		Skipped:   report.Skipped,
	}
}

func (a *APIApp) Run(_ context.Context) error {
	if a.logger != nil {
		a.logger.Info("api app started",
			"event", "bootstrap_api_started",
			"module", "internal/app/bootstrap",
			"layer", "platform",
		)
	}
	return a.server.Start()
}

func (a *APIApp) Close() error {
	if a.postgres != nil {
		return a.postgres.Close()
	}
	return nil
}

func (w *WorkerApp) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if w.cfg.EnableSchedulerTicks {
			if _, err := w.scheduler.Service.Tick(ctx); err != nil {
				// Tick failures are retried on the next cycle.
				w.logger.Error("scheduler tick failed",
					"event", "bootstrap_tick_failed",
					"module", "internal/app/bootstrap",
					"layer", "platform",
					"error", err.Error(),
				)
			}
		}

		group, groupCtx := errgroup.WithContext(ctx)
		if w.cfg.EnableOutboxRelays {
			group.Go(func() error { return w.schedulerRelay.RunOnce(groupCtx) })
			group.Go(func() error { return w.pipelineRelay.RunOnce(groupCtx) })
			group.Go(func() error { return w.settlementRelay.RunOnce(groupCtx) })
		}
		if w.cfg.EnablePayoutProcessor {
			group.Go(func() error { return w.payouts.RunOnce(groupCtx) })
		}
		if err := group.Wait(); err != nil {
			return err
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

func (w *WorkerApp) Close() error {
	if w.postgres != nil {
		return w.postgres.Close()
	}
	return nil
}

func normalizeAddr(port string) string {
	value := strings.TrimSpace(port)
	if value == "" {
		return ":8080"
	}
	if strings.HasPrefix(value, ":") {
		return value
	}
	return ":" + value
}

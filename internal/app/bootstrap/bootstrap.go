package bootstrap

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	ballotoffice "ballotbox/contexts/governance/ballot-office"
	ballotpostgres "ballotbox/contexts/governance/ballot-office/adapters/postgres"
	ballotworkers "ballotbox/contexts/governance/ballot-office/application/workers"
	electionengine "ballotbox/contexts/governance/election-engine"
	electionpostgres "ballotbox/contexts/governance/election-engine/adapters/postgres"
	electionworkers "ballotbox/contexts/governance/election-engine/application/workers"
	"ballotbox/internal/platform/config"
	"ballotbox/internal/platform/db"
	"ballotbox/internal/platform/httpserver"
	"ballotbox/internal/platform/messaging"
	"ballotbox/internal/platform/notify"
)

// Package bootstrap is the composition root.
// Keep construction/wiring here so module code stays framework-agnostic.

type APIApp struct {
	server   *httpserver.Server
	postgres *db.Postgres
	logger   *slog.Logger
}

type WorkerApp struct {
	postgres         *db.Postgres
	ballotRelay      ballotworkers.OutboxRelay
	electionRelay    electionworkers.OutboxRelay
	electionConsumer ballotworkers.ElectionStateConsumer
	resultsNotifier  electionworkers.ResultsNotifier
	pollInterval     time.Duration
	logger           *slog.Logger
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

	ballotModule, electionModule := buildModules(pg, cfg, logger)
	server := httpserver.New(ballotModule, electionModule, logger, normalizeAddr(cfg.HTTPPort))
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

	kafka, err := messaging.NewKafka(cfg.KafkaBrokers, logger)
	if err != nil {
		return nil, err
	}

	ballotModule, _ := buildModules(pg, cfg, logger)
	ballotRepo := ballotpostgres.NewRepository(pg.DB, logger)
	electionRepo := electionpostgres.NewRepository(pg.DB, logger)

	return &WorkerApp{
		postgres: pg,
		ballotRelay: ballotworkers.OutboxRelay{
			Outbox:    ballotRepo,
			Publisher: kafka,
			Clock:     ballotpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		electionRelay: electionworkers.OutboxRelay{
			Outbox:    electionRepo,
			Publisher: kafka,
			Clock:     electionpostgres.SystemClock{},
			BatchSize: 100,
			Logger:    logger,
		},
		electionConsumer: ballotworkers.ElectionStateConsumer{
			Subscriber: kafka,
			Dedup:      ballotRepo,
			Tokens:     ballotModule.Tokens,
			Clock:      ballotpostgres.SystemClock{},
			DedupTTL:   7 * 24 * time.Hour,
			Disabled:   !cfg.EnableElectionStateConsumer,
			Logger:     logger,
		},
		resultsNotifier: electionworkers.ResultsNotifier{
			Subscriber: kafka,
			Dedup:      electionRepo,
			Members:    electionRepo,
			Notifier:   notify.LogNotifier{Logger: logger},
			Clock:      electionpostgres.SystemClock{},
			DedupTTL:   7 * 24 * time.Hour,
			Disabled:   !cfg.EnableResultsNotifier,
			Logger:     logger,
		},
		pollInterval: 2 * time.Second,
		logger:       logger,
	}, nil
}

func buildModules(pg *db.Postgres, cfg config.Config, logger *slog.Logger) (ballotoffice.Module, electionengine.Module) {
	ballotRepo := ballotpostgres.NewRepository(pg.DB, logger)
	electionRepo := electionpostgres.NewRepository(pg.DB, logger)

	ballotModule := ballotoffice.NewModule(ballotoffice.Dependencies{
		Elections:     ballotRepo,
		Votes:         ballotRepo,
		Tokens:        ballotRepo,
		Members:       ballotRepo,
		Meetings:      ballotRepo,
		Overrides:     ballotRepo,
		Proxies:       ballotRepo,
		Audit:         ballotRepo,
		Notifier:      notify.LogNotifier{Logger: logger},
		Outbox:        ballotRepo,
		Clock:         ballotpostgres.SystemClock{},
		IDGen:         ballotpostgres.UUIDGenerator{},
		Minter:        ballotpostgres.RandomTokenMinter{},
		OrgSalt:       cfg.OrgVoterSalt,
		SigningSecret: cfg.VoteSigningSecret,
		TokenTTL:      cfg.TokenTTL,
		Logger:        logger,
	})

	electionModule := electionengine.NewModule(electionengine.Dependencies{
		Elections: electionRepo,
		Ballots:   electionRepo,
		Members:   electionRepo,
		Meetings:  electionRepo,
		Notifier:  notify.LogNotifier{Logger: logger},
		Outbox:    electionRepo,
		Clock:     electionpostgres.SystemClock{},
		IDGen:     electionpostgres.UUIDGenerator{},
		Logger:    logger,
	})
	return ballotModule, electionModule
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
	if err := w.electionConsumer.Start(ctx); err != nil {
		return err
	}
	if err := w.resultsNotifier.Start(ctx); err != nil {
		return err
	}

	ticker := time.NewTicker(w.pollInterval)
	defer ticker.Stop()

	w.logger.Info("worker app started",
		"event", "bootstrap_worker_started",
		"module", "internal/app/bootstrap",
		"layer", "platform",
		"poll_interval", w.pollInterval.String(),
	)

	for {
		if err := w.ballotRelay.RunOnce(ctx); err != nil {
			return err
		}
		if err := w.electionRelay.RunOnce(ctx); err != nil {
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

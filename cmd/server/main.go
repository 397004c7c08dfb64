package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	httpadapter "riskwatch/internal/adapters/http"
	pg "riskwatch/internal/adapters/postgres"
	"riskwatch/internal/adapters/providers"
	"riskwatch/internal/config"
	"riskwatch/internal/ports"
	"riskwatch/internal/services/intel"
	"riskwatch/internal/workers/syncrunner"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("configuration error", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := pg.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("db connect failed", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := db.Migrate(ctx); err != nil {
		logger.Error("migrations failed", "error", err)
		os.Exit(1)
	}

	// Wire the store adapter to the ports it implements
	var _ ports.AlertRepository = db
	var _ ports.ScoreRepository = db
	var _ ports.VendorRepository = db
	var _ ports.JobRepository = db

	deps := intel.Deps{Vendors: db, Alerts: db, Scores: db}
	pcfg := providers.Config{
		NewsURL:    cfg.NewsURL,
		FilingsURL: cfg.FilingsURL,
		BreachURL:  cfg.BreachURL,
		RatingURL:  cfg.RatingURL,
		APIKey:     cfg.ProviderAPIKey,
	}
	if cfg.NewsURL != "" {
		deps.News = providers.NewNewsClient(pcfg)
	}
	if cfg.FilingsURL != "" {
		deps.Filings = providers.NewFilingsClient(pcfg)
	}
	if cfg.BreachURL != "" {
		deps.Breach = providers.NewBreachClient(pcfg)
	}
	if cfg.RatingURL != "" {
		deps.Rating = providers.NewRatingClient(pcfg)
	}

	svc := intel.New(deps, cfg.Risk, logger)
	srv := httpadapter.New(svc, svc, db, db, db)
	r := chi.NewRouter()
	r.Mount("/", srv.Routes())

	// Optional background sync workers
	if cfg.SyncWorkers > 0 {
		go syncrunner.Run(ctx, db, svc, cfg.SyncWorkers, 500*time.Millisecond)
		logger.Info("sync workers started", "count", cfg.SyncWorkers)
	}

	errCh := make(chan error, 1)
	go func() { errCh <- http.ListenAndServe(cfg.ListenAddr, r) }()
	logger.Info("listening", "addr", cfg.ListenAddr)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		logger.Info("shutting down", "signal", sig.String())
		cancel()
		time.Sleep(300 * time.Millisecond)
	case err := <-errCh:
		logger.Error("server error", "error", err)
		os.Exit(1)
	}
}

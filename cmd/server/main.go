package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/oakmont/folio/internal/clients/yahoo"
	"github.com/oakmont/folio/internal/config"
	"github.com/oakmont/folio/internal/database"
	"github.com/oakmont/folio/internal/modules/alerts"
	"github.com/oakmont/folio/internal/modules/charts"
	"github.com/oakmont/folio/internal/modules/clients"
	"github.com/oakmont/folio/internal/modules/engine"
	"github.com/oakmont/folio/internal/modules/importer"
	"github.com/oakmont/folio/internal/modules/ledger"
	"github.com/oakmont/folio/internal/modules/pricing"
	"github.com/oakmont/folio/internal/modules/reports"
	"github.com/oakmont/folio/internal/modules/valuation"
	"github.com/oakmont/folio/internal/scheduler"
	"github.com/oakmont/folio/internal/server"
	"github.com/oakmont/folio/pkg/logger"
)

func main() {
	// Load configuration first so the log level is honored
	cfg, err := config.Load()
	if err != nil {
		fallback := logger.New(logger.Config{Level: "info", Pretty: true})
		fallback.Fatal().Err(err).Msg("Failed to load configuration")
	}

	log := logger.New(logger.Config{
		Level:  cfg.LogLevel,
		Pretty: cfg.DevMode,
	})
	logger.SetGlobalLogger(log)

	log.Info().Msg("Starting Folio")

	// Initialize database
	db, err := database.New(cfg.DatabasePath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize database")
	}
	defer db.Close()

	// Create schemas
	if err := ledger.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create ledger schema")
	}
	if err := clients.InitSchema(db.Conn()); err != nil {
		log.Fatal().Err(err).Msg("Failed to create clients schema")
	}
	priceCache := pricing.NewCacheRepository(db.Conn(), log)
	if err := priceCache.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create price cache schema")
	}
	alertRepo := alerts.NewRepository(db.Conn(), log)
	if err := alertRepo.InitSchema(); err != nil {
		log.Fatal().Err(err).Msg("Failed to create alerts schema")
	}

	// Repositories
	txRepo := ledger.NewTransactionRepository(db.Conn(), log)
	cashRepo := ledger.NewCashRepository(db.Conn(), log)
	clientRepo := clients.NewRepository(db.Conn(), log)

	// Core engine and services
	eng := engine.New(txRepo, cashRepo, cfg.AllowOverdraft, log)
	clientSvc := clients.NewService(clientRepo, eng, alertRepo, log)

	quoteClient := yahoo.NewClient(cfg.QuoteServiceURL, log)
	historyStore := pricing.NewHistoryStore(cfg.PriceHistoryDir, log)
	pricingSvc := pricing.NewService(priceCache, historyStore, quoteClient, 15*time.Minute, log)

	valuationSvc := valuation.NewService(eng, pricingSvc, log)
	reportsSvc := reports.NewService(eng, valuationSvc, txRepo, cashRepo, log)
	importerSvc := importer.NewService(eng, log)
	chartsSvc := charts.NewService(pricingSvc, log)
	alertsSvc := alerts.NewService(alertRepo, pricingSvc, log)

	// Scheduler and background jobs
	sched := scheduler.New(log)
	if err := sched.AddJob(cfg.PriceRefreshSpec, scheduler.NewPriceRefreshJob(txRepo, pricingSvc, alertsSvc, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register price refresh job")
	}
	if err := sched.AddJob("0 0 */6 * * *", scheduler.NewHealthCheckJob(db, cfg.PriceHistoryDir, log)); err != nil {
		log.Fatal().Err(err).Msg("Failed to register health check job")
	}
	sched.Start()
	defer sched.Stop()

	// Initialize HTTP server
	srv := server.New(server.Config{
		Port: cfg.Port,
		Log:  log,
		DB:   db,
		Handlers: server.Handlers{
			Clients:  clients.NewHandler(clientSvc, log),
			Engine:   engine.NewHandler(eng, txRepo, cashRepo, log),
			Reports:  reports.NewHandler(reportsSvc, valuationSvc, log),
			Importer: importer.NewHandler(importerSvc, log),
			Charts:   charts.NewHandler(chartsSvc, log),
			Alerts:   alerts.NewHandler(alertsSvc, log),
		},
		DevMode: cfg.DevMode,
	})

	// Start server in goroutine
	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("Failed to start server")
		}
	}()

	log.Info().Int("port", cfg.Port).Msg("Server started successfully")

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server stopped")
}

package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/reelradar/harvester/app/api"
	"github.com/reelradar/harvester/app/cfg"
	"github.com/reelradar/harvester/app/database"
	"github.com/reelradar/harvester/app/enrich"
	"github.com/reelradar/harvester/app/harvest"
	"github.com/reelradar/harvester/app/scrape"
	"github.com/reelradar/harvester/app/tasks"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	// Local development convenience; production sets real env vars.
	_ = godotenv.Load()

	appCfg, err := cfg.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	if appCfg.Debug {
		slog.SetLogLoggerLevel(slog.LevelDebug)
	}

	slog.Info("Starting harvester", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "schema_version", version, "dirty", dirty)

	datasetRepo := database.NewDatasetRepository(db)
	sourceRepo := database.NewSourceRepository(db)
	itemRepo := database.NewItemRepository(db)
	runRepo := database.NewRunRepository(db)

	scraper := scrape.NewClient(appCfg.ScraperEndpoint, appCfg.ScraperToken,
		appCfg.ScraperActorID, appCfg.UserAgent)

	taxonomy, err := enrich.LoadTaxonomy(appCfg.TaxonomyFile)
	if err != nil {
		log.Fatalf("Failed to load taxonomy: %v", err)
	}
	modelClient := enrich.NewClient(appCfg.AIEndpoint, appCfg.AIKey,
		appCfg.AIVisionModel, appCfg.AITextModel, taxonomy, scraper)

	scorer := harvest.NewScorer(itemRepo)
	orchestrator := harvest.NewOrchestrator(sourceRepo, itemRepo, runRepo, scraper, scorer)
	runner := harvest.NewRunner(sourceRepo, orchestrator)

	headlineExtractor := enrich.NewHeadlineExtractor(itemRepo, modelClient)
	analyzer := enrich.NewAnalyzer(itemRepo, modelClient, int64(appCfg.AnalysisMinViews))

	scheduler := tasks.NewScheduler(runner)
	scheduler.Start()
	defer scheduler.Stop()
	slog.Info("Background scheduler started",
		"interval", time.Duration(appCfg.SchedulerInterval)*time.Second,
		"max_sources", appCfg.MaxSourcesPerRun)

	apiHandler := api.NewHandler(datasetRepo, sourceRepo, itemRepo, runRepo,
		scheduler, runner, headlineExtractor, analyzer, api.Options{
			MaxSourcesPerRun: appCfg.MaxSourcesPerRun,
			InterSourceDelay: time.Duration(appCfg.InterSourceDelay) * time.Second,
			WallClockBudget:  time.Duration(appCfg.WallClockBudget) * time.Second,
			AnalysisMinViews: int64(appCfg.AnalysisMinViews),
			Version:          appCfg.Version,
		})
	server := api.NewServer(apiHandler, appCfg.APIAccessKey, appCfg.CronSecret)

	httpServer := &http.Server{
		Addr:         ":" + appCfg.Port,
		Handler:      server,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	serverErrChan := make(chan error, 1)
	go func() {
		slog.Info("HTTP server listening", "port", appCfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			serverErrChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		slog.Info("Received signal", "signal", sig.String())
	case err := <-serverErrChan:
		slog.Error("Server error", "error", err)
	}

	slog.Info("Shutting down gracefully")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("HTTP server shutdown error", "error", err)
	}

	// Scheduler is stopped via defer
	slog.Info("Shutdown complete")
}

package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lysyi3m/jobradar/app/api"
	"github.com/lysyi3m/jobradar/app/cfg"
	"github.com/lysyi3m/jobradar/app/database"
	"github.com/lysyi3m/jobradar/app/profiles"
	"github.com/lysyi3m/jobradar/app/scraper"
	"github.com/lysyi3m/jobradar/app/tasks"
)

func main() {
	appCfg, err := cfg.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}
	if appCfg == nil {
		// Help was shown, exit gracefully
		return
	}

	logLevel := slog.LevelInfo
	if appCfg.Debug {
		logLevel = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: logLevel,
	})))

	slog.Info("Starting JobRadar", "version", appCfg.Version)

	db, err := database.NewConnection(appCfg.DBPath)
	if err != nil {
		slog.Error("Failed to open database", "path", appCfg.DBPath, "error", err)
		os.Exit(1)
	}
	defer db.Close()

	version, dirty, err := database.RunMigrations(db)
	if err != nil {
		slog.Error("Failed to run migrations", "error", err)
		os.Exit(1)
	}
	slog.Info("Database ready", "path", appCfg.DBPath, "migration_version", version, "dirty", dirty)

	// Initialize repositories
	jobRepo := database.NewJobRepository(db)
	profileRepo := database.NewProfileRepository(db)
	changeRepo := database.NewChangeRepository(db)
	companyRepo := database.NewCompanyRepository(db)

	// Register profile seeds
	seedLoader := profiles.NewLoader(appCfg.ProfilesDir)
	seeds, err := seedLoader.LoadAll()
	if err != nil {
		slog.Error("Failed to load profile seeds", "dir", appCfg.ProfilesDir, "error", err)
		os.Exit(1)
	}
	if err := profiles.Sync(profileRepo, seeds); err != nil {
		slog.Error("Failed to sync profile seeds", "error", err)
		os.Exit(1)
	}
	if err := profiles.EnsureDefault(profileRepo); err != nil {
		slog.Error("Failed to ensure default profile", "error", err)
		os.Exit(1)
	}

	// Build the fetch pipelines. Both share one governor so rate state
	// per upstream host is global, but each has its own concurrency
	// ceiling: a slow enrichment backlog cannot starve primary ingestion.
	governor := scraper.NewGovernor(scraper.DefaultGovernorConfig())
	httpClient := &http.Client{Timeout: time.Duration(appCfg.HTTPTimeout) * time.Second}
	client := scraper.NewClient(httpClient, appCfg.UserAgent)
	extractor := scraper.NewGuestExtractor()

	ingestPipeline := scraper.NewPipeline(client, governor, extractor, appCfg.FetchConcurrency)
	enrichPipeline := scraper.NewPipeline(client, governor, extractor, appCfg.EnrichConcurrency)

	// Initialize and start the task scheduler
	slog.Info("Starting scheduler", "workers", appCfg.FetchConcurrency, "poll_interval", appCfg.PollInterval)
	scheduler := tasks.NewScheduler(profileRepo, jobRepo, companyRepo, ingestPipeline, enrichPipeline)
	scheduler.Start()
	defer scheduler.Stop()

	// Initialize HTTP server
	apiHandler := api.NewHandler(jobRepo, profileRepo, changeRepo, companyRepo)
	server := api.NewServer(apiHandler, appCfg.APIAccessKey)

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

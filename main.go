package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"flatwatch/config"
	"flatwatch/geocode"
	"flatwatch/notify"
	"flatwatch/scraper"
	"flatwatch/scraper/wohnfinder"
	"flatwatch/services"
	"flatwatch/storage"
	"flatwatch/utils"
)

func main() {
	logger := utils.NewLogger()
	cfg := config.Load()

	if err := cfg.Validate(); err != nil {
		logger.Error("Invalid configuration: %v", err)
		os.Exit(1)
	}

	logger.Info("=== flatwatch starting ===")
	logger.Info("Config — source: %s | backend: %s | catalog: %s | recipients: %d",
		cfg.SourceURL, cfg.FetchBackend, cfg.CatalogBackend, len(cfg.ChatIDs))

	excluded, err := config.LoadExcludedDistricts(cfg.ExcludedDistrictsFile)
	if err != nil {
		logger.Warn("Excluded districts unavailable, continuing without: %v", err)
	}

	catalog, err := newCatalog(cfg, logger)
	if err != nil {
		logger.Error("Failed to open catalog: %v", err)
		os.Exit(1)
	}
	defer catalog.Close()

	failCache, err := geocode.LoadFailCache(cfg.UnresolvedCacheFile)
	if err != nil {
		logger.Error("Failed to load unresolved-address cache: %v", err)
		os.Exit(1)
	}

	geocodeClient := geocode.NewClient(
		geocode.WithBaseURL(cfg.GeocodeURL),
		geocode.WithMinInterval(time.Duration(cfg.GeocodeIntervalMs)*time.Millisecond),
	)
	resolver := geocode.NewResolver(geocodeClient, failCache, logger)

	fetcher := newFetcher(cfg, logger)
	extractor := services.NewExtractor(wohnfinder.Selectors(), resolver, cfg.MaxConcurrency, logger)

	notifier, err := notify.NewTelegramNotifier(cfg.BotToken)
	if err != nil {
		logger.Error("Failed to authorize Telegram bot: %v", err)
		os.Exit(1)
	}
	dispatcher := notify.NewDispatcher(notifier, logger)

	criteria := services.Criteria{
		MinSize:           cfg.MinSize,
		MaxRent:           cfg.MaxRent,
		RequireBalcony:    cfg.RequireBalcony,
		ExcludedDistricts: excluded,
		PermitRoomLimit:   cfg.PermitRoomLimit,
	}

	monitor := services.NewMonitor(
		fetcher, extractor, catalog, criteria, dispatcher,
		cfg.ChatIDs, cfg.PollMinMinutes, cfg.PollMaxMinutes, cfg.MaxRetries, logger,
	)

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := monitor.Run(ctx); err != nil && err != context.Canceled {
		logger.Error("Monitor stopped: %v", err)
		os.Exit(1)
	}
}

func newCatalog(cfg *config.Config, logger *utils.Logger) (storage.Catalog, error) {
	if cfg.CatalogBackend == "postgres" {
		return storage.NewPostgresCatalog(cfg.DSN(), logger)
	}
	return storage.NewCSVCatalog(cfg.CatalogPath, logger)
}

func newFetcher(cfg *config.Config, logger *utils.Logger) scraper.Fetcher {
	timeout := time.Duration(cfg.FetchTimeoutSec) * time.Second
	if cfg.FetchBackend == "static" {
		return wohnfinder.NewStaticFetcher(cfg.SourceURL, timeout, logger)
	}
	return wohnfinder.NewChromeFetcher(cfg.SourceURL, timeout, logger)
}

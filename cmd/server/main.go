package main

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/flipscout/backend/config"
	httpDelivery "github.com/flipscout/backend/internal/delivery/http"
	"github.com/flipscout/backend/internal/domain"
	"github.com/flipscout/backend/internal/infrastructure/cache"
	"github.com/flipscout/backend/internal/infrastructure/extractor"
	"github.com/flipscout/backend/internal/infrastructure/postgres"
	"github.com/flipscout/backend/internal/logger"
	"github.com/flipscout/backend/internal/usecase"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}

	log := logger.New(logger.Options{
		Level:    cfg.Log.Level,
		FilePath: cfg.Log.FilePath,
	})

	log.WithFields(logger.Fields{
		"environment": cfg.Server.Environment,
		"port":        cfg.Server.Port,
	}).Info("starting flipscout backend v1.0.0")

	// Infrastructure
	priceCache := cache.NewMemoryCache()
	defer priceCache.Close()

	extractionClient := extractor.NewClient(cfg.Extractor.APIKey, cfg.Extractor.BaseURL, log)
	if cfg.Server.Environment == "development" {
		extractionClient.SetDebug(true)
	}

	var repo domain.ListingRepository
	if cfg.Database.Enabled {
		store, err := postgres.NewListingStore(context.Background(), cfg.Database.DSN)
		if err != nil {
			log.WithFields(logger.Fields{"error": err}).Fatal("failed to connect listings store")
		}
		defer store.Close()
		repo = store
		log.Info("listings store connected, cross-run evidence enabled")
	} else {
		log.Warn("listings store disabled, pricing on current-batch evidence only")
	}

	// Engine components
	identity := usecase.NewIdentityBuilder(cfg.Server.Environment == "development")
	classifier := usecase.NewBundleClassifier(cfg.Server.Environment == "development")
	gate := usecase.NewDecisionGate(usecase.DecisionGateConfig{
		InitialThreshold:     cfg.Gate.InitialThreshold,
		AfterDetailThreshold: cfg.Gate.AfterDetailThreshold,
		AfterVisionThreshold: cfg.Gate.AfterVisionThreshold,
		HardFloor:            cfg.Gate.HardFloor,
	})
	aggregator := usecase.NewMarketAggregator(repo, usecase.MarketAggregatorConfig{
		MinSamples:       cfg.Pricing.MinMarketSamples,
		ActiveBidFloor:   decimal.NewFromFloat(cfg.Pricing.ActiveBidFloor),
		StartingBidFloor: decimal.NewFromFloat(cfg.Pricing.StartingBidFloor),
	}, log)
	capper := usecase.NewSoftCapper(repo, usecase.SoftCapperConfig{
		SafetyFactor: decimal.NewFromFloat(cfg.Pricing.SoftCapSafetyFactor),
		MinSamples:   cfg.Pricing.MinMarketSamples,
	}, log)
	pricer := usecase.NewComponentPricer(aggregator, usecase.ComponentPricerConfig{
		BundleDiscount:        decimal.NewFromFloat(cfg.Pricing.BundleDiscount),
		MaxResaleFraction:     decimal.NewFromFloat(cfg.Pricing.MaxBundleResaleRatio),
		MaxComponentUnitValue: decimal.NewFromFloat(cfg.Pricing.MaxComponentUnitValue),
	}, log)

	pricingService := usecase.NewPricingService(
		identity, classifier, gate, aggregator, capper, pricer,
		extractionClient, extractionClient, extractionClient,
		repo, priceCache,
		usecase.PricingServiceConfig{
			CacheTTL:  cfg.Cache.TTL,
			Workers:   cfg.Pricing.BatchWorkers,
			BudgetEUR: cfg.Pricing.RunBudgetEUR,
		},
		log,
	)

	handler := httpDelivery.NewHandler(pricingService)
	router := httpDelivery.SetupRouter(cfg, handler)

	addr := fmt.Sprintf(":%s", cfg.Server.Port)
	log.WithFields(logger.Fields{"addr": addr}).Info("server listening")

	if err := router.Run(addr); err != nil {
		log.WithFields(logger.Fields{"error": err}).Fatal("failed to start server")
	}
}

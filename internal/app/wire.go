package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/polymarketbot/internal/arbitrage"
	s3blob "github.com/alanyoungcy/polymarketbot/internal/blob/s3"
	"github.com/alanyoungcy/polymarketbot/internal/cache/redis"
	"github.com/alanyoungcy/polymarketbot/internal/config"
	"github.com/alanyoungcy/polymarketbot/internal/domain"
	"github.com/alanyoungcy/polymarketbot/internal/exposure"
	"github.com/alanyoungcy/polymarketbot/internal/feed"
	"github.com/alanyoungcy/polymarketbot/internal/mispricing"
	"github.com/alanyoungcy/polymarketbot/internal/notify"
	"github.com/alanyoungcy/polymarketbot/internal/pipeline"
	"github.com/alanyoungcy/polymarketbot/internal/pricing"
	"github.com/alanyoungcy/polymarketbot/internal/store/postgres"
)

// Dependencies bundles every dependency the application modes need to
// operate. It is constructed by Wire and torn down by the returned cleanup
// function.
type Dependencies struct {
	// Stores
	OpportunityStore domain.OpportunityStore
	AuditStore       domain.AuditStore
	SnapshotStore    *postgres.SnapshotStore

	// Caches
	SnapshotCache domain.SnapshotCache
	RateLimiter   domain.RateLimiter
	LockManager   domain.LockManager
	SignalBus     domain.SignalBus

	// Blob storage
	BlobWriter   domain.BlobWriter
	BlobReader   domain.BlobReader
	BlobDeleter  domain.BlobDeleter
	BlobArchiver domain.Archiver

	// Notifications
	Notifier *notify.Notifier

	// Pipeline
	Aggregator *feed.Aggregator
	Detector   mispricing.Detector
	Engine     *arbitrage.Engine
	Sizer      *exposure.Sizer
	Portfolio  *exposure.Portfolio
	Basket     *pricing.BasketModel

	Archiver     *pipeline.Archiver
	Orchestrator *pipeline.Orchestrator
}

// needsPostgres returns true for modes that require a database connection.
// Every mode reads or writes opportunity history, so all of them do.
func needsPostgres(mode string) bool {
	switch mode {
	case "detect", "archive", "server", "full":
		return true
	default:
		return false
	}
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	switch mode {
	case "archive", "full":
		return true
	default:
		return false
	}
}

// needsFeed returns true for modes that run the market feed aggregator and
// the detection/validation pipeline.
func needsFeed(mode string) bool {
	switch mode {
	case "detect", "full":
		return true
	default:
		return false
	}
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	if needsPostgres(cfg.Mode) {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Supabase.DSN,
			Host:     cfg.Supabase.Host,
			Port:     cfg.Supabase.Port,
			Database: cfg.Supabase.Database,
			User:     cfg.Supabase.User,
			Password: cfg.Supabase.Password,
			SSLMode:  cfg.Supabase.SSLMode,
			MaxConns: cfg.Supabase.PoolMaxConns,
			MinConns: cfg.Supabase.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Supabase.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		pool := pgClient.Pool()
		deps.OpportunityStore = postgres.NewOpportunityStore(pool)
		deps.AuditStore = postgres.NewAuditStore(pool)
		deps.SnapshotStore = postgres.NewSnapshotStore(pool)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.SnapshotCache = redis.NewSnapshotCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.LockManager = redis.NewLockManager(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- S3 blob storage ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.BlobDeleter = reader

		if deps.OpportunityStore != nil && deps.AuditStore != nil && deps.SnapshotStore != nil {
			deps.BlobArchiver = s3blob.NewArchiver(
				deps.BlobWriter,
				deps.OpportunityStore,
				deps.SnapshotStore,
				deps.AuditStore,
			)
			deps.Archiver = pipeline.NewArchiver(deps.BlobArchiver, cfg.Pipeline.ArchiveRetentionDays, logger)
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Feed aggregator, detectors, arbitrage engine ---
	if needsFeed(cfg.Mode) {
		feeds := buildExchangeFeeds(cfg, logger)

		deps.Aggregator = feed.NewAggregator(feed.Config{
			StalenessBudget: cfg.Feed.StalenessBudget.Duration,
			TickInterval:    cfg.Feed.TickInterval.Duration,
			TradeHistoryLen: cfg.Feed.TradeHistoryLen,
		}, feeds, logger)

		deps.Detector = buildDetector(cfg)

		exposureParams := exposureRiskParams(cfg)
		deps.Portfolio = exposure.NewPortfolio("default", exposureParams, exposure.NewRiskCalculator(), logger)
		deps.Sizer = exposure.NewSizer(exposureParams)
		deps.Basket = pricing.NewBasketModel(pricing.DefaultParams())

		arbParams := arbitrage.Params{
			MinProfitThreshold:      cfg.Arbitrage.MinProfitThreshold,
			MaxRiskPerTrade:         cfg.Arbitrage.MaxRiskPerTrade,
			MaxCorrelationRisk:      cfg.Arbitrage.MaxCorrelationRisk,
			MaxMarketImpact:         cfg.Arbitrage.MaxMarketImpact,
			MaxSlippage:             cfg.Arbitrage.MaxSlippage,
			MaxPositionSize:         cfg.Arbitrage.MaxPositionSize,
			MaxHoldingPeriod:        cfg.Arbitrage.MaxHoldingPeriod.Duration,
			MinLiquidityRequirement: cfg.Arbitrage.MinLiquidityRequirement,
			ConfidenceThreshold:     cfg.Arbitrage.ConfidenceThreshold,
		}
		deps.Engine = arbitrage.NewEngine(arbParams, cfg.Arbitrage.BaseSize, arbitrage.NewIDGenerator(), logger)

		sizer, portfolio := deps.Sizer, deps.Portfolio
		deps.Engine.SetPositionSizer(func(prelim arbitrage.Opportunity) float64 {
			return sizer.CalculateOptimalPositionSize(prelim, portfolio, exposureParams)
		})

		basket := deps.Basket
		deps.Engine.SetPortfolioSigmaSource(func(legs []arbitrage.Leg) float64 {
			components := make([]string, len(legs))
			weights := make([]float64, len(legs))
			for i, l := range legs {
				components[i] = l.InstrumentID
				weights[i] = l.Weight
			}
			return basket.CalculatePortfolioVolatility(components, weights)
		})
		deps.Engine.SetCorrelationSource(basket.Correlation)

		if deps.SignalBus != nil {
			pub := arbitrage.NewBusPublisher(deps.SignalBus, "opportunities", logger)
			deps.Engine.SetUpdateCallback(pub.Publish)
		}

		deps.Orchestrator = pipeline.NewOrchestrator(
			deps.Aggregator,
			deps.Detector,
			deps.Engine,
			deps.Archiver,
			deps.OpportunityStore,
			deps.Notifier,
			cfg.Pipeline.ArchiveCron,
			cfg.Feed.StalenessBudget.Duration,
			logger,
		)
		if deps.SnapshotStore != nil {
			deps.Orchestrator.SetSnapshotRecorder(deps.SnapshotStore)
		}
		if deps.LockManager != nil {
			deps.Orchestrator.SetLockManager(deps.LockManager)
		}
	}

	return deps, cleanup, nil
}

// buildExchangeFeeds constructs one WSFeed per configured exchange/endpoint
// pair. Exchanges with no matching ws_endpoints entry are skipped.
func buildExchangeFeeds(cfg *config.Config, logger *slog.Logger) []feed.ExchangeFeed {
	var feeds []feed.ExchangeFeed
	for _, exchangeID := range cfg.Feed.Exchanges {
		url, ok := cfg.Feed.WSEndpoints[exchangeID]
		if !ok || url == "" {
			continue
		}
		feeds = append(feeds, feed.NewWSFeed(exchangeID, url, logger))
	}
	return feeds
}

// buildDetector assembles the composite mispricing detector from every
// variant the package offers, parameterized by the configured detection
// thresholds. No instrument-specific pairs or triangles are registered
// here; the variants take them through their own methods (AddPair,
// AddCurrencyTriangle, AddInstrumentPair, AddDerivativeInstrument), which
// the returned Detector interface does not expose. The composite itself
// runs correctly with zero registered pairs.
func buildDetector(cfg *config.Config) mispricing.Detector {
	params := mispricing.Params{
		MinDeviationThreshold:  cfg.Detection.MinDeviationThreshold,
		MinZScore:              cfg.Detection.MinZScore,
		MinConfidenceLevel:     cfg.Detection.MinConfidenceLevel,
		MaxSpreadRatio:         cfg.Detection.MaxSpreadRatio,
		MinObservationWindow:   cfg.Detection.MinObservationWindow,
		VolatilityThreshold:    cfg.Detection.VolatilityThreshold,
		LiquidityThreshold:     cfg.Detection.LiquidityThreshold,
		MaxOpportunityDuration: cfg.Detection.MaxOpportunityDuration.Duration,
	}

	return mispricing.NewCompositeDetector(params,
		mispricing.NewStatisticalDetector(params),
		mispricing.NewVolatilityDetector(params),
		mispricing.NewCrossExchangeDetector(params),
		mispricing.NewTriangularDetector(params),
		mispricing.NewBasisDetector(params),
		mispricing.NewSpotDerivativeDetector(params),
	)
}

// exposureRiskParams maps the configured exposure thresholds onto
// exposure.RiskParams.
func exposureRiskParams(cfg *config.Config) exposure.RiskParams {
	return exposure.RiskParams{
		MaxPositionSizePercentage: cfg.Exposure.MaxPositionSizePercentage,
		MaxPortfolioVaR:           cfg.Exposure.MaxPortfolioVaR,
		MaxIndividualVaR:          cfg.Exposure.MaxIndividualVaR,
		MaxCorrelationRisk:        cfg.Exposure.MaxCorrelationRisk,
		MaxLeverage:               cfg.Exposure.MaxLeverage,
		MarginRequirementMultiple: cfg.Exposure.MarginRequirementMultiple,
		StopLossPercentage:        cfg.Exposure.StopLossPercentage,
		TakeProfitPercentage:      cfg.Exposure.TakeProfitPercentage,
		MaxDrawdownThreshold:      cfg.Exposure.MaxDrawdownThreshold,
		LiquidityRequirement:      cfg.Exposure.LiquidityRequirement,
	}
}

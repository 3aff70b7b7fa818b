package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ENGINE_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ENGINE_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Feed ──
	setDuration(&cfg.Feed.StalenessBudget, "ENGINE_FEED_STALENESS_BUDGET")
	setDuration(&cfg.Feed.TickInterval, "ENGINE_FEED_TICK_INTERVAL")
	setInt(&cfg.Feed.TradeHistoryLen, "ENGINE_FEED_TRADE_HISTORY_LEN")
	setStringSlice(&cfg.Feed.Exchanges, "ENGINE_FEED_EXCHANGES")

	// ── Pricing ──
	setFloat64(&cfg.Pricing.CorrelationThreshold, "ENGINE_PRICING_CORRELATION_THRESHOLD")
	setFloat64(&cfg.Pricing.VolatilityAdjustment, "ENGINE_PRICING_VOLATILITY_ADJUSTMENT")
	setFloat64(&cfg.Pricing.LiquidityPenalty, "ENGINE_PRICING_LIQUIDITY_PENALTY")
	setFloat64(&cfg.Pricing.TransactionCost, "ENGINE_PRICING_TRANSACTION_COST")
	setInt(&cfg.Pricing.LookbackPeriod, "ENGINE_PRICING_LOOKBACK_PERIOD")
	setFloat64(&cfg.Pricing.ConfidenceInterval, "ENGINE_PRICING_CONFIDENCE_INTERVAL")
	setFloat64(&cfg.Pricing.RiskFreeRate, "ENGINE_PRICING_RISK_FREE_RATE")
	setFloat64(&cfg.Pricing.DividendYield, "ENGINE_PRICING_DIVIDEND_YIELD")
	setFloat64(&cfg.Pricing.ImpliedVolTolerance, "ENGINE_PRICING_IMPLIED_VOL_TOLERANCE")
	setInt(&cfg.Pricing.ImpliedVolMaxIter, "ENGINE_PRICING_IMPLIED_VOL_MAX_ITER")
	setFloat64(&cfg.Pricing.BollingerK, "ENGINE_PRICING_BOLLINGER_K")
	setInt(&cfg.Pricing.StatArbWindow, "ENGINE_PRICING_STAT_ARB_WINDOW")

	// ── Detection ──
	setFloat64(&cfg.Detection.MinDeviationThreshold, "ENGINE_DETECTION_MIN_DEVIATION_THRESHOLD")
	setFloat64(&cfg.Detection.MinZScore, "ENGINE_DETECTION_MIN_Z_SCORE")
	setFloat64(&cfg.Detection.MinConfidenceLevel, "ENGINE_DETECTION_MIN_CONFIDENCE_LEVEL")
	setFloat64(&cfg.Detection.MaxSpreadRatio, "ENGINE_DETECTION_MAX_SPREAD_RATIO")
	setInt(&cfg.Detection.MinObservationWindow, "ENGINE_DETECTION_MIN_OBSERVATION_WINDOW")
	setFloat64(&cfg.Detection.VolatilityThreshold, "ENGINE_DETECTION_VOLATILITY_THRESHOLD")
	setFloat64(&cfg.Detection.LiquidityThreshold, "ENGINE_DETECTION_LIQUIDITY_THRESHOLD")
	setDuration(&cfg.Detection.MaxOpportunityDuration, "ENGINE_DETECTION_MAX_OPPORTUNITY_DURATION")

	// ── Arbitrage ──
	setFloat64(&cfg.Arbitrage.MinProfitThreshold, "ENGINE_ARBITRAGE_MIN_PROFIT_THRESHOLD")
	setFloat64(&cfg.Arbitrage.MaxRiskPerTrade, "ENGINE_ARBITRAGE_MAX_RISK_PER_TRADE")
	setFloat64(&cfg.Arbitrage.MaxCorrelationRisk, "ENGINE_ARBITRAGE_MAX_CORRELATION_RISK")
	setFloat64(&cfg.Arbitrage.MaxMarketImpact, "ENGINE_ARBITRAGE_MAX_MARKET_IMPACT")
	setFloat64(&cfg.Arbitrage.MaxSlippage, "ENGINE_ARBITRAGE_MAX_SLIPPAGE")
	setFloat64(&cfg.Arbitrage.MaxPositionSize, "ENGINE_ARBITRAGE_MAX_POSITION_SIZE")
	setDuration(&cfg.Arbitrage.MaxHoldingPeriod, "ENGINE_ARBITRAGE_MAX_HOLDING_PERIOD")
	setFloat64(&cfg.Arbitrage.MinLiquidityRequirement, "ENGINE_ARBITRAGE_MIN_LIQUIDITY_REQUIREMENT")
	setFloat64(&cfg.Arbitrage.ConfidenceThreshold, "ENGINE_ARBITRAGE_CONFIDENCE_THRESHOLD")
	setFloat64(&cfg.Arbitrage.BaseSize, "ENGINE_ARBITRAGE_BASE_SIZE")

	// ── Exposure ──
	setFloat64(&cfg.Exposure.MaxPositionSizePercentage, "ENGINE_EXPOSURE_MAX_POSITION_SIZE_PERCENTAGE")
	setFloat64(&cfg.Exposure.MaxPortfolioVaR, "ENGINE_EXPOSURE_MAX_PORTFOLIO_VAR")
	setFloat64(&cfg.Exposure.MaxIndividualVaR, "ENGINE_EXPOSURE_MAX_INDIVIDUAL_VAR")
	setFloat64(&cfg.Exposure.MaxCorrelationRisk, "ENGINE_EXPOSURE_MAX_CORRELATION_RISK")
	setFloat64(&cfg.Exposure.MaxLeverage, "ENGINE_EXPOSURE_MAX_LEVERAGE")
	setFloat64(&cfg.Exposure.MarginRequirementMultiple, "ENGINE_EXPOSURE_MARGIN_REQUIREMENT_MULTIPLE")
	setFloat64(&cfg.Exposure.StopLossPercentage, "ENGINE_EXPOSURE_STOP_LOSS_PERCENTAGE")
	setFloat64(&cfg.Exposure.TakeProfitPercentage, "ENGINE_EXPOSURE_TAKE_PROFIT_PERCENTAGE")
	setFloat64(&cfg.Exposure.MaxDrawdownThreshold, "ENGINE_EXPOSURE_MAX_DRAWDOWN_THRESHOLD")
	setFloat64(&cfg.Exposure.LiquidityRequirement, "ENGINE_EXPOSURE_LIQUIDITY_REQUIREMENT")
	setFloat64(&cfg.Exposure.TargetVolatility, "ENGINE_EXPOSURE_TARGET_VOLATILITY")

	// ── Supabase ──
	setStr(&cfg.Supabase.DSN, "ENGINE_SUPABASE_DSN")
	setStr(&cfg.Supabase.Host, "ENGINE_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "ENGINE_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "ENGINE_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "ENGINE_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "ENGINE_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "ENGINE_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "ENGINE_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "ENGINE_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "ENGINE_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "ENGINE_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ENGINE_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ENGINE_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ENGINE_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ENGINE_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ENGINE_REDIS_TLS_ENABLED")
	setInt(&cfg.Redis.CacheTTLMinutes, "ENGINE_REDIS_CACHE_TTL_MINUTES")
	setInt(&cfg.Redis.StreamMaxLen, "ENGINE_REDIS_STREAM_MAX_LEN")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ENGINE_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ENGINE_S3_REGION")
	setStr(&cfg.S3.Bucket, "ENGINE_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ENGINE_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ENGINE_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ENGINE_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ENGINE_S3_FORCE_PATH_STYLE")

	// ── Pipeline ──
	setInt(&cfg.Pipeline.ArchiveRetentionDays, "ENGINE_PIPELINE_ARCHIVE_RETENTION_DAYS")
	setStr(&cfg.Pipeline.ArchiveCron, "ENGINE_PIPELINE_ARCHIVE_CRON")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "ENGINE_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "ENGINE_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "ENGINE_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "ENGINE_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimit, "ENGINE_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "ENGINE_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ENGINE_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ENGINE_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ENGINE_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ENGINE_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "ENGINE_MODE")
	setStr(&cfg.LogLevel, "ENGINE_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}

// Package config defines the top-level configuration for the arbitrage
// engine and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by ENGINE_* environment variables.
type Config struct {
	Feed      FeedConfig      `toml:"feed"`
	Pricing   PricingConfig   `toml:"pricing"`
	Detection DetectionConfig `toml:"detection"`
	Arbitrage ArbitrageConfig `toml:"arbitrage"`
	Exposure  ExposureConfig  `toml:"exposure"`
	Supabase  SupabaseConfig  `toml:"supabase"`
	Redis     RedisConfig     `toml:"redis"`
	S3        S3Config        `toml:"s3"`
	Pipeline  PipelineConfig  `toml:"pipeline"`
	Server    ServerConfig    `toml:"server"`
	Notify    NotifyConfig    `toml:"notify"`
	Mode      string          `toml:"mode"`
	LogLevel  string          `toml:"log_level"`
}

// FeedConfig controls the feed aggregator's merge and emission behavior.
type FeedConfig struct {
	StalenessBudget duration          `toml:"staleness_budget"`
	TickInterval    duration          `toml:"tick_interval"`
	TradeHistoryLen int               `toml:"trade_history_len"`
	Exchanges       []string          `toml:"exchanges"`
	WSEndpoints     map[string]string `toml:"ws_endpoints"`
}

// PricingConfig holds the parameters shared by every synthetic-pricing
// model, plus the per-model knobs named in the component design.
type PricingConfig struct {
	CorrelationThreshold float64 `toml:"correlation_threshold"`
	VolatilityAdjustment float64 `toml:"volatility_adjustment"`
	LiquidityPenalty     float64 `toml:"liquidity_penalty"`
	TransactionCost      float64 `toml:"transaction_cost"`
	LookbackPeriod       int     `toml:"lookback_period"`
	ConfidenceInterval   float64 `toml:"confidence_interval"`

	RiskFreeRate        float64 `toml:"risk_free_rate"`
	DividendYield       float64 `toml:"dividend_yield"`
	ImpliedVolTolerance float64 `toml:"implied_vol_tolerance"`
	ImpliedVolMaxIter   int     `toml:"implied_vol_max_iter"`
	BollingerK          float64 `toml:"bollinger_k"`
	StatArbWindow       int     `toml:"stat_arb_window"`
}

// DetectionConfig holds the mispricing detector significance thresholds.
type DetectionConfig struct {
	MinDeviationThreshold  float64  `toml:"min_deviation_threshold"`
	MinZScore              float64  `toml:"min_z_score"`
	MinConfidenceLevel     float64  `toml:"min_confidence_level"`
	MaxSpreadRatio         float64  `toml:"max_spread_ratio"`
	MinObservationWindow   int      `toml:"min_observation_window"`
	VolatilityThreshold    float64  `toml:"volatility_threshold"`
	LiquidityThreshold     float64  `toml:"liquidity_threshold"`
	MaxOpportunityDuration duration `toml:"max_opportunity_duration"`
}

// ArbitrageConfig holds the arbitrage engine's validation thresholds.
type ArbitrageConfig struct {
	MinProfitThreshold      float64  `toml:"min_profit_threshold"`
	MaxRiskPerTrade         float64  `toml:"max_risk_per_trade"`
	MaxCorrelationRisk      float64  `toml:"max_correlation_risk"`
	MaxMarketImpact         float64  `toml:"max_market_impact"`
	MaxSlippage             float64  `toml:"max_slippage"`
	MaxPositionSize         float64  `toml:"max_position_size"`
	MaxHoldingPeriod        duration `toml:"max_holding_period"`
	MinLiquidityRequirement float64  `toml:"min_liquidity_requirement"`
	ConfidenceThreshold     float64  `toml:"confidence_threshold"`
	BaseSize                float64  `toml:"base_size"`
}

// ExposureConfig holds the position sizer and risk calculator parameters.
type ExposureConfig struct {
	MaxPositionSizePercentage float64 `toml:"max_position_size_percentage"`
	MaxPortfolioVaR           float64 `toml:"max_portfolio_var"`
	MaxIndividualVaR          float64 `toml:"max_individual_var"`
	MaxCorrelationRisk        float64 `toml:"max_correlation_risk"`
	MaxLeverage               float64 `toml:"max_leverage"`
	MarginRequirementMultiple float64 `toml:"margin_requirement_multiple"`
	StopLossPercentage        float64 `toml:"stop_loss_percentage"`
	TakeProfitPercentage      float64 `toml:"take_profit_percentage"`
	MaxDrawdownThreshold      float64 `toml:"max_drawdown_threshold"`
	LiquidityRequirement      float64 `toml:"liquidity_requirement"`
	TargetVolatility          float64 `toml:"target_volatility"`
}

// SupabaseConfig holds PostgreSQL connection parameters.
type SupabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr            string `toml:"addr"`
	Password        string `toml:"password"`
	DB              int    `toml:"db"`
	PoolSize        int    `toml:"pool_size"`
	MaxRetries      int    `toml:"max_retries"`
	TLSEnabled      bool   `toml:"tls_enabled"`
	CacheTTLMinutes int    `toml:"cache_ttl_minutes"`
	StreamMaxLen    int    `toml:"stream_max_len"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// PipelineConfig holds the orchestration and archival parameters.
type PipelineConfig struct {
	ArchiveRetentionDays int    `toml:"archive_retention_days"`
	ArchiveCron          string `toml:"archive_cron"`
}

// duration is a wrapper around time.Duration that supports TOML string decoding
// (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values,
// matching the thresholds named throughout the component design.
func Defaults() Config {
	return Config{
		Feed: FeedConfig{
			StalenessBudget: duration{500 * time.Millisecond},
			TickInterval:    duration{100 * time.Millisecond},
			TradeHistoryLen: 50,
		},
		Pricing: PricingConfig{
			CorrelationThreshold: 0.8,
			VolatilityAdjustment: 0.05,
			LiquidityPenalty:     0.001,
			TransactionCost:      0.0001,
			LookbackPeriod:       100,
			ConfidenceInterval:   0.95,
			RiskFreeRate:         0.05,
			DividendYield:        0.0,
			ImpliedVolTolerance:  1e-6,
			ImpliedVolMaxIter:    50,
			BollingerK:           2.0,
			StatArbWindow:        100,
		},
		Detection: DetectionConfig{
			MinDeviationThreshold:  0.005,
			MinZScore:              2.0,
			MinConfidenceLevel:     0.8,
			MaxSpreadRatio:         0.02,
			MinObservationWindow:   50,
			VolatilityThreshold:    0.15,
			LiquidityThreshold:     1000.0,
			MaxOpportunityDuration: duration{30 * time.Minute},
		},
		Arbitrage: ArbitrageConfig{
			MinProfitThreshold:      0.001,
			MaxRiskPerTrade:         0.02,
			MaxCorrelationRisk:      0.3,
			MaxMarketImpact:         0.005,
			MaxSlippage:             0.001,
			MaxPositionSize:         1_000_000.0,
			MaxHoldingPeriod:        duration{60 * time.Minute},
			MinLiquidityRequirement: 100_000.0,
			ConfidenceThreshold:     0.8,
			BaseSize:                1.0,
		},
		Exposure: ExposureConfig{
			MaxPositionSizePercentage: 0.05,
			MaxPortfolioVaR:           0.02,
			MaxIndividualVaR:          0.01,
			MaxCorrelationRisk:        0.3,
			MaxLeverage:               3.0,
			MarginRequirementMultiple: 1.2,
			StopLossPercentage:        0.05,
			TakeProfitPercentage:      0.15,
			MaxDrawdownThreshold:      0.1,
			LiquidityRequirement:      0.8,
			TargetVolatility:          0.1,
		},
		Supabase: SupabaseConfig{
			DSN:           "",
			Host:          "localhost",
			Port:          5432,
			Database:      "postgres",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:            "localhost:6379",
			DB:              0,
			PoolSize:        20,
			MaxRetries:      3,
			TLSEnabled:      false,
			CacheTTLMinutes: 5,
			StreamMaxLen:    10000,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "arb-engine-data",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Pipeline: PipelineConfig{
			ArchiveRetentionDays: 90,
			ArchiveCron:          "0 3 1 * *",
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{"opportunity_identified", "opportunity_validated", "opportunity_failed", "error"},
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"detect":  true,
	"archive": true,
	"server":  true,
	"full":    true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: detect, archive, server, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	if c.Feed.StalenessBudget.Duration <= 0 {
		errs = append(errs, "feed: staleness_budget must be > 0")
	}
	if c.Feed.TradeHistoryLen < 0 {
		errs = append(errs, "feed: trade_history_len must be >= 0")
	}

	if c.Pricing.LookbackPeriod <= 0 {
		errs = append(errs, "pricing: lookback_period must be > 0")
	}
	if c.Pricing.ImpliedVolMaxIter <= 0 {
		errs = append(errs, "pricing: implied_vol_max_iter must be > 0")
	}
	if c.Pricing.ConfidenceInterval <= 0 || c.Pricing.ConfidenceInterval >= 1 {
		errs = append(errs, "pricing: confidence_interval must be in (0, 1)")
	}

	if c.Detection.MinZScore <= 0 {
		errs = append(errs, "detection: min_z_score must be > 0")
	}
	if c.Detection.MinObservationWindow <= 0 {
		errs = append(errs, "detection: min_observation_window must be > 0")
	}
	if c.Detection.MaxOpportunityDuration.Duration <= 0 {
		errs = append(errs, "detection: max_opportunity_duration must be > 0")
	}

	if c.Arbitrage.MaxPositionSize <= 0 {
		errs = append(errs, "arbitrage: max_position_size must be > 0")
	}
	if c.Arbitrage.MaxHoldingPeriod.Duration <= 0 {
		errs = append(errs, "arbitrage: max_holding_period must be > 0")
	}
	if c.Arbitrage.BaseSize <= 0 {
		errs = append(errs, "arbitrage: base_size must be > 0")
	}

	if c.Exposure.MaxLeverage <= 0 {
		errs = append(errs, "exposure: max_leverage must be > 0")
	}
	if c.Exposure.MaxPositionSizePercentage <= 0 || c.Exposure.MaxPositionSizePercentage > 1 {
		errs = append(errs, "exposure: max_position_size_percentage must be in (0, 1]")
	}

	if strings.TrimSpace(c.Supabase.DSN) == "" {
		if c.Supabase.Host == "" {
			errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
		}
		if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
			errs = append(errs, fmt.Sprintf("supabase: port must be 1-65535, got %d", c.Supabase.Port))
		}
		if c.Supabase.Database == "" {
			errs = append(errs, "supabase: database must not be empty")
		}
	}
	if c.Supabase.PoolMaxConns < 1 {
		errs = append(errs, "supabase: pool_max_conns must be >= 1")
	}
	if c.Supabase.PoolMinConns < 0 {
		errs = append(errs, "supabase: pool_min_conns must be >= 0")
	}
	if c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
		errs = append(errs, "supabase: pool_min_conns must not exceed pool_max_conns")
	}

	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	if c.S3.Endpoint == "" {
		errs = append(errs, "s3: endpoint must not be empty")
	}
	if c.S3.Bucket == "" {
		errs = append(errs, "s3: bucket must not be empty")
	}

	if c.Pipeline.ArchiveRetentionDays <= 0 {
		errs = append(errs, "pipeline: archive_retention_days must be > 0")
	}

	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

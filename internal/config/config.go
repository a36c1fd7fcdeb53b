// Package config defines the top-level configuration for the arbitrage agent
// and provides validation helpers.
package config

import (
	"fmt"
	"regexp"
	"strings"
	"time"
)

// Config is the root configuration structure. Fields are populated from a TOML
// file and then optionally overridden by POLYARB_* environment variables.
type Config struct {
	Wallet       WalletConfig       `toml:"wallet"`
	Polymarket   PolymarketConfig   `toml:"polymarket"`
	Clob         ClobConfig         `toml:"clob"`
	Evidence     EvidenceConfig     `toml:"evidence"`
	Scanner      ScannerConfig      `toml:"scanner"`
	Position     PositionConfig     `toml:"position"`
	Verification VerificationConfig `toml:"verification"`
	Risk         RiskConfig         `toml:"risk"`
	Blacklist    BlacklistConfig    `toml:"blacklist"`
	Trading      TradingConfig      `toml:"trading"`
	Pipeline     PipelineConfig     `toml:"pipeline"`
	Supabase     SupabaseConfig     `toml:"supabase"`
	Redis        RedisConfig        `toml:"redis"`
	S3           S3Config           `toml:"s3"`
	Server       ServerConfig       `toml:"server"`
	Notify       NotifyConfig       `toml:"notify"`
	Mode         string             `toml:"mode"`
	LogLevel     string             `toml:"log_level"`
}

// WalletConfig holds Ethereum wallet credentials.
type WalletConfig struct {
	PrivateKey       string `toml:"private_key"`
	SafeAddress      string `toml:"safe_address"`
	EncryptedKeyPath string `toml:"encrypted_key_path"`
	KeyPassword      string `toml:"key_password"`
}

// PolymarketConfig holds Polymarket API endpoints and chain parameters.
type PolymarketConfig struct {
	ClobHost      string `toml:"clob_host"`
	GammaHost     string `toml:"gamma_host"`
	ChainID       int    `toml:"chain_id"`
	SignatureType int    `toml:"signature_type"`
	// RequestsPerSecond caps Gamma and book reads when Redis is enabled.
	RequestsPerSecond int `toml:"requests_per_second"`
}

// ClobConfig holds pre-issued CLOB L2 API credentials. When empty the
// credentials are derived from the wallet at startup.
type ClobConfig struct {
	ApiKey        string `toml:"api_key"`
	ApiSecret     string `toml:"api_secret"`
	ApiPassphrase string `toml:"api_passphrase"`
}

// EvidenceConfig holds endpoints and keys of the outcome evidence providers.
type EvidenceConfig struct {
	ESPNHost      string             `toml:"espn_host"`
	ESPNLeagues   []string           `toml:"espn_leagues"`
	OddsAPIHost   string             `toml:"odds_api_host"`
	OddsAPIKey    string             `toml:"odds_api_key"`
	OddsSports    []string           `toml:"odds_sports"`
	NewsAPIHost   string             `toml:"news_api_host"`
	NewsAPIKey    string             `toml:"news_api_key"`
	SourceWeights map[string]float64 `toml:"source_weights"`
}

// ScannerConfig holds market scanning parameters.
type ScannerConfig struct {
	ScanInterval          duration `toml:"scan_interval"`
	MinProbability        float64  `toml:"min_probability"`
	MaxProbability        float64  `toml:"max_probability"`
	TimeToResolutionHours float64  `toml:"time_to_resolution_hours"`
	MinMarketLiquidityUSD float64  `toml:"min_market_liquidity_usd"`
	MarketLimit           int      `toml:"market_limit"`
	MaxRetries            int      `toml:"max_retries"`
	BackoffBase           duration `toml:"backoff_base"`
	BackoffMax            duration `toml:"backoff_max"`
	Concurrency           int      `toml:"concurrency"`
	CallbackTimeout       duration `toml:"callback_timeout"`
	HistorySize           int      `toml:"history_size"`
}

// PositionConfig holds position sizing limits.
type PositionConfig struct {
	MaxPositionSizeUSD       float64 `toml:"max_position_size_usd"`
	MaxTotalExposureUSD      float64 `toml:"max_total_exposure_usd"`
	MaxPositionsPerCategory  int     `toml:"max_positions_per_category"`
	MinExpectedROIPercent    float64 `toml:"min_expected_roi_percent"`
	PositionSizeMultiplier   float64 `toml:"position_size_multiplier"`
	MinPositionSizeUSD       float64 `toml:"min_position_size_usd"`
	EstimatedLiquidityFactor float64 `toml:"estimated_liquidity_factor"`
}

// VerificationConfig holds outcome verification parameters.
type VerificationConfig struct {
	MinConfidence      float64  `toml:"min_verification_confidence"`
	MinSourceAgreement int      `toml:"min_source_agreement"`
	Timeout            duration `toml:"timeout"`
	EnableSports       bool     `toml:"enable_sports_verification"`
	EnableNews         bool     `toml:"enable_news_verification"`
	RetryAttempts      int      `toml:"retry_attempts"`
	Concurrency        int      `toml:"concurrency"`
}

// RiskConfig holds portfolio-wide risk limits.
type RiskConfig struct {
	EmergencyExitThreshold float64 `toml:"emergency_exit_threshold"`
	MaxDailyLossUSD        float64 `toml:"max_daily_loss_usd"`
	MaxSpread              float64 `toml:"max_spread"` // 0 disables the spread check
}

// BlacklistConfig holds market exclusion rules. Patterns are Go regular
// expressions matched case-insensitively.
type BlacklistConfig struct {
	QuestionPatterns    []string `toml:"question_patterns"`
	DescriptionPatterns []string `toml:"description_patterns"`
	Categories          []string `toml:"categories"`
}

// TradingConfig holds order execution switches.
type TradingConfig struct {
	EnableTrading      bool     `toml:"enable_trading"`
	DryRun             bool     `toml:"dry_run"`
	MinConfirmations   int      `toml:"min_confirmations"`
	OrderTimeout       duration `toml:"order_timeout"`
	StatusPollInterval duration `toml:"status_poll_interval"`
	MaxSafeRetries     int      `toml:"max_safe_retries"`
	MaxSlippage        float64  `toml:"max_slippage"` // added to the probability for the limit price
}

// Live reports whether real orders are submitted.
func (t TradingConfig) Live() bool {
	return t.EnableTrading && !t.DryRun
}

// PipelineConfig holds orchestration parameters of the agent loop.
type PipelineConfig struct {
	CandidateConcurrency int      `toml:"candidate_concurrency"`
	NotifyTopN           int      `toml:"notify_top_n"`
	LockTTL              duration `toml:"lock_ttl"`
	ReportPrefix         string   `toml:"report_prefix"`
	SettleInterval       duration `toml:"settle_interval"` // 0 disables settlement polling
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

// SupabaseConfig holds PostgreSQL / Supabase connection parameters.
type SupabaseConfig struct {
	Enabled       bool   `toml:"enabled"`
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
	Enabled    bool   `toml:"enabled"`
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	APIKey          string   `toml:"api_key"`
	RateLimitPerMin int      `toml:"rate_limit_per_min"`
}

// NotifyConfig holds notification channel credentials.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	SlackWebhookURL   string   `toml:"slack_webhook_url"`
	Events            []string `toml:"events"`
}

// Defaults returns a Config populated with reasonable default values.
// These match the values in config.example.toml.
func Defaults() Config {
	return Config{
		Polymarket: PolymarketConfig{
			ClobHost:          "https://clob.polymarket.com",
			GammaHost:         "https://gamma-api.polymarket.com",
			ChainID:           137,
			SignatureType:     2,
			RequestsPerSecond: 10,
		},
		Evidence: EvidenceConfig{
			ESPNHost:    "https://site.api.espn.com",
			ESPNLeagues: []string{"football/nfl", "basketball/nba", "baseball/mlb", "hockey/nhl", "soccer/eng.1"},
			OddsAPIHost: "https://api.the-odds-api.com",
			OddsSports:  []string{"americanfootball_nfl", "basketball_nba", "baseball_mlb", "icehockey_nhl", "soccer_epl"},
			NewsAPIHost: "https://newsapi.org",
			SourceWeights: map[string]float64{
				"espn":    1.0,
				"oddsapi": 1.0,
				"newsapi": 1.0,
			},
		},
		Scanner: ScannerConfig{
			ScanInterval:          duration{60 * time.Second},
			MinProbability:        0.92,
			MaxProbability:        0.99,
			TimeToResolutionHours: 48,
			MinMarketLiquidityUSD: 5000,
			MarketLimit:           500,
			MaxRetries:            3,
			BackoffBase:           duration{2 * time.Second},
			BackoffMax:            duration{10 * time.Second},
			Concurrency:           4,
			CallbackTimeout:       duration{30 * time.Second},
			HistorySize:           100,
		},
		Position: PositionConfig{
			MaxPositionSizeUSD:       1000,
			MaxTotalExposureUSD:      10000,
			MaxPositionsPerCategory:  5,
			MinExpectedROIPercent:    1.0,
			PositionSizeMultiplier:   1.0,
			MinPositionSizeUSD:       10,
			EstimatedLiquidityFactor: 0.5,
		},
		Verification: VerificationConfig{
			MinConfidence:      0.90,
			MinSourceAgreement: 2,
			Timeout:            duration{30 * time.Second},
			EnableSports:       true,
			EnableNews:         true,
			RetryAttempts:      2,
			Concurrency:        4,
		},
		Risk: RiskConfig{
			EmergencyExitThreshold: 0.85,
			MaxDailyLossUSD:        5000,
			MaxSpread:              0.05,
		},
		Blacklist: BlacklistConfig{
			QuestionPatterns:    []string{`\btest\b`, `\bdemo\b`, `\bexample\b`, `\bscam\b`, `\bfraud\b`, `pump.*dump`},
			DescriptionPatterns: []string{`\btest\b`, `\bdemo\b`},
			Categories:          []string{},
		},
		Trading: TradingConfig{
			EnableTrading:      false,
			DryRun:             true,
			MinConfirmations:   1,
			OrderTimeout:       duration{300 * time.Second},
			StatusPollInterval: duration{2 * time.Second},
			MaxSafeRetries:     1,
			MaxSlippage:        0.01,
		},
		Pipeline: PipelineConfig{
			CandidateConcurrency: 4,
			NotifyTopN:           5,
			LockTTL:              duration{5 * time.Minute},
			ReportPrefix:         "reports",
			SettleInterval:       duration{2 * time.Minute},
		},
		Supabase: SupabaseConfig{
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
			Addr:       "localhost:6379",
			PoolSize:   20,
			MaxRetries: 3,
		},
		S3: S3Config{
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "polyarb-reports",
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimitPerMin: 120,
		},
		Notify: NotifyConfig{
			Events: []string{"candidates", "trade", "status"},
		},
		Mode:     "agent",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"agent":  true,
	"server": true,
	"scan":   true,
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// privateKeyRe matches a 32-byte hex key with optional 0x prefix.
var privateKeyRe = regexp.MustCompile(`^(0x)?[a-fA-F0-9]{64}$`)

// Validate checks Config for obviously invalid or missing values and returns a
// combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string
	addf := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if !validModes[strings.ToLower(c.Mode)] {
		addf("unknown mode %q (valid: agent, server, scan)", c.Mode)
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		addf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel)
	}

	// Wallet: only live trading needs a key.
	if c.Trading.Live() {
		if c.Wallet.PrivateKey == "" && c.Wallet.EncryptedKeyPath == "" {
			errs = append(errs, "wallet: either private_key or encrypted_key_path must be set for live trading")
		}
		if c.Wallet.EncryptedKeyPath != "" && c.Wallet.KeyPassword == "" {
			errs = append(errs, "wallet: key_password is required when encrypted_key_path is set")
		}
	}
	if c.Wallet.PrivateKey != "" && !privateKeyRe.MatchString(c.Wallet.PrivateKey) {
		errs = append(errs, "wallet: private_key must be a 64-character hex string (with or without 0x prefix)")
	}

	// Polymarket
	if c.Polymarket.GammaHost == "" {
		errs = append(errs, "polymarket: gamma_host must not be empty")
	}
	if c.Polymarket.ClobHost == "" {
		errs = append(errs, "polymarket: clob_host must not be empty")
	}
	if c.Polymarket.ChainID <= 0 {
		errs = append(errs, "polymarket: chain_id must be positive")
	}
	if c.Polymarket.SignatureType < 0 || c.Polymarket.SignatureType > 2 {
		addf("polymarket: signature_type must be 0 (EOA), 1 (proxy) or 2 (Safe), got %d", c.Polymarket.SignatureType)
	}

	// Clob: all three fields must be set together, or all empty.
	ck := c.Clob.ApiKey != ""
	cs := c.Clob.ApiSecret != ""
	cp := c.Clob.ApiPassphrase != ""
	if (ck || cs || cp) && !(ck && cs && cp) {
		errs = append(errs, "clob: api_key, api_secret, and api_passphrase must all be set together")
	}

	// Scanner
	s := c.Scanner
	if s.ScanInterval.Duration < 10*time.Second || s.ScanInterval.Duration > time.Hour {
		addf("scanner: scan_interval must be between 10s and 1h, got %s", s.ScanInterval.Duration)
	}
	if s.MinProbability < 0 || s.MinProbability > 1 {
		addf("scanner: min_probability must be in [0,1], got %g", s.MinProbability)
	}
	if s.MaxProbability < 0 || s.MaxProbability > 1 {
		addf("scanner: max_probability must be in [0,1], got %g", s.MaxProbability)
	}
	if s.MinProbability >= s.MaxProbability {
		addf("scanner: min_probability (%g) must be less than max_probability (%g)", s.MinProbability, s.MaxProbability)
	}
	if s.TimeToResolutionHours < 1 || s.TimeToResolutionHours > 168 {
		addf("scanner: time_to_resolution_hours must be between 1 and 168, got %g", s.TimeToResolutionHours)
	}
	if s.MinMarketLiquidityUSD < 0 {
		errs = append(errs, "scanner: min_market_liquidity_usd must be >= 0")
	}
	if s.MarketLimit < 0 {
		errs = append(errs, "scanner: market_limit must be >= 0")
	}
	if s.MaxRetries < 1 || s.MaxRetries > 10 {
		addf("scanner: max_retries must be between 1 and 10, got %d", s.MaxRetries)
	}
	if s.BackoffBase.Duration <= 0 || s.BackoffMax.Duration < s.BackoffBase.Duration {
		errs = append(errs, "scanner: backoff_base must be > 0 and backoff_max must not be below it")
	}
	if s.Concurrency < 1 {
		errs = append(errs, "scanner: concurrency must be >= 1")
	}
	if s.CallbackTimeout.Duration <= 0 {
		errs = append(errs, "scanner: callback_timeout must be > 0")
	}
	if s.HistorySize < 1 {
		errs = append(errs, "scanner: history_size must be >= 1")
	}

	// Position
	p := c.Position
	if p.MaxPositionSizeUSD < 1 {
		errs = append(errs, "position: max_position_size_usd must be >= 1")
	}
	if p.MaxTotalExposureUSD < 1 {
		errs = append(errs, "position: max_total_exposure_usd must be >= 1")
	}
	if p.MaxPositionSizeUSD > p.MaxTotalExposureUSD {
		addf("position: max_position_size_usd (%g) cannot exceed max_total_exposure_usd (%g)", p.MaxPositionSizeUSD, p.MaxTotalExposureUSD)
	}
	if p.MaxPositionsPerCategory < 1 || p.MaxPositionsPerCategory > 50 {
		addf("position: max_positions_per_category must be between 1 and 50, got %d", p.MaxPositionsPerCategory)
	}
	if p.MinExpectedROIPercent < 0 || p.MinExpectedROIPercent > 100 {
		addf("position: min_expected_roi_percent must be in [0,100], got %g", p.MinExpectedROIPercent)
	}
	if p.PositionSizeMultiplier < 0.1 || p.PositionSizeMultiplier > 10 {
		addf("position: position_size_multiplier must be in [0.1,10], got %g", p.PositionSizeMultiplier)
	}
	if p.MinPositionSizeUSD < 0 || p.MinPositionSizeUSD > p.MaxPositionSizeUSD {
		errs = append(errs, "position: min_position_size_usd must be in [0, max_position_size_usd]")
	}
	if p.EstimatedLiquidityFactor <= 0 || p.EstimatedLiquidityFactor > 1 {
		addf("position: estimated_liquidity_factor must be in (0,1], got %g", p.EstimatedLiquidityFactor)
	}
	if s.MinMarketLiquidityUSD < p.MaxPositionSizeUSD {
		addf("scanner: min_market_liquidity_usd (%g) should be >= position.max_position_size_usd (%g)", s.MinMarketLiquidityUSD, p.MaxPositionSizeUSD)
	}

	// Verification
	v := c.Verification
	if v.MinConfidence < 0 || v.MinConfidence > 1 {
		addf("verification: min_verification_confidence must be in [0,1], got %g", v.MinConfidence)
	}
	if v.MinSourceAgreement < 1 || v.MinSourceAgreement > 10 {
		addf("verification: min_source_agreement must be between 1 and 10, got %d", v.MinSourceAgreement)
	}
	if v.Timeout.Duration < 5*time.Second || v.Timeout.Duration > 5*time.Minute {
		addf("verification: timeout must be between 5s and 5m, got %s", v.Timeout.Duration)
	}
	if v.RetryAttempts < 0 || v.RetryAttempts > 5 {
		addf("verification: retry_attempts must be between 0 and 5, got %d", v.RetryAttempts)
	}
	if v.Concurrency < 1 {
		errs = append(errs, "verification: concurrency must be >= 1")
	}
	for name, w := range c.Evidence.SourceWeights {
		if w <= 0 {
			addf("evidence: source weight for %q must be > 0", name)
		}
	}

	// Risk
	if c.Risk.EmergencyExitThreshold < 0 || c.Risk.EmergencyExitThreshold > 1 {
		addf("risk: emergency_exit_threshold must be in [0,1], got %g", c.Risk.EmergencyExitThreshold)
	}
	if c.Risk.MaxDailyLossUSD < 0 {
		errs = append(errs, "risk: max_daily_loss_usd must be >= 0")
	}
	if !(c.Risk.MaxSpread >= 0 && c.Risk.MaxSpread <= 1) {
		addf("risk: max_spread must be in [0,1], got %g", c.Risk.MaxSpread)
	}

	// Blacklist
	if _, err := c.Blacklist.Compile(); err != nil {
		errs = append(errs, err.Error())
	}

	// Trading
	t := c.Trading
	if t.MinConfirmations < 1 || t.MinConfirmations > 10 {
		addf("trading: min_confirmations must be between 1 and 10, got %d", t.MinConfirmations)
	}
	if t.OrderTimeout.Duration < time.Minute || t.OrderTimeout.Duration > time.Hour {
		addf("trading: order_timeout must be between 1m and 1h, got %s", t.OrderTimeout.Duration)
	}
	if t.StatusPollInterval.Duration <= 0 {
		errs = append(errs, "trading: status_poll_interval must be > 0")
	}
	if t.MaxSafeRetries < 0 || t.MaxSafeRetries > 3 {
		addf("trading: max_safe_retries must be between 0 and 3, got %d", t.MaxSafeRetries)
	}
	if t.MaxSlippage < 0 || t.MaxSlippage > 0.05 {
		addf("trading: max_slippage must be in [0,0.05], got %g", t.MaxSlippage)
	}

	// Pipeline
	if c.Pipeline.CandidateConcurrency < 1 {
		errs = append(errs, "pipeline: candidate_concurrency must be >= 1")
	}
	if c.Pipeline.NotifyTopN < 0 {
		errs = append(errs, "pipeline: notify_top_n must be >= 0")
	}
	if c.Pipeline.SettleInterval.Duration < 0 {
		errs = append(errs, "pipeline: settle_interval must be >= 0")
	}

	// Supabase
	if c.Supabase.Enabled {
		if strings.TrimSpace(c.Supabase.DSN) == "" {
			if c.Supabase.Host == "" {
				errs = append(errs, "supabase: host must not be empty (or set supabase.dsn)")
			}
			if c.Supabase.Port <= 0 || c.Supabase.Port > 65535 {
				addf("supabase: port must be 1-65535, got %d", c.Supabase.Port)
			}
			if c.Supabase.Database == "" {
				errs = append(errs, "supabase: database must not be empty")
			}
		}
		if c.Supabase.PoolMaxConns < 1 {
			errs = append(errs, "supabase: pool_max_conns must be >= 1")
		}
		if c.Supabase.PoolMinConns < 0 || c.Supabase.PoolMinConns > c.Supabase.PoolMaxConns {
			errs = append(errs, "supabase: pool_min_conns must be in [0, pool_max_conns]")
		}
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Addr == "" {
			errs = append(errs, "redis: addr must not be empty")
		}
		if c.Redis.PoolSize < 1 {
			errs = append(errs, "redis: pool_size must be >= 1")
		}
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty")
		}
	}

	// Server
	if c.Server.Enabled || c.Mode == "server" {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			addf("server: port must be 1-65535, got %d", c.Server.Port)
		}
	}

	// Notify
	if u := c.Notify.SlackWebhookURL; u != "" && !strings.HasPrefix(u, "https://hooks.slack.com/") {
		errs = append(errs, "notify: slack_webhook_url must start with https://hooks.slack.com/")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

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
// built-in defaults, applies POLYARB_* environment variable overrides, and
// returns the final Config. An empty path skips the file. The returned Config
// has NOT been validated; the caller should invoke Config.Validate() after
// Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known POLYARB_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e. not
// empty). This lets operators inject secrets at deploy time without touching
// the TOML file. The unprefixed secret names used by earlier deployments are
// honoured first so the prefixed form wins when both are set.
func applyEnvOverrides(cfg *Config) {
	// ── Compatibility aliases ──
	setStr(&cfg.Wallet.PrivateKey, "POLYGON_WALLET_PRIVATE_KEY")
	setStr(&cfg.Clob.ApiKey, "CLOB_API_KEY")
	setStr(&cfg.Clob.ApiSecret, "CLOB_SECRET")
	setStr(&cfg.Clob.ApiPassphrase, "CLOB_PASS_PHRASE")
	setStr(&cfg.Evidence.OddsAPIKey, "ODDS_API_KEY")
	setStr(&cfg.Evidence.NewsAPIKey, "NEWS_API_KEY")
	setStr(&cfg.Notify.SlackWebhookURL, "SLACK_WEBHOOK_URL")

	// ── Wallet ──
	setStr(&cfg.Wallet.PrivateKey, "POLYARB_WALLET_PRIVATE_KEY")
	setStr(&cfg.Wallet.SafeAddress, "POLYARB_WALLET_SAFE_ADDRESS")
	setStr(&cfg.Wallet.EncryptedKeyPath, "POLYARB_WALLET_ENCRYPTED_KEY_PATH")
	setStr(&cfg.Wallet.KeyPassword, "POLYARB_WALLET_KEY_PASSWORD")

	// ── Polymarket ──
	setStr(&cfg.Polymarket.ClobHost, "POLYARB_POLYMARKET_CLOB_HOST")
	setStr(&cfg.Polymarket.GammaHost, "POLYARB_POLYMARKET_GAMMA_HOST")
	setInt(&cfg.Polymarket.ChainID, "POLYARB_POLYMARKET_CHAIN_ID")
	setInt(&cfg.Polymarket.SignatureType, "POLYARB_POLYMARKET_SIGNATURE_TYPE")
	setInt(&cfg.Polymarket.RequestsPerSecond, "POLYARB_POLYMARKET_REQUESTS_PER_SECOND")

	// ── Clob ──
	setStr(&cfg.Clob.ApiKey, "POLYARB_CLOB_API_KEY")
	setStr(&cfg.Clob.ApiSecret, "POLYARB_CLOB_API_SECRET")
	setStr(&cfg.Clob.ApiPassphrase, "POLYARB_CLOB_API_PASSPHRASE")

	// ── Evidence ──
	setStr(&cfg.Evidence.ESPNHost, "POLYARB_EVIDENCE_ESPN_HOST")
	setStringSlice(&cfg.Evidence.ESPNLeagues, "POLYARB_EVIDENCE_ESPN_LEAGUES")
	setStr(&cfg.Evidence.OddsAPIHost, "POLYARB_EVIDENCE_ODDS_API_HOST")
	setStr(&cfg.Evidence.OddsAPIKey, "POLYARB_EVIDENCE_ODDS_API_KEY")
	setStringSlice(&cfg.Evidence.OddsSports, "POLYARB_EVIDENCE_ODDS_SPORTS")
	setStr(&cfg.Evidence.NewsAPIHost, "POLYARB_EVIDENCE_NEWS_API_HOST")
	setStr(&cfg.Evidence.NewsAPIKey, "POLYARB_EVIDENCE_NEWS_API_KEY")

	// ── Scanner ──
	setDuration(&cfg.Scanner.ScanInterval, "POLYARB_SCANNER_SCAN_INTERVAL")
	setFloat64(&cfg.Scanner.MinProbability, "POLYARB_SCANNER_MIN_PROBABILITY")
	setFloat64(&cfg.Scanner.MaxProbability, "POLYARB_SCANNER_MAX_PROBABILITY")
	setFloat64(&cfg.Scanner.TimeToResolutionHours, "POLYARB_SCANNER_TIME_TO_RESOLUTION_HOURS")
	setFloat64(&cfg.Scanner.MinMarketLiquidityUSD, "POLYARB_SCANNER_MIN_MARKET_LIQUIDITY_USD")
	setInt(&cfg.Scanner.MarketLimit, "POLYARB_SCANNER_MARKET_LIMIT")
	setInt(&cfg.Scanner.MaxRetries, "POLYARB_SCANNER_MAX_RETRIES")
	setDuration(&cfg.Scanner.BackoffBase, "POLYARB_SCANNER_BACKOFF_BASE")
	setDuration(&cfg.Scanner.BackoffMax, "POLYARB_SCANNER_BACKOFF_MAX")
	setInt(&cfg.Scanner.Concurrency, "POLYARB_SCANNER_CONCURRENCY")
	setDuration(&cfg.Scanner.CallbackTimeout, "POLYARB_SCANNER_CALLBACK_TIMEOUT")
	setInt(&cfg.Scanner.HistorySize, "POLYARB_SCANNER_HISTORY_SIZE")

	// ── Position ──
	setFloat64(&cfg.Position.MaxPositionSizeUSD, "POLYARB_POSITION_MAX_POSITION_SIZE_USD")
	setFloat64(&cfg.Position.MaxTotalExposureUSD, "POLYARB_POSITION_MAX_TOTAL_EXPOSURE_USD")
	setInt(&cfg.Position.MaxPositionsPerCategory, "POLYARB_POSITION_MAX_POSITIONS_PER_CATEGORY")
	setFloat64(&cfg.Position.MinExpectedROIPercent, "POLYARB_POSITION_MIN_EXPECTED_ROI_PERCENT")
	setFloat64(&cfg.Position.PositionSizeMultiplier, "POLYARB_POSITION_SIZE_MULTIPLIER")
	setFloat64(&cfg.Position.MinPositionSizeUSD, "POLYARB_POSITION_MIN_POSITION_SIZE_USD")
	setFloat64(&cfg.Position.EstimatedLiquidityFactor, "POLYARB_POSITION_ESTIMATED_LIQUIDITY_FACTOR")

	// ── Verification ──
	setFloat64(&cfg.Verification.MinConfidence, "POLYARB_VERIFICATION_MIN_CONFIDENCE")
	setInt(&cfg.Verification.MinSourceAgreement, "POLYARB_VERIFICATION_MIN_SOURCE_AGREEMENT")
	setDuration(&cfg.Verification.Timeout, "POLYARB_VERIFICATION_TIMEOUT")
	setBool(&cfg.Verification.EnableSports, "POLYARB_VERIFICATION_ENABLE_SPORTS")
	setBool(&cfg.Verification.EnableNews, "POLYARB_VERIFICATION_ENABLE_NEWS")
	setInt(&cfg.Verification.RetryAttempts, "POLYARB_VERIFICATION_RETRY_ATTEMPTS")
	setInt(&cfg.Verification.Concurrency, "POLYARB_VERIFICATION_CONCURRENCY")

	// ── Risk ──
	setFloat64(&cfg.Risk.EmergencyExitThreshold, "POLYARB_RISK_EMERGENCY_EXIT_THRESHOLD")
	setFloat64(&cfg.Risk.MaxDailyLossUSD, "POLYARB_RISK_MAX_DAILY_LOSS_USD")
	setFloat64(&cfg.Risk.MaxSpread, "POLYARB_RISK_MAX_SPREAD")

	// ── Blacklist ──
	setStringSlice(&cfg.Blacklist.QuestionPatterns, "POLYARB_BLACKLIST_QUESTION_PATTERNS")
	setStringSlice(&cfg.Blacklist.DescriptionPatterns, "POLYARB_BLACKLIST_DESCRIPTION_PATTERNS")
	setStringSlice(&cfg.Blacklist.Categories, "POLYARB_BLACKLIST_CATEGORIES")

	// ── Trading ──
	setBool(&cfg.Trading.EnableTrading, "POLYARB_TRADING_ENABLE_TRADING")
	setBool(&cfg.Trading.DryRun, "POLYARB_TRADING_DRY_RUN")
	setInt(&cfg.Trading.MinConfirmations, "POLYARB_TRADING_MIN_CONFIRMATIONS")
	setDuration(&cfg.Trading.OrderTimeout, "POLYARB_TRADING_ORDER_TIMEOUT")
	setDuration(&cfg.Trading.StatusPollInterval, "POLYARB_TRADING_STATUS_POLL_INTERVAL")
	setInt(&cfg.Trading.MaxSafeRetries, "POLYARB_TRADING_MAX_SAFE_RETRIES")
	setFloat64(&cfg.Trading.MaxSlippage, "POLYARB_TRADING_MAX_SLIPPAGE")

	// ── Pipeline ──
	setInt(&cfg.Pipeline.CandidateConcurrency, "POLYARB_PIPELINE_CANDIDATE_CONCURRENCY")
	setInt(&cfg.Pipeline.NotifyTopN, "POLYARB_PIPELINE_NOTIFY_TOP_N")
	setDuration(&cfg.Pipeline.LockTTL, "POLYARB_PIPELINE_LOCK_TTL")
	setStr(&cfg.Pipeline.ReportPrefix, "POLYARB_PIPELINE_REPORT_PREFIX")
	setDuration(&cfg.Pipeline.SettleInterval, "POLYARB_PIPELINE_SETTLE_INTERVAL")

	// ── Supabase ──
	setBool(&cfg.Supabase.Enabled, "POLYARB_SUPABASE_ENABLED")
	setStr(&cfg.Supabase.DSN, "POLYARB_SUPABASE_DSN")
	setStr(&cfg.Supabase.DSN, "POLYARB_SUPABASE_URL") // compatibility alias
	setStr(&cfg.Supabase.Host, "POLYARB_SUPABASE_HOST")
	setInt(&cfg.Supabase.Port, "POLYARB_SUPABASE_PORT")
	setStr(&cfg.Supabase.Database, "POLYARB_SUPABASE_DATABASE")
	setStr(&cfg.Supabase.User, "POLYARB_SUPABASE_USER")
	setStr(&cfg.Supabase.Password, "POLYARB_SUPABASE_PASSWORD")
	setStr(&cfg.Supabase.SSLMode, "POLYARB_SUPABASE_SSL_MODE")
	setInt(&cfg.Supabase.PoolMaxConns, "POLYARB_SUPABASE_POOL_MAX_CONNS")
	setInt(&cfg.Supabase.PoolMinConns, "POLYARB_SUPABASE_POOL_MIN_CONNS")
	setBool(&cfg.Supabase.RunMigrations, "POLYARB_SUPABASE_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "POLYARB_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "POLYARB_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "POLYARB_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "POLYARB_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "POLYARB_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "POLYARB_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "POLYARB_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "POLYARB_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "POLYARB_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "POLYARB_S3_REGION")
	setStr(&cfg.S3.Bucket, "POLYARB_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "POLYARB_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "POLYARB_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "POLYARB_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "POLYARB_S3_FORCE_PATH_STYLE")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "POLYARB_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "POLYARB_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "POLYARB_SERVER_CORS_ORIGINS")
	setStr(&cfg.Server.APIKey, "POLYARB_SERVER_API_KEY")
	setInt(&cfg.Server.RateLimitPerMin, "POLYARB_SERVER_RATE_LIMIT_PER_MIN")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "POLYARB_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "POLYARB_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "POLYARB_NOTIFY_DISCORD_WEBHOOK_URL")
	setStr(&cfg.Notify.SlackWebhookURL, "POLYARB_NOTIFY_SLACK_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "POLYARB_NOTIFY_EVENTS")

	// ── Top-level ──
	setStr(&cfg.Mode, "POLYARB_MODE")
	setStr(&cfg.LogLevel, "POLYARB_LOG_LEVEL")
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

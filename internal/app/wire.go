package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	s3blob "github.com/alanyoungcy/polyarb/internal/blob/s3"
	"github.com/alanyoungcy/polyarb/internal/cache/redis"
	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/crypto"
	"github.com/alanyoungcy/polyarb/internal/domain"
	"github.com/alanyoungcy/polyarb/internal/executor"
	"github.com/alanyoungcy/polyarb/internal/notify"
	"github.com/alanyoungcy/polyarb/internal/pipeline"
	"github.com/alanyoungcy/polyarb/internal/platform/espn"
	"github.com/alanyoungcy/polyarb/internal/platform/newsapi"
	"github.com/alanyoungcy/polyarb/internal/platform/oddsapi"
	"github.com/alanyoungcy/polyarb/internal/platform/polymarket"
	"github.com/alanyoungcy/polyarb/internal/retry"
	"github.com/alanyoungcy/polyarb/internal/risk"
	"github.com/alanyoungcy/polyarb/internal/scanner"
	"github.com/alanyoungcy/polyarb/internal/server/handler"
	"github.com/alanyoungcy/polyarb/internal/store/postgres"
	"github.com/alanyoungcy/polyarb/internal/verifier"
)

// candidateTTL bounds how long a scanned candidate stays in the cache.
const candidateTTL = 30 * time.Minute

// Dependencies is everything the run modes need. Optional backends are nil
// when disabled.
type Dependencies struct {
	Agent *pipeline.Agent

	Bus     domain.SignalBus
	Limiter domain.RateLimiter
	Pingers map[string]handler.Pinger // backends reported by /api/health
	DryRun  bool
}

// Wire builds the dependency graph from cfg. The returned cleanup releases
// every opened connection in reverse order.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(format string, err error) (*Dependencies, func(), error) {
		cleanup()
		return nil, nil, fmt.Errorf(format, err)
	}

	deps := &Dependencies{Pingers: make(map[string]handler.Pinger)}
	var agentDeps pipeline.Deps

	// --- Redis: locks, rate limits, candidate cache, signal bus ---
	if cfg.Redis.Enabled {
		rc, err := redis.New(ctx, cfg.Redis)
		if err != nil {
			return fail("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = rc.Close() })

		limiter := redis.NewRateLimiter(rc)
		bus := redis.NewSignalBus(rc)
		deps.Limiter = limiter
		deps.Bus = bus
		deps.Pingers["redis"] = rc
		agentDeps.Locks = redis.NewLockManager(rc)
		agentDeps.Bus = bus
		agentDeps.Cache = redis.NewCandidateCache(rc, candidateTTL)
	}

	// --- Postgres: audit log and trade log ---
	if cfg.Supabase.Enabled {
		pg, err := postgres.New(ctx, cfg.Supabase)
		if err != nil {
			return fail("wire: postgres: %w", err)
		}
		closers = append(closers, pg.Close)
		if cfg.Supabase.RunMigrations {
			if err := pg.RunMigrations(ctx); err != nil {
				return fail("wire: postgres migrations: %w", err)
			}
		}
		deps.Pingers["postgres"] = pg
		agentDeps.Audit = postgres.NewAuditStore(pg)
		agentDeps.Trades = postgres.NewTradeStore(pg)
	}

	// --- S3: cycle reports ---
	if cfg.S3.Enabled {
		sc, err := s3blob.New(ctx, cfg.S3)
		if err != nil {
			return fail("wire: s3: %w", err)
		}
		agentDeps.Reports = s3blob.NewReportExporter(s3blob.NewWriter(sc), cfg.Pipeline.ReportPrefix)
	}

	// --- Polymarket ---
	gamma := polymarket.NewGammaClient(cfg.Polymarket.GammaHost)
	clob, trader, err := buildClob(ctx, cfg, logger)
	if err != nil {
		return fail("wire: %w", err)
	}
	if deps.Limiter != nil && cfg.Polymarket.RequestsPerSecond > 0 {
		gamma.WithRateLimiter(deps.Limiter, cfg.Polymarket.RequestsPerSecond)
		clob.WithRateLimiter(deps.Limiter, cfg.Polymarket.RequestsPerSecond)
	}

	// --- Scanner ---
	blacklist, err := cfg.Blacklist.Compile()
	if err != nil {
		return fail("wire: blacklist: %w", err)
	}
	agentDeps.Markets = gamma
	agentDeps.Scanner = scanner.New(gamma, clob, blacklist, scanner.Options{
		Retry: retry.Policy{
			Attempts:  cfg.Scanner.MaxRetries,
			Base:      cfg.Scanner.BackoffBase.Duration,
			Max:       cfg.Scanner.BackoffMax.Duration,
			Retryable: retry.Transient,
		},
		Concurrency: cfg.Scanner.Concurrency,
	}, logger)

	// --- Verifier ---
	sources := evidenceSources(cfg)
	if len(sources) == 0 {
		logger.WarnContext(ctx, "no evidence sources configured, nothing will verify")
	}
	v := verifier.New(sources, verifier.Options{
		MinConfidence:      cfg.Verification.MinConfidence,
		MinSourceAgreement: cfg.Verification.MinSourceAgreement,
		SourceTimeout:      cfg.Verification.Timeout.Duration,
		RetryAttempts:      cfg.Verification.RetryAttempts,
		Concurrency:        cfg.Verification.Concurrency,
		Weights:            cfg.Evidence.SourceWeights,
	}, logger)
	logger.InfoContext(ctx, "verifier ready", slog.Any("sources", v.SourceNames()))
	if cats := v.Unverifiable(); len(cats) > 0 {
		logger.WarnContext(ctx, "too few evidence sources to verify some categories",
			slog.Any("categories", cats),
			slog.Int("min_source_agreement", cfg.Verification.MinSourceAgreement),
		)
	}
	agentDeps.Verifier = v

	// --- Risk and execution ---
	agentDeps.Risk = risk.New(risk.LimitsFromConfig(cfg.Position, cfg.Risk), logger)

	var submitter domain.OrderSubmitter
	if trader != nil {
		submitter = trader
		agentDeps.Balance = trader
	}
	exec := executor.New(submitter, executor.Options{
		DryRun:           !cfg.Trading.Live(),
		MinConfirmations: cfg.Trading.MinConfirmations,
		OrderTimeout:     cfg.Trading.OrderTimeout.Duration,
		PollInterval:     cfg.Trading.StatusPollInterval.Duration,
		MaxSafeRetries:   cfg.Trading.MaxSafeRetries,
		MaxSlippage:      cfg.Trading.MaxSlippage,
	}, logger)
	agentDeps.Executor = exec
	deps.DryRun = exec.DryRun()

	// --- Notifications ---
	if n := buildNotifier(cfg.Notify, logger); n != nil {
		agentDeps.Notifier = n
	}

	deps.Agent = pipeline.New(agentDeps, pipeline.Options{
		ScanInterval:         cfg.Scanner.ScanInterval.Duration,
		CallbackTimeout:      cfg.Scanner.CallbackTimeout.Duration,
		CandidateConcurrency: cfg.Pipeline.CandidateConcurrency,
		NotifyTopN:           cfg.Pipeline.NotifyTopN,
		LockTTL:              cfg.Pipeline.LockTTL.Duration,
		HistorySize:          cfg.Scanner.HistorySize,
		DefaultParams:        DefaultParams(cfg.Scanner),
	}, logger)

	logger.InfoContext(ctx, "dependencies wired",
		slog.Bool("redis", cfg.Redis.Enabled),
		slog.Bool("postgres", cfg.Supabase.Enabled),
		slog.Bool("s3", cfg.S3.Enabled),
		slog.Int("evidence_sources", len(sources)),
		slog.Bool("dry_run", deps.DryRun),
	)
	return deps, cleanup, nil
}

// DefaultParams maps scanner configuration onto scan parameters.
func DefaultParams(s config.ScannerConfig) domain.ScanParams {
	return domain.ScanParams{
		MinProb:         s.MinProbability,
		MaxProb:         s.MaxProbability,
		TimeWindowHours: s.TimeToResolutionHours,
		LiquidityFloor:  s.MinMarketLiquidityUSD,
		Limit:           s.MarketLimit,
	}
}

// buildClob returns the CLOB client used for order books and, when live
// trading is on, a trader signing with the configured wallet.
func buildClob(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*polymarket.ClobClient, *polymarket.Trader, error) {
	if !cfg.Trading.Live() {
		return polymarket.NewClobClient(cfg.Polymarket.ClobHost, nil, nil), nil, nil
	}

	key, err := crypto.LoadKey(crypto.KeyConfig{
		RawPrivateKey:    cfg.Wallet.PrivateKey,
		EncryptedKeyPath: cfg.Wallet.EncryptedKeyPath,
		KeyPassword:      cfg.Wallet.KeyPassword,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("load wallet key: %w", err)
	}
	signer, err := crypto.NewSigner(key, cfg.Polymarket.ChainID)
	if err != nil {
		return nil, nil, fmt.Errorf("create signer: %w", err)
	}

	var auth *crypto.HMACAuth
	if cfg.Clob.ApiKey != "" {
		auth = &crypto.HMACAuth{
			Key:        cfg.Clob.ApiKey,
			Secret:     cfg.Clob.ApiSecret,
			Passphrase: cfg.Clob.ApiPassphrase,
		}
	}
	clob := polymarket.NewClobClient(cfg.Polymarket.ClobHost, signer, auth)
	if !clob.HasCredentials() {
		logger.InfoContext(ctx, "deriving clob api credentials",
			slog.String("address", signer.Address().Hex()),
		)
		if err := clob.DeriveAPIKey(ctx); err != nil {
			return nil, nil, fmt.Errorf("derive clob credentials: %w", err)
		}
	}
	trader := polymarket.NewTrader(clob, signer, cfg.Wallet.SafeAddress, cfg.Polymarket.SignatureType)
	return clob, trader, nil
}

// evidenceSources builds the enabled evidence sources. Keyed providers are
// skipped when their key is missing.
func evidenceSources(cfg *config.Config) []domain.EvidenceSource {
	ev := cfg.Evidence
	var out []domain.EvidenceSource
	if cfg.Verification.EnableSports {
		out = append(out, verifier.NewESPNSource(espn.New(ev.ESPNHost), ev.ESPNLeagues))
		if ev.OddsAPIKey != "" {
			out = append(out, verifier.NewOddsSource(oddsapi.New(ev.OddsAPIHost, ev.OddsAPIKey), ev.OddsSports))
		}
	}
	if cfg.Verification.EnableNews && ev.NewsAPIKey != "" {
		out = append(out, verifier.NewNewsSource(newsapi.New(ev.NewsAPIHost, ev.NewsAPIKey)))
	}
	return out
}

// buildNotifier returns nil when no channel is configured.
func buildNotifier(cfg config.NotifyConfig, logger *slog.Logger) *notify.Notifier {
	var senders []notify.Sender
	if cfg.TelegramToken != "" && cfg.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.TelegramToken, cfg.TelegramChatID))
	}
	if cfg.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.DiscordWebhookURL))
	}
	if cfg.SlackWebhookURL != "" {
		senders = append(senders, notify.NewSlackSender(cfg.SlackWebhookURL))
	}
	if len(senders) == 0 {
		return nil
	}
	return notify.NewNotifier(senders, cfg.Events, logger)
}

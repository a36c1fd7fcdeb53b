package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func TestDefaultsValidate(t *testing.T) {
	cfg := Defaults()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("defaults should validate, got: %v", err)
	}
	if cfg.Trading.Live() {
		t.Fatal("defaults must not trade live")
	}
}

func TestValidateCollectsEveryProblem(t *testing.T) {
	cfg := Defaults()
	cfg.Mode = "bogus"
	cfg.Scanner.MinProbability = 0.99
	cfg.Scanner.MaxProbability = 0.92
	cfg.Scanner.ScanInterval = duration{5 * time.Second}
	cfg.Trading.MinConfirmations = 11
	cfg.Position.MaxPositionSizeUSD = 20000
	cfg.Risk.MaxSpread = 1.5

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	msg := err.Error()
	for _, want := range []string{
		`unknown mode "bogus"`,
		"min_probability (0.99) must be less than max_probability (0.92)",
		"scan_interval must be between 10s and 1h",
		"min_confirmations must be between 1 and 10",
		"cannot exceed max_total_exposure_usd",
		"min_market_liquidity_usd (5000) should be >= position.max_position_size_usd (20000)",
		"max_spread must be in [0,1], got 1.5",
	} {
		if !strings.Contains(msg, want) {
			t.Errorf("validation error missing %q:\n%s", want, msg)
		}
	}
}

func TestValidateLiveTradingNeedsWallet(t *testing.T) {
	cfg := Defaults()
	cfg.Trading.EnableTrading = true
	cfg.Trading.DryRun = false
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "wallet:") {
		t.Fatalf("expected wallet error, got %v", err)
	}

	cfg.Wallet.PrivateKey = strings.Repeat("ab", 32)
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	cfg.Wallet.PrivateKey = "0x1234"
	if err := cfg.Validate(); err == nil {
		t.Fatal("expected malformed key error")
	}
}

func TestValidateOptionalBackends(t *testing.T) {
	cfg := Defaults()
	cfg.Redis.Addr = ""
	cfg.S3.Bucket = ""
	if err := cfg.Validate(); err != nil {
		t.Fatalf("disabled backends should not be validated: %v", err)
	}
	cfg.Redis.Enabled = true
	cfg.S3.Enabled = true
	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected errors for enabled backends")
	}
	if !strings.Contains(err.Error(), "redis: addr") || !strings.Contains(err.Error(), "s3: bucket") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestLoadFileAndEnvOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	body := `
mode = "server"

[scanner]
scan_interval = "2m"
min_probability = 0.9

[position]
max_position_size_usd = 500.0

[blacklist]
categories = ["crypto"]
`
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Setenv("ODDS_API_KEY", "legacy-odds")
	t.Setenv("NEWS_API_KEY", "legacy-news")
	t.Setenv("POLYARB_EVIDENCE_NEWS_API_KEY", "prefixed-news")
	t.Setenv("POLYARB_SCANNER_MAX_PROBABILITY", "0.98")
	t.Setenv("POLYARB_TRADING_ORDER_TIMEOUT", "10m")
	t.Setenv("POLYARB_SERVER_CORS_ORIGINS", " https://a.example , ,https://b.example")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	if cfg.Mode != "server" {
		t.Errorf("mode = %q, want server", cfg.Mode)
	}
	if cfg.Scanner.ScanInterval.Duration != 2*time.Minute {
		t.Errorf("scan_interval = %s, want 2m", cfg.Scanner.ScanInterval.Duration)
	}
	if cfg.Scanner.MinProbability != 0.9 || cfg.Scanner.MaxProbability != 0.98 {
		t.Errorf("probabilities = %g/%g", cfg.Scanner.MinProbability, cfg.Scanner.MaxProbability)
	}
	if cfg.Scanner.TimeToResolutionHours != 48 {
		t.Errorf("untouched default lost: %g", cfg.Scanner.TimeToResolutionHours)
	}
	if cfg.Position.MaxPositionSizeUSD != 500 {
		t.Errorf("max_position_size_usd = %g", cfg.Position.MaxPositionSizeUSD)
	}
	if cfg.Evidence.OddsAPIKey != "legacy-odds" {
		t.Errorf("odds key = %q", cfg.Evidence.OddsAPIKey)
	}
	if cfg.Evidence.NewsAPIKey != "prefixed-news" {
		t.Errorf("prefixed env should win over alias, got %q", cfg.Evidence.NewsAPIKey)
	}
	if cfg.Trading.OrderTimeout.Duration != 10*time.Minute {
		t.Errorf("order_timeout = %s", cfg.Trading.OrderTimeout.Duration)
	}
	if got := cfg.Server.CORSOrigins; len(got) != 2 || got[0] != "https://a.example" || got[1] != "https://b.example" {
		t.Errorf("cors origins = %v", got)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("loaded config should validate: %v", err)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.toml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestBlacklistMatch(t *testing.T) {
	bl, err := Defaults().Blacklist.Compile()
	if err != nil {
		t.Fatal(err)
	}
	cases := []struct {
		name        string
		question    string
		description string
		category    string
		want        bool
	}{
		{"clean", "Will the Lakers win on Friday?", "Resolves per NBA.com", "sports", false},
		{"question test", "Is this a TEST market?", "", "", true},
		{"pump and dump", "Will $FOO pump then dump?", "", "", true},
		{"description demo", "Will it rain in Paris?", "demo market only", "", true},
		{"substring is not a word", "Will the contest finish in 2026?", "", "", false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, reason := bl.Match(tc.question, tc.description, tc.category)
			if got != tc.want {
				t.Fatalf("Match = %v (%q), want %v", got, reason, tc.want)
			}
			if got && reason == "" {
				t.Fatal("blacklisted market needs a reason")
			}
		})
	}

	cfg := Defaults().Blacklist
	cfg.Categories = []string{"Crypto"}
	bl, err = cfg.Compile()
	if err != nil {
		t.Fatal(err)
	}
	if ok, _ := bl.Match("Will BTC close above 100k?", "", "crypto"); !ok {
		t.Fatal("category blacklist should be case-insensitive")
	}

	var nilBL *Blacklist
	if ok, _ := nilBL.Match("test", "", ""); ok {
		t.Fatal("nil blacklist must match nothing")
	}
}

func TestBlacklistInvalidPattern(t *testing.T) {
	cfg := Defaults()
	cfg.Blacklist.QuestionPatterns = []string{"(unclosed"}
	if err := cfg.Validate(); err == nil || !strings.Contains(err.Error(), "invalid question pattern") {
		t.Fatalf("expected pattern error, got %v", err)
	}
}

func TestRedactedConfig(t *testing.T) {
	cfg := Defaults()
	cfg.Wallet.PrivateKey = "secret"
	cfg.Evidence.NewsAPIKey = "news"
	cfg.Notify.SlackWebhookURL = "https://hooks.slack.com/services/x"

	out := RedactedConfig(&cfg)
	if out.Wallet.PrivateKey != redacted || out.Evidence.NewsAPIKey != redacted || out.Notify.SlackWebhookURL != redacted {
		t.Fatalf("secrets not redacted: %+v", out.Wallet)
	}
	if out.Clob.ApiKey != "" {
		t.Fatal("empty secrets should stay empty")
	}
	if cfg.Wallet.PrivateKey != "secret" {
		t.Fatal("original mutated")
	}
	out.Server.CORSOrigins[0] = "changed"
	if cfg.Server.CORSOrigins[0] == "changed" {
		t.Fatal("slice shared with original")
	}
}

package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alanyoungcy/polyarb/internal/config"
	"github.com/alanyoungcy/polyarb/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWireWithoutBackends(t *testing.T) {
	cfg := config.Defaults()
	deps, cleanup, err := Wire(context.Background(), &cfg, discardLogger())
	if err != nil {
		t.Fatalf("Wire: %v", err)
	}
	defer cleanup()

	if deps.Agent == nil || !deps.DryRun {
		t.Fatalf("deps = %+v", deps)
	}
	if deps.Bus != nil || deps.Limiter != nil || len(deps.Pingers) != 0 {
		t.Fatal("disabled backends must stay nil")
	}
	if got, want := deps.Agent.DefaultParams(), DefaultParams(cfg.Scanner); got != want {
		t.Fatalf("default params = %+v, want %+v", got, want)
	}
}

func TestScanModeWritesCandidates(t *testing.T) {
	gamma := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/markets" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("[]"))
	}))
	defer gamma.Close()

	cfg := config.Defaults()
	cfg.Mode = "scan"
	cfg.Polymarket.GammaHost = gamma.URL

	var out bytes.Buffer
	a := New(&cfg, discardLogger())
	a.out = &out
	defer a.Close()

	if err := a.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	var cands []domain.MarketCandidate
	if err := json.Unmarshal(out.Bytes(), &cands); err != nil {
		t.Fatalf("output %q: %v", out.String(), err)
	}
	if len(cands) != 0 {
		t.Fatalf("candidates = %d", len(cands))
	}
}

func TestEvidenceSources(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*config.Config)
		names []string
	}{
		{"espn only without keys", func(*config.Config) {}, []string{"espn"}},
		{"all keyed", func(c *config.Config) {
			c.Evidence.OddsAPIKey = "k"
			c.Evidence.NewsAPIKey = "k"
		}, []string{"espn", "oddsapi", "newsapi"}},
		{"sports disabled", func(c *config.Config) {
			c.Verification.EnableSports = false
			c.Evidence.NewsAPIKey = "k"
		}, []string{"newsapi"}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := config.Defaults()
			tc.edit(&cfg)
			got := evidenceSources(&cfg)
			if len(got) != len(tc.names) {
				t.Fatalf("sources = %d, want %d", len(got), len(tc.names))
			}
			for i, s := range got {
				if s.Name() != tc.names[i] {
					t.Errorf("source %d = %q, want %q", i, s.Name(), tc.names[i])
				}
			}
		})
	}
}

func TestBuildNotifier(t *testing.T) {
	if n := buildNotifier(config.NotifyConfig{}, discardLogger()); n != nil {
		t.Fatal("no channels should yield no notifier")
	}
	n := buildNotifier(config.NotifyConfig{SlackWebhookURL: "https://hooks.slack.com/x", Events: []string{"trade"}}, discardLogger())
	if n == nil || !n.Enabled() {
		t.Fatal("slack channel should yield a notifier")
	}
}

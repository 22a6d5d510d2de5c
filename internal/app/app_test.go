package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/kursadbilgin/extraction-orchestrator/internal/config"
	"github.com/kursadbilgin/extraction-orchestrator/internal/domain"
	"github.com/kursadbilgin/extraction-orchestrator/internal/observability"
	"go.uber.org/zap"
)

func TestNewCoreWiresGuardianIntoExtractor(t *testing.T) {
	t.Parallel()

	var cookies atomic.Value
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("sid"); err == nil {
			cookies.Store(c.Value)
		}
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	cfg := testConfig(server.URL)
	core, err := NewCore(cfg, zap.NewNop(), Options{Metrics: observability.NewMetrics()})
	if err != nil {
		t.Fatalf("NewCore() error = %v", err)
	}
	t.Cleanup(core.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	core.Start(ctx)

	if _, err := core.Extractor.BatchStatus(ctx, "b-1"); err == nil {
		t.Fatal("expected error for 401 response")
	}

	state, err := core.Guardian.State(ctx)
	if err != nil || state != domain.SessionExpired {
		t.Fatalf("State() = %s, %v; want expired", state, err)
	}
	if got, _ := cookies.Load().(string); got != "abc" {
		t.Fatalf("session cookie = %q, want abc", got)
	}

	deadline := time.Now().Add(2 * time.Second)
	for {
		if open, _ := core.Prompt.Open(); open {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("recovery prompt should open after expiry")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if !strings.HasPrefix(core.Guardian.RecoveryURL("/"), cfg.HubVerifyURL+"?system_id=2") {
		t.Fatalf("RecoveryURL() = %q", core.Guardian.RecoveryURL("/"))
	}
}

func TestNewCoreValidation(t *testing.T) {
	t.Parallel()

	if _, err := NewCore(nil, zap.NewNop(), Options{}); err == nil {
		t.Fatal("expected error for nil config")
	}

	cfg := testConfig("http://127.0.0.1:1")
	cfg.HubVerifyURL = "not a url"
	if _, err := NewCore(cfg, zap.NewNop(), Options{}); err == nil {
		t.Fatal("expected error for invalid hub url")
	}
}

func testConfig(backend string) *config.Config {
	return &config.Config{
		BackendAPIURL:          backend,
		ExtractorPath:          "extractor",
		HubVerifyURL:           "https://hub.example.com/auth/verify-session-browser",
		SystemID:               "2",
		PublicBaseURL:          "http://localhost:8080",
		PollIntervalMS:         10,
		ConsolidateConcurrency: 2,
		SessionCookie:          "sid=abc",
	}
}

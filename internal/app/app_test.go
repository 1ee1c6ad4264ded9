package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lessongen/internal/platform/logger"
)

func testConfig(t *testing.T) Config {
	t.Helper()
	t.Setenv("LLM_PROVIDER", ProviderMock)
	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("SQLITE_PATH", filepath.Join(t.TempDir(), "app.db"))
	t.Setenv("REDIS_ADDR", "")
	t.Setenv("METRICS_ENABLED", "true")
	t.Setenv("PROMPTS_YAML", "")
	return LoadConfig(logger.Nop())
}

func TestLoadConfigDefaults(t *testing.T) {
	cfg := testConfig(t)
	if cfg.Port != "8080" || cfg.CacheTTL != time.Hour || cfg.CacheKeyPrefix != "gpt-cache:" {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.SandboxEvaluator != EvaluatorHost || strings.Join(cfg.SandboxWorkerCmd, " ") != "lessonctl sandbox-worker" {
		t.Fatalf("unexpected sandbox defaults: %+v", cfg)
	}
	if cfg.GenerationTimeout != 120*time.Second || cfg.Singleflight {
		t.Fatalf("unexpected generation defaults: %+v", cfg)
	}
}

func TestSplitList(t *testing.T) {
	got := splitList(" http://a.test , ,http://b.test")
	if len(got) != 2 || got[0] != "http://a.test" || got[1] != "http://b.test" {
		t.Fatalf("unexpected: %v", got)
	}
}

func TestNewWiresService(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	a, err := NewWithConfig(context.Background(), logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	for path, want := range map[string]int{
		"/healthcheck": http.StatusOK,
		"/metrics":     http.StatusOK,
		"/api/lessons": http.StatusOK,
	} {
		rec := httptest.NewRecorder()
		a.Router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		if rec.Code != want {
			t.Fatalf("%s: got %d want %d", path, rec.Code, want)
		}
	}
}

func TestNewRejectsUnknownChoices(t *testing.T) {
	cfg := testConfig(t)
	cfg.LLMProvider = "carrier-pigeon"
	if _, err := NewWithConfig(context.Background(), logger.Nop(), cfg); err == nil {
		t.Fatal("expected unknown provider error")
	}
	cfg = testConfig(t)
	cfg.SandboxEvaluator = "wasm"
	if _, err := NewWithConfig(context.Background(), logger.Nop(), cfg); err == nil {
		t.Fatal("expected unknown evaluator error")
	}
}

func TestRunStopsOnCancel(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := testConfig(t)
	cfg.Port = "0"
	a, err := NewWithConfig(context.Background(), logger.Nop(), cfg)
	if err != nil {
		t.Fatalf("NewWithConfig: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.Run(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

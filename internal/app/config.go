package app

import (
	"strings"
	"time"

	"github.com/yungbote/lessongen/internal/data/db"
	"github.com/yungbote/lessongen/internal/modules/learning/cache"
	"github.com/yungbote/lessongen/internal/modules/learning/generation"
	"github.com/yungbote/lessongen/internal/modules/learning/keys"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/envutil"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/platform/openai"
	"github.com/yungbote/lessongen/internal/platform/redisx"
	"github.com/yungbote/lessongen/internal/sandbox/loader"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
)

const (
	ProviderOpenAI = "openai"
	ProviderMock   = "mock"

	EvaluatorHost    = "host"
	EvaluatorProcess = "process"
)

type Config struct {
	Port        string
	CORSOrigins []string

	LLMProvider string
	OpenAI      openai.Config
	PlanModel   string

	DB    db.Config
	Redis redisx.Config
	Otel  observability.OtelConfig

	MetricsEnabled bool

	CacheTTL          time.Duration
	CacheKeyPrefix    string
	GenerationTimeout time.Duration
	Singleflight      bool
	BatchConcurrency  int

	SandboxEvaluator string
	SandboxTimeout   time.Duration
	SandboxWorkerCmd []string
	JSXMode          transpile.JSXMode
}

func LoadConfig(log *logger.Logger) Config {
	return Config{
		Port:        envutil.String("PORT", "8080", log),
		CORSOrigins: splitList(envutil.String("CORS_ALLOWED_ORIGINS", "", nil)),

		LLMProvider: strings.ToLower(envutil.String("LLM_PROVIDER", ProviderOpenAI, log)),
		OpenAI:      openai.LoadConfig(log),
		PlanModel:   envutil.String("OPENAI_PLAN_MODEL", "gpt-4o-mini", log),

		DB:    db.LoadConfig(log),
		Redis: redisx.LoadConfig(log),
		Otel:  observability.LoadOtelConfig(log),

		MetricsEnabled: envutil.Bool("METRICS_ENABLED", false),

		CacheTTL:          envutil.Seconds("CACHE_TTL_SECONDS", cache.DefaultTTL),
		CacheKeyPrefix:    envutil.String("CACHE_KEY_PREFIX", keys.DefaultPrefix, log),
		GenerationTimeout: envutil.Seconds("GENERATION_TIMEOUT_SECONDS", generation.DefaultTimeout),
		Singleflight:      envutil.Bool("GENERATION_SINGLEFLIGHT", false),
		BatchConcurrency:  envutil.Int("GENERATION_BATCH_CONCURRENCY", 4),

		SandboxEvaluator: strings.ToLower(envutil.String("SANDBOX_EVALUATOR", EvaluatorHost, log)),
		SandboxTimeout:   envutil.Millis("SANDBOX_TIMEOUT_MS", loader.DefaultTimeout),
		SandboxWorkerCmd: strings.Fields(envutil.String("SANDBOX_WORKER_CMD", "lessonctl sandbox-worker", log)),
		JSXMode:          transpile.JSXMode(envutil.String("SANDBOX_JSX", string(transpile.JSXClassic), nil)),
	}
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

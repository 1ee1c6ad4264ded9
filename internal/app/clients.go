package app

import (
	"context"
	"fmt"

	goredis "github.com/redis/go-redis/v9"

	"github.com/yungbote/lessongen/internal/modules/learning/cache"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/platform/openai"
	"github.com/yungbote/lessongen/internal/platform/redisx"
	"github.com/yungbote/lessongen/internal/sandbox/loader"
)

type Clients struct {
	AI        openai.Client
	Redis     *goredis.Client
	Store     cache.Store
	Evaluator loader.Evaluator
}

func wireClients(ctx context.Context, log *logger.Logger, cfg Config, metrics *observability.Metrics) (Clients, error) {
	log.Info("Wiring clients...")

	// Backend
	var ai openai.Client
	switch cfg.LLMProvider {
	case ProviderMock:
		log.Warn("Using mock generation backend")
		ai = openai.NewMock()
	case ProviderOpenAI, "":
		c, err := openai.NewClient(log, cfg.OpenAI)
		if err != nil {
			return Clients{}, fmt.Errorf("init openai client: %w", err)
		}
		ai = c
	default:
		return Clients{}, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.LLMProvider)
	}

	// Cache store
	var (
		rdb   *goredis.Client
		store cache.Store
	)
	if cfg.Redis.Enabled() {
		c, err := redisx.NewClient(ctx, log, cfg.Redis)
		if err != nil {
			return Clients{}, fmt.Errorf("init redis: %w", err)
		}
		rdb = c
		store = cache.NewRedisStore(c)
	} else {
		log.Warn("REDIS_ADDR not set; artifact cache is in-process only")
		store = cache.NewMemoryStore()
	}

	// Sandbox
	evaluator, err := wireEvaluator(log, cfg, metrics)
	if err != nil {
		if rdb != nil {
			_ = rdb.Close()
		}
		return Clients{}, err
	}

	return Clients{AI: ai, Redis: rdb, Store: store, Evaluator: evaluator}, nil
}

func wireEvaluator(log *logger.Logger, cfg Config, metrics *observability.Metrics) (loader.Evaluator, error) {
	switch cfg.SandboxEvaluator {
	case EvaluatorHost, "":
		return loader.NewHostEvaluator(loader.HostOptions{
			Timeout: cfg.SandboxTimeout,
			Log:     log,
			Metrics: metrics,
		}), nil
	case EvaluatorProcess:
		e, err := loader.NewProcessEvaluator(loader.ProcessOptions{
			Command: cfg.SandboxWorkerCmd,
			Timeout: cfg.SandboxTimeout,
			Log:     log,
			Metrics: metrics,
		})
		if err != nil {
			return nil, fmt.Errorf("init sandbox worker: %w", err)
		}
		return e, nil
	default:
		return nil, fmt.Errorf("unknown SANDBOX_EVALUATOR %q", cfg.SandboxEvaluator)
	}
}

package app

import (
	"fmt"

	"github.com/yungbote/lessongen/internal/learning/prompts"
	"github.com/yungbote/lessongen/internal/modules/learning/cache"
	"github.com/yungbote/lessongen/internal/modules/learning/generation"
	"github.com/yungbote/lessongen/internal/modules/learning/keys"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/sandbox/render"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
)

type Services struct {
	Prompts      *prompts.Registry
	Cache        *cache.Coordinator
	Orchestrator *generation.Orchestrator
	Pipeline     *render.Pipeline
}

func wireServices(log *logger.Logger, cfg Config, clients Clients, reposet Repos, metrics *observability.Metrics) (Services, error) {
	log.Info("Wiring services...")

	registry, err := prompts.Load(log)
	if err != nil {
		return Services{}, fmt.Errorf("load prompts: %w", err)
	}

	pipeline := render.NewPipeline(clients.Evaluator, render.Options{
		Transpile: transpile.Options{JSX: cfg.JSXMode},
		Log:       log,
		Metrics:   metrics,
	})

	coordinator := cache.NewCoordinator(clients.Store, cfg.CacheTTL, log, metrics)

	orch, err := generation.New(generation.Deps{
		Log:          log,
		AI:           clients.AI,
		Prompts:      registry,
		Cache:        coordinator,
		Keys:         keys.New(cfg.CacheKeyPrefix),
		Lessons:      reposet.Lesson,
		Metrics:      metrics,
		Validate:     pipeline.Check,
		Timeout:      cfg.GenerationTimeout,
		Singleflight: cfg.Singleflight,
		CodeModel:    cfg.OpenAI.Model,
		PlanModel:    cfg.PlanModel,
	})
	if err != nil {
		return Services{}, fmt.Errorf("init orchestrator: %w", err)
	}

	return Services{
		Prompts:      registry,
		Cache:        coordinator,
		Orchestrator: orch,
		Pipeline:     pipeline,
	}, nil
}

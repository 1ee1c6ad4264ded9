package app

import (
	"context"

	"gorm.io/gorm"

	httpH "github.com/yungbote/lessongen/internal/http/handlers"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
)

type Handlers struct {
	Health  *httpH.HealthHandler
	Lesson  *httpH.LessonHandler
	Render  *httpH.RenderHandler
	Metrics *httpH.MetricsHandler
}

func wireHandlers(log *logger.Logger, gdb *gorm.DB, clients Clients, services Services, reposet Repos, metrics *observability.Metrics) Handlers {
	log.Info("Wiring handlers...")
	probes := []httpH.Probe{{Name: "database", Check: func(ctx context.Context) error {
		sqlDB, err := gdb.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}}
	if clients.Redis != nil {
		probes = append(probes, httpH.Probe{Name: "redis", Check: func(ctx context.Context) error {
			return clients.Redis.Ping(ctx).Err()
		}})
	}
	h := Handlers{
		Health: httpH.NewHealthHandler(probes...),
		Lesson: httpH.NewLessonHandler(services.Orchestrator, reposet.Lesson, services.Pipeline, log),
		Render: httpH.NewRenderHandler(services.Pipeline),
	}
	if metrics != nil {
		h.Metrics = httpH.NewMetricsHandler(metrics.Handler())
	}
	return h
}

package app

import (
	"github.com/gin-gonic/gin"

	"github.com/yungbote/lessongen/internal/http"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
)

func wireRouter(log *logger.Logger, cfg Config, handlers Handlers, metrics *observability.Metrics) *gin.Engine {
	log.Info("Wiring router...")
	serviceName := ""
	if cfg.Otel.Enabled {
		serviceName = cfg.Otel.ServiceName
	}
	return http.NewRouter(http.RouterConfig{
		Log:            log,
		Metrics:        metrics,
		ServiceName:    serviceName,
		CORSOrigins:    cfg.CORSOrigins,
		LessonHandler:  handlers.Lesson,
		RenderHandler:  handlers.Render,
		MetricsHandler: handlers.Metrics,
		HealthHandler:  handlers.Health,
	})
}

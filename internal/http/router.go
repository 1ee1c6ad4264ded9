package http

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	httpH "github.com/yungbote/lessongen/internal/http/handlers"
	httpMW "github.com/yungbote/lessongen/internal/http/middleware"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
)

type RouterConfig struct {
	Log         *logger.Logger
	Metrics     *observability.Metrics
	ServiceName string
	CORSOrigins []string

	LessonHandler  *httpH.LessonHandler
	RenderHandler  *httpH.RenderHandler
	MetricsHandler *httpH.MetricsHandler

	HealthHandler *httpH.HealthHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	if cfg.ServiceName != "" {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}
	r.Use(httpMW.AttachTraceContext())
	r.Use(httpMW.RequestLogger(cfg.Log))
	r.Use(httpMW.Metrics(cfg.Metrics))
	r.Use(httpMW.CORS(cfg.CORSOrigins))

	// Health
	if cfg.HealthHandler != nil {
		r.GET("/healthcheck", cfg.HealthHandler.HealthCheck)
	}
	if cfg.MetricsHandler != nil {
		r.GET("/metrics", cfg.MetricsHandler.Serve)
	}

	api := r.Group("/api")
	{
		// Lessons
		if cfg.LessonHandler != nil {
			api.POST("/lessons", cfg.LessonHandler.PlanLessons)
			api.GET("/lessons", cfg.LessonHandler.ListLessons)
			api.POST("/lessons/generate", cfg.LessonHandler.GenerateLesson)
			api.POST("/lessons/generate/batch", cfg.LessonHandler.GenerateBatch)
			api.GET("/lessons/:id", cfg.LessonHandler.GetLesson)
			api.POST("/lessons/:id", cfg.LessonHandler.GenerateLessonCode)
			api.GET("/lessons/:id/render", cfg.LessonHandler.RenderLesson)
		}

		// Render
		if cfg.RenderHandler != nil {
			api.POST("/render", cfg.RenderHandler.Render)
		}
	}

	return r
}

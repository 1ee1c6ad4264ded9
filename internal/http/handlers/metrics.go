package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

type MetricsHandler struct {
	h http.Handler
}

func NewMetricsHandler(h http.Handler) *MetricsHandler {
	return &MetricsHandler{h: h}
}

// GET /metrics
func (m *MetricsHandler) Serve(c *gin.Context) {
	m.h.ServeHTTP(c.Writer, c.Request)
}

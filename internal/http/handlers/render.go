package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/lessongen/internal/http/response"
	"github.com/yungbote/lessongen/internal/sandbox/render"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

type RenderHandler struct {
	renderer ViewRenderer
}

func NewRenderHandler(renderer ViewRenderer) *RenderHandler {
	return &RenderHandler{renderer: renderer}
}

// POST /api/render
// A failed render is still a 200: the view carries the failure display.
func (h *RenderHandler) Render(c *gin.Context) {
	var req render.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	view := h.renderer.Render(c.Request.Context(), req)
	if c.Query("format") == "html" {
		c.Header("Content-Type", "text/html; charset=utf-8")
		c.String(http.StatusOK, ui.Document("Lesson preview", view.HTML))
		return
	}
	response.RespondOK(c, view)
}

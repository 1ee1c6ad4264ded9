package handlers

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/lessongen/internal/data/repos"
	"github.com/yungbote/lessongen/internal/domain"
	"github.com/yungbote/lessongen/internal/http/response"
	"github.com/yungbote/lessongen/internal/modules/learning/generation"
	"github.com/yungbote/lessongen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lessongen/internal/pkg/errors"
	"github.com/yungbote/lessongen/internal/platform/apierr"
	"github.com/yungbote/lessongen/internal/platform/ctxutil"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/sandbox/render"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

// LessonGenerator is the part of the orchestrator the HTTP surface drives.
type LessonGenerator interface {
	Generate(ctx context.Context, in generation.Input) generation.Result
	GenerateBatch(ctx context.Context, inputs []generation.Input, limit int) []generation.Result
	Plan(ctx context.Context, outline string) (generation.Plan, error)
}

// ViewRenderer turns source into a display-safe view.
type ViewRenderer interface {
	Render(ctx context.Context, req render.Request) render.View
}

const maxBatch = 20

type LessonHandler struct {
	gen      LessonGenerator
	lessons  repos.LessonRepo
	renderer ViewRenderer
	log      *logger.Logger
}

func NewLessonHandler(gen LessonGenerator, lessons repos.LessonRepo, renderer ViewRenderer, log *logger.Logger) *LessonHandler {
	if log == nil {
		log = logger.Nop()
	}
	return &LessonHandler{gen: gen, lessons: lessons, renderer: renderer, log: log.With("handler", "LessonHandler")}
}

type planRequest struct {
	Outline string `json:"outline"`
}

// POST /api/lessons
func (h *LessonHandler) PlanLessons(c *gin.Context) {
	var req planRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	plan, err := h.gen.Plan(c.Request.Context(), req.Outline)
	if err != nil {
		response.RespondAPIError(c, classify(err))
		return
	}
	response.RespondOK(c, plan)
}

// POST /api/lessons/generate
func (h *LessonHandler) GenerateLesson(c *gin.Context) {
	var in generation.Input
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	ctx := ctxutil.WithCorrelationID(c.Request.Context(), strings.TrimSpace(in.CorrelationID))
	res := h.gen.Generate(ctx, in)
	c.JSON(resultStatus(res), res)
}

type batchRequest struct {
	Lessons     []generation.Input `json:"lessons"`
	Concurrency int                `json:"concurrency"`
}

// POST /api/lessons/generate/batch
func (h *LessonHandler) GenerateBatch(c *gin.Context) {
	var req batchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
		return
	}
	if len(req.Lessons) == 0 || len(req.Lessons) > maxBatch {
		response.RespondError(c, http.StatusBadRequest, "invalid_request",
			fmt.Errorf("lessons must contain 1 to %d items", maxBatch))
		return
	}
	results := h.gen.GenerateBatch(c.Request.Context(), req.Lessons, req.Concurrency)
	response.RespondOK(c, gin.H{"results": results})
}

// GET /api/lessons
func (h *LessonHandler) ListLessons(c *gin.Context) {
	limit := 0
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid limit"))
			return
		}
		limit = n
	}
	lessons, err := h.lessons.List(dbctx.New(c.Request.Context()), limit)
	if err != nil {
		response.RespondAPIError(c, err)
		return
	}
	response.RespondOK(c, gin.H{"lessons": lessons})
}

// GET /api/lessons/:id
func (h *LessonHandler) GetLesson(c *gin.Context) {
	lesson, ok := h.loadLesson(c)
	if !ok {
		return
	}
	response.RespondOK(c, lesson)
}

type lessonCodeRequest struct {
	Lesson *generation.Input `json:"lesson"`
}

// POST /api/lessons/:id
// Generates the component for a stored (or posted) lesson and answers in the
// {tsxSource, cached, lesson} shape the lesson page consumes.
func (h *LessonHandler) GenerateLessonCode(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid lesson id"))
		return
	}
	var req lessonCodeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_request", err)
			return
		}
	}

	var in generation.Input
	if req.Lesson != nil {
		in = *req.Lesson
	} else {
		row, err := h.lessons.GetByID(dbctx.New(c.Request.Context()), id)
		if err != nil {
			response.RespondAPIError(c, err)
			return
		}
		in = generation.Input{
			Outline:       row.Outline,
			CorrelationID: row.CorrelationID,
			Title:         row.Title,
			Description:   row.Description,
			Details:       row.Details,
		}
	}
	in.LessonID = id

	res := h.gen.Generate(c.Request.Context(), in)
	body := gin.H{
		"status":   res.Status,
		"cached":   res.Cached,
		"cacheKey": res.Key,
	}
	if res.OK() {
		body["tsxSource"] = res.Code
	} else {
		body["error"] = res.Error
	}
	if row, err := h.lessons.GetByID(dbctx.New(c.Request.Context()), id); err == nil {
		body["lesson"] = row
	} else {
		body["lesson"] = in
	}
	c.JSON(resultStatus(res), body)
}

// GET /api/lessons/:id/render
func (h *LessonHandler) RenderLesson(c *gin.Context) {
	lesson, ok := h.loadLesson(c)
	if !ok {
		return
	}
	title := lesson.Title
	if title == "" {
		title = lesson.Outline
	}
	c.Header("Content-Type", "text/html; charset=utf-8")
	c.String(http.StatusOK, ui.Document(title, h.lessonBody(c.Request.Context(), lesson)))
}

// lessonBody picks what a stored lesson can show: its component, its failure,
// its Markdown details, or the loading state while it is still generating.
func (h *LessonHandler) lessonBody(ctx context.Context, lesson *domain.Lesson) string {
	switch {
	case strings.TrimSpace(lesson.Code) != "":
		props := map[string]any{"lesson": lessonProps(lesson)}
		return h.renderer.Render(ctx, render.Request{Source: lesson.Code, Props: props}).HTML
	case lesson.Status == domain.LessonFailed:
		return render.FailedView(lesson.Error).HTML
	case strings.TrimSpace(lesson.Details) != "":
		md, err := ui.MarkdownHTML(lesson.Details)
		if err != nil {
			h.log.Warn("Render lesson details failed", "lesson_id", lesson.ID.String(), "error", err)
			return render.FailedView(err.Error()).HTML
		}
		return md
	case lesson.Status == domain.LessonGenerating:
		return render.LoadingView().HTML
	default:
		return render.FailedView("lesson has no content").HTML
	}
}

func lessonProps(l *domain.Lesson) map[string]any {
	return map[string]any{
		"id":          l.ID.String(),
		"outline":     l.Outline,
		"title":       l.Title,
		"description": l.Description,
		"details":     l.Details,
		"status":      string(l.Status),
	}
}

func (h *LessonHandler) loadLesson(c *gin.Context) (*domain.Lesson, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_request", errors.New("invalid lesson id"))
		return nil, false
	}
	lesson, err := h.lessons.GetByID(dbctx.New(c.Request.Context()), id)
	if err != nil {
		response.RespondAPIError(c, err)
		return nil, false
	}
	return lesson, true
}

// classify attaches an HTTP status to generation failures.
func classify(err error) error {
	var be *generation.BackendError
	var pe *generation.ParseError
	var re *generation.RejectedError
	switch {
	case err == nil:
		return nil
	case errors.Is(err, pkgerrors.ErrInvalidArgument):
		return apierr.New(http.StatusBadRequest, "invalid_argument", err)
	case errors.As(err, &be) && be.Timeout:
		return apierr.New(http.StatusGatewayTimeout, "backend_timeout", err)
	case errors.As(err, &be):
		return apierr.New(http.StatusBadGateway, "backend_error", err)
	case errors.As(err, &pe):
		return apierr.New(http.StatusBadGateway, "parse_error", err)
	case errors.As(err, &re):
		return apierr.New(http.StatusUnprocessableEntity, "rejected", err)
	default:
		return apierr.From(err)
	}
}

func resultStatus(res generation.Result) int {
	if res.OK() {
		return http.StatusOK
	}
	if ae := apierr.From(classify(res.Err)); ae != nil && ae.Status != 0 {
		return ae.Status
	}
	return http.StatusInternalServerError
}

package generation

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lessongen/internal/domain"
	"github.com/yungbote/lessongen/internal/learning/prompts"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lessongen/internal/pkg/errors"
	"github.com/yungbote/lessongen/internal/platform/ctxutil"
)

// PlanPart is one lesson in a planned outline.
type PlanPart struct {
	ID          int    `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
	Details     string `json:"details"`
}

type planResponse struct {
	Success *bool      `json:"success"`
	Outline string     `json:"outline"`
	Lessons []PlanPart `json:"lessons"`
}

// Plan is an outline split into lessons. Lessons carry ids whether or not
// they were persisted.
type Plan struct {
	Outline string           `json:"outline"`
	Cached  bool             `json:"cached"`
	Key     string           `json:"-"`
	Lessons []*domain.Lesson `json:"data"`
}

// Plan splits an outline into parts using the JSON prompt flavor. A response
// without success=true and at least one titled part is a ParseError.
func (o *Orchestrator) Plan(ctx context.Context, outline string) (Plan, error) {
	outline = strings.TrimSpace(outline)
	if outline == "" {
		o.metrics.IncGeneration("plan", "invalid")
		return Plan{}, fmt.Errorf("%w: outline required", pkgerrors.ErrInvalidArgument)
	}
	log := o.log.With(ctxutil.LogFields(ctx)...)

	ctx, span := observability.StartSpan(ctx, "plan-lesson-outline", map[string]any{
		"lesson.outline_len": len(outline),
	})
	var err error
	defer func() { span.End(nil, err) }()

	p, err := o.prompts.Build(prompts.PromptLessonPlan, prompts.Input{Outline: outline})
	if err != nil {
		return Plan{}, err
	}
	key, err := o.keys.Key(p.Canonical())
	if err != nil {
		return Plan{}, err
	}

	var parsed planResponse
	art, err := o.resolve(ctx, log, "plan", key, p, o.planModel, false, func(_ context.Context, text string) (string, error) {
		resp, perr := parsePlan(text)
		if perr != nil {
			return "", perr
		}
		parsed = resp
		return strings.TrimSpace(text), nil
	})
	if err != nil {
		o.metrics.IncGeneration("plan", outcomeOf(err))
		return Plan{}, err
	}
	if art.cached || parsed.Lessons == nil {
		// Cached plans were validated before they were stored.
		if parsed, err = parsePlan(art.source); err != nil {
			o.metrics.IncGeneration("plan", "parse_error")
			return Plan{}, err
		}
	}

	planOutline := strings.TrimSpace(parsed.Outline)
	if planOutline == "" {
		planOutline = outline
	}
	now := time.Now().UTC()
	rows := make([]*domain.Lesson, 0, len(parsed.Lessons))
	for _, part := range parsed.Lessons {
		rows = append(rows, &domain.Lesson{
			ID:          uuid.New(),
			Outline:     outline,
			Title:       strings.TrimSpace(part.Title),
			Description: strings.TrimSpace(part.Description),
			Details:     part.Details,
			Status:      domain.LessonGenerated,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}
	if o.lessons != nil {
		if _, perr := o.lessons.Create(dbctx.New(ctx), rows); perr != nil {
			log.Warn("Persist planned lessons failed", "count", len(rows), "error", perr)
		}
	}
	if art.cached {
		o.metrics.IncGeneration("plan", "hit")
	} else {
		o.metrics.IncGeneration("plan", "generated")
	}
	log.Info("Outline planned", "parts", len(rows), "cache_hit", art.cached)
	return Plan{Outline: planOutline, Cached: art.cached, Key: key, Lessons: rows}, nil
}

func parsePlan(text string) (planResponse, error) {
	const op = "generate-lesson-plan"
	text = strings.TrimSpace(text)
	if text == "" {
		return planResponse{}, &ParseError{Op: op, Reason: "empty response"}
	}
	var resp planResponse
	if err := json.Unmarshal([]byte(text), &resp); err != nil {
		return planResponse{}, &ParseError{Op: op, Reason: "invalid json", Err: err}
	}
	if resp.Success == nil {
		return planResponse{}, &ParseError{Op: op, Reason: "missing success flag"}
	}
	if !*resp.Success {
		return planResponse{}, &ParseError{Op: op, Reason: "backend reported success=false"}
	}
	if len(resp.Lessons) == 0 {
		return planResponse{}, &ParseError{Op: op, Reason: "no lessons"}
	}
	for i, part := range resp.Lessons {
		if strings.TrimSpace(part.Title) == "" {
			return planResponse{}, &ParseError{Op: op, Reason: fmt.Sprintf("lesson %d has no title", i+1)}
		}
	}
	return resp, nil
}

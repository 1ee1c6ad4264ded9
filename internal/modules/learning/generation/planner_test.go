package generation

import (
	"context"
	"errors"
	"testing"

	"github.com/yungbote/lessongen/internal/domain"
	"github.com/yungbote/lessongen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lessongen/internal/pkg/errors"
	"github.com/yungbote/lessongen/internal/platform/openai"
)

func TestPlanSplitsOutlineAndCaches(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.PlanModel = "gpt-4o-mini" })
	ctx := context.Background()
	outline := uniqueOutline(t, "Intro to arrays")

	plan, err := f.orch.Plan(ctx, outline)
	if err != nil {
		t.Fatalf("Plan: %v", err)
	}
	if plan.Cached || plan.Outline != outline || len(plan.Lessons) != 2 {
		t.Fatalf("unexpected plan: %+v", plan)
	}
	last, _ := f.ai.LastRequest()
	if !last.JSON || last.Model != "gpt-4o-mini" {
		t.Fatalf("plan request flags wrong: %+v", last)
	}

	row, err := f.lessons.GetByID(dbctx.New(ctx), plan.Lessons[0].ID)
	if err != nil {
		t.Fatalf("planned lesson not persisted: %v", err)
	}
	if row.Status != domain.LessonGenerated || row.Title != "Foundations" || row.Details == "" {
		t.Fatalf("unexpected planned lesson: %+v", row)
	}

	again, err := f.orch.Plan(ctx, outline)
	if err != nil || !again.Cached || len(again.Lessons) != 2 {
		t.Fatalf("second plan: cached=%v err=%v", again.Cached, err)
	}
	if f.ai.Calls() != 1 {
		t.Fatalf("expected one backend call, got %d", f.ai.Calls())
	}
}

func TestPlanRejectsUnusableOutput(t *testing.T) {
	cases := map[string]string{
		"false success": `{"success": false, "outline": "x", "lessons": []}`,
		"not json":      `here are your lessons`,
		"no success":    `{"outline": "x", "lessons": [{"id": 1, "title": "a"}]}`,
		"no lessons":    `{"success": true, "outline": "x", "lessons": []}`,
		"untitled":      `{"success": true, "outline": "x", "lessons": [{"id": 1, "title": " "}]}`,
		"empty":         ``,
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			f := newFixture(t, nil)
			f.ai.Handler = func(context.Context, openai.Request) (openai.Response, error) {
				return openai.Response{Text: body}, nil
			}
			_, err := f.orch.Plan(context.Background(), uniqueOutline(t, "x"))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("expected ParseError, got %v", err)
			}
			if f.store.Len() != 0 {
				t.Fatal("unusable plan must not be cached")
			}
		})
	}
}

func TestPlanRequiresOutline(t *testing.T) {
	f := newFixture(t, nil)
	if _, err := f.orch.Plan(context.Background(), " "); !errors.Is(err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", err)
	}
}

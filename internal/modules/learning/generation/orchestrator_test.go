package generation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/yungbote/lessongen/internal/data/repos"
	"github.com/yungbote/lessongen/internal/data/repos/testutil"
	"github.com/yungbote/lessongen/internal/domain"
	"github.com/yungbote/lessongen/internal/learning/prompts"
	"github.com/yungbote/lessongen/internal/modules/learning/cache"
	"github.com/yungbote/lessongen/internal/modules/learning/keys"
	"github.com/yungbote/lessongen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lessongen/internal/pkg/errors"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/platform/openai"
)

type fixture struct {
	orch    *Orchestrator
	ai      *openai.Mock
	store   *cache.MemoryStore
	lessons repos.LessonRepo
}

func newFixture(t *testing.T, mutate func(*Deps)) fixture {
	t.Helper()
	reg, err := prompts.Default()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	store := cache.NewMemoryStore()
	ai := openai.NewMock()
	lessons := repos.NewLessonRepo(testutil.DB(t), testutil.Logger(t))
	deps := Deps{
		Log:     logger.Nop(),
		AI:      ai,
		Prompts: reg,
		Cache:   cache.NewCoordinator(store, time.Hour, logger.Nop(), nil),
		Keys:    keys.New(keys.DefaultPrefix),
		Lessons: lessons,
		Timeout: time.Second,
	}
	if mutate != nil {
		mutate(&deps)
	}
	orch, err := New(deps)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return fixture{orch: orch, ai: ai, store: store, lessons: lessons}
}

func uniqueOutline(t *testing.T, base string) string {
	return base + " " + t.Name() + " " + uuid.NewString()
}

func TestGenerateServesSecondRequestFromCache(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	in := Input{Outline: uniqueOutline(t, "Intro to arrays"), CorrelationID: "c-1"}

	first := f.orch.Generate(ctx, in)
	if !first.OK() || first.Cached {
		t.Fatalf("first: %+v", first)
	}
	if !strings.Contains(first.Code, "export default function LessonPage") {
		t.Fatalf("unexpected code: %q", first.Code)
	}
	if !strings.HasPrefix(first.Key, keys.DefaultPrefix) {
		t.Fatalf("unexpected key %q", first.Key)
	}

	second := f.orch.Generate(ctx, Input{Outline: in.Outline, CorrelationID: "c-2"})
	if !second.OK() || !second.Cached || second.Code != first.Code || second.Key != first.Key {
		t.Fatalf("second: %+v", second)
	}
	if f.ai.Calls() != 1 {
		t.Fatalf("expected exactly one backend call, got %d", f.ai.Calls())
	}

	id, err := uuid.Parse(first.ID)
	if err != nil {
		t.Fatalf("result id: %v", err)
	}
	row, err := f.lessons.GetByID(dbctx.New(ctx), id)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Status != domain.LessonGenerated || row.Code != first.Code || row.CacheKey != first.Key || row.CorrelationID != "c-1" {
		t.Fatalf("unexpected persisted lesson: %+v", row)
	}
	if last, _ := f.ai.LastRequest(); !last.Deterministic || last.JSON {
		t.Fatalf("code request flags wrong: %+v", last)
	}
}

func TestGenerateTimeoutLeavesCacheUntouched(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Timeout = 20 * time.Millisecond })
	f.ai.Handler = func(ctx context.Context, req openai.Request) (openai.Response, error) {
		<-ctx.Done()
		return openai.Response{}, ctx.Err()
	}

	res := f.orch.Generate(context.Background(), Input{Outline: uniqueOutline(t, "slow")})
	if res.OK() {
		t.Fatalf("expected failure, got %+v", res)
	}
	var be *BackendError
	if !errors.As(res.Err, &be) || !be.Timeout {
		t.Fatalf("expected timeout BackendError, got %v", res.Err)
	}
	if f.store.Len() != 0 {
		t.Fatalf("cache must stay empty, len=%d", f.store.Len())
	}
	if f.ai.Calls() != 1 {
		t.Fatalf("no retries expected, calls=%d", f.ai.Calls())
	}
	assertStatus(t, f, res.ID, domain.LessonFailed)
}

func TestGenerateCallerCancelStillMarksLessonFailed(t *testing.T) {
	f := newFixture(t, nil)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.ai.Handler = func(callCtx context.Context, req openai.Request) (openai.Response, error) {
		cancel()
		<-callCtx.Done()
		return openai.Response{}, callCtx.Err()
	}

	res := f.orch.Generate(ctx, Input{Outline: uniqueOutline(t, "client gone")})
	if res.OK() || !errors.Is(res.Err, context.Canceled) {
		t.Fatalf("expected cancelled failure, got %+v", res)
	}
	row := assertStatus(t, f, res.ID, domain.LessonFailed)
	if !strings.Contains(row.Error, "context canceled") {
		t.Fatalf("persisted error: %q", row.Error)
	}
}

func TestGenerateBackendErrorIsNotCached(t *testing.T) {
	f := newFixture(t, nil)
	f.ai.Handler = func(context.Context, openai.Request) (openai.Response, error) {
		return openai.Response{}, &openai.HTTPError{StatusCode: 500, Err: errors.New("upstream")}
	}
	res := f.orch.Generate(context.Background(), Input{Outline: uniqueOutline(t, "x")})
	var be *BackendError
	if !errors.As(res.Err, &be) || be.Timeout {
		t.Fatalf("expected BackendError, got %v", res.Err)
	}
	if res.Status != StatusError || res.Error == "" || res.Code != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
	if f.store.Len() != 0 {
		t.Fatal("failure must not be cached")
	}
}

func TestGenerateEmptyOutputIsParseError(t *testing.T) {
	f := newFixture(t, nil)
	f.ai.Handler = func(context.Context, openai.Request) (openai.Response, error) {
		return openai.Response{Text: "```tsx\n\n```"}, nil
	}
	res := f.orch.Generate(context.Background(), Input{Outline: uniqueOutline(t, "x")})
	var pe *ParseError
	if !errors.As(res.Err, &pe) {
		t.Fatalf("expected ParseError, got %v", res.Err)
	}
	if f.store.Len() != 0 {
		t.Fatal("failure must not be cached")
	}
	assertStatus(t, f, res.ID, domain.LessonFailed)
}

func TestGenerateStripsFences(t *testing.T) {
	f := newFixture(t, nil)
	f.ai.Handler = func(context.Context, openai.Request) (openai.Response, error) {
		return openai.Response{Text: "```tsx\nexport default function A() { return null }\n```"}, nil
	}
	res := f.orch.Generate(context.Background(), Input{Outline: uniqueOutline(t, "x")})
	if !res.OK() || strings.Contains(res.Code, "```") {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGenerateRejectedSourceMarksLessonFailed(t *testing.T) {
	reason := errors.New("module has no usable default export")
	f := newFixture(t, func(d *Deps) {
		d.Validate = func(context.Context, string) error { return reason }
	})
	res := f.orch.Generate(context.Background(), Input{Outline: uniqueOutline(t, "x")})
	var re *RejectedError
	if !errors.As(res.Err, &re) || !errors.Is(res.Err, reason) {
		t.Fatalf("expected RejectedError, got %v", res.Err)
	}
	if !strings.Contains(res.Error, "module has no usable default export") {
		t.Fatalf("reason not surfaced: %q", res.Error)
	}
	if f.store.Len() != 0 {
		t.Fatal("rejected source must not be cached")
	}
	row := assertStatus(t, f, res.ID, domain.LessonFailed)
	if !strings.Contains(row.Error, "module has no usable default export") {
		t.Fatalf("persisted error: %q", row.Error)
	}
}

type brokenStore struct{}

func (brokenStore) Get(context.Context, string) (string, bool, error) {
	return "", false, errors.New("down")
}
func (brokenStore) Set(context.Context, string, string) error { return errors.New("down") }
func (brokenStore) Expire(context.Context, string, time.Duration) error {
	return errors.New("down")
}

func TestGenerateSurvivesCacheOutage(t *testing.T) {
	f := newFixture(t, func(d *Deps) {
		d.Cache = cache.NewCoordinator(brokenStore{}, time.Hour, logger.Nop(), nil)
	})
	res := f.orch.Generate(context.Background(), Input{Outline: uniqueOutline(t, "x")})
	if !res.OK() || res.Cached {
		t.Fatalf("cache outage must not fail generation: %+v", res)
	}
}

func TestGenerateRejectsEmptyOutline(t *testing.T) {
	f := newFixture(t, nil)
	res := f.orch.Generate(context.Background(), Input{Outline: "   "})
	if !errors.Is(res.Err, pkgerrors.ErrInvalidArgument) {
		t.Fatalf("expected ErrInvalidArgument, got %v", res.Err)
	}
	if f.ai.Calls() != 0 {
		t.Fatal("backend must not be called")
	}
}

func TestGenerateWithoutPersistence(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Lessons = nil })
	res := f.orch.Generate(context.Background(), Input{Outline: uniqueOutline(t, "x")})
	if !res.OK() || res.ID != "" {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestGenerateReusesExistingLesson(t *testing.T) {
	f := newFixture(t, nil)
	ctx := context.Background()
	row := &domain.Lesson{Outline: uniqueOutline(t, "x"), Details: "d"}
	if _, err := f.lessons.Create(dbctx.New(ctx), []*domain.Lesson{row}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	res := f.orch.Generate(ctx, Input{Outline: row.Outline, LessonID: row.ID, Details: "d"})
	if !res.OK() || res.ID != row.ID.String() {
		t.Fatalf("unexpected result: %+v", res)
	}
	assertStatus(t, f, res.ID, domain.LessonGenerated)
}

func TestGenerateSingleflightSharesBackendCall(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Singleflight = true; d.Lessons = nil })
	f.ai.Handler = func(ctx context.Context, req openai.Request) (openai.Response, error) {
		time.Sleep(50 * time.Millisecond)
		return openai.Response{Text: openai.CannedLesson}, nil
	}
	outline := uniqueOutline(t, "shared")

	var wg sync.WaitGroup
	results := make([]Result, 8)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = f.orch.Generate(context.Background(), Input{Outline: outline})
		}()
	}
	wg.Wait()
	for i, r := range results {
		if !r.OK() {
			t.Fatalf("result %d failed: %v", i, r.Err)
		}
	}
	if f.ai.Calls() != 1 {
		t.Fatalf("expected one shared backend call, got %d", f.ai.Calls())
	}
}

func TestGenerateBatchIsolatesFailures(t *testing.T) {
	f := newFixture(t, func(d *Deps) { d.Lessons = nil })
	inputs := []Input{
		{Outline: uniqueOutline(t, "a")},
		{Outline: ""},
		{Outline: uniqueOutline(t, "c")},
	}
	out := f.orch.GenerateBatch(context.Background(), inputs, 2)
	if len(out) != 3 || !out[0].OK() || out[1].OK() || !out[2].OK() {
		t.Fatalf("unexpected batch results: %+v", out)
	}
}

func TestNewRequiresCollaborators(t *testing.T) {
	if _, err := New(Deps{}); err == nil {
		t.Fatal("expected error without logger")
	}
	if _, err := New(Deps{Log: logger.Nop()}); err == nil {
		t.Fatal("expected error without backend")
	}
	if _, err := New(Deps{Log: logger.Nop(), AI: openai.NewMock()}); err == nil {
		t.Fatal("expected error without prompts")
	}
}

func assertStatus(t *testing.T, f fixture, id string, want domain.LessonStatus) *domain.Lesson {
	t.Helper()
	lid, err := uuid.Parse(id)
	if err != nil {
		t.Fatalf("result id %q: %v", id, err)
	}
	row, err := f.lessons.GetByID(dbctx.New(context.Background()), lid)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if row.Status != want {
		t.Fatalf("status = %s, want %s", row.Status, want)
	}
	return row
}

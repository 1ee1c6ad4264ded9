package generation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"
	"gorm.io/datatypes"

	"github.com/yungbote/lessongen/internal/data/repos"
	"github.com/yungbote/lessongen/internal/domain"
	"github.com/yungbote/lessongen/internal/learning/prompts"
	"github.com/yungbote/lessongen/internal/modules/learning/cache"
	"github.com/yungbote/lessongen/internal/modules/learning/keys"
	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/pkg/dbctx"
	pkgerrors "github.com/yungbote/lessongen/internal/pkg/errors"
	"github.com/yungbote/lessongen/internal/platform/ctxutil"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/platform/openai"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
)

const DefaultTimeout = 120 * time.Second

// persistTimeout bounds record writes, which outlive the caller's context.
const persistTimeout = 5 * time.Second

const (
	StatusGenerated = "generated"
	StatusError     = "error"
)

// ValidateFunc checks freshly generated source before it is cached.
type ValidateFunc func(ctx context.Context, source string) error

type Deps struct {
	Log     *logger.Logger
	AI      openai.Client
	Prompts *prompts.Registry
	Cache   *cache.Coordinator
	Keys    keys.Fingerprinter
	// Lessons is optional; without it nothing is persisted.
	Lessons repos.LessonRepo
	Metrics *observability.Metrics

	Validate     ValidateFunc
	Timeout      time.Duration
	Singleflight bool
	CodeModel    string
	PlanModel    string
}

type Orchestrator struct {
	log      *logger.Logger
	ai       openai.Client
	prompts  *prompts.Registry
	cache    *cache.Coordinator
	keys     keys.Fingerprinter
	lessons  repos.LessonRepo
	metrics  *observability.Metrics
	validate ValidateFunc
	timeout  time.Duration

	codeModel string
	planModel string

	flight *singleflight.Group
}

func New(deps Deps) (*Orchestrator, error) {
	if deps.Log == nil {
		return nil, fmt.Errorf("logger required")
	}
	if deps.AI == nil {
		return nil, fmt.Errorf("generation backend required")
	}
	if deps.Prompts == nil {
		return nil, fmt.Errorf("prompt registry required")
	}
	timeout := deps.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	o := &Orchestrator{
		log:       deps.Log.With("service", "GenerationOrchestrator"),
		ai:        deps.AI,
		prompts:   deps.Prompts,
		cache:     deps.Cache,
		keys:      deps.Keys,
		lessons:   deps.Lessons,
		metrics:   deps.Metrics,
		validate:  deps.Validate,
		timeout:   timeout,
		codeModel: deps.CodeModel,
		planModel: deps.PlanModel,
	}
	if deps.Singleflight {
		o.flight = &singleflight.Group{}
	}
	return o, nil
}

// Input is the structured lesson a component is generated from.
type Input struct {
	Outline       string    `json:"outline"`
	CorrelationID string    `json:"lessonId,omitempty"`
	LessonID      uuid.UUID `json:"id,omitempty"`
	Title         string    `json:"title,omitempty"`
	Description   string    `json:"description,omitempty"`
	Details       string    `json:"details,omitempty"`
}

// Result is the pipeline outcome handed back to the caller. Err is set iff
// Status is StatusError.
type Result struct {
	Status        string `json:"status"`
	ID            string `json:"id,omitempty"`
	CorrelationID string `json:"correlationId,omitempty"`
	Code          string `json:"code,omitempty"`
	Details       string `json:"details,omitempty"`
	Cached        bool   `json:"cached"`
	Key           string `json:"cacheKey,omitempty"`
	Error         string `json:"error,omitempty"`
	Err           error  `json:"-"`
}

func (r Result) OK() bool { return r.Status == StatusGenerated }

type artifact struct {
	source string
	model  string
	cached bool
}

// Generate runs lookup, then (on miss) one backend call, then store. Failures
// come back as a Result with Status "error"; nothing panics past here.
func (o *Orchestrator) Generate(ctx context.Context, in Input) (res Result) {
	in.Outline = strings.TrimSpace(in.Outline)
	in.CorrelationID = strings.TrimSpace(in.CorrelationID)
	res = Result{Status: StatusError, CorrelationID: in.CorrelationID, Details: in.Details}

	log := o.log.With(ctxutil.LogFields(ctx)...)
	if in.Outline == "" {
		o.metrics.IncGeneration("code", "invalid")
		return fail(res, fmt.Errorf("%w: outline required", pkgerrors.ErrInvalidArgument))
	}

	ctx, span := observability.StartSpan(ctx, "generate-lesson-code-workflow", map[string]any{
		"lesson.correlation_id": in.CorrelationID,
		"lesson.outline_len":    len(in.Outline),
	})
	defer func() {
		if r := recover(); r != nil {
			log.Error("Generation panicked", "panic", fmt.Sprint(r))
			res = fail(res, fmt.Errorf("generation panicked: %v", r))
		}
		span.End(map[string]any{"cache_hit": res.Cached, "status": res.Status}, res.Err)
	}()

	lessonID := o.begin(ctx, log, in)
	if lessonID != uuid.Nil {
		res.ID = lessonID.String()
	}

	prompt, key, err := o.codePrompt(in)
	if err != nil {
		o.metrics.IncGeneration("code", "invalid")
		o.finishFailed(ctx, log, lessonID, err)
		return fail(res, err)
	}
	res.Key = key

	art, err := o.resolve(ctx, log, "code", key, prompt, o.codeModel, true, o.checkCode)
	if err != nil {
		o.metrics.IncGeneration("code", outcomeOf(err))
		o.finishFailed(ctx, log, lessonID, err)
		return fail(res, err)
	}

	res.Status = StatusGenerated
	res.Code = art.source
	res.Cached = art.cached
	if art.cached {
		o.metrics.IncGeneration("code", "hit")
	} else {
		o.metrics.IncGeneration("code", "generated")
	}
	o.finishGenerated(ctx, log, lessonID, key, prompt, art)
	log.Info("Lesson code ready", "lesson_id", res.ID, "cache_hit", art.cached, "code_len", len(art.source))
	return res
}

// GenerateBatch generates each input independently with at most limit calls in
// flight. One failure never cancels the others.
func (o *Orchestrator) GenerateBatch(ctx context.Context, inputs []Input, limit int) []Result {
	out := make([]Result, len(inputs))
	if limit <= 0 {
		limit = 4
	}
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i := range inputs {
		g.Go(func() error {
			out[i] = o.Generate(gctx, inputs[i])
			return nil
		})
	}
	_ = g.Wait()
	return out
}

func (o *Orchestrator) codePrompt(in Input) (prompts.Prompt, string, error) {
	lessonJSON, err := prompts.LessonJSON(prompts.LessonData{
		Outline:     in.Outline,
		Title:       in.Title,
		Description: in.Description,
		Details:     in.Details,
	})
	if err != nil {
		return prompts.Prompt{}, "", fmt.Errorf("encode lesson: %w", err)
	}
	p, err := o.prompts.Build(prompts.PromptLessonCode, prompts.Input{LessonJSON: lessonJSON})
	if err != nil {
		return prompts.Prompt{}, "", err
	}
	key, err := o.keys.Key(p.Canonical())
	if err != nil {
		return prompts.Prompt{}, "", err
	}
	return p, key, nil
}

// resolve serves key from the cache or produces it with one backend call.
// accept runs on fresh output before it is cached.
func (o *Orchestrator) resolve(
	ctx context.Context,
	log *logger.Logger,
	kind string,
	key string,
	p prompts.Prompt,
	model string,
	deterministic bool,
	accept func(ctx context.Context, text string) (string, error),
) (artifact, error) {
	lookupCtx, lookupSpan := observability.StartSpan(ctx, "check-cache", map[string]any{"cache.key": key})
	hit, ok := o.cache.Lookup(lookupCtx, key)
	lookupSpan.End(map[string]any{"cache.hit": ok}, nil)
	if ok {
		log.Debug("Cache hit", "kind", kind, "key", key)
		return artifact{source: hit.Source, cached: true}, nil
	}

	miss := func(base context.Context) (artifact, error) {
		text, usedModel, err := o.callBackend(base, log, kind, p, model, deterministic)
		if err != nil {
			return artifact{}, err
		}
		text, err = accept(base, text)
		if err != nil {
			return artifact{}, err
		}

		storeCtx, storeSpan := observability.StartSpan(base, "store-cache", map[string]any{
			"cache.key":         key,
			"cache.ttl_seconds": int(o.cacheTTL().Seconds()),
		})
		serr := o.cache.Store(storeCtx, key, text)
		storeSpan.End(nil, serr)
		if serr != nil {
			log.Warn("Cache store failed; returning fresh result", "kind", kind, "key", key, "error", serr)
		}
		return artifact{source: text, model: usedModel}, nil
	}

	if o.flight == nil {
		return miss(ctx)
	}
	// Shared calls outlive any single waiter; the backend deadline still applies.
	v, err, shared := o.flight.Do(kind+"|"+key, func() (interface{}, error) {
		return miss(context.WithoutCancel(ctx))
	})
	if err != nil {
		return artifact{}, err
	}
	if shared {
		log.Debug("Joined in-flight generation", "kind", kind, "key", key)
	}
	return v.(artifact), nil
}

func (o *Orchestrator) callBackend(
	ctx context.Context,
	log *logger.Logger,
	kind string,
	p prompts.Prompt,
	model string,
	deterministic bool,
) (string, string, error) {
	op := "generate-tsx-component"
	if kind == "plan" {
		op = "generate-lesson-plan"
	}
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	callCtx, span := observability.StartSpan(callCtx, op, map[string]any{
		"llm.prompt":         p.Name,
		"llm.prompt_version": p.Version,
		"llm.model":          model,
	})
	start := time.Now()
	resp, err := o.ai.Complete(callCtx, openai.Request{
		System:        p.System,
		User:          p.User,
		Model:         model,
		Deterministic: deterministic,
		JSON:          p.JSON(),
	})
	dur := time.Since(start)
	if err != nil {
		timedOut := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		berr := &BackendError{Op: op, Timeout: timedOut, Err: err}
		status := "error"
		if timedOut {
			status = "timeout"
		}
		o.metrics.ObserveBackend(kind, status, model, dur, 0, 0)
		span.End(map[string]any{"llm.timeout": timedOut}, berr)
		log.Warn("Generation backend call failed", "kind", kind, "timeout", timedOut, "duration_ms", dur.Milliseconds(), "error", err)
		return "", "", berr
	}
	o.metrics.ObserveBackend(kind, "ok", resp.Model, dur, resp.PromptTokens, resp.CompletionTokens)
	span.End(map[string]any{
		"llm.output_len":        len(resp.Text),
		"llm.total_tokens":      resp.TotalTokens,
		"llm.prompt_tokens":     resp.PromptTokens,
		"llm.completion_tokens": resp.CompletionTokens,
	}, nil)
	return resp.Text, resp.Model, nil
}

func (o *Orchestrator) checkCode(ctx context.Context, text string) (string, error) {
	code := strings.TrimSpace(transpile.StripFences(text))
	if code == "" {
		return "", &ParseError{Op: "generate-tsx-component", Reason: "empty response"}
	}
	if o.validate != nil {
		if err := o.validate(ctx, code); err != nil {
			return "", &RejectedError{Err: err}
		}
	}
	return code + "\n", nil
}

func (o *Orchestrator) cacheTTL() time.Duration {
	if o.cache == nil {
		return 0
	}
	return o.cache.TTL()
}

// persistCtx detaches record writes from caller cancellation so a lesson that
// started generating always reaches a terminal status.
func persistCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
}

// begin records the generating state. Persistence is best-effort.
func (o *Orchestrator) begin(ctx context.Context, log *logger.Logger, in Input) uuid.UUID {
	if o.lessons == nil {
		return in.LessonID
	}
	ctx, cancel := persistCtx(ctx)
	defer cancel()
	if in.LessonID != uuid.Nil {
		if _, err := o.lessons.GetByID(dbctx.New(ctx), in.LessonID); err == nil {
			return in.LessonID
		} else if !errors.Is(err, pkgerrors.ErrNotFound) {
			log.Warn("Lesson lookup failed", "lesson_id", in.LessonID.String(), "error", err)
			return in.LessonID
		}
	}
	row := &domain.Lesson{
		ID:            in.LessonID,
		CorrelationID: in.CorrelationID,
		Outline:       in.Outline,
		Title:         strings.TrimSpace(in.Title),
		Description:   strings.TrimSpace(in.Description),
		Details:       in.Details,
		Status:        domain.LessonGenerating,
	}
	if _, err := o.lessons.Create(dbctx.New(ctx), []*domain.Lesson{row}); err != nil {
		log.Warn("Persist generating lesson failed", "error", err)
		return in.LessonID
	}
	return row.ID
}

func (o *Orchestrator) finishGenerated(ctx context.Context, log *logger.Logger, id uuid.UUID, key string, p prompts.Prompt, art artifact) {
	if o.lessons == nil || id == uuid.Nil {
		return
	}
	meta, _ := json.Marshal(map[string]any{
		"cached":         art.cached,
		"model":          art.model,
		"prompt":         p.Name,
		"prompt_version": p.Version,
	})
	ctx, cancel := persistCtx(ctx)
	defer cancel()
	_, err := o.lessons.UpdateStatus(dbctx.New(ctx), id, domain.LessonGenerated, map[string]interface{}{
		"code":      art.source,
		"cache_key": key,
		"error":     "",
		"metadata":  datatypes.JSON(meta),
	})
	if err != nil {
		log.Warn("Persist generated lesson failed", "lesson_id", id.String(), "error", err)
	}
}

func (o *Orchestrator) finishFailed(ctx context.Context, log *logger.Logger, id uuid.UUID, cause error) {
	if o.lessons == nil || id == uuid.Nil {
		return
	}
	ctx, cancel := persistCtx(ctx)
	defer cancel()
	_, err := o.lessons.UpdateStatus(dbctx.New(ctx), id, domain.LessonFailed, map[string]interface{}{
		"error": cause.Error(),
	})
	if err != nil {
		log.Warn("Persist failed lesson failed", "lesson_id", id.String(), "error", err)
	}
}

func fail(res Result, err error) Result {
	res.Status = StatusError
	res.Err = err
	res.Error = err.Error()
	res.Code = ""
	return res
}

func outcomeOf(err error) string {
	var be *BackendError
	var pe *ParseError
	var re *RejectedError
	switch {
	case errors.As(err, &be) && be.Timeout:
		return "timeout"
	case errors.As(err, &be):
		return "backend_error"
	case errors.As(err, &pe):
		return "parse_error"
	case errors.As(err, &re):
		return "rejected"
	default:
		return "error"
	}
}

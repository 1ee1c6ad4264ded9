package render

import (
	"context"
	"errors"
	"strings"

	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/sandbox/loader"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
)

// Request is either raw source or a module transpiled elsewhere, together
// with the error that transpilation reported.
type Request struct {
	Source     string         `json:"source,omitempty"`
	Transpiled string         `json:"transpiled,omitempty"`
	Error      string         `json:"error,omitempty"`
	Props      map[string]any `json:"props,omitempty"`
}

// Pipeline is the stateless source -> view entry point. Every call gets its
// own boundary and its own evaluation scope.
type Pipeline struct {
	opts    Options
	eval    loader.Evaluator
	log     *logger.Logger
	metrics *observability.Metrics
}

func NewPipeline(eval loader.Evaluator, opts Options) *Pipeline {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Pipeline{
		opts:    opts,
		eval:    eval,
		log:     opts.Log.With("service", "RenderPipeline"),
		metrics: opts.Metrics,
	}
}

func (p *Pipeline) Render(ctx context.Context, req Request) View {
	ctx, span := observability.StartSpan(ctx, "render-lesson", map[string]any{
		"source_len":     len(req.Source),
		"transpiled_len": len(req.Transpiled),
	})
	b := NewBoundary(p.eval, p.opts)
	switch {
	case req.Transpiled != "" || strings.TrimSpace(req.Error) != "":
		var upstream error
		if msg := strings.TrimSpace(req.Error); msg != "" {
			upstream = errors.New(msg)
		}
		b.Mount(ctx, transpile.Module{Code: req.Transpiled}, upstream)
	default:
		b.Supply(ctx, req.Source)
	}
	v := b.View(ctx, req.Props)

	var err error
	if v.State == StateFailed {
		err = errors.New(v.Error)
	}
	span.End(map[string]any{"state": string(v.State)}, err)
	return v
}

// Check runs source through transpile, load and a props-less render and
// returns the first failure.
func (p *Pipeline) Check(ctx context.Context, source string) error {
	mod, err := transpile.Transform(source, p.opts.Transpile)
	if err != nil {
		return err
	}
	if p.eval == nil {
		return errors.New("no evaluator configured")
	}
	comp, err := p.eval.Load(ctx, mod)
	if err != nil {
		return err
	}
	if _, err := comp.Render(ctx, nil); err != nil {
		return err
	}
	return nil
}

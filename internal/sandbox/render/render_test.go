package render

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/yungbote/lessongen/internal/platform/openai"
	"github.com/yungbote/lessongen/internal/sandbox/loader"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

type panicEvaluator struct{}

func (panicEvaluator) Load(context.Context, transpile.Module) (loader.Component, error) {
	return panicComponent{}, nil
}

type panicComponent struct{}

func (panicComponent) Render(context.Context, map[string]any) (ui.Node, error) {
	panic("component exploded")
}

func host() loader.Evaluator { return loader.NewHostEvaluator(loader.HostOptions{}) }

func TestBoundaryStateMachine(t *testing.T) {
	ctx := context.Background()
	b := NewBoundary(host(), Options{})

	v := b.View(ctx, nil)
	if v.State != StatePending || !strings.Contains(v.HTML, LoadingText) {
		t.Fatalf("expected loading view, got %+v", v)
	}

	b.Supply(ctx, openai.CannedLesson)
	v = b.View(ctx, nil)
	if v.State != StateRendered || !strings.Contains(v.HTML, "Sample lesson") {
		t.Fatalf("expected rendered view, got %+v", v)
	}
	if b.Begin(openai.CannedLesson) {
		t.Fatal("same source must not re-enter pending")
	}
	if b.State() != StateRendered {
		t.Fatalf("state changed: %s", b.State())
	}

	if !b.Begin(`export default function A() { return <p>two</p>; }`) {
		t.Fatal("new source should re-enter pending")
	}
	if b.State() != StatePending || b.View(ctx, nil).State != StatePending {
		t.Fatal("expected pending after new source")
	}
}

func TestBoundaryFailuresShowMessage(t *testing.T) {
	ctx := context.Background()
	b := NewBoundary(loader.NopEvaluator{LoadErr: errors.New(`bad <module> & co`)}, Options{})
	b.Supply(ctx, `export default function A() { return null; }`)
	v := b.View(ctx, nil)
	if v.State != StateFailed || v.Error != `bad <module> & co` {
		t.Fatalf("unexpected view: %+v", v)
	}
	if !strings.Contains(v.HTML, FailedHeading) || !strings.Contains(v.HTML, "<pre") ||
		!strings.Contains(v.HTML, "bad &lt;module&gt; &amp; co") {
		t.Fatalf("failure not displayed safely: %s", v.HTML)
	}
	// failed is terminal for this source
	b.Supply(ctx, `export default function A() { return null; }`)
	if b.View(ctx, nil).State != StateFailed {
		t.Fatal("failed state should persist for the same source")
	}
}

func TestBoundaryContainsEveryStage(t *testing.T) {
	ctx := context.Background()
	cases := []struct {
		name   string
		eval   loader.Evaluator
		source string
		want   string
	}{
		{"transpile", host(), `export default function A( { return <p/>; }`, "transpile failed"},
		{"not permitted", host(), `import os from "os"; export default function A() { return <p>{String(os)}</p>; }`, "module not permitted: os"},
		{"no default", host(), `export const x = 1;`, loader.MsgNoDefaultExport},
		{"render throw", host(), `export default function A() { throw new Error("kaput"); }`, "kaput"},
		{"render panic", panicEvaluator{}, `export default function A() { return null; }`, "component exploded"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			b := NewBoundary(tc.eval, Options{})
			b.Supply(ctx, tc.source)
			v := b.View(ctx, nil)
			if v.State != StateFailed || !strings.Contains(v.Error, tc.want) {
				t.Fatalf("unexpected view: %+v", v)
			}
		})
	}
}

func TestPipelineRender(t *testing.T) {
	ctx := context.Background()
	p := NewPipeline(host(), Options{})

	v := p.Render(ctx, Request{
		Source: `export default function Hi({ who }: { who: string }) { return <h1>Hello {who}</h1>; }`,
		Props:  map[string]any{"who": "Grace"},
	})
	if v.State != StateRendered || v.HTML != "<h1>Hello Grace</h1>" {
		t.Fatalf("unexpected view: %+v", v)
	}

	mod, err := transpile.Transform(`export default function A() { return <p>pre</p>; }`, transpile.Options{})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	v = p.Render(ctx, Request{Transpiled: mod.Code})
	if v.State != StateRendered || v.HTML != "<p>pre</p>" {
		t.Fatalf("unexpected transpiled view: %+v", v)
	}

	v = p.Render(ctx, Request{Error: "Unexpected token (3:4)"})
	if v.State != StateFailed || v.Error != "Unexpected token (3:4)" {
		t.Fatalf("upstream error should be shown verbatim: %+v", v)
	}

	v = p.Render(ctx, Request{})
	if v.State != StateFailed {
		t.Fatalf("empty request should fail: %+v", v)
	}
}

func TestPipelineCheck(t *testing.T) {
	ctx := context.Background()
	p := NewPipeline(host(), Options{})
	if err := p.Check(ctx, openai.CannedLesson); err != nil {
		t.Fatalf("canned lesson should pass: %v", err)
	}
	err := p.Check(ctx, `import http from "http"; export default function A() { return <p>{String(http)}</p>; }`)
	var le *loader.Error
	if !errors.As(err, &le) || le.Kind != loader.KindModuleNotPermitted {
		t.Fatalf("expected module_not_permitted, got %v", err)
	}
	var te *transpile.Error
	if err := p.Check(ctx, "export default function ("); !errors.As(err, &te) {
		t.Fatalf("expected transpile error, got %v", err)
	}
}

package render

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/sandbox/loader"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

type State string

const (
	StatePending  State = "pending"
	StateRendered State = "rendered"
	StateFailed   State = "failed"
)

const (
	FailedHeading = "Failed to render lesson"
	LoadingText   = "Loading TypeScript…"
)

// View is what the boundary shows for its current state. Error carries the
// failure message verbatim; HTML is always safe to embed.
type View struct {
	State State  `json:"state"`
	HTML  string `json:"html"`
	Error string `json:"error,omitempty"`
}

type Options struct {
	Transpile transpile.Options
	Log       *logger.Logger
	Metrics   *observability.Metrics
}

// Boundary owns one lesson's source and the component produced from it. It
// moves pending -> rendered | failed and returns to pending only when a
// different source is supplied.
type Boundary struct {
	eval    loader.Evaluator
	opts    transpile.Options
	log     *logger.Logger
	metrics *observability.Metrics

	mu       sync.Mutex
	supplied bool
	source   string
	state    State
	comp     loader.Component
	err      error
	html     string
}

func NewBoundary(eval loader.Evaluator, opts Options) *Boundary {
	if opts.Log == nil {
		opts.Log = logger.Nop()
	}
	return &Boundary{
		eval:    eval,
		opts:    opts.Transpile,
		log:     opts.Log.With("service", "RenderBoundary"),
		metrics: opts.Metrics,
		state:   StatePending,
	}
}

func (b *Boundary) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Begin records source as the current one. It reports whether the boundary
// re-entered pending; supplying the current source again changes nothing.
func (b *Boundary) Begin(source string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.begin(source)
}

func (b *Boundary) begin(source string) bool {
	if b.supplied && source == b.source {
		return false
	}
	b.supplied = true
	b.source = source
	b.state = StatePending
	b.comp, b.err, b.html = nil, nil, ""
	return true
}

// Supply transpiles and loads source. Failures are kept as the failed state.
func (b *Boundary) Supply(ctx context.Context, source string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.begin(source) {
		return
	}
	mod, err := transpile.Transform(source, b.opts)
	b.mount(ctx, mod, err)
}

// Mount loads an already transpiled module. A non-nil upstream error, such
// as a transpile failure reported by the caller, fails the boundary as is.
func (b *Boundary) Mount(ctx context.Context, mod transpile.Module, upstream error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.begin("\x00module\x00" + mod.Code) {
		return
	}
	b.mount(ctx, mod, upstream)
}

func (b *Boundary) mount(ctx context.Context, mod transpile.Module, upstream error) {
	defer func() {
		if r := recover(); r != nil {
			b.fail(fmt.Errorf("evaluation failed: %v", r))
		}
	}()
	if upstream != nil {
		b.fail(upstream)
		return
	}
	if b.eval == nil {
		b.fail(errors.New("no evaluator configured"))
		return
	}
	comp, err := b.eval.Load(ctx, mod)
	if err != nil {
		b.fail(err)
		return
	}
	b.comp = comp
}

// View renders the component once with props. Later calls return the same
// terminal view until a new source is supplied.
func (b *Boundary) View(ctx context.Context, props map[string]any) (v View) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch {
	case b.state == StateFailed:
		return b.failedView()
	case b.state == StateRendered:
		return View{State: StateRendered, HTML: b.html}
	case b.comp == nil:
		return LoadingView()
	}

	defer func() {
		if r := recover(); r != nil {
			b.fail(fmt.Errorf("render failed: %v", r))
			v = b.failedView()
		}
		b.metrics.IncSandbox("view", string(v.State))
	}()
	node, err := b.comp.Render(ctx, props)
	if err != nil {
		b.fail(err)
		return b.failedView()
	}
	b.state = StateRendered
	b.html = ui.HTML(node)
	return View{State: StateRendered, HTML: b.html}
}

func (b *Boundary) fail(err error) {
	b.state = StateFailed
	b.err = err
	b.comp = nil
	b.log.Warn("Lesson render failed", "error", err, "kind", kindOf(err))
}

func (b *Boundary) failedView() View {
	msg := ""
	if b.err != nil {
		msg = b.err.Error()
	}
	return FailedView(msg)
}

// FailedView is the fixed failure display with msg shown verbatim.
func FailedView(msg string) View {
	heading, _ := ui.Element("h2", map[string]any{"className": "text-lg font-semibold text-red-700"}, []ui.Node{ui.Text(FailedHeading)})
	pre, _ := ui.Element("pre", map[string]any{"className": "whitespace-pre-wrap text-sm"}, []ui.Node{ui.Text(msg)})
	box, _ := ui.Element("div", map[string]any{"role": "alert", "className": "lesson-error rounded border border-red-300 p-4"}, []ui.Node{heading, pre})
	return View{State: StateFailed, HTML: ui.HTML(box), Error: msg}
}

// LoadingView is the fixed display while no component exists yet.
func LoadingView() View {
	n, _ := ui.Element("div", map[string]any{"className": "lesson-loading", "aria-busy": true}, []ui.Node{ui.Text(LoadingText)})
	return View{State: StatePending, HTML: ui.HTML(n)}
}

func kindOf(err error) string {
	var le *loader.Error
	if errors.As(err, &le) {
		return string(le.Kind)
	}
	var te *transpile.Error
	if errors.As(err, &te) {
		return "transpile"
	}
	return "other"
}

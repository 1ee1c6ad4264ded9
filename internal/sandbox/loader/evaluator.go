package loader

import (
	"context"

	"github.com/yungbote/lessongen/internal/sandbox/transpile"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

// Evaluator turns an executable module into a component. Implementations
// own their isolation strategy; callers never see the engine.
type Evaluator interface {
	Load(ctx context.Context, mod transpile.Module) (Component, error)
}

// Component is the default export of a loaded module.
type Component interface {
	// Render invokes the component with props (nil means none) and resolves
	// the result into a UI tree.
	Render(ctx context.Context, props map[string]any) (ui.Node, error)
}

// NopEvaluator never executes anything. Tests use it to drive the render
// boundary through fixed outcomes.
type NopEvaluator struct {
	Node      ui.Node
	LoadErr   error
	RenderErr error
}

func (e NopEvaluator) Load(ctx context.Context, _ transpile.Module) (Component, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if e.LoadErr != nil {
		return nil, e.LoadErr
	}
	return nopComponent{node: e.Node, err: e.RenderErr}, nil
}

type nopComponent struct {
	node ui.Node
	err  error
}

func (c nopComponent) Render(ctx context.Context, _ map[string]any) (ui.Node, error) {
	if err := ctx.Err(); err != nil {
		return ui.Node{}, err
	}
	if c.err != nil {
		return ui.Node{}, c.err
	}
	return c.node, nil
}

package loader

import (
	"context"
	"strconv"
	"time"

	"github.com/dop251/goja"

	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

// resolver walks element values produced by the shim into a ui.Node tree,
// calling function components along the way.
type resolver struct {
	vm       *goja.Runtime
	shim     *shim
	maxDepth int
	maxNodes int
	nodes    int

	// Go-side walking is not covered by VM interrupts, so it checks these itself.
	ctx      context.Context
	deadline time.Time
	timeout  time.Duration
}

func (r *resolver) expired() error {
	if r.ctx != nil {
		if err := r.ctx.Err(); err != nil {
			return newError(KindTimeout, err, "sandbox cancelled: %v", err)
		}
	}
	if !r.deadline.IsZero() && time.Now().After(r.deadline) {
		return newError(KindTimeout, nil, "sandbox timed out after %s", r.timeout)
	}
	return nil
}

func (r *resolver) callComponent(fn *goja.Object, args []goja.Value, depth int) (goja.Value, error) {
	if depth > r.maxDepth {
		return nil, newError(KindRender, nil, "render failed: component tree deeper than %d", r.maxDepth)
	}
	if isClassComponent(fn) {
		inst, err := r.vm.New(fn, args...)
		if err != nil {
			return nil, err
		}
		render, ok := goja.AssertFunction(get(inst, "render"))
		if !ok {
			return nil, newError(KindRender, nil, "render failed: class component has no render method")
		}
		return render(inst)
	}
	call, ok := goja.AssertFunction(fn)
	if !ok {
		return nil, newError(KindRender, nil, "render failed: component is not callable")
	}
	return call(goja.Undefined(), args...)
}

func isClassComponent(fn *goja.Object) bool {
	proto, ok := get(fn, "prototype").(*goja.Object)
	if !ok {
		return false
	}
	v := get(proto, "isReactComponent")
	return v != nil && !goja.IsUndefined(v) && !goja.IsNull(v)
}

func (r *resolver) resolve(v goja.Value, depth int) (ui.Node, error) {
	if depth > r.maxDepth {
		return ui.Node{}, newError(KindRender, nil, "render failed: component tree deeper than %d", r.maxDepth)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ui.Node{}, nil
	}
	r.nodes++
	if r.nodes > r.maxNodes {
		return ui.Node{}, newError(KindRender, nil, "render failed: more than %d nodes", r.maxNodes)
	}

	obj, ok := v.(*goja.Object)
	if !ok {
		switch v.Export().(type) {
		case bool:
			return ui.Node{}, nil
		case string, int64, float64:
			return ui.Text(v.String()), nil
		default:
			return ui.Node{}, nil
		}
	}

	if obj.ClassName() == "Array" {
		length := get(obj, "length").ToInteger()
		if length > int64(r.maxNodes-r.nodes) {
			return ui.Node{}, newError(KindRender, nil, "render failed: more than %d nodes", r.maxNodes)
		}
		var kids []ui.Node
		for i := int64(0); i < length; i++ {
			if err := r.expired(); err != nil {
				return ui.Node{}, err
			}
			item := obj.Get(strconv.FormatInt(i, 10))
			if item == nil || goja.IsUndefined(item) || goja.IsNull(item) {
				// holes still cost a slot
				r.nodes++
				if r.nodes > r.maxNodes {
					return ui.Node{}, newError(KindRender, nil, "render failed: more than %d nodes", r.maxNodes)
				}
				continue
			}
			child, err := r.resolve(item, depth+1)
			if err != nil {
				return ui.Node{}, err
			}
			kids = appendChild(kids, child)
		}
		return ui.Fragment(kids...), nil
	}
	if tag := get(obj, "$$typeof"); tag != nil && tag.String() == elementTag {
		return r.element(obj, depth)
	}
	if _, ok := goja.AssertFunction(obj); ok {
		// functions are not renderable children
		return ui.Node{}, nil
	}
	return ui.Node{}, newError(KindRender, nil, "render failed: objects are not valid as a UI child")
}

func (r *resolver) element(el *goja.Object, depth int) (ui.Node, error) {
	typ := get(el, "type")
	props, ok := get(el, "props").(*goja.Object)
	if !ok {
		props = r.vm.NewObject()
	}

	if typ != nil {
		if _, isObj := typ.(*goja.Object); !isObj && !goja.IsUndefined(typ) && !goja.IsNull(typ) {
			return r.intrinsic(typ.String(), props, depth)
		}
	}
	typObj, ok := typ.(*goja.Object)
	if !ok {
		return ui.Node{}, newError(KindRender, nil, "render failed: element type is invalid")
	}
	if _, ok := goja.AssertFunction(typObj); ok {
		out, err := r.callComponent(typObj, []goja.Value{props}, depth+1)
		if err != nil {
			return ui.Node{}, err
		}
		return r.resolve(out, depth+1)
	}

	switch marker := get(typObj, "$$lessongen"); {
	case marker == nil || goja.IsUndefined(marker):
		return ui.Node{}, newError(KindRender, nil, "render failed: element type is invalid")
	case marker.String() == "fragment":
		return r.resolve(get(props, "children"), depth+1)
	case marker.String() == "provider":
		ctxObj, ok := get(typObj, "context").(*goja.Object)
		if !ok {
			return r.resolve(get(props, "children"), depth+1)
		}
		prev := get(ctxObj, "_value")
		_ = ctxObj.Set("_value", get(props, "value"))
		defer func() { _ = ctxObj.Set("_value", prev) }()
		return r.resolve(get(props, "children"), depth+1)
	case marker.String() == "consumer":
		ctxObj, _ := get(typObj, "context").(*goja.Object)
		fn, ok := goja.AssertFunction(get(props, "children"))
		if !ok {
			return ui.Node{}, nil
		}
		out, err := fn(goja.Undefined(), valueOr(get(ctxObj, "_value")))
		if err != nil {
			return ui.Node{}, err
		}
		return r.resolve(out, depth+1)
	default:
		return ui.Node{}, newError(KindRender, nil, "render failed: element type is invalid")
	}
}

func (r *resolver) intrinsic(tag string, props *goja.Object, depth int) (ui.Node, error) {
	attrs := make(map[string]any)
	for _, k := range props.Keys() {
		if k == "children" {
			continue
		}
		v := props.Get(k)
		if v == nil || goja.IsUndefined(v) {
			continue
		}
		attrs[k] = v.Export()
	}
	child, err := r.resolve(get(props, "children"), depth+1)
	if err != nil {
		return ui.Node{}, err
	}
	n, ok := ui.Element(tag, attrs, appendChild(nil, child))
	if !ok {
		return ui.Node{}, nil
	}
	return n, nil
}

// appendChild flattens fragments and drops empty nodes.
func appendChild(kids []ui.Node, n ui.Node) []ui.Node {
	switch {
	case n.Tag != "":
		return append(kids, n)
	case n.Text != "":
		return append(kids, n)
	default:
		for _, c := range n.Children {
			kids = appendChild(kids, c)
		}
		return kids
	}
}

func valueOr(v goja.Value) goja.Value {
	if v == nil {
		return goja.Undefined()
	}
	return v
}

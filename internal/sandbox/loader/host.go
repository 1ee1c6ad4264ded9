package loader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/dop251/goja"

	"github.com/yungbote/lessongen/internal/observability"
	"github.com/yungbote/lessongen/internal/platform/logger"
	"github.com/yungbote/lessongen/internal/sandbox/transpile"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

const (
	DefaultTimeout  = 2 * time.Second
	DefaultMaxDepth = 256
	DefaultMaxNodes = 20000
	maxCallStack    = 2048
)

// moduleWrapperHead and moduleWrapperTail turn the module body into a
// function of exactly four bindings.
const (
	moduleWrapperHead = "(function (React, exports, module, require) {\n"
	moduleWrapperTail = "\n})"
)

type HostOptions struct {
	Timeout  time.Duration
	MaxDepth int
	MaxNodes int
	Log      *logger.Logger
	Metrics  *observability.Metrics
}

// HostEvaluator runs modules in an in-process goja VM. Every Load gets a
// fresh VM; nothing is pooled or shared between lessons.
type HostEvaluator struct {
	timeout  time.Duration
	maxDepth int
	maxNodes int
	log      *logger.Logger
	metrics  *observability.Metrics
}

func NewHostEvaluator(opts HostOptions) *HostEvaluator {
	e := &HostEvaluator{
		timeout:  opts.Timeout,
		maxDepth: opts.MaxDepth,
		maxNodes: opts.MaxNodes,
		log:      opts.Log,
		metrics:  opts.Metrics,
	}
	if e.timeout <= 0 {
		e.timeout = DefaultTimeout
	}
	if e.maxDepth <= 0 {
		e.maxDepth = DefaultMaxDepth
	}
	if e.maxNodes <= 0 {
		e.maxNodes = DefaultMaxNodes
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.log = e.log.With("service", "HostEvaluator")
	return e
}

type interruptReason struct {
	timeout bool
	cause   error
}

// sandbox is one isolated evaluation scope.
type sandbox struct {
	vm      *goja.Runtime
	shim    *shim
	denied  []string
	timeout time.Duration
}

func (e *HostEvaluator) Load(ctx context.Context, mod transpile.Module) (comp Component, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = newError(KindEvaluation, nil, "evaluation failed: %v", r)
		}
		e.count("load", err)
	}()

	vm := goja.New()
	vm.SetMaxCallStackSize(maxCallStack)
	sb := &sandbox{vm: vm, timeout: e.timeout}
	if sb.shim, err = installShim(vm); err != nil {
		return nil, newError(KindEvaluation, err, "sandbox setup failed: %v", err)
	}

	prog, cerr := goja.Compile(transpile.SourceFile, moduleWrapperHead+mod.Code+moduleWrapperTail, false)
	if cerr != nil {
		return nil, newError(KindEvaluation, cerr, "evaluation failed: %v", cerr)
	}

	exports := vm.NewObject()
	module := vm.NewObject()
	_ = module.Set("exports", exports)
	require := vm.ToValue(func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		if m, ok := sb.shim.module(name); ok {
			return m
		}
		sb.denied = append(sb.denied, name)
		panic(vm.NewTypeError("module not permitted: %s", name))
	})

	var exp defaultExport
	_, err = sb.run(ctx, func() (goja.Value, error) {
		wrapper, err := vm.RunProgram(prog)
		if err != nil {
			return nil, err
		}
		fn, ok := goja.AssertFunction(wrapper)
		if !ok {
			return nil, errors.New("module wrapper is not callable")
		}
		if _, err := fn(goja.Undefined(), sb.shim.react, exports, module, require); err != nil {
			return nil, err
		}
		// Export slots may be getters, so the lookup stays under the interrupt.
		exp = findDefaultExport(vm, module, exports)
		return nil, nil
	})
	// A rejected import fails the load even if the module caught the throw.
	if len(sb.denied) > 0 {
		return nil, &Error{
			Kind:    KindModuleNotPermitted,
			Module:  sb.denied[0],
			Message: "module not permitted: " + sb.denied[0],
		}
	}
	if err != nil {
		return nil, err
	}

	if !exp.found {
		return nil, newError(KindNoDefaultExport, nil, MsgNoDefaultExport)
	}
	e.log.Debug("Module loaded", "export", exp.slot, "code_len", len(mod.Code))
	return &hostComponent{
		sb:       sb,
		fn:       exp.fn,
		maxDepth: e.maxDepth,
		maxNodes: e.maxNodes,
		metrics:  e.metrics,
	}, nil
}

func (e *HostEvaluator) count(stage string, err error) {
	status := "ok"
	var le *Error
	if errors.As(err, &le) {
		status = string(le.Kind)
	} else if err != nil {
		status = "error"
	}
	e.metrics.IncSandbox(stage, status)
}

// defaultExport is the tagged result of the export lookup: found with a
// callable, or not found.
type defaultExport struct {
	found bool
	fn    *goja.Object
	slot  string
}

func findDefaultExport(vm *goja.Runtime, module, exports *goja.Object) defaultExport {
	if me := get(module, "exports"); isObject(me) {
		if fn, ok := callable(get(me.ToObject(vm), "default")); ok {
			return defaultExport{found: true, fn: fn, slot: "module.exports.default"}
		}
	}
	if fn, ok := callable(get(exports, "default")); ok {
		return defaultExport{found: true, fn: fn, slot: "exports.default"}
	}
	return defaultExport{}
}

// run executes fn with the VM interrupted on timeout or ctx cancellation.
// Engine errors are converted into *Error.
func (s *sandbox) run(ctx context.Context, fn func() (goja.Value, error)) (v goja.Value, err error) {
	if err := ctx.Err(); err != nil {
		return nil, newError(KindTimeout, err, "sandbox cancelled: %v", err)
	}
	s.vm.ClearInterrupt()
	defer s.vm.ClearInterrupt()

	timer := time.AfterFunc(s.timeout, func() {
		s.vm.Interrupt(interruptReason{timeout: true})
	})
	defer timer.Stop()
	stop := context.AfterFunc(ctx, func() {
		s.vm.Interrupt(interruptReason{cause: ctx.Err()})
	})
	defer stop()

	defer func() {
		if r := recover(); r != nil {
			v, err = nil, s.convert(fmt.Errorf("%v", r))
		}
	}()
	v, err = fn()
	if err != nil {
		return nil, s.convert(err)
	}
	return v, nil
}

func (s *sandbox) convert(err error) error {
	var le *Error
	if errors.As(err, &le) {
		return le
	}
	var ie *goja.InterruptedError
	if errors.As(err, &ie) {
		if r, ok := ie.Value().(interruptReason); ok && !r.timeout {
			return newError(KindTimeout, r.cause, "sandbox cancelled: %v", r.cause)
		}
		return newError(KindTimeout, err, "sandbox timed out after %s", s.timeout)
	}
	var ex *goja.Exception
	if errors.As(err, &ex) {
		return newError(KindEvaluation, err, "evaluation failed: %s", exceptionMessage(ex))
	}
	return newError(KindEvaluation, err, "evaluation failed: %v", err)
}

func exceptionMessage(ex *goja.Exception) string {
	if v := ex.Value(); v != nil && !goja.IsUndefined(v) && !goja.IsNull(v) {
		return v.String()
	}
	return ex.Error()
}

type hostComponent struct {
	mu       sync.Mutex
	sb       *sandbox
	fn       *goja.Object
	maxDepth int
	maxNodes int
	metrics  *observability.Metrics
}

// Render calls the component once and resolves its output. A VM is single
// threaded, so renders of one component are serialized.
func (c *hostComponent) Render(ctx context.Context, props map[string]any) (node ui.Node, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	defer func() {
		status := "ok"
		var le *Error
		if errors.As(err, &le) {
			status = string(le.Kind)
		}
		c.metrics.IncSandbox("render", status)
	}()

	vm := c.sb.vm
	start := time.Now()
	_, err = c.sb.run(ctx, func() (goja.Value, error) {
		args, err := c.propsArgs(props)
		if err != nil {
			return nil, err
		}
		r := &resolver{
			vm:       vm,
			shim:     c.sb.shim,
			maxDepth: c.maxDepth,
			maxNodes: c.maxNodes,
			ctx:      ctx,
			deadline: start.Add(c.sb.timeout),
			timeout:  c.sb.timeout,
		}
		out, err := r.callComponent(c.fn, args, 0)
		if err != nil {
			return nil, err
		}
		node, err = r.resolve(out, 0)
		return nil, err
	})
	if err != nil {
		var le *Error
		if errors.As(err, &le) && le.Kind == KindEvaluation {
			le.Kind = KindRender
			le.Message = "render failed: " + trimPrefix(le.Message, "evaluation failed: ")
		}
		return ui.Node{}, err
	}
	return node, nil
}

// propsArgs converts props into native JS values. A component declared
// without parameters is called with no arguments when props is nil.
func (c *hostComponent) propsArgs(props map[string]any) ([]goja.Value, error) {
	vm := c.sb.vm
	if props == nil {
		if l := get(c.fn, "length"); l != nil && l.ToInteger() == 0 {
			return nil, nil
		}
		return []goja.Value{vm.NewObject()}, nil
	}
	raw, err := json.Marshal(props)
	if err != nil {
		return nil, newError(KindRender, err, "render failed: props are not serializable: %v", err)
	}
	parse, ok := goja.AssertFunction(get(vm.Get("JSON").ToObject(vm), "parse"))
	if !ok {
		return nil, errors.New("JSON.parse unavailable")
	}
	v, err := parse(goja.Undefined(), vm.ToValue(string(raw)))
	if err != nil {
		return nil, err
	}
	return []goja.Value{v}, nil
}

func trimPrefix(s, prefix string) string {
	if len(s) >= len(prefix) && s[:len(prefix)] == prefix {
		return s[len(prefix):]
	}
	return s
}

func get(o *goja.Object, name string) goja.Value {
	if o == nil {
		return nil
	}
	return o.Get(name)
}

func isObject(v goja.Value) bool {
	_, ok := v.(*goja.Object)
	return ok
}

func callable(v goja.Value) (*goja.Object, bool) {
	obj, ok := v.(*goja.Object)
	if !ok {
		return nil, false
	}
	if _, ok := goja.AssertFunction(obj); !ok {
		return nil, false
	}
	return obj, true
}

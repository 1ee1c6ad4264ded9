package loader

import (
	"github.com/dop251/goja"
)

// Allowed module names for the restricted require.
const (
	ModuleReact      = "react"
	ModuleJSXRuntime = "react/jsx-runtime"
	ModuleJSXDev     = "react/jsx-dev-runtime"
)

const elementTag = "lessongen.element"

// reactPrelude builds the only UI library visible to lesson code. Hooks are
// static stand-ins: lessons render once on the server, so state never changes
// and effects never run.
const reactPrelude = `(function () {
  "use strict";
  var ELEMENT = "lessongen.element";
  var Fragment = { $$lessongen: "fragment" };
  var StrictMode = { $$lessongen: "fragment" };
  var Suspense = { $$lessongen: "fragment" };
  var hasOwn = Object.prototype.hasOwnProperty;
  var idSeq = 0;

  function createElement(type, config) {
    var props = {};
    var key = null;
    if (config != null) {
      for (var k in config) {
        if (!hasOwn.call(config, k)) continue;
        if (k === "key") { key = config[k] == null ? null : String(config[k]); continue; }
        if (k === "ref" || k === "__self" || k === "__source") continue;
        props[k] = config[k];
      }
    }
    var n = arguments.length - 2;
    if (n === 1) {
      props.children = arguments[2];
    } else if (n > 1) {
      props.children = Array.prototype.slice.call(arguments, 2);
    }
    if (type != null && type.defaultProps) {
      for (var d in type.defaultProps) {
        if (props[d] === undefined) props[d] = type.defaultProps[d];
      }
    }
    return { $$typeof: ELEMENT, type: type, key: key, props: props };
  }

  function jsx(type, config, key) {
    var el = createElement(type, config);
    if (key !== undefined) el.key = String(key);
    return el;
  }

  function noop() {}
  function Component(props) { this.props = props || {}; this.state = {}; }
  Component.prototype.isReactComponent = {};
  Component.prototype.setState = noop;
  Component.prototype.forceUpdate = noop;

  function createContext(defaultValue) {
    var ctx = { _value: defaultValue };
    ctx.Provider = { $$lessongen: "provider", context: ctx };
    ctx.Consumer = { $$lessongen: "consumer", context: ctx };
    return ctx;
  }

  function toArray(children) {
    if (children == null || typeof children === "boolean") return [];
    if (Array.isArray(children)) {
      var out = [];
      for (var i = 0; i < children.length; i++) out = out.concat(toArray(children[i]));
      return out;
    }
    return [children];
  }

  var React = {
    createElement: createElement,
    Fragment: Fragment,
    StrictMode: StrictMode,
    Suspense: Suspense,
    Component: Component,
    PureComponent: Component,
    createContext: createContext,
    isValidElement: function (v) { return v != null && typeof v === "object" && v.$$typeof === ELEMENT; },
    cloneElement: function (el, config) {
      var props = {};
      for (var k in el.props) props[k] = el.props[k];
      if (config != null) for (var c in config) if (c !== "key" && c !== "ref") props[c] = config[c];
      if (arguments.length > 2) props.children = arguments.length === 3 ? arguments[2] : Array.prototype.slice.call(arguments, 2);
      return { $$typeof: ELEMENT, type: el.type, key: el.key, props: props };
    },
    Children: {
      toArray: toArray,
      count: function (c) { return toArray(c).length; },
      only: function (c) { return c; },
      map: function (c, fn) { return toArray(c).map(fn); },
      forEach: function (c, fn) { toArray(c).forEach(fn); }
    },
    memo: function (c) { return c; },
    forwardRef: function (render) { return function (props) { return render(props, null); }; },
    useState: function (init) { return [typeof init === "function" ? init() : init, noop]; },
    useReducer: function (reducer, arg, init) { return [init ? init(arg) : arg, noop]; },
    useMemo: function (fn) { return fn(); },
    useCallback: function (fn) { return fn; },
    useRef: function (v) { return { current: v === undefined ? null : v }; },
    useEffect: noop,
    useLayoutEffect: noop,
    useInsertionEffect: noop,
    useImperativeHandle: noop,
    useDebugValue: noop,
    useTransition: function () { return [false, function (fn) { fn(); }]; },
    useDeferredValue: function (v) { return v; },
    useId: function () { idSeq++; return ":r" + idSeq + ":"; },
    useContext: function (ctx) { return ctx ? ctx._value : undefined; }
  };
  React["default"] = React;

  var runtime = { jsx: jsx, jsxs: jsx, jsxDEV: jsx, Fragment: Fragment };
  runtime["default"] = runtime;
  return { react: React, runtime: runtime };
})()`

var preludeProgram = goja.MustCompile("react-shim.js", reactPrelude, false)

// shim is the per-VM instance of the prelude.
type shim struct {
	react   *goja.Object
	runtime *goja.Object
}

func installShim(vm *goja.Runtime) (*shim, error) {
	v, err := vm.RunProgram(preludeProgram)
	if err != nil {
		return nil, err
	}
	obj := v.ToObject(vm)
	return &shim{
		react:   obj.Get("react").ToObject(vm),
		runtime: obj.Get("runtime").ToObject(vm),
	}, nil
}

func (s *shim) module(name string) (*goja.Object, bool) {
	switch name {
	case ModuleReact:
		return s.react, true
	case ModuleJSXRuntime, ModuleJSXDev:
		return s.runtime, true
	default:
		return nil, false
	}
}

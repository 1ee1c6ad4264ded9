package loader

import "fmt"

// Kind classifies a contained sandbox failure.
type Kind string

const (
	KindModuleNotPermitted Kind = "module_not_permitted"
	KindEvaluation         Kind = "evaluation"
	KindNoDefaultExport    Kind = "no_default_export"
	KindTimeout            Kind = "timeout"
	KindRender             Kind = "render"
)

// MsgNoDefaultExport is reported when the module exposes nothing callable.
const MsgNoDefaultExport = "module has no usable default export"

// Error is a sandbox failure with a display-safe message.
type Error struct {
	Kind    Kind   `json:"kind"`
	Message string `json:"message"`
	// Module is the rejected module name for KindModuleNotPermitted.
	Module string `json:"module,omitempty"`
	Err    error  `json:"-"`
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

package transpile

import (
	"fmt"
	"strings"

	"github.com/evanw/esbuild/pkg/api"
)

// MaxSourceBytes bounds the input accepted for a single lesson component.
const MaxSourceBytes = 512 << 10

// SourceFile is the name diagnostics refer to.
const SourceFile = "lesson.tsx"

type JSXMode string

const (
	// JSXClassic lowers elements to React.createElement / React.Fragment.
	JSXClassic JSXMode = "classic"
	// JSXAutomatic lowers elements to require("react/jsx-runtime") calls.
	JSXAutomatic JSXMode = "automatic"
)

type Options struct {
	JSX JSXMode
	// MaxSourceBytes overrides the package default when positive.
	MaxSourceBytes int
}

// Module is executable CommonJS text: no JSX, no types, no import/export
// statements. The default export ends up on module.exports.default.
type Module struct {
	Code string
	JSX  JSXMode
}

// Diagnostic is one parser or lowering message.
type Diagnostic struct {
	Text     string `json:"text"`
	Line     int    `json:"line,omitempty"`
	Column   int    `json:"column,omitempty"`
	LineText string `json:"lineText,omitempty"`
}

func (d Diagnostic) String() string {
	if d.Line > 0 {
		return fmt.Sprintf("%s:%d:%d: %s", SourceFile, d.Line, d.Column, d.Text)
	}
	return d.Text
}

// Error is a failed transform. It never carries partial output.
type Error struct {
	Messages []Diagnostic
}

func (e *Error) Error() string {
	if e == nil || len(e.Messages) == 0 {
		return "transpile failed"
	}
	msg := "transpile failed: " + e.Messages[0].String()
	if n := len(e.Messages) - 1; n > 0 {
		msg += fmt.Sprintf(" (and %d more)", n)
	}
	return msg
}

// Transform lowers TypeScript + JSX source to a Module. The input is parsed,
// never executed.
func Transform(source string, opts Options) (Module, error) {
	limit := opts.MaxSourceBytes
	if limit <= 0 {
		limit = MaxSourceBytes
	}
	if len(source) > limit {
		return Module{}, &Error{Messages: []Diagnostic{{
			Text: fmt.Sprintf("source is %d bytes, limit is %d", len(source), limit),
		}}}
	}
	code := StripFences(source)
	if strings.TrimSpace(code) == "" {
		return Module{}, &Error{Messages: []Diagnostic{{Text: "source is empty"}}}
	}

	mode := opts.JSX
	if mode == "" {
		mode = JSXClassic
	}
	to := api.TransformOptions{
		Loader:     api.LoaderTSX,
		Format:     api.FormatCommonJS,
		Target:     api.ES2020,
		Sourcefile: SourceFile,
		LogLevel:   api.LogLevelSilent,
	}
	switch mode {
	case JSXClassic:
		to.JSX = api.JSXTransform
		to.JSXFactory = "React.createElement"
		to.JSXFragment = "React.Fragment"
	case JSXAutomatic:
		to.JSX = api.JSXAutomatic
		to.JSXImportSource = "react"
	default:
		return Module{}, &Error{Messages: []Diagnostic{{Text: fmt.Sprintf("unknown jsx mode %q", mode)}}}
	}

	result := api.Transform(code, to)
	if len(result.Errors) > 0 {
		return Module{}, &Error{Messages: diagnostics(result.Errors)}
	}
	return Module{Code: string(result.Code), JSX: mode}, nil
}

func diagnostics(msgs []api.Message) []Diagnostic {
	out := make([]Diagnostic, 0, len(msgs))
	for _, m := range msgs {
		d := Diagnostic{Text: m.Text}
		if m.Location != nil {
			d.Line = m.Location.Line
			d.Column = m.Location.Column
			d.LineText = m.Location.LineText
		}
		out = append(out, d)
	}
	return out
}

// StripFences removes a Markdown code fence wrapped around the whole source.
func StripFences(source string) string {
	s := strings.TrimSpace(source)
	if !strings.HasPrefix(s, "```") {
		return source
	}
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	} else {
		return ""
	}
	s = strings.TrimRight(s, " \t\r\n")
	s = strings.TrimSuffix(s, "```")
	return s
}

package observability

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/yungbote/lessongen"

// Span is a fire-and-forget trace span. A nil *Span is valid and does nothing.
type Span struct {
	span trace.Span
}

// StartSpan opens a named span carrying meta as attributes.
func StartSpan(ctx context.Context, name string, meta map[string]any) (context.Context, *Span) {
	ctx, span := otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs(meta)...))
	return ctx, &Span{span: span}
}

// Annotate adds attributes without closing the span.
func (s *Span) Annotate(meta map[string]any) {
	if s == nil || s.span == nil {
		return
	}
	s.span.SetAttributes(attrs(meta)...)
}

// End closes the span, recording meta and err (if any).
func (s *Span) End(meta map[string]any, err error) {
	if s == nil || s.span == nil {
		return
	}
	if len(meta) > 0 {
		s.span.SetAttributes(attrs(meta)...)
	}
	if err != nil {
		s.span.RecordError(err)
		s.span.SetStatus(codes.Error, err.Error())
	}
	s.span.End()
}

func attrs(meta map[string]any) []attribute.KeyValue {
	if len(meta) == 0 {
		return nil
	}
	out := make([]attribute.KeyValue, 0, len(meta))
	for k, v := range meta {
		switch t := v.(type) {
		case string:
			out = append(out, attribute.String(k, t))
		case bool:
			out = append(out, attribute.Bool(k, t))
		case int:
			out = append(out, attribute.Int(k, t))
		case int64:
			out = append(out, attribute.Int64(k, t))
		case float64:
			out = append(out, attribute.Float64(k, t))
		case []string:
			out = append(out, attribute.StringSlice(k, t))
		default:
			out = append(out, attribute.String(k, fmt.Sprint(v)))
		}
	}
	return out
}

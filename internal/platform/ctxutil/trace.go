package ctxutil

import "context"

type traceDataKey struct{}

// TraceData carries request-scoped identifiers for logs and spans.
type TraceData struct {
	TraceID       string
	RequestID     string
	CorrelationID string
}

func WithTraceData(ctx context.Context, td *TraceData) context.Context {
	return context.WithValue(ctx, traceDataKey{}, td)
}

func GetTraceData(ctx context.Context) *TraceData {
	if ctx == nil {
		return nil
	}
	if td, ok := ctx.Value(traceDataKey{}).(*TraceData); ok {
		return td
	}
	return nil
}

// WithCorrelationID returns ctx carrying a copy of its trace data with the
// correlation id set. An empty id leaves ctx unchanged.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	td := TraceData{}
	if cur := GetTraceData(ctx); cur != nil {
		td = *cur
	}
	td.CorrelationID = id
	return WithTraceData(ctx, &td)
}

// LogFields returns the non-empty ids on ctx as logger key/value pairs.
func LogFields(ctx context.Context) []interface{} {
	td := GetTraceData(ctx)
	if td == nil {
		return nil
	}
	var out []interface{}
	if td.TraceID != "" {
		out = append(out, "trace_id", td.TraceID)
	}
	if td.RequestID != "" {
		out = append(out, "request_id", td.RequestID)
	}
	if td.CorrelationID != "" {
		out = append(out, "correlation_id", td.CorrelationID)
	}
	return out
}

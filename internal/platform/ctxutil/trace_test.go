package ctxutil

import (
	"context"
	"testing"
)

func TestWithCorrelationID(t *testing.T) {
	base := WithTraceData(context.Background(), &TraceData{TraceID: "t1", RequestID: "r1"})
	ctx := WithCorrelationID(base, "lesson-1")

	td := GetTraceData(ctx)
	if td == nil || td.TraceID != "t1" || td.RequestID != "r1" || td.CorrelationID != "lesson-1" {
		t.Fatalf("unexpected trace data: %+v", td)
	}
	if GetTraceData(base).CorrelationID != "" {
		t.Fatal("parent trace data must not be mutated")
	}
	if WithCorrelationID(base, "") != base {
		t.Fatal("empty id should leave ctx unchanged")
	}

	fields := LogFields(ctx)
	if len(fields) != 6 || fields[4] != "correlation_id" || fields[5] != "lesson-1" {
		t.Fatalf("unexpected log fields: %v", fields)
	}
	if got := WithCorrelationID(context.Background(), "x"); GetTraceData(got).CorrelationID != "x" {
		t.Fatal("expected trace data on bare context")
	}
}

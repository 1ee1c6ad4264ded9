package loader

import (
	"context"
	"errors"
	"os"
	"testing"

	"go.uber.org/goleak"

	"github.com/yungbote/lessongen/internal/sandbox/transpile"
)

const workerEnv = "LESSONGEN_LOADER_TEST_WORKER"

func TestMain(m *testing.M) {
	// The test binary doubles as the sandbox worker for ProcessEvaluator tests.
	if os.Getenv(workerEnv) == "1" {
		if err := ServeWorker(context.Background(), os.Stdin, os.Stdout, HostOptions{}); err != nil {
			os.Exit(2)
		}
		os.Exit(0)
	}
	goleak.VerifyTestMain(m)
}

func compile(t *testing.T, src string) transpile.Module {
	t.Helper()
	mod, err := transpile.Transform(src, transpile.Options{})
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	return mod
}

func errKind(t *testing.T, err error) *Error {
	t.Helper()
	if err == nil {
		t.Fatal("expected error")
	}
	var le *Error
	if !errors.As(err, &le) {
		t.Fatalf("expected *Error, got %T: %v", err, err)
	}
	return le
}

func TestNopEvaluator(t *testing.T) {
	boom := errors.New("boom")
	if _, err := (NopEvaluator{LoadErr: boom}).Load(context.Background(), transpile.Module{}); !errors.Is(err, boom) {
		t.Fatalf("expected load error, got %v", err)
	}
	comp, err := NopEvaluator{RenderErr: boom}.Load(context.Background(), transpile.Module{})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if _, err := comp.Render(context.Background(), nil); !errors.Is(err, boom) {
		t.Fatalf("expected render error, got %v", err)
	}
}

func TestAsError(t *testing.T) {
	if AsError(nil) != nil {
		t.Fatal("nil should stay nil")
	}
	le := AsError(errors.New("x"))
	if le.Kind != KindEvaluation || le.Message != "x" {
		t.Fatalf("unexpected: %+v", le)
	}
	orig := &Error{Kind: KindTimeout, Message: "t"}
	if AsError(orig) != orig {
		t.Fatal("sandbox errors pass through")
	}
}

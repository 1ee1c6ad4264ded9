package loader

import (
	"context"
	"os"
	"testing"

	"github.com/yungbote/lessongen/internal/platform/openai"
	"github.com/yungbote/lessongen/internal/sandbox/ui"
)

func workerEvaluator(t *testing.T) *ProcessEvaluator {
	t.Helper()
	e, err := NewProcessEvaluator(ProcessOptions{
		Command: []string{os.Args[0], "-test.run=^$"},
		Env:     []string{workerEnv + "=1"},
	})
	if err != nil {
		t.Fatalf("NewProcessEvaluator: %v", err)
	}
	return e
}

func TestProcessEvaluatorRequiresCommand(t *testing.T) {
	if _, err := NewProcessEvaluator(ProcessOptions{}); err == nil {
		t.Fatal("expected error without command")
	}
}

func TestProcessEvaluatorRenders(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}
	e := workerEvaluator(t)
	comp, err := e.Load(context.Background(), compile(t, openai.CannedLesson))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	n, err := comp.Render(context.Background(), nil)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if n.TextContent() == "" || ui.HTML(n) == "" {
		t.Fatal("empty render from worker")
	}
	if txt := n.TextContent(); txt != "Sample lessonGenerated locally without a model.Back to Lessons" {
		t.Fatalf("unexpected text: %q", txt)
	}
}

func TestProcessEvaluatorCarriesErrorKinds(t *testing.T) {
	if testing.Short() {
		t.Skip("spawns processes")
	}
	e := workerEvaluator(t)
	_, err := e.Load(context.Background(), compile(t, `import net from "net";
export default function A() { return <p>{String(net)}</p>; }`))
	le := errKind(t, err)
	if le.Kind != KindModuleNotPermitted || le.Module != "net" {
		t.Fatalf("unexpected: %+v", le)
	}

	comp, err := e.Load(context.Background(), compile(t, `export default function A() { throw new Error("nope"); }`))
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	_, err = comp.Render(context.Background(), nil)
	if le := errKind(t, err); le.Kind != KindRender {
		t.Fatalf("unexpected: %+v", le)
	}
}

func TestProcessEvaluatorMissingWorker(t *testing.T) {
	e, err := NewProcessEvaluator(ProcessOptions{Command: []string{"/nonexistent/lessongen-sandbox-worker"}})
	if err != nil {
		t.Fatalf("NewProcessEvaluator: %v", err)
	}
	_, err = e.Load(context.Background(), compile(t, `export default function A() { return null; }`))
	if le := errKind(t, err); le.Kind != KindEvaluation {
		t.Fatalf("unexpected: %+v", le)
	}
}

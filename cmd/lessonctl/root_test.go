package main

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/yungbote/lessongen/internal/learning/prompts"
	"github.com/yungbote/lessongen/internal/modules/learning/keys"
	"github.com/yungbote/lessongen/internal/sandbox/loader"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := newRootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestKeyCommand(t *testing.T) {
	out, err := run(t, "abc", "key", "-")
	if err != nil {
		t.Fatalf("key: %v", err)
	}
	want := keys.DefaultPrefix + "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad"
	if strings.TrimSpace(out) != want {
		t.Fatalf("got %q want %q", out, want)
	}

	out, err = run(t, "Intro to arrays\n", "key", "--outline", "-")
	if err != nil {
		t.Fatalf("key --outline: %v", err)
	}
	reg, err := prompts.Default()
	if err != nil {
		t.Fatalf("prompts: %v", err)
	}
	data, _ := prompts.LessonJSON(prompts.LessonData{Outline: "Intro to arrays"})
	p, err := reg.Build(prompts.PromptLessonCode, prompts.Input{LessonJSON: data})
	if err != nil {
		t.Fatalf("build: %v", err)
	}
	if strings.TrimSpace(out) != keys.MustFingerprint(p.Canonical()) {
		t.Fatalf("outline key mismatch: %s", out)
	}
}

func TestTranspileAndRenderCommands(t *testing.T) {
	src := `export default function A({ n }: { n: number }) { return <b>{n}</b>; }`
	out, err := run(t, src, "transpile", "-")
	if err != nil || !strings.Contains(out, "createElement") || strings.Contains(out, "number }") {
		t.Fatalf("transpile: %v %s", err, out)
	}

	out, err = run(t, src, "render", "--props", `{"n": 7}`, "-")
	if err != nil || strings.TrimSpace(out) != "<b>7</b>" {
		t.Fatalf("render: %v %q", err, out)
	}

	out, err = run(t, `import fs from "fs"; export default function A() { return <p>{String(fs)}</p>; }`, "render", "--json", "-")
	if err == nil || !strings.Contains(out, `"state": "failed"`) || !strings.Contains(out, "module not permitted: fs") {
		t.Fatalf("render failure: %v %s", err, out)
	}
}

func TestSandboxWorkerCommand(t *testing.T) {
	out, err := run(t, `{"code":"module.exports = {}","render":false}`, "sandbox-worker")
	if err != nil {
		t.Fatalf("worker: %v", err)
	}
	if !strings.Contains(out, string(loader.KindNoDefaultExport)) {
		t.Fatalf("unexpected worker output: %s", out)
	}
}

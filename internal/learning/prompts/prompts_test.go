package prompts

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/yungbote/lessongen/internal/platform/logger"
)

func TestDefaultRegistryBuildsLessonCode(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	lessonJSON, err := LessonJSON(LessonData{Outline: "Intro to arrays", Details: "Arrays hold values."})
	if err != nil {
		t.Fatalf("LessonJSON: %v", err)
	}
	p, err := reg.Build(PromptLessonCode, Input{LessonJSON: lessonJSON})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Mode != ModeCode || p.JSON() {
		t.Fatalf("unexpected mode: %s", p.Mode)
	}
	if !strings.Contains(p.User, `"outline": "Intro to arrays"`) {
		t.Fatalf("lesson json not rendered into prompt:\n%s", p.User)
	}
	if !strings.HasPrefix(p.Canonical(), "lesson_code|1|") {
		t.Fatalf("unexpected canonical prefix: %q", p.Canonical()[:20])
	}
}

func TestBuildIsDeterministic(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	build := func(details string) string {
		j, err := LessonJSON(LessonData{Outline: "Intro to arrays", Title: "Arrays", Details: details})
		if err != nil {
			t.Fatalf("LessonJSON: %v", err)
		}
		p, err := reg.Build(PromptLessonCode, Input{LessonJSON: j})
		if err != nil {
			t.Fatalf("Build: %v", err)
		}
		return p.Canonical()
	}
	if build("x") != build("x") {
		t.Fatal("identical input rendered different prompts")
	}
	if build("x") == build("x ") {
		t.Fatal("whitespace change should change the prompt")
	}
}

func TestBuildValidatesInput(t *testing.T) {
	reg, err := Default()
	if err != nil {
		t.Fatalf("Default: %v", err)
	}
	if _, err := reg.Build(PromptLessonPlan, Input{Outline: "  "}); err == nil {
		t.Fatal("expected error for empty outline")
	}
	if _, err := reg.Build(PromptLessonCode, Input{}); err == nil {
		t.Fatal("expected error for missing lesson data")
	}
	if _, err := reg.Build("nope", Input{}); err == nil {
		t.Fatal("expected error for unknown prompt")
	}
	p, err := reg.Build(PromptLessonPlan, Input{Outline: "Intro to arrays"})
	if err != nil {
		t.Fatalf("Build plan: %v", err)
	}
	if !p.JSON() || !strings.Contains(p.User, `"""Intro to arrays"""`) {
		t.Fatalf("unexpected plan prompt: %+v", p)
	}
}

func TestNewRegistryRejectsBadSpecs(t *testing.T) {
	if _, err := NewRegistry(Spec{Name: "a", Version: 0, User: "x"}); err == nil {
		t.Fatal("expected version error")
	}
	if _, err := NewRegistry(Spec{Name: "a", Version: 1, User: "x", Mode: "xml"}); err == nil {
		t.Fatal("expected mode error")
	}
	if _, err := NewRegistry(Spec{Name: "a", Version: 1, User: "x"}, Spec{Name: "a", Version: 2, User: "y"}); err == nil {
		t.Fatal("expected duplicate error")
	}
	if _, err := NewRegistry(Spec{Name: "a", Version: 1, User: "{{.Outline"}); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prompts.yaml")
	body := "prompts:\n  - name: lesson_plan\n    version: 7\n    mode: json\n    user: \"split {{.Outline}}\"\n"
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	t.Setenv("PROMPTS_YAML", path)

	reg, err := Load(logger.Nop())
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reg.Has(PromptLessonCode) {
		t.Fatal("override should replace the embedded set")
	}
	p, err := reg.Build(PromptLessonPlan, Input{Outline: "graphs"})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if p.Version != 7 || p.User != "split graphs" {
		t.Fatalf("unexpected prompt: %+v", p)
	}
}

package promptstyle

import (
	"strings"
	"testing"
)

func TestApplySystemIsIdempotent(t *testing.T) {
	once := ApplySystem("You write lessons.", "code")
	twice := ApplySystem(once, "code")
	if once != twice {
		t.Fatalf("expected idempotent output:\n%s\n---\n%s", once, twice)
	}
	if !strings.HasPrefix(once, marker) || !strings.HasSuffix(once, "You write lessons.") {
		t.Fatalf("unexpected framing: %q", once)
	}
	if ApplySystem("   ", "json") != "" {
		t.Fatal("blank system prompt should stay blank")
	}
}

package promptstyle

import "strings"

const marker = "LESSONGEN_PROMPT_STYLE_V1"

// ApplySystem prepends a short guidance block to system prompts. The output
// is a pure function of (system, mode) so it is safe to include in cache keys.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" || strings.Contains(base, marker) {
		return base
	}

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nFollow the system and user instructions precisely.")
	switch strings.ToLower(strings.TrimSpace(mode)) {
	case "json":
		b.WriteString("\nReturn a single JSON object and nothing else.")
	case "code":
		b.WriteString("\nReturn only the requested source file. No Markdown fences, no commentary.")
	default:
		b.WriteString("\nBe concise and structured when helpful.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return strings.TrimSpace(b.String())
}

package prompts

import (
	"strconv"
	"strings"
)

// Prompt is a fully rendered generation request.
type Prompt struct {
	Name    string
	Version int
	Mode    Mode
	System  string
	User    string
}

// Canonical is the exact text the cache key is derived from. Any byte change
// in the rendered prompt changes it.
func (p Prompt) Canonical() string {
	return strings.TrimSpace(p.Name) + "|" +
		strconv.Itoa(p.Version) + "|" +
		strings.TrimSpace(p.System) + "|" +
		strings.TrimSpace(p.User)
}

func (p Prompt) JSON() bool { return p.Mode == ModeJSON }

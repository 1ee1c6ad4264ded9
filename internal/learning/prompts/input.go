package prompts

import (
	"encoding/json"
	"strings"
)

// Input is a superset of all fields any prompt might need.
// Missing fields render empty strings (templates use missingkey=zero).
type Input struct {
	Outline string
	// LessonJSON is the structured lesson rendered by LessonJSON.
	LessonJSON string
}

// LessonData is the structured lesson embedded in code prompts. Field order
// is fixed so identical lessons always render identical prompt text. Storage
// ids are deliberately absent: they would make every submission unique.
type LessonData struct {
	Outline     string `json:"outline"`
	Title       string `json:"title,omitempty"`
	Description string `json:"description,omitempty"`
	Details     string `json:"details,omitempty"`
}

func LessonJSON(d LessonData) (string, error) {
	d.Outline = strings.TrimSpace(d.Outline)
	d.Title = strings.TrimSpace(d.Title)
	d.Description = strings.TrimSpace(d.Description)
	b, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		return "", err
	}
	return string(b), nil
}

package prompts

type PromptName string

const (
	// Realization: a single-file TSX lesson component.
	PromptLessonCode PromptName = "lesson_code"
	// Planning: outline split into parts (JSON).
	PromptLessonPlan PromptName = "lesson_plan"
)

// Mode tells the backend what shape of output a prompt expects.
type Mode string

const (
	ModeCode Mode = "code"
	ModeJSON Mode = "json"
)

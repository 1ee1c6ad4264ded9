package domain

// LessonStatus is the lifecycle state of a lesson record.
type LessonStatus string

const (
	LessonGenerating LessonStatus = "generating"
	LessonGenerated  LessonStatus = "generated"
	LessonFailed     LessonStatus = "failed"
)

func (s LessonStatus) Valid() bool {
	switch s {
	case LessonGenerating, LessonGenerated, LessonFailed:
		return true
	default:
		return false
	}
}

// Terminal reports whether no further status change is allowed.
func (s LessonStatus) Terminal() bool {
	return s == LessonGenerated || s == LessonFailed
}

// CanTransition enforces generating -> generated|failed. A terminal record may
// be rewritten with its own status (payload refresh) but never moves back.
func CanTransition(from, to LessonStatus) bool {
	if !from.Valid() || !to.Valid() {
		return false
	}
	if from == to {
		return true
	}
	return from == LessonGenerating
}

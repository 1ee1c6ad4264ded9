package generation

import (
	"fmt"
)

// BackendError is a failed or timed-out call to the generation backend. It is
// never retried here.
type BackendError struct {
	Op      string
	Timeout bool
	Err     error
}

func (e *BackendError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("%s: generation backend timed out: %v", e.Op, e.Err)
	}
	return fmt.Sprintf("%s: generation backend failed: %v", e.Op, e.Err)
}

func (e *BackendError) Unwrap() error { return e.Err }

// ParseError is backend output that is empty or not the structured shape the
// prompt asked for.
type ParseError struct {
	Op     string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: unusable backend output: %s: %v", e.Op, e.Reason, e.Err)
	}
	return fmt.Sprintf("%s: unusable backend output: %s", e.Op, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

// RejectedError is generated source that failed the post-generation check.
// Rejected source is never cached.
type RejectedError struct {
	Err error
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("generated source rejected: %v", e.Err)
}

func (e *RejectedError) Unwrap() error { return e.Err }

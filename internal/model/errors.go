package model

import "fmt"

// ValidationError reports an invalid profile row or prompt override. It is
// never retried and never aborts the run.
type ValidationError struct {
	Row    int
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("row %d: field %q: %s", e.Row, e.Field, e.Reason)
	}
	return fmt.Sprintf("row %d: %s", e.Row, e.Reason)
}

// FailureAnnotation records a terminal failure against a profile without
// mutating its research or draft fields.
type FailureAnnotation struct {
	Kind     TaskKind `json:"kind"`
	Message  string   `json:"message"`
	Attempts int      `json:"attempts"`
}

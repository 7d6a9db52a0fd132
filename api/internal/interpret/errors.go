package interpret

import (
	"fmt"
	"strings"
)

type Reason string

const (
	ModelUnavailable Reason = "ModelUnavailable"
	SchemaInvalid    Reason = "SchemaInvalid"
)

var (
	ErrModelUnavailable = &Error{Reason: ModelUnavailable}
	ErrSchemaInvalid    = &Error{Reason: SchemaInvalid}
)

// Error is the InterpretError of the pipeline taxonomy. For SchemaInvalid it
// carries the last raw model output and the violations of the last attempt.
type Error struct {
	Reason     Reason
	Attempts   int
	LastRaw    string
	Violations []Violation
	Err        error
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "interpret %s after %d attempt(s)", e.Reason, e.Attempts)
	if len(e.Violations) > 0 {
		parts := make([]string, len(e.Violations))
		for i, v := range e.Violations {
			parts[i] = v.String()
		}
		b.WriteString(": " + strings.Join(parts, "; "))
	}
	if e.Err != nil {
		b.WriteString(": " + e.Err.Error())
	}
	return b.String()
}

func (e *Error) Unwrap() error    { return e.Err }
func (e *Error) Category() string { return "InterpretError" }
func (e *Error) Kind() string     { return string(e.Reason) }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Attempts == 0 && t.Err == nil && t.Reason == e.Reason
}

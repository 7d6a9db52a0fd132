package ocr

import "fmt"

type Reason string

const (
	NoText       Reason = "NoText"
	EngineFailed Reason = "EngineFailed"
)

var (
	ErrNoText       = &Error{Reason: NoText}
	ErrEngineFailed = &Error{Reason: EngineFailed}
)

// Error is the OcrError of the pipeline taxonomy.
type Error struct {
	Reason Reason
	Engine string
	Err    error
}

func (e *Error) Error() string {
	switch {
	case e.Reason == NoText:
		return "ocr NoText: no usable text recognised"
	case e.Err != nil:
		return fmt.Sprintf("ocr %s (%s): %v", e.Reason, e.Engine, e.Err)
	default:
		return fmt.Sprintf("ocr %s (%s)", e.Reason, e.Engine)
	}
}

func (e *Error) Unwrap() error    { return e.Err }
func (e *Error) Category() string { return "OcrError" }
func (e *Error) Kind() string     { return string(e.Reason) }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Engine == "" && t.Err == nil && t.Reason == e.Reason
}

package imaging

import "fmt"

type Reason string

const (
	Unreadable Reason = "Unreadable"
	TooSmall   Reason = "TooSmall"
)

// Sentinels for errors.Is.
var (
	ErrUnreadable = &Error{Reason: Unreadable}
	ErrTooSmall   = &Error{Reason: TooSmall}
)

// Error is the ImageError of the pipeline taxonomy.
type Error struct {
	Reason Reason
	Path   string
	Detail string
	Err    error
}

func (e *Error) Error() string {
	msg := "image " + string(e.Reason)
	if e.Path != "" {
		msg += " " + e.Path
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error    { return e.Err }
func (e *Error) Category() string { return "ImageError" }
func (e *Error) Kind() string     { return string(e.Reason) }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Path == "" && t.Err == nil && t.Reason == e.Reason
}

func unreadable(path string, err error) *Error {
	return &Error{Reason: Unreadable, Path: path, Err: err}
}

func tooSmall(path string, w, h int) *Error {
	return &Error{
		Reason: TooSmall,
		Path:   path,
		Detail: fmt.Sprintf("%dx%d is below the %dx%d floor", w, h, MinDimension, MinDimension),
	}
}

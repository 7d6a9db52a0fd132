package notion

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/jomei/notionapi"
)

type Reason string

const (
	Auth        Reason = "Auth"
	RateLimited Reason = "RateLimited"
	NotFound    Reason = "NotFound"
	Transient   Reason = "Transient"
)

var (
	ErrAuth        = &Error{Reason: Auth}
	ErrRateLimited = &Error{Reason: RateLimited}
	ErrNotFound    = &Error{Reason: NotFound}
	ErrTransient   = &Error{Reason: Transient}
)

// Error is the PublishError of the pipeline taxonomy.
type Error struct {
	Reason Reason
	Status int
	Err    error
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("publish %s (%d): %v", e.Reason, e.Status, e.Err)
	}
	return fmt.Sprintf("publish %s: %v", e.Reason, e.Err)
}

func (e *Error) Unwrap() error    { return e.Err }
func (e *Error) Category() string { return "PublishError" }
func (e *Error) Kind() string     { return string(e.Reason) }

func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Status == 0 && t.Err == nil && t.Reason == e.Reason
}

// classify maps a notionapi failure onto the publish taxonomy.
// Context errors are returned unchanged.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var rl *notionapi.RateLimitedError
	if errors.As(err, &rl) {
		return &Error{Reason: RateLimited, Status: http.StatusTooManyRequests, Err: err}
	}
	var ne *notionapi.Error
	if errors.As(err, &ne) {
		switch ne.Status {
		case http.StatusUnauthorized, http.StatusForbidden:
			return &Error{Reason: Auth, Status: ne.Status, Err: err}
		case http.StatusTooManyRequests:
			return &Error{Reason: RateLimited, Status: ne.Status, Err: err}
		case http.StatusNotFound:
			return &Error{Reason: NotFound, Status: ne.Status, Err: err}
		default:
			return &Error{Reason: Transient, Status: ne.Status, Err: err}
		}
	}
	return &Error{Reason: Transient, Err: err}
}

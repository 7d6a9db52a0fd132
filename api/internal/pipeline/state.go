package pipeline

import (
	"context"
	"errors"
	"fmt"
)

type State string

const (
	Init         State = "Init"
	Normalizing  State = "Normalizing"
	Extracting   State = "Extracting"
	Interpreting State = "Interpreting"
	Formatting   State = "Formatting"
	Publishing   State = "Publishing"
	Done         State = "Done"
	Failed       State = "Failed"
)

var next = map[State]State{
	Init:         Normalizing,
	Normalizing:  Extracting,
	Extracting:   Interpreting,
	Interpreting: Formatting,
	Formatting:   Publishing,
	Publishing:   Done,
}

// Terminal reports whether no transition leaves s.
func (s State) Terminal() bool { return s == Done || s == Failed }

// Failure is a stage error annotated with the state it happened in.
// The wrapped error keeps its own category and kind.
type Failure struct {
	Stage State
	Err   error
}

func (f *Failure) Error() string {
	return fmt.Sprintf("failed during %s: %s.%s: %v", f.Stage, f.Category(), f.Kind(), f.Err)
}

func (f *Failure) Unwrap() error { return f.Err }

// Category and Kind are taken from the stage error; context errors
// report as Cancelled.
func (f *Failure) Category() string {
	if cancelled(f.Err) {
		return "Cancelled"
	}
	var c interface{ Category() string }
	if errors.As(f.Err, &c) {
		return c.Category()
	}
	return "Error"
}

func (f *Failure) Kind() string {
	if errors.Is(f.Err, context.DeadlineExceeded) {
		return "DeadlineExceeded"
	}
	if errors.Is(f.Err, context.Canceled) {
		return "Cancelled"
	}
	var k interface{ Kind() string }
	if errors.As(f.Err, &k) {
		return k.Kind()
	}
	return "Unknown"
}

func cancelled(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// Package llm is the boundary to a text-generation model: a system and a
// user message in, raw text out.
package llm

import "context"

type Prompt struct {
	System string
	User   string
}

type Model interface {
	Name() string
	Complete(ctx context.Context, p Prompt) (string, error)
}

package notion

import (
	"context"
	"encoding/json"
	"io"
	"sync"

	"quizdoc/api/internal/blocks"
)

// Printer is the dry-run publisher: it writes the tree as JSON instead of
// calling the API.
type Printer struct {
	mu sync.Mutex
	w  io.Writer
}

func NewPrinter(w io.Writer) *Printer { return &Printer{w: w} }

func (p *Printer) Publish(ctx context.Context, parentID string, tree blocks.Tree) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	enc := json.NewEncoder(p.w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(struct {
		Parent string      `json:"parent"`
		Tree   blocks.Tree `json:"tree"`
	}{parentID, tree}); err != nil {
		return "", err
	}
	return "dry-run", nil
}

// Package interpret turns a raw OCR transcript into a validated Question
// by constraining a language model to a fixed JSON contract and repairing
// its output until it satisfies the question invariants.
package interpret

// Question is one multiple-choice exam question. A Question returned by
// the Interpreter always satisfies Validate: 2..6 options labelled with the
// first letters of A..F in order, exactly one correct, every option explained.
type Question struct {
	Stem    string   `json:"stem"`
	Options []Option `json:"options"`
}

type Option struct {
	Label       string `json:"label"`
	Text        string `json:"text"`
	IsCorrect   bool   `json:"isCorrect"`
	Explanation string `json:"explanation"`
}

// Correct returns the index of the correct option, or -1.
func (q Question) Correct() int {
	for i, o := range q.Options {
		if o.IsCorrect {
			return i
		}
	}
	return -1
}

const (
	MinOptions = 2
	MaxOptions = 6
	labels     = "ABCDEF"
)

package interpret

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"

	"quizdoc/api/internal/util"
)

// Violation is one broken rule of the output contract.
type Violation struct {
	Path    string
	Problem string
}

func (v Violation) String() string {
	if v.Path == "" {
		return v.Problem
	}
	return v.Path + ": " + v.Problem
}

// wire mirrors Question with pointers so absent keys are told apart from
// zero values.
type wireQuestion struct {
	Stem    *string      `json:"stem"`
	Options []wireOption `json:"options"`
}

type wireOption struct {
	Label       *string `json:"label"`
	Text        *string `json:"text"`
	IsCorrect   *bool   `json:"isCorrect"`
	Explanation *string `json:"explanation"`
}

// Parse isolates the JSON object in raw model output, decodes it strictly
// and checks the question invariants. On success the options are ordered
// by label.
func Parse(raw string) (Question, []Violation) {
	body, ok := isolateJSON(raw)
	if !ok {
		return Question{}, []Violation{{Problem: "no JSON object found in the response"}}
	}

	var w wireQuestion
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&w); err != nil {
		return Question{}, []Violation{{Problem: "invalid JSON: " + err.Error()}}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return Question{}, []Violation{{Problem: "unexpected data after the JSON object"}}
	}

	var vs []Violation
	q := Question{Stem: strings.TrimSpace(deref(w.Stem))}
	if w.Stem == nil {
		vs = append(vs, Violation{"stem", "missing"})
	}
	for i, o := range w.Options {
		path := fmt.Sprintf("options[%d]", i)
		if o.Label == nil {
			vs = append(vs, Violation{path + ".label", "missing"})
		}
		if o.Text == nil {
			vs = append(vs, Violation{path + ".text", "missing"})
		}
		if o.IsCorrect == nil {
			vs = append(vs, Violation{path + ".isCorrect", "missing"})
		}
		if o.Explanation == nil {
			vs = append(vs, Violation{path + ".explanation", "missing"})
		}
		q.Options = append(q.Options, Option{
			Label:       NormalizeLabel(deref(o.Label)),
			Text:        strings.TrimSpace(deref(o.Text)),
			IsCorrect:   o.IsCorrect != nil && *o.IsCorrect,
			Explanation: strings.TrimSpace(deref(o.Explanation)),
		})
	}
	if len(vs) > 0 {
		return Question{}, vs
	}
	if vs = Validate(q); len(vs) > 0 {
		return Question{}, vs
	}
	sort.SliceStable(q.Options, func(i, j int) bool { return q.Options[i].Label < q.Options[j].Label })
	return q, nil
}

// Validate reports every invariant q breaks. Labels are expected normalized.
func Validate(q Question) []Violation {
	var vs []Violation
	if strings.TrimSpace(q.Stem) == "" {
		vs = append(vs, Violation{"stem", "must not be empty"})
	}
	n := len(q.Options)
	if n < MinOptions || n > MaxOptions {
		vs = append(vs, Violation{"options", fmt.Sprintf("need %d to %d options, got %d", MinOptions, MaxOptions, n)})
	}

	seen := map[string]bool{}
	correct := 0
	labelsOK := true
	for i, o := range q.Options {
		path := fmt.Sprintf("options[%d]", i)
		switch {
		case len(o.Label) != 1 || !strings.Contains(labels, o.Label):
			vs = append(vs, Violation{path + ".label", fmt.Sprintf("%q is not one of A..F", o.Label)})
			labelsOK = false
		case seen[o.Label]:
			vs = append(vs, Violation{path + ".label", fmt.Sprintf("duplicate label %q", o.Label)})
			labelsOK = false
		}
		seen[o.Label] = true
		if strings.TrimSpace(o.Text) == "" {
			vs = append(vs, Violation{path + ".text", "must not be empty"})
		}
		if strings.TrimSpace(o.Explanation) == "" {
			vs = append(vs, Violation{path + ".explanation", "must not be empty"})
		}
		if o.IsCorrect {
			correct++
		}
	}
	if labelsOK && n >= MinOptions && n <= MaxOptions {
		for i := 0; i < n; i++ {
			if !seen[labels[i:i+1]] {
				vs = append(vs, Violation{"options", fmt.Sprintf("labels must be exactly %s", strings.Join(strings.Split(labels[:n], ""), ", "))})
				break
			}
		}
	}
	if correct != 1 {
		vs = append(vs, Violation{"options", fmt.Sprintf("exactly one option must have isCorrect=true, got %d", correct)})
	}
	return vs
}

// NormalizeLabel maps "b)", " B. ", "(c)" and similar to the bare upper-case letter.
func NormalizeLabel(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimLeft(s, "([ ")
	s = strings.TrimRight(s, ")]:.- ")
	return strings.ToUpper(strings.TrimSpace(s))
}

// isolateJSON strips code fences and returns the first complete JSON
// object with a "stem" or "options" key, so braces in surrounding prose
// are skipped. A second such object keeps both in the span so the strict
// decoder rejects the reply. Without any it falls back to the outermost
// {...} span and lets the decoder report what is wrong with it.
func isolateJSON(raw string) (string, bool) {
	s := util.StripCodeFences(raw)
	if start, end, ok := questionObject(s, 0); ok {
		if _, end2, ok := questionObject(s, end); ok {
			end = end2
		}
		return s[start:end], true
	}

	start := strings.IndexByte(s, '{')
	end := strings.LastIndexByte(s, '}')
	if start < 0 || end <= start {
		return "", false
	}
	return s[start : end+1], true
}

// questionObject finds the first decodable object at or after from that
// carries a question key and returns its byte span.
func questionObject(s string, from int) (start, end int, ok bool) {
	for i := from; i < len(s); i++ {
		if s[i] != '{' {
			continue
		}
		dec := json.NewDecoder(strings.NewReader(s[i:]))
		var obj map[string]json.RawMessage
		if err := dec.Decode(&obj); err != nil {
			continue
		}
		_, hasStem := obj["stem"]
		_, hasOptions := obj["options"]
		if hasStem || hasOptions {
			return i, i + int(dec.InputOffset()), true
		}
	}
	return 0, 0, false
}

func deref[T any](p *T) T {
	var zero T
	if p == nil {
		return zero
	}
	return *p
}

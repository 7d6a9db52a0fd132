// Package blocks builds the document block tree for one question: the stem,
// one toggle per option and, inside each toggle, the colour-coded verdict
// followed by the explanation.
package blocks

type Kind string

const (
	KindParagraph    Kind = "paragraph"
	KindNumberedItem Kind = "numbered_list_item"
	KindToggle       Kind = "toggle"
)

type Color string

const (
	ColorDefault Color = ""
	ColorGreen   Color = "green"
	ColorRed     Color = "red"
)

type Span struct {
	Text  string `json:"text"`
	Color Color  `json:"color,omitempty"`
	Code  bool   `json:"code,omitempty"`
	Bold  bool   `json:"bold,omitempty"`
}

type Block struct {
	Kind     Kind    `json:"kind"`
	Spans    []Span  `json:"spans"`
	Children []Block `json:"children,omitempty"`
}

// Text concatenates the visible text of the block's spans.
func (b Block) Text() string {
	s := ""
	for _, sp := range b.Spans {
		s += sp.Text
	}
	return s
}

type Tree struct {
	Root Block `json:"root"`
}

// Toggles returns the option toggles under the root.
func (t Tree) Toggles() []Block {
	var out []Block
	for _, c := range t.Root.Children {
		if c.Kind == KindToggle {
			out = append(out, c)
		}
	}
	return out
}

package blocks

import (
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/language"

	"quizdoc/api/internal/interpret"
)

type verdict struct{ correct, incorrect string }

var verdicts = map[language.Base]verdict{}

func init() {
	for tag, v := range map[string]verdict{
		"en": {"Correct:", "Incorrect:"},
		"es": {"Correcto:", "Incorrecto:"},
		"pt": {"Correto:", "Incorreto:"},
		"fr": {"Correct :", "Incorrect :"},
		"de": {"Richtig:", "Falsch:"},
		"it": {"Corretto:", "Sbagliato:"},
	} {
		b, _ := language.MustParse(tag).Base()
		verdicts[b] = v
	}
}

// Verdicts returns the correct/incorrect labels for a language tag,
// falling back to English.
func Verdicts(lang string) (correct, incorrect string) {
	en, _ := language.English.Base()
	v := verdicts[en]
	if t, err := language.Parse(lang); err == nil {
		b, _ := t.Base()
		if l, ok := verdicts[b]; ok {
			v = l
		}
	}
	return v.correct, v.incorrect
}

// Format maps q to a block tree. number > 0 prints "{number}. " before the
// stem; otherwise the stem is a numbered list item and the document
// service numbers it. Options are emitted in label order.
func Format(q interpret.Question, number int, lang string) Tree {
	root := Block{Kind: KindNumberedItem, Spans: []Span{{Text: q.Stem}}}
	if number > 0 {
		root = Block{
			Kind:  KindParagraph,
			Spans: []Span{{Text: strconv.Itoa(number) + ". ", Bold: true}, {Text: q.Stem}},
		}
	}

	opts := make([]interpret.Option, len(q.Options))
	copy(opts, q.Options)
	sort.SliceStable(opts, func(i, j int) bool { return opts[i].Label < opts[j].Label })

	okLabel, badLabel := Verdicts(lang)
	for _, o := range opts {
		tag, color := badLabel, ColorRed
		if o.IsCorrect {
			tag, color = okLabel, ColorGreen
		}
		root.Children = append(root.Children, Block{
			Kind:  KindToggle,
			Spans: []Span{{Text: o.Label + ". " + strings.TrimSpace(o.Text)}},
			Children: []Block{{
				Kind: KindParagraph,
				Spans: []Span{
					{Text: tag, Color: color, Code: true},
					{Text: " " + strings.TrimSpace(o.Explanation)},
				},
			}},
		})
	}
	return Tree{Root: root}
}

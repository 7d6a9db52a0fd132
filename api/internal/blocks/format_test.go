package blocks

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizdoc/api/internal/interpret"
)

func question() interpret.Question {
	return interpret.Question{
		Stem: "What is 2+2?",
		Options: []interpret.Option{
			{Label: "A", Text: "3", Explanation: "Falta uno."},
			{Label: "B", Text: "4", IsCorrect: true, Explanation: "Dos más dos es cuatro."},
			{Label: "C", Text: "5", Explanation: "Sobra uno."},
			{Label: "D", Text: "22", Explanation: "Concatena."},
		},
	}
}

func TestFormat_CorrectnessColours(t *testing.T) {
	tree := Format(question(), 0, "es")

	toggles := tree.Toggles()
	require.Len(t, toggles, 4)
	for i, tg := range toggles {
		require.Len(t, tg.Children, 1)
		verdict := tg.Children[0].Spans[0]
		assert.True(t, verdict.Code)
		if i == 1 {
			assert.Equal(t, ColorGreen, verdict.Color)
			assert.Equal(t, "Correcto:", verdict.Text)
		} else {
			assert.Equal(t, ColorRed, verdict.Color, tg.Text())
			assert.Equal(t, "Incorrecto:", verdict.Text)
		}
	}
	assert.Equal(t, "B. 4", toggles[1].Text())
	assert.Equal(t, "Correcto: Dos más dos es cuatro.", toggles[1].Children[0].Text())
}

func TestFormat_Numbering(t *testing.T) {
	unnumbered := Format(question(), 0, "es")
	assert.Equal(t, KindNumberedItem, unnumbered.Root.Kind)
	assert.Equal(t, "What is 2+2?", unnumbered.Root.Text())

	numbered := Format(question(), 7, "es")
	assert.Equal(t, KindParagraph, numbered.Root.Kind)
	assert.Equal(t, "7. What is 2+2?", numbered.Root.Text())
	assert.True(t, numbered.Root.Spans[0].Bold)
}

func TestFormat_OrdersByLabel(t *testing.T) {
	q := question()
	q.Options[0], q.Options[3] = q.Options[3], q.Options[0]
	q.Options[1], q.Options[2] = q.Options[2], q.Options[1]

	var got []string
	for _, tg := range Format(q, 0, "es").Toggles() {
		got = append(got, tg.Text()[:1])
	}
	assert.Equal(t, []string{"A", "B", "C", "D"}, got)
	// input left as is
	assert.Equal(t, "D", q.Options[0].Label)
}

func TestVerdicts(t *testing.T) {
	tests := []struct{ lang, ok, bad string }{
		{"es", "Correcto:", "Incorrecto:"},
		{"es-MX", "Correcto:", "Incorrecto:"},
		{"en", "Correct:", "Incorrect:"},
		{"de", "Richtig:", "Falsch:"},
		{"ja", "Correct:", "Incorrect:"},
		{"???", "Correct:", "Incorrect:"},
	}
	for _, tt := range tests {
		ok, bad := Verdicts(tt.lang)
		assert.Equal(t, tt.ok, ok, tt.lang)
		assert.Equal(t, tt.bad, bad, tt.lang)
	}
}

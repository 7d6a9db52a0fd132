package interpret

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizdoc/api/internal/llm"
)

type scriptedModel struct {
	replies []string
	err     error
	prompts []llm.Prompt
}

func (m *scriptedModel) Name() string { return "scripted" }

func (m *scriptedModel) Complete(_ context.Context, p llm.Prompt) (string, error) {
	m.prompts = append(m.prompts, p)
	if m.err != nil {
		return "", m.err
	}
	i := len(m.prompts) - 1
	if i >= len(m.replies) {
		i = len(m.replies) - 1
	}
	return m.replies[i], nil
}

const validB = `{"stem":"What is 2+2?","options":[
 {"label":"A","text":"3","isCorrect":false,"explanation":"Falta uno."},
 {"label":"B","text":"4","isCorrect":true,"explanation":"Dos más dos es cuatro."},
 {"label":"C","text":"5","isCorrect":false,"explanation":"Sobra uno."},
 {"label":"D","text":"22","isCorrect":false,"explanation":"Concatena en vez de sumar."}]}`

const twoCorrect = `{"stem":"What is 2+2?","options":[
 {"label":"A","text":"4","isCorrect":true,"explanation":"x"},
 {"label":"B","text":"four","isCorrect":true,"explanation":"y"}]}`

func newInterpreter(m llm.Model, attempts int) *Interpreter {
	log, _ := test.NewNullLogger()
	return New(m, Options{MaxAttempts: attempts, Language: "es"}, log)
}

func TestInterpret_FirstAttempt(t *testing.T) {
	m := &scriptedModel{replies: []string{validB}}
	res, err := newInterpreter(m, 3).Interpret(context.Background(), "What is 2+2? A 3 B 4 C 5 D 22")
	require.NoError(t, err)

	assert.Equal(t, 1, res.Attempts)
	require.Len(t, res.Question.Options, 4)
	assert.Equal(t, 1, res.Question.Correct())
	for i, o := range res.Question.Options {
		assert.Equal(t, i == 1, o.IsCorrect, o.Label)
		assert.NotEmpty(t, o.Explanation)
	}

	require.Len(t, m.prompts, 1)
	assert.Contains(t, m.prompts[0].System, "Spanish")
	assert.Contains(t, m.prompts[0].System, "hideAnswer")
	assert.Contains(t, m.prompts[0].User, "What is 2+2?")
}

func TestInterpret_RepairsThenSucceeds(t *testing.T) {
	m := &scriptedModel{replies: []string{twoCorrect, validB}}
	res, err := newInterpreter(m, 3).Interpret(context.Background(), "Q")
	require.NoError(t, err)
	assert.Equal(t, 2, res.Attempts)

	require.Len(t, m.prompts, 2)
	repair := m.prompts[1].User
	assert.Contains(t, repair, twoCorrect)
	assert.Contains(t, repair, "exactly one option must have isCorrect=true, got 2")
	assert.Contains(t, repair, "Transcript:\n\nQ")
	assert.Equal(t, m.prompts[0].System, m.prompts[1].System)
}

func TestInterpret_FeedbackAccumulates(t *testing.T) {
	m := &scriptedModel{replies: []string{"not json at all", twoCorrect, validB}}
	res, err := newInterpreter(m, 3).Interpret(context.Background(), "Q")
	require.NoError(t, err)
	assert.Equal(t, 3, res.Attempts)

	third := m.prompts[2].User
	assert.Contains(t, third, "Attempt 1:\n- no JSON object found")
	assert.Contains(t, third, "Attempt 2:\n- options: exactly one option")
}

func TestInterpret_Exhausted(t *testing.T) {
	m := &scriptedModel{replies: []string{twoCorrect}}
	res, err := newInterpreter(m, 2).Interpret(context.Background(), "Q")
	require.Error(t, err)

	assert.True(t, errors.Is(err, ErrSchemaInvalid))
	var ie *Error
	require.True(t, errors.As(err, &ie))
	assert.Equal(t, 2, ie.Attempts)
	assert.Equal(t, twoCorrect, ie.LastRaw)
	assert.NotEmpty(t, ie.Violations)
	assert.Equal(t, "InterpretError", ie.Category())
	assert.Equal(t, 2, res.Attempts)
	assert.Len(t, m.prompts, 2)
}

func TestInterpret_ModelUnavailable(t *testing.T) {
	down := errors.New("dial tcp 127.0.0.1:11434: connection refused")
	m := &scriptedModel{err: down}
	_, err := newInterpreter(m, 3).Interpret(context.Background(), "Q")

	assert.True(t, errors.Is(err, ErrModelUnavailable))
	assert.True(t, errors.Is(err, down))
	assert.Len(t, m.prompts, 1, "transport errors are not retried")
}

func TestInterpret_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m := &scriptedModel{replies: []string{validB}}

	_, err := newInterpreter(m, 3).Interpret(ctx, "Q")
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, m.prompts)
}

func TestInterpret_DefaultsApplied(t *testing.T) {
	it := New(&scriptedModel{replies: []string{validB}}, Options{}, nil)
	assert.Equal(t, DefaultMaxAttempts, it.opts.MaxAttempts)
	assert.Equal(t, DefaultLanguage, it.opts.Language)
}

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		wantErr string
	}{
		{name: "valid", raw: validB},
		{name: "code fence", raw: "```json\n" + validB + "\n```"},
		{name: "surrounding prose", raw: "Sure! Here it is:\n" + validB + "\nHope it helps."},
		{name: "braces in trailing prose", raw: validB + "\nNote: each option follows {label, text}."},
		{name: "braces in leading prose", raw: "Format {stem, options}:\n" + validB},
		{name: "prose object before answer", raw: `Schema {"type":"object"} then:` + "\n" + validB},
		{name: "no json", raw: "I cannot read this image", wantErr: "no JSON object found"},
		{name: "broken json", raw: `{"stem": "x", "options": [}`, wantErr: "invalid JSON"},
		{name: "unknown field", raw: strings.Replace(validB, `"stem"`, `"difficulty":"easy","stem"`, 1), wantErr: `unknown field "difficulty"`},
		{name: "two objects", raw: validB + " " + validB, wantErr: "unexpected data"},
		{name: "two correct", raw: twoCorrect, wantErr: "got 2"},
		{name: "none correct", raw: strings.Replace(validB, `"isCorrect":true`, `"isCorrect":false`, 1), wantErr: "got 0"},
		{name: "missing explanation", raw: strings.Replace(validB, `,"explanation":"Sobra uno."`, ``, 1), wantErr: "options[2].explanation: missing"},
		{name: "empty explanation", raw: strings.Replace(validB, `"Sobra uno."`, `"  "`, 1), wantErr: "options[2].explanation: must not be empty"},
		{name: "empty stem", raw: strings.Replace(validB, `"What is 2+2?"`, `""`, 1), wantErr: "stem: must not be empty"},
		{name: "missing isCorrect", raw: strings.Replace(validB, `"isCorrect":false,"explanation":"Falta uno."`, `"explanation":"Falta uno."`, 1), wantErr: "options[0].isCorrect: missing"},
		{name: "one option", raw: `{"stem":"s","options":[{"label":"A","text":"t","isCorrect":true,"explanation":"e"}]}`, wantErr: "need 2 to 6 options, got 1"},
		{name: "gap in labels", raw: strings.Replace(validB, `"label":"D"`, `"label":"E"`, 1), wantErr: "labels must be exactly A, B, C, D"},
		{name: "duplicate label", raw: strings.Replace(validB, `"label":"D"`, `"label":"A"`, 1), wantErr: `duplicate label "A"`},
		{name: "label out of range", raw: strings.Replace(validB, `"label":"D"`, `"label":"G"`, 1), wantErr: `"G" is not one of A..F`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, vs := Parse(tt.raw)
			if tt.wantErr == "" {
				assert.Empty(t, vs)
				assert.Equal(t, "What is 2+2?", q.Stem)
				assert.Len(t, q.Options, 4)
				return
			}
			require.NotEmpty(t, vs)
			var all []string
			for _, v := range vs {
				all = append(all, v.String())
			}
			assert.Contains(t, strings.Join(all, "\n"), tt.wantErr)
		})
	}
}

func TestParse_SevenOptions(t *testing.T) {
	var b strings.Builder
	b.WriteString(`{"stem":"s","options":[`)
	for i, l := range []string{"A", "B", "C", "D", "E", "F", "G"} {
		if i > 0 {
			b.WriteString(",")
		}
		b.WriteString(`{"label":"` + l + `","text":"t","isCorrect":` + map[bool]string{true: "true", false: "false"}[i == 0] + `,"explanation":"e"}`)
	}
	b.WriteString(`]}`)

	_, vs := Parse(b.String())
	require.NotEmpty(t, vs)
	assert.Equal(t, "options: need 2 to 6 options, got 7", vs[0].String())
}

func TestParse_NormalizesAndOrdersLabels(t *testing.T) {
	raw := `{"stem":"Capital of France?","options":[
 {"label":"c)","text":"Lyon","isCorrect":false,"explanation":"Es otra ciudad."},
 {"label":" A. ","text":"Paris","isCorrect":true,"explanation":"Es la capital."},
 {"label":"(b)","text":"Nice","isCorrect":false,"explanation":"Es otra ciudad."}]}`

	q, vs := Parse(raw)
	require.Empty(t, vs)
	require.Len(t, q.Options, 3)
	assert.Equal(t, []string{"A", "B", "C"}, []string{q.Options[0].Label, q.Options[1].Label, q.Options[2].Label})
	assert.Equal(t, "Paris", q.Options[0].Text)
	assert.Equal(t, 0, q.Correct())
}

func TestNormalizeLabel(t *testing.T) {
	for in, want := range map[string]string{
		"A":    "A",
		"b)":   "B",
		" B. ": "B",
		"(c)":  "C",
		"d:":   "D",
		"[E]":  "E",
		"":     "",
	} {
		assert.Equal(t, want, NormalizeLabel(in), in)
	}
}

func TestLanguageName(t *testing.T) {
	assert.Equal(t, "Spanish", LanguageName("es"))
	assert.Equal(t, "Portuguese", LanguageName("pt"))
	assert.Equal(t, "not a tag!", LanguageName("not a tag!"))
}

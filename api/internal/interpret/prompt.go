package interpret

import (
	"fmt"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"

	"quizdoc/api/internal/util"
)

const systemTemplate = `You turn the OCR transcript of ONE multiple-choice exam question into JSON.

Return ONLY a JSON object with exactly this shape, no prose, no code fences:
{
  "stem": "question text without the options",
  "options": [
    {"label": "A", "text": "option text", "isCorrect": true, "explanation": "why it is correct or incorrect"}
  ]
}

Rules:
- Include EVERY option found in the transcript (between 2 and 6), labelled "A", "B", "C"... in order.
- Exactly one option has "isCorrect": true; all others false.
- Copy "stem" and every option "text" verbatim in the language of the transcript. Do not translate them.
- Write every "explanation" in %s, whatever the language of the question. Every option gets a short explanation.
- Fix obvious OCR breaks (split words, stray line breaks) but never change meaning.
- Ignore unrelated words like "hideAnswer", "Explanation" or "Answer:".
- Do not add keys other than stem, options, label, text, isCorrect, explanation.`

// LanguageName renders a BCP 47 tag as an English language name ("es" → "Spanish").
// Unknown tags are returned unchanged.
func LanguageName(tag string) string {
	t, err := language.Parse(tag)
	if err != nil {
		return tag
	}
	if name := display.English.Tags().Name(t); name != "" {
		return name
	}
	return tag
}

func systemPrompt(lang string) string {
	return fmt.Sprintf(systemTemplate, LanguageName(lang))
}

func userPrompt(transcript string) string {
	return "Transcript:\n\n" + transcript
}

// repairPrompt asks for a corrected object. feedback holds the violations of
// every failed attempt so far, oldest first.
func repairPrompt(transcript, previous string, feedback [][]Violation) string {
	var b strings.Builder
	b.WriteString("Your previous answer did not satisfy the required JSON contract.\n\n")
	b.WriteString("Previous answer:\n")
	b.WriteString(util.Truncate(previous, 4000))
	b.WriteString("\n\nProblems found:\n")
	for i, vs := range feedback {
		fmt.Fprintf(&b, "Attempt %d:\n", i+1)
		for _, v := range vs {
			b.WriteString("- " + v.String() + "\n")
		}
	}
	b.WriteString("\nReturn ONLY the corrected JSON object for the same question.\n\n")
	b.WriteString(userPrompt(transcript))
	return b.String()
}

package telegram

import (
	"errors"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"quizdoc/api/internal/interpret"
	"quizdoc/api/internal/pipeline"
	"quizdoc/api/internal/util"
)

func retryKeyboard() tgbotapi.InlineKeyboardMarkup {
	btn := tgbotapi.NewInlineKeyboardButtonData("Retry", "retry")
	return tgbotapi.NewInlineKeyboardMarkup(tgbotapi.NewInlineKeyboardRow(btn))
}

// successText summarises a published question.
func successText(o pipeline.Outcome) string {
	var b strings.Builder
	b.WriteString("✅ Published")
	if o.BlockID != "" {
		b.WriteString(" (" + o.BlockID + ")")
	}
	b.WriteString("\n\n")
	if q := o.Question; q != nil {
		b.WriteString(util.Truncate(q.Stem, 1000))
		b.WriteString("\n")
		for _, opt := range q.Options {
			mark := "✗"
			if opt.IsCorrect {
				mark = "✓"
			}
			fmt.Fprintf(&b, "%s %s. %s\n", mark, opt.Label, util.Truncate(opt.Text, 200))
		}
	}
	if o.Attempts > 1 {
		fmt.Fprintf(&b, "\nModel needed %d attempts.", o.Attempts)
	}
	return strings.TrimSpace(b.String())
}

// failureText tells the user what went wrong without the raw model output.
func failureText(o pipeline.Outcome) string {
	var f *pipeline.Failure
	if !errors.As(o.Err, &f) {
		return "❌ Failed: " + util.Truncate(fmt.Sprint(o.Err), 500)
	}
	hint := ""
	switch f.Kind() {
	case "NoText":
		hint = "No readable text found. Try a sharper photo with the whole question in frame."
	case "TooSmall":
		hint = "The image is too small."
	case "Unreadable":
		hint = "Could not decode the image."
	case "SchemaInvalid":
		hint = "The model could not produce a valid question."
		var ie *interpret.Error
		if errors.As(f.Err, &ie) && len(ie.Violations) > 0 {
			hint += " Last problem: " + ie.Violations[0].String()
		}
	case "ModelUnavailable":
		hint = "The language model is not reachable."
	case "Auth", "NotFound":
		hint = "Notion rejected the page. Check the token and /page."
	case "RateLimited":
		hint = "Notion is rate limiting. Retry in a minute."
	}
	msg := fmt.Sprintf("❌ Failed during %s (%s.%s)", f.Stage, f.Category(), f.Kind())
	if hint != "" {
		msg += "\n" + hint
	}
	return msg
}

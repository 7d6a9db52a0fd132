package interpret

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"quizdoc/api/internal/llm"
)

const (
	DefaultMaxAttempts = 3
	DefaultLanguage    = "es"
)

type Options struct {
	MaxAttempts int
	// Language is the BCP 47 tag explanations are written in.
	Language string
}

type Interpreter struct {
	model llm.Model
	opts  Options
	log   logrus.FieldLogger
}

func New(model llm.Model, opts Options, log logrus.FieldLogger) *Interpreter {
	if opts.MaxAttempts < 1 {
		opts.MaxAttempts = DefaultMaxAttempts
	}
	if strings.TrimSpace(opts.Language) == "" {
		opts.Language = DefaultLanguage
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Interpreter{model: model, opts: opts, log: log}
}

type Result struct {
	Question Question
	Attempts int
}

// Interpret asks the model for a Question, repairing invalid output until
// MaxAttempts is reached. A transport failure of the model is not retried.
func (it *Interpreter) Interpret(ctx context.Context, transcript string) (Result, error) {
	system := systemPrompt(it.opts.Language)
	user := userPrompt(transcript)
	log := it.log.WithField("model", it.model.Name())

	var (
		feedback [][]Violation
		raw      string
	)
	for attempt := 1; attempt <= it.opts.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return Result{Attempts: attempt - 1}, err
		}

		out, err := it.model.Complete(ctx, llm.Prompt{System: system, User: user})
		if err != nil {
			if ctx.Err() != nil {
				return Result{Attempts: attempt}, ctx.Err()
			}
			log.WithError(err).WithField("attempts", attempt).Warn("model unavailable")
			return Result{Attempts: attempt}, &Error{Reason: ModelUnavailable, Attempts: attempt, LastRaw: raw, Err: err}
		}
		raw = out

		q, vs := Parse(raw)
		if len(vs) == 0 {
			log.WithField("attempts", attempt).Info("question interpreted")
			return Result{Question: q, Attempts: attempt}, nil
		}

		feedback = append(feedback, vs)
		log.WithFields(logrus.Fields{
			"attempt":    attempt,
			"violations": len(vs),
		}).Debug("model output rejected")
		user = repairPrompt(transcript, raw, feedback)
	}

	last := feedback[len(feedback)-1]
	log.WithFields(logrus.Fields{
		"attempts":   it.opts.MaxAttempts,
		"violations": len(last),
	}).Warn("model output never satisfied the question contract")
	return Result{Attempts: it.opts.MaxAttempts}, &Error{
		Reason:     SchemaInvalid,
		Attempts:   it.opts.MaxAttempts,
		LastRaw:    raw,
		Violations: last,
	}
}

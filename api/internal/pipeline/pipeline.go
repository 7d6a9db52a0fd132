// Package pipeline sequences one question through normalization, text
// extraction, interpretation, formatting and publishing. A failure in any
// stage ends the run before anything is published.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"quizdoc/api/internal/blocks"
	"quizdoc/api/internal/imaging"
	"quizdoc/api/internal/interpret"
)

type Normalizer interface {
	Normalize(raw imaging.RawImage) (*image.Gray, error)
}

type Extractor interface {
	Extract(ctx context.Context, img *image.Gray) (string, error)
}

type Interpreter interface {
	Interpret(ctx context.Context, transcript string) (interpret.Result, error)
}

type Formatter interface {
	Format(q interpret.Question, number int, lang string) (blocks.Tree, error)
}

type FormatterFunc func(q interpret.Question, number int, lang string) (blocks.Tree, error)

func (f FormatterFunc) Format(q interpret.Question, number int, lang string) (blocks.Tree, error) {
	return f(q, number, lang)
}

// BlockFormatter is the default Formatter.
var BlockFormatter = FormatterFunc(func(q interpret.Question, number int, lang string) (blocks.Tree, error) {
	return blocks.Format(q, number, lang), nil
})

type Publisher interface {
	Publish(ctx context.Context, parentID string, tree blocks.Tree) (string, error)
}

// Recorder receives every finished run. Its errors are logged only.
type Recorder interface {
	Record(ctx context.Context, o Outcome) error
}

type Deps struct {
	Normalizer  Normalizer
	Extractor   Extractor
	Interpreter Interpreter
	Formatter   Formatter // BlockFormatter when nil
	Publisher   Publisher
	Recorder    Recorder // optional
}

type Config struct {
	ParentPageID string
	Language     string
	Workers      int
}

type Request struct {
	File string
	// Image, when set, is used instead of loading File.
	Image *imaging.RawImage
	// Number > 0 prefixes the stem with "{Number}. ".
	Number int
	// ParentPageID overrides Config.ParentPageID.
	ParentPageID string
}

type Outcome struct {
	RunID        string
	File         string
	ImageHash    string
	ParentPageID string  // page the question was (or would have been) published under
	State        State   // Done or Failed
	Trace        []State // every state entered, in order
	Attempts     int
	Transcript   string
	Question     *interpret.Question
	BlockID      string
	Err          error
	Started      time.Time
	Finished     time.Time
}

type Pipeline struct {
	deps Deps
	cfg  Config
	log  logrus.FieldLogger
}

func New(deps Deps, cfg Config, log logrus.FieldLogger) *Pipeline {
	if deps.Formatter == nil {
		deps.Formatter = BlockFormatter
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Pipeline{deps: deps, cfg: cfg, log: log}
}

// run holds the bookkeeping of one Run; stage results are threaded
// through Run as values.
type run struct {
	out *Outcome
	log logrus.FieldLogger
}

func (r *run) enter(s State) {
	if n := len(r.out.Trace); n > 0 && s != Failed {
		if prev := r.out.Trace[n-1]; next[prev] != s {
			panic(fmt.Sprintf("pipeline: illegal transition %s -> %s", prev, s))
		}
	}
	r.out.Trace = append(r.out.Trace, s)
	r.log.WithField("stage", s).Debug("stage entered")
}

// Run processes one request. The returned error equals Outcome.Err and is
// a *Failure whenever the run did not reach Done.
func (p *Pipeline) Run(ctx context.Context, req Request) (Outcome, error) {
	out := Outcome{
		RunID:        uuid.NewString(),
		File:         req.File,
		ParentPageID: p.ParentFor(req),
		Started:      time.Now(),
	}
	r := &run{out: &out, log: p.log.WithFields(logrus.Fields{"run_id": out.RunID, "file": req.File})}
	r.enter(Init)

	err := p.run(ctx, r, req)
	out.Finished = time.Now()
	if err != nil {
		out.State = Failed
		out.Err = err
		r.enter(Failed)
		f := &Failure{}
		errors.As(err, &f)
		r.log.WithError(f.Err).WithFields(logrus.Fields{
			"stage":    f.Stage,
			"kind":     f.Category() + "." + f.Kind(),
			"attempts": out.Attempts,
		}).Warn("run failed")
	} else {
		out.State = Done
		r.enter(Done)
		r.log.WithFields(logrus.Fields{
			"block_id": out.BlockID,
			"attempts": out.Attempts,
			"took":     out.Finished.Sub(out.Started).Round(time.Millisecond),
		}).Info("run done")
	}

	if p.deps.Recorder != nil {
		if rerr := p.deps.Recorder.Record(context.WithoutCancel(ctx), out); rerr != nil {
			r.log.WithError(rerr).Warn("run not recorded")
		}
	}
	return out, out.Err
}

func (p *Pipeline) run(ctx context.Context, r *run, req Request) error {
	fail := func(s State, err error) error { return &Failure{Stage: s, Err: err} }

	// Normalizing
	r.enter(Normalizing)
	if err := ctx.Err(); err != nil {
		return fail(Normalizing, err)
	}
	raw, err := load(req)
	if err != nil {
		return fail(Normalizing, err)
	}
	r.out.ImageHash = raw.Hash
	frame, err := p.deps.Normalizer.Normalize(raw)
	if err != nil {
		return fail(Normalizing, err)
	}

	// Extracting
	r.enter(Extracting)
	if err := ctx.Err(); err != nil {
		return fail(Extracting, err)
	}
	transcript, err := p.deps.Extractor.Extract(ctx, frame)
	if err != nil {
		return fail(Extracting, err)
	}
	r.out.Transcript = transcript

	// Interpreting
	r.enter(Interpreting)
	if err := ctx.Err(); err != nil {
		return fail(Interpreting, err)
	}
	res, err := p.deps.Interpreter.Interpret(ctx, transcript)
	r.out.Attempts = res.Attempts
	if err != nil {
		return fail(Interpreting, err)
	}
	if vs := interpret.Validate(res.Question); len(vs) > 0 {
		return fail(Interpreting, &interpret.Error{Reason: interpret.SchemaInvalid, Attempts: res.Attempts, Violations: vs})
	}
	q := res.Question
	r.out.Question = &q

	// Formatting
	r.enter(Formatting)
	if err := ctx.Err(); err != nil {
		return fail(Formatting, err)
	}
	tree, err := p.deps.Formatter.Format(q, req.Number, p.cfg.Language)
	if err != nil {
		return fail(Formatting, err)
	}
	if n := len(tree.Toggles()); n != len(q.Options) {
		return fail(Formatting, &FormatError{Detail: fmt.Sprintf("%d toggles for %d options", n, len(q.Options))})
	}

	// Publishing
	r.enter(Publishing)
	if err := ctx.Err(); err != nil {
		return fail(Publishing, err)
	}
	id, err := p.deps.Publisher.Publish(ctx, r.out.ParentPageID, tree)
	if err != nil {
		return fail(Publishing, err)
	}
	r.out.BlockID = id
	return nil
}

// ParentFor returns the page req publishes under: its override or the
// configured default.
func (p *Pipeline) ParentFor(req Request) string {
	if req.ParentPageID != "" {
		return req.ParentPageID
	}
	return p.cfg.ParentPageID
}

func load(req Request) (imaging.RawImage, error) {
	if req.Image != nil {
		return *req.Image, nil
	}
	return imaging.Load(req.File)
}

// FormatError reports a block tree that does not match its question.
type FormatError struct {
	Detail string
}

func (e *FormatError) Error() string    { return "format: " + e.Detail }
func (e *FormatError) Category() string { return "FormatError" }
func (e *FormatError) Kind() string     { return "Mismatch" }

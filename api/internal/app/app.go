// Package app assembles the pipeline and its collaborators from a Config.
// The CLI and the bot share it.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"quizdoc/api/internal/config"
	"quizdoc/api/internal/imaging"
	"quizdoc/api/internal/interpret"
	"quizdoc/api/internal/llm"
	"quizdoc/api/internal/llm/gemini"
	"quizdoc/api/internal/llm/langchain"
	"quizdoc/api/internal/notion"
	"quizdoc/api/internal/ocr"
	"quizdoc/api/internal/ocr/tesseract"
	"quizdoc/api/internal/ocr/yandex"
	"quizdoc/api/internal/pipeline"
	"quizdoc/api/internal/store"
)

type Options struct {
	// DryRun, when set, receives the block tree as JSON instead of Notion.
	DryRun io.Writer
	// ResizeWidth overrides imaging.DefaultOptions when > 0.
	ResizeWidth int
}

type App struct {
	Pipeline    *pipeline.Pipeline
	Interpreter *interpret.Interpreter
	Model       llm.Model
	Recognizer  ocr.Recognizer

	// DB and Runs are nil when no database is configured.
	DB   *sql.DB
	Runs *store.RunRepo
}

// Build validates cfg and wires every stage. Close releases the database.
func Build(ctx context.Context, cfg *config.Config, opts Options, log logrus.FieldLogger) (*App, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	model, err := NewModel(cfg.Model)
	if err != nil {
		return nil, err
	}
	rec, err := NewRecognizer(cfg)
	if err != nil {
		return nil, err
	}
	pub, err := NewPublisher(cfg.Notion, opts.DryRun, log)
	if err != nil {
		return nil, err
	}

	a := &App{Model: model, Recognizer: rec}
	var recorder pipeline.Recorder
	if cfg.DatabaseURL != "" {
		db, err := store.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		runs := store.NewRunRepo(db, rec.Name(), model.Name())
		if err := runs.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("store: schema: %w", err)
		}
		a.DB, a.Runs, recorder = db, runs, runs
		log.WithField("db", store.SafeDSNSummary(cfg.DatabaseURL)).Info("run ledger enabled")
	}

	imgOpts := imaging.DefaultOptions()
	imgOpts.DebugDir = cfg.OCR.DebugDir
	if opts.ResizeWidth > 0 {
		imgOpts.ResizeWidth = opts.ResizeWidth
	}

	a.Interpreter = interpret.New(model, interpret.Options{
		MaxAttempts: cfg.Interpret.MaxAttempts,
		Language:    cfg.Interpret.Language,
	}, log)

	a.Pipeline = pipeline.New(pipeline.Deps{
		Normalizer:  imaging.NewNormalizer(imgOpts, log),
		Extractor:   ocr.NewExtractor(rec, cfg.OCR.MinConfidence, log),
		Interpreter: a.Interpreter,
		Publisher:   pub,
		Recorder:    recorder,
	}, pipeline.Config{
		ParentPageID: cfg.Notion.ParentPageID,
		Language:     cfg.Interpret.Language,
		Workers:      cfg.Workers,
	}, log)

	log.WithFields(logrus.Fields{
		"provider": cfg.Model.Provider,
		"model":    model.Name(),
		"engine":   rec.Name(),
		"dry_run":  opts.DryRun != nil,
	}).Debug("pipeline assembled")
	return a, nil
}

func (a *App) Close() error {
	if a.DB == nil {
		return nil
	}
	return a.DB.Close()
}

// Ping checks the ledger database; it is a no-op without one.
func (a *App) Ping(ctx context.Context) error {
	if a.DB == nil {
		return nil
	}
	return a.DB.PingContext(ctx)
}

func NewModel(m config.Model) (llm.Model, error) {
	switch m.Provider {
	case config.ProviderOllama:
		return langchain.NewOllama(m.OllamaURL, m.Name)
	case config.ProviderOpenAI:
		return langchain.NewOpenAI(m.OpenAIAPIKey, m.Name, "")
	case config.ProviderGemini:
		return gemini.New(m.GeminiAPIKey, m.Name), nil
	}
	return nil, fmt.Errorf("unknown model provider %q", m.Provider)
}

func NewRecognizer(cfg *config.Config) (ocr.Recognizer, error) {
	switch cfg.OCR.Engine {
	case config.EngineTesseract:
		e, err := tesseract.New(cfg.OCR.Languages)
		if err != nil {
			return nil, err
		}
		return e, nil
	case config.EngineYandex:
		return yandex.New(yandex.Options{
			OAuthToken: cfg.Yandex.OAuthToken,
			FolderID:   cfg.Yandex.FolderID,
			Languages:  cfg.OCR.Languages,
		}), nil
	}
	return nil, fmt.Errorf("unknown ocr engine %q", cfg.OCR.Engine)
}

func NewPublisher(n config.Notion, dryRun io.Writer, log logrus.FieldLogger) (pipeline.Publisher, error) {
	if dryRun != nil {
		return notion.NewPrinter(dryRun), nil
	}
	return notion.NewPublisher(n.Token, log)
}

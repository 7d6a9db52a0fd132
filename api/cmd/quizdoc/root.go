package main

import (
	"io"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"quizdoc/api/internal/app"
	"quizdoc/api/internal/config"
	"quizdoc/api/internal/logging"
)

// flags shared by the commands that build a pipeline.
type flags struct {
	configPath    string
	logLevel      string
	page          string
	model         string
	provider      string
	engine        string
	lang          string
	maxAttempts   int
	minConfidence float64
	debugDir      string
	dryRun        bool
	workers       int
}

func newRootCmd() *cobra.Command {
	f := &flags{}
	root := &cobra.Command{
		Use:           "quizdoc",
		Short:         "Publish photographed multiple-choice questions to Notion",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&f.configPath, "config", "", "YAML config file (default $QUIZDOC_CONFIG)")
	pf.StringVar(&f.logLevel, "log-level", "", "log level (overrides LOG_LEVEL)")
	pf.StringVar(&f.page, "page", "", "Notion parent page id")
	pf.StringVar(&f.model, "model", "", "model name")
	pf.StringVar(&f.provider, "provider", "", "model provider: ollama | gemini | openai")
	pf.StringVar(&f.engine, "engine", "", "ocr engine: tesseract | yandex")
	pf.StringVar(&f.lang, "lang", "", "explanation language (BCP 47)")
	pf.IntVar(&f.maxAttempts, "max-attempts", 0, "model attempts per question (1..10)")
	pf.Float64Var(&f.minConfidence, "min-confidence", -1, "drop OCR fragments below this confidence")
	pf.StringVar(&f.debugDir, "debug-dir", "", "write normalized images here")
	pf.BoolVar(&f.dryRun, "dry-run", false, "print the block tree instead of publishing")

	root.AddCommand(
		newRunCmd(f),
		newBatchCmd(f),
		newServeCmd(f),
		newHistoryCmd(f),
		newVersionCmd(),
	)
	return root
}

// load applies defaults < YAML < env < flags.
func (f *flags) load() (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(f.configPath)
	if err != nil {
		return nil, nil, err
	}
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&cfg.Log.Level, f.logLevel)
	set(&cfg.Notion.ParentPageID, f.page)
	set(&cfg.Model.Name, f.model)
	set(&cfg.Model.Provider, f.provider)
	set(&cfg.OCR.Engine, f.engine)
	set(&cfg.Interpret.Language, f.lang)
	set(&cfg.OCR.DebugDir, f.debugDir)
	if f.maxAttempts != 0 {
		cfg.Interpret.MaxAttempts = f.maxAttempts
	}
	if f.minConfidence >= 0 {
		cfg.OCR.MinConfidence = f.minConfidence
	}
	if f.workers > 0 {
		cfg.Workers = f.workers
	}
	if f.dryRun && cfg.Notion.ParentPageID == "" {
		cfg.Notion.ParentPageID = "dry-run"
	}

	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

func (f *flags) build(cmd *cobra.Command) (*app.App, *config.Config, *logrus.Logger, error) {
	cfg, log, err := f.load()
	if err != nil {
		return nil, nil, nil, err
	}
	var dry io.Writer
	if f.dryRun {
		dry = cmd.OutOrStdout()
	}
	a, err := app.Build(cmd.Context(), cfg, app.Options{DryRun: dry}, log)
	if err != nil {
		return nil, nil, nil, err
	}
	return a, cfg, log, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			cmd.Println("quizdoc", version)
		},
	}
}


package app

import (
	"bytes"
	"context"
	"testing"

	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quizdoc/api/internal/config"
	"quizdoc/api/internal/llm/gemini"
	"quizdoc/api/internal/llm/langchain"
	"quizdoc/api/internal/notion"
	"quizdoc/api/internal/ocr/yandex"
)

func yandexConfig() *config.Config {
	cfg := config.Default()
	cfg.Notion.ParentPageID = "page"
	cfg.OCR.Engine = config.EngineYandex
	cfg.Yandex.OAuthToken = "oauth"
	cfg.Yandex.FolderID = "folder"
	return cfg
}

func TestNewModel(t *testing.T) {
	m, err := NewModel(config.Model{Provider: config.ProviderOllama, Name: "llama3.2:3b"})
	require.NoError(t, err)
	assert.IsType(t, &langchain.Model{}, m)
	assert.Equal(t, "llama3.2:3b", m.Name())

	m, err = NewModel(config.Model{Provider: config.ProviderGemini, Name: "gemini-2.5-flash", GeminiAPIKey: "k"})
	require.NoError(t, err)
	assert.IsType(t, &gemini.Model{}, m)

	_, err = NewModel(config.Model{Provider: config.ProviderOpenAI, Name: "gpt-4o-mini"})
	assert.ErrorContains(t, err, "OPENAI_API_KEY")

	_, err = NewModel(config.Model{Provider: "bard"})
	assert.Error(t, err)
}

func TestNewRecognizer(t *testing.T) {
	rec, err := NewRecognizer(yandexConfig())
	require.NoError(t, err)
	assert.IsType(t, &yandex.Engine{}, rec)
	assert.Equal(t, "yandex", rec.Name())

	cfg := yandexConfig()
	cfg.OCR.Engine = "abbyy"
	_, err = NewRecognizer(cfg)
	assert.Error(t, err)
}

func TestNewPublisher(t *testing.T) {
	log, _ := test.NewNullLogger()

	p, err := NewPublisher(config.Notion{}, &bytes.Buffer{}, log)
	require.NoError(t, err)
	assert.IsType(t, &notion.Printer{}, p)

	_, err = NewPublisher(config.Notion{}, nil, log)
	assert.ErrorContains(t, err, "NOTION_TOKEN")

	p, err = NewPublisher(config.Notion{Token: "secret"}, nil, log)
	require.NoError(t, err)
	assert.IsType(t, &notion.Publisher{}, p)
}

func TestBuild_DryRunWithoutLedger(t *testing.T) {
	log, _ := test.NewNullLogger()
	a, err := Build(context.Background(), yandexConfig(), Options{DryRun: &bytes.Buffer{}}, log)
	require.NoError(t, err)
	defer a.Close()

	assert.NotNil(t, a.Pipeline)
	assert.NotNil(t, a.Interpreter)
	assert.Nil(t, a.Runs)
	assert.NoError(t, a.Ping(context.Background()))
}

func TestBuild_InvalidConfig(t *testing.T) {
	cfg := yandexConfig()
	cfg.Interpret.MaxAttempts = 42
	_, err := Build(context.Background(), cfg, Options{}, nil)
	assert.ErrorContains(t, err, "max attempts")
}

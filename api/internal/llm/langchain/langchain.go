// Package langchain adapts langchaingo models (Ollama, OpenAI) to llm.Model.
package langchain

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"quizdoc/api/internal/llm"
)

type Model struct {
	llm  llms.Model
	name string
}

// New wraps an existing langchaingo model.
func New(m llms.Model, name string) *Model {
	return &Model{llm: m, name: name}
}

// NewOllama talks to a local Ollama server in JSON mode.
func NewOllama(serverURL, model string) (*Model, error) {
	if serverURL == "" {
		serverURL = "http://127.0.0.1:11434"
	}
	m, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(serverURL),
		ollama.WithFormat("json"),
	)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}
	return New(m, model), nil
}

func NewOpenAI(token, model, baseURL string) (*Model, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("OPENAI_API_KEY is empty")
	}
	opts := []openai.Option{
		openai.WithModel(model),
		openai.WithToken(token),
	}
	if baseURL != "" {
		opts = append(opts, openai.WithBaseURL(baseURL))
	}
	m, err := openai.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("openai: %w", err)
	}
	return New(m, model), nil
}

func (m *Model) Name() string { return m.name }

func (m *Model) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	msgs := make([]llms.MessageContent, 0, 2)
	if p.System != "" {
		msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeSystem, p.System))
	}
	msgs = append(msgs, llms.TextParts(llms.ChatMessageTypeHuman, p.User))

	resp, err := m.llm.GenerateContent(ctx, msgs, llms.WithTemperature(0))
	if err != nil {
		return "", fmt.Errorf("%s: %w", m.name, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", fmt.Errorf("%s: empty response", m.name)
	}
	return resp.Choices[0].Content, nil
}

// Package gemini adapts Google Gemini (generative-ai-go) to llm.Model.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/option"

	"quizdoc/api/internal/llm"
)

type Model struct {
	APIKey string
	Model  string
	// Attempts bounds retries on transport failures; the interpreter's
	// repair loop is separate.
	Attempts int
}

func New(apiKey, model string) *Model {
	return &Model{
		APIKey:   strings.TrimSpace(apiKey),
		Model:    strings.TrimSpace(model),
		Attempts: 3,
	}
}

func (m *Model) Name() string { return m.Model }

func (m *Model) Complete(ctx context.Context, p llm.Prompt) (string, error) {
	if m.APIKey == "" {
		return "", errors.New("GEMINI_API_KEY is empty")
	}
	cl, err := genai.NewClient(ctx, option.WithAPIKey(m.APIKey))
	if err != nil {
		return "", err
	}
	defer cl.Close()

	gm := cl.GenerativeModel(m.Model)
	gm.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptrFloat32(0),
		ResponseMIMEType: "application/json",
	}
	if p.System != "" {
		gm.SystemInstruction = &genai.Content{Parts: []genai.Part{genai.Text(p.System)}}
	}

	return retry(ctx, m.Attempts, backoff, func() (string, error) {
		resp, err := gm.GenerateContent(ctx, genai.Text(p.User))
		if err != nil {
			return "", err
		}
		txt := firstText(resp)
		if txt == "" {
			return "", errEmpty
		}
		return txt, nil
	})
}

var errEmpty = errors.New("gemini: empty response")

func backoff(attempt int) time.Duration { return time.Duration(attempt) * 300 * time.Millisecond }

// retry calls fn up to attempts times, waiting wait(n) after the n-th
// failure unless it was the last one. An empty response is not retried.
func retry(ctx context.Context, attempts int, wait func(int) time.Duration, fn func() (string, error)) (string, error) {
	attempts = max(1, attempts)
	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		txt, err := fn()
		if err == nil {
			return txt, nil
		}
		if errors.Is(err, errEmpty) {
			return "", err
		}
		lastErr = err
		if attempt == attempts {
			break
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(wait(attempt)):
		}
	}
	return "", fmt.Errorf("gemini: %w", lastErr)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptrFloat32(v float32) *float32 { return &v }

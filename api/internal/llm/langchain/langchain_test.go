package langchain

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"quizdoc/api/internal/llm"
)

type fakeLLM struct {
	reply *llms.ContentResponse
	err   error
	got   []llms.MessageContent
	opts  llms.CallOptions
}

func (f *fakeLLM) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	f.got = msgs
	for _, o := range options {
		o(&f.opts)
	}
	return f.reply, f.err
}

func (f *fakeLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestComplete(t *testing.T) {
	f := &fakeLLM{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: `{"stem":"x"}`}}}}
	m := New(f, "llama3.2:3b")

	out, err := m.Complete(context.Background(), llm.Prompt{System: "sys", User: "usr"})
	require.NoError(t, err)
	assert.Equal(t, `{"stem":"x"}`, out)
	assert.Equal(t, "llama3.2:3b", m.Name())

	require.Len(t, f.got, 2)
	assert.Equal(t, llms.ChatMessageTypeSystem, f.got[0].Role)
	assert.Equal(t, llms.ChatMessageTypeHuman, f.got[1].Role)
	assert.Equal(t, llms.TextContent{Text: "usr"}, f.got[1].Parts[0])
	assert.Equal(t, 0.0, f.opts.Temperature)
}

func TestComplete_NoSystemMessage(t *testing.T) {
	f := &fakeLLM{reply: &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: "ok"}}}}
	_, err := New(f, "m").Complete(context.Background(), llm.Prompt{User: "only user"})
	require.NoError(t, err)
	assert.Len(t, f.got, 1)
}

func TestComplete_Errors(t *testing.T) {
	down := errors.New("connection refused")
	_, err := New(&fakeLLM{err: down}, "m").Complete(context.Background(), llm.Prompt{User: "u"})
	assert.ErrorIs(t, err, down)

	_, err = New(&fakeLLM{reply: &llms.ContentResponse{}}, "m").Complete(context.Background(), llm.Prompt{User: "u"})
	assert.ErrorContains(t, err, "empty response")
}

func TestNewOpenAI_RequiresToken(t *testing.T) {
	_, err := NewOpenAI(" ", "gpt-4o-mini", "")
	assert.ErrorContains(t, err, "OPENAI_API_KEY")
}

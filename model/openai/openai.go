// Package openai provides a Summarizer backed by the OpenAI Chat
// Completions API.
package openai

import (
	"context"
	"fmt"

	"github.com/openai/openai-go"
)

const summarizeSystemPrompt = "Compress the following conversation notes into a short digest. " +
	"Keep concrete topics, outcomes and user preferences. Reply with the digest only."

// Options configures the OpenAI summarizer. Fields mirror a minimal subset
// of Chat Completion parameters.
type Options struct {
	Model               string
	Temperature         float64
	MaxCompletionTokens int64
}

// Summarizer wraps the OpenAI Chat Completions API behind the
// model.Summarizer interface.
type Summarizer struct {
	client *openai.Client
	opts   Options
}

// NewSummarizer creates a new OpenAI summarizer using the official client.
func NewSummarizer(optFns ...func(o *Options)) *Summarizer {
	client := openai.NewClient()
	return NewSummarizerFromClient(&client, optFns...)
}

// NewSummarizerFromClient wraps an existing client.
func NewSummarizerFromClient(client *openai.Client, optFns ...func(o *Options)) *Summarizer {
	opts := Options{
		Model:               openai.ChatModelGPT4oMini,
		Temperature:         0.2,
		MaxCompletionTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Summarizer{client: client, opts: opts}
}

// Summarize implements model.Summarizer via a single non-streaming
// completion.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: s.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(summarizeSystemPrompt),
			openai.UserMessage(text),
		},
		Temperature:         openai.Float(s.opts.Temperature),
		MaxCompletionTokens: openai.Int(s.opts.MaxCompletionTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", fmt.Errorf("openai api returned no content")
	}
	return resp.Choices[0].Message.Content, nil
}

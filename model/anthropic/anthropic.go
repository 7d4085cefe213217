// Package anthropic provides a Summarizer backed by the Anthropic Messages
// API.
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const summarizeSystemPrompt = "Compress the following conversation notes into a short digest. " +
	"Keep concrete topics, outcomes and user preferences. Reply with the digest only."

// Options configures the Anthropic summarizer (model id, max tokens, API key).
type Options struct {
	Model     anthropic.Model
	MaxTokens int64
	APIKey    string
}

// Summarizer wraps the Anthropic Messages API behind the model.Summarizer
// interface.
type Summarizer struct {
	client *anthropic.Client
	opts   Options
}

// NewSummarizer creates a new Anthropic summarizer using the official client.
func NewSummarizer(optFns ...func(o *Options)) *Summarizer {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Summarizer{client: &client, opts: opts}
}

// NewSummarizerFromClient wraps an existing client.
func NewSummarizerFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Summarizer {
	opts := Options{
		Model:     anthropic.ModelClaude3_5Sonnet20241022,
		MaxTokens: 1024,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Summarizer{client: client, opts: opts}
}

// Summarize implements model.Summarizer via a single non-streaming Messages
// call.
func (s *Summarizer) Summarize(ctx context.Context, text string) (string, error) {
	resp, err := s.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     s.opts.Model,
		MaxTokens: s.opts.MaxTokens,
		System:    []anthropic.TextBlockParam{{Text: summarizeSystemPrompt}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(text)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var sb strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			sb.WriteString(block.AsText().Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("anthropic api returned no text content")
	}
	return sb.String(), nil
}

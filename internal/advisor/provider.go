package advisor

import (
	"context"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"

	"github.com/pennywiseapp/pennywise/internal/config"
)

// NewCompleter builds the model client for the configured provider:
// "anthropic" (default) or "openai".
func NewCompleter(cfg config.ProviderConfig) (Completer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("advisor: provider API key not set")
	}
	switch cfg.Type {
	case "openai":
		opts := []openaioption.RequestOption{openaioption.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, openaioption.WithBaseURL(cfg.BaseURL))
		}
		client := openai.NewClient(opts...)
		return &openaiCompleter{client: &client, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
	default: // "anthropic" or empty
		opts := []anthropicoption.RequestOption{anthropicoption.WithAPIKey(cfg.APIKey)}
		if cfg.BaseURL != "" {
			opts = append(opts, anthropicoption.WithBaseURL(cfg.BaseURL))
		}
		client := anthropic.NewClient(opts...)
		return &anthropicCompleter{client: &client, model: cfg.Model, maxTokens: cfg.MaxTokens}, nil
	}
}

type anthropicCompleter struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

func (c *anthropicCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	msg, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(c.maxTokens),
		System:    []anthropic.TextBlockParam{{Text: system}},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return "", fmt.Errorf("anthropic: %w", err)
	}
	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	text := strings.TrimSpace(b.String())
	if text == "" {
		return "", fmt.Errorf("anthropic: empty completion")
	}
	return text, nil
}

type openaiCompleter struct {
	client    *openai.Client
	model     string
	maxTokens int
}

func (c *openaiCompleter) Complete(ctx context.Context, system, prompt string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: shared.ChatModel(c.model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(prompt),
		},
		MaxCompletionTokens: openai.Int(int64(c.maxTokens)),
	})
	if err != nil {
		return "", fmt.Errorf("openai: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai: no choices returned")
	}
	text := strings.TrimSpace(resp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("openai: empty completion")
	}
	return text, nil
}

package provider

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"studyforge/internal/config"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

// defaultAnthropicMaxTokens is sent when the caller sets no budget; the
// messages API requires one.
const defaultAnthropicMaxTokens = 2048

// Anthropic calls the messages API. SDK retries are disabled; the cascade
// owns retry policy.
type Anthropic struct {
	id     string
	model  string
	client anthropic.Client
}

func NewAnthropic(cfg config.ProviderConfig) (*Anthropic, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("anthropic provider %s: api key cannot be empty", cfg.ID)
	}
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	model := cfg.Model
	if model == "" {
		model = string(anthropic.ModelClaude3_5HaikuLatest)
	}
	return &Anthropic{id: cfg.ID, model: model, client: anthropic.NewClient(opts...)}, nil
}

func (a *Anthropic) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	if maxOutputTokens <= 0 {
		maxOutputTokens = defaultAnthropicMaxTokens
	}
	msg, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(maxOutputTokens),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		var apiErr *anthropic.Error
		if errors.As(err, &apiErr) {
			return "", wrapError(a.id, apiErr.StatusCode, err)
		}
		return "", wrapError(a.id, 0, err)
	}
	if msg.StopReason == anthropic.StopReasonRefusal {
		return "", blocked(a.id, "model refused the request")
	}

	var sb strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	return sb.String(), nil
}

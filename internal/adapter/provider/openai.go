package provider

import (
	"context"
	"errors"
	"fmt"

	"studyforge/internal/config"

	"github.com/sashabaranov/go-openai"
)

// OpenAI calls the chat completions endpoint.
type OpenAI struct {
	id     string
	model  string
	client *openai.Client
}

func NewOpenAI(cfg config.ProviderConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai provider %s: api key cannot be empty", cfg.ID)
	}
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = openai.GPT4oMini
	}
	return &OpenAI{id: cfg.ID, model: model, client: openai.NewClientWithConfig(clientConfig)}, nil
}

func (o *OpenAI) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
		MaxTokens: maxOutputTokens,
	})
	if err != nil {
		var apiErr *openai.APIError
		if errors.As(err, &apiErr) {
			return "", wrapError(o.id, apiErr.HTTPStatusCode, err)
		}
		var reqErr *openai.RequestError
		if errors.As(err, &reqErr) {
			return "", wrapError(o.id, reqErr.HTTPStatusCode, err)
		}
		return "", wrapError(o.id, 0, err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	if resp.Choices[0].FinishReason == openai.FinishReasonContentFilter {
		return "", blocked(o.id, "content filtered")
	}
	return resp.Choices[0].Message.Content, nil
}

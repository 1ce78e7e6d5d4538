package provider

import (
	"context"
	"fmt"

	"studyforge/internal/config"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	lcopenai "github.com/tmc/langchaingo/llms/openai"
)

const defaultOpenRouterURL = "https://openrouter.ai/api/v1"

// Langchain drives any langchaingo model: OpenRouter through the
// OpenAI-compatible client and Ollama on the local host.
type Langchain struct {
	id  string
	llm llms.Model
}

// NewLangchain wraps an existing model. Tests pass a fake.
func NewLangchain(id string, llm llms.Model) *Langchain {
	return &Langchain{id: id, llm: llm}
}

func NewOpenRouter(cfg config.ProviderConfig) (*Langchain, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openrouter provider %s: api key cannot be empty", cfg.ID)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("openrouter provider %s: model name cannot be empty", cfg.ID)
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenRouterURL
	}
	llm, err := lcopenai.New(
		lcopenai.WithToken(cfg.APIKey),
		lcopenai.WithBaseURL(baseURL),
		lcopenai.WithModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LangchainGo OpenAI client for %s: %w", cfg.ID, err)
	}
	return NewLangchain(cfg.ID, llm), nil
}

func NewOllama(cfg config.ProviderConfig) (*Langchain, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ollama provider %s: server URL cannot be empty", cfg.ID)
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("ollama provider %s: model name cannot be empty", cfg.ID)
	}
	llm, err := ollama.New(
		ollama.WithModel(cfg.Model),
		ollama.WithServerURL(cfg.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create LangchainGo Ollama client for %s: %w", cfg.ID, err)
	}
	return NewLangchain(cfg.ID, llm), nil
}

func (l *Langchain) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	var opts []llms.CallOption
	if maxOutputTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(maxOutputTokens))
	}
	text, err := llms.GenerateFromSinglePrompt(ctx, l.llm, prompt, opts...)
	if err != nil {
		return "", wrapError(l.id, statusFromText(err), err)
	}
	return text, nil
}

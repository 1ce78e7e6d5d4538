package provider

import (
	"context"
	"errors"
	"fmt"

	"studyforge/internal/config"

	"google.golang.org/genai"
)

// Gemini calls the Gemini API through the genai SDK.
type Gemini struct {
	id     string
	model  string
	client *genai.Client
}

func NewGemini(ctx context.Context, cfg config.ProviderConfig) (*Gemini, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini provider %s: api key cannot be empty", cfg.ID)
	}
	clientConfig := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientConfig.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}
	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}
	model := cfg.Model
	if model == "" {
		model = "gemini-2.0-flash"
	}
	return &Gemini{id: cfg.ID, model: model, client: client}, nil
}

func (g *Gemini) Generate(ctx context.Context, prompt string, maxOutputTokens int) (string, error) {
	var genConfig *genai.GenerateContentConfig
	if maxOutputTokens > 0 {
		genConfig = &genai.GenerateContentConfig{MaxOutputTokens: int32(maxOutputTokens)}
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), genConfig)
	if err != nil {
		var apiErr genai.APIError
		if errors.As(err, &apiErr) {
			return "", wrapError(g.id, apiErr.Code, err)
		}
		return "", wrapError(g.id, 0, err)
	}
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return "", blocked(g.id, "prompt blocked: "+string(resp.PromptFeedback.BlockReason))
	}
	if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason == genai.FinishReasonSafety {
		return "", blocked(g.id, "content blocked by safety filters")
	}
	return resp.Text(), nil
}

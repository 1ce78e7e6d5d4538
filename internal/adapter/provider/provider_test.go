package provider

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"studyforge/internal/config"
	"studyforge/internal/domain"
	"studyforge/internal/parser"
	"studyforge/internal/preamble"
	"studyforge/internal/validation"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/fake"
	"go.uber.org/zap"
)

const flashcards = "Q: What is the powerhouse of the cell?\nA: The mitochondria produce ATP."

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func statusOf(t *testing.T, err error) int {
	t.Helper()
	var pe *domain.ProviderError
	require.True(t, errors.As(err, &pe), "expected ProviderError, got %v", err)
	return pe.StatusCode
}

func TestGemini_Generate(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		want    string
		outcome domain.AttemptOutcome
	}{
		{
			name:    "success",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"role":"model","parts":[{"text":"Q: What is the powerhouse of the cell?\nA: The mitochondria produce ATP."}]},"finishReason":"STOP"}]}`,
			want:    flashcards,
			outcome: domain.OutcomeSuccess,
		},
		{
			name:    "rate limited",
			status:  http.StatusTooManyRequests,
			body:    `{"error":{"code":429,"message":"Resource has been exhausted","status":"RESOURCE_EXHAUSTED"}}`,
			outcome: domain.OutcomeRateLimited,
		},
		{
			name:    "bad request",
			status:  http.StatusBadRequest,
			body:    `{"error":{"code":400,"message":"API key not valid","status":"INVALID_ARGUMENT"}}`,
			outcome: domain.OutcomeFatalError,
		},
		{
			name:    "server error",
			status:  http.StatusServiceUnavailable,
			body:    `{"error":{"code":503,"message":"overloaded","status":"UNAVAILABLE"}}`,
			outcome: domain.OutcomeTransientError,
		},
		{
			name:    "safety block",
			status:  http.StatusOK,
			body:    `{"candidates":[{"content":{"role":"model","parts":[]},"finishReason":"SAFETY"}]}`,
			outcome: domain.OutcomeFatalError,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := serve(t, tt.status, tt.body)
			g, err := NewGemini(context.Background(), config.ProviderConfig{ID: "gemini", APIKey: "test-key", BaseURL: srv.URL})
			require.NoError(t, err)

			got, err := g.Generate(context.Background(), "prompt", 256)

			assert.Equal(t, tt.outcome, domain.ClassifyError(err))
			if tt.outcome == domain.OutcomeSuccess {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
				return
			}
			require.Error(t, err)
			if tt.status != http.StatusOK {
				assert.Equal(t, tt.status, statusOf(t, err))
			}
		})
	}
}

func TestOpenAI_Generate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"id":"c1","object":"chat.completion","model":"gpt-4o-mini","choices":[{"index":0,"message":{"role":"assistant","content":"Q: What is the powerhouse of the cell?\nA: The mitochondria produce ATP."},"finish_reason":"stop"}]}`)
		o, err := NewOpenAI(config.ProviderConfig{ID: "openai", APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
		require.NoError(t, err)

		got, err := o.Generate(context.Background(), "prompt", 256)

		require.NoError(t, err)
		assert.Equal(t, flashcards, got)
	})

	t.Run("rate limited", func(t *testing.T) {
		srv := serve(t, http.StatusTooManyRequests, `{"error":{"message":"Rate limit reached","type":"requests","code":"rate_limit_exceeded"}}`)
		o, err := NewOpenAI(config.ProviderConfig{ID: "openai", APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
		require.NoError(t, err)

		_, err = o.Generate(context.Background(), "prompt", 256)

		assert.Equal(t, http.StatusTooManyRequests, statusOf(t, err))
		assert.Equal(t, domain.OutcomeRateLimited, domain.ClassifyError(err))
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := serve(t, http.StatusUnauthorized, `{"error":{"message":"Incorrect API key","type":"invalid_request_error","code":"invalid_api_key"}}`)
		o, err := NewOpenAI(config.ProviderConfig{ID: "openai", APIKey: "sk-test", BaseURL: srv.URL + "/v1"})
		require.NoError(t, err)

		_, err = o.Generate(context.Background(), "prompt", 256)

		assert.Equal(t, domain.OutcomeFatalError, domain.ClassifyError(err))
	})

	t.Run("requires key", func(t *testing.T) {
		_, err := NewOpenAI(config.ProviderConfig{ID: "openai"})
		assert.Error(t, err)
	})
}

func TestAnthropic_Generate(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		srv := serve(t, http.StatusOK, `{"id":"msg_1","type":"message","role":"assistant","model":"claude-3-5-haiku-latest","content":[{"type":"text","text":"Q: What is the powerhouse of the cell?\nA: The mitochondria produce ATP."}],"stop_reason":"end_turn","usage":{"input_tokens":10,"output_tokens":20}}`)
		a, err := NewAnthropic(config.ProviderConfig{ID: "anthropic", APIKey: "test-key", BaseURL: srv.URL})
		require.NoError(t, err)

		got, err := a.Generate(context.Background(), "prompt", 0)

		require.NoError(t, err)
		assert.Equal(t, flashcards, got)
	})

	t.Run("server error is not retried by the sdk", func(t *testing.T) {
		calls := 0
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"type":"error","error":{"type":"api_error","message":"internal"}}`))
		}))
		t.Cleanup(srv.Close)
		a, err := NewAnthropic(config.ProviderConfig{ID: "anthropic", APIKey: "test-key", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = a.Generate(context.Background(), "prompt", 128)

		assert.Equal(t, 1, calls)
		assert.Equal(t, http.StatusInternalServerError, statusOf(t, err))
		assert.Equal(t, domain.OutcomeTransientError, domain.ClassifyError(err))
	})

	t.Run("unauthorized", func(t *testing.T) {
		srv := serve(t, http.StatusUnauthorized, `{"type":"error","error":{"type":"authentication_error","message":"invalid x-api-key"}}`)
		a, err := NewAnthropic(config.ProviderConfig{ID: "anthropic", APIKey: "test-key", BaseURL: srv.URL})
		require.NoError(t, err)

		_, err = a.Generate(context.Background(), "prompt", 128)

		assert.Equal(t, domain.OutcomeFatalError, domain.ClassifyError(err))
	})
}

type failingModel struct {
	err error
}

func (m failingModel) GenerateContent(context.Context, []llms.MessageContent, ...llms.CallOption) (*llms.ContentResponse, error) {
	return nil, m.err
}

func (m failingModel) Call(context.Context, string, ...llms.CallOption) (string, error) {
	return "", m.err
}

func TestLangchain_Generate(t *testing.T) {
	l := NewLangchain("openrouter", fake.NewFakeLLM([]string{flashcards}))
	got, err := l.Generate(context.Background(), "prompt", 64)
	require.NoError(t, err)
	assert.Equal(t, flashcards, got)

	tests := []struct {
		msg     string
		outcome domain.AttemptOutcome
	}{
		{"API returned unexpected status code: 429: rate limited", domain.OutcomeRateLimited},
		{"API returned unexpected status code: 401", domain.OutcomeFatalError},
		{"API returned unexpected status code: 502", domain.OutcomeTransientError},
		{"dial tcp: connection refused", domain.OutcomeTransientError},
	}
	for _, tt := range tests {
		t.Run(tt.msg, func(t *testing.T) {
			l := NewLangchain("openrouter", failingModel{err: errors.New(tt.msg)})
			_, err := l.Generate(context.Background(), "prompt", 64)
			assert.Equal(t, tt.outcome, domain.ClassifyError(err))
		})
	}

	t.Run("context errors pass through", func(t *testing.T) {
		l := NewLangchain("ollama", failingModel{err: context.DeadlineExceeded})
		_, err := l.Generate(context.Background(), "prompt", 64)
		assert.ErrorIs(t, err, context.DeadlineExceeded)
		var pe *domain.ProviderError
		assert.False(t, errors.As(err, &pe))
	})
}

func TestLorem_ProducesValidItems(t *testing.T) {
	v := validation.NewItemValidator(nil, nil)
	tests := []struct {
		prompt string
		kind   domain.ItemKind
	}{
		{"Create 4 beginner level flashcards.\nWrite them about the topic below.", domain.KindFlashcard},
		{"Write 3 multiple choice questions with options A) to D)", domain.KindQuiz},
		{"Create 2 advanced level practice exercises.", domain.KindExercise},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			raw, err := NewLorem("lorem", 0).Generate(context.Background(), tt.prompt, 0)
			require.NoError(t, err)

			candidates := parser.Parse(preamble.Strip(raw), tt.kind)
			_, accepted := v.ValidateAll(candidates, validation.NewAcceptedSet(), 1)

			assert.NotEmpty(t, accepted)
			assert.LessOrEqual(t, len(accepted), len(candidates))
		})
	}
}

func TestLorem_RespectsCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewLorem("lorem", time.Minute).Generate(ctx, "Create 1 flashcard", 0)

	assert.ErrorIs(t, err, context.Canceled)
}

func TestBuild(t *testing.T) {
	cfgs := []config.ProviderConfig{
		{ID: "gemini", Type: config.ProviderGemini},
		{ID: "openai", Type: config.ProviderOpenAI, APIKey: "sk-test", Priority: 2, Timeout: 5 * time.Second, MaxRetries: 3},
		{ID: "offline", Type: config.ProviderLorem},
	}

	providers, err := Build(context.Background(), cfgs, zap.NewNop())

	require.NoError(t, err)
	require.Len(t, providers, 2)
	assert.Equal(t, "openai", providers[0].Descriptor.ID)
	assert.Equal(t, 3, providers[0].Descriptor.MaxRetries)
	assert.True(t, providers[0].Descriptor.ConcurrencySafe)
	assert.False(t, providers[0].Descriptor.Local)

	offline := providers[1].Descriptor
	assert.True(t, offline.Local)
	assert.False(t, offline.ConcurrencySafe)
	assert.Equal(t, defaultTimeout, offline.Timeout)
	assert.Equal(t, defaultMaxRetries, offline.MaxRetries)
}

func TestBuild_UnknownType(t *testing.T) {
	_, err := Build(context.Background(), []config.ProviderConfig{{ID: "x", Type: "bard"}}, nil)
	assert.Error(t, err)
}

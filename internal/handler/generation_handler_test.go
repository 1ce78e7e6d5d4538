package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"studyforge/internal/domain"
	"studyforge/internal/dto"
	"studyforge/internal/handler"
	"studyforge/internal/middleware"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- Manual Mocks ---

type MockGenerationService struct {
	GenerateFunc  func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error)
	GetRunFunc    func(ctx context.Context, id string) (*domain.GenerationRun, error)
	ListRunsFunc  func(ctx context.Context, limit int) ([]*domain.GenerationRun, error)
	ProvidersFunc func() []domain.ProviderDescriptor
}

func (m *MockGenerationService) Generate(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
	if m.GenerateFunc != nil {
		return m.GenerateFunc(ctx, req)
	}
	panic("MockGenerationService.GenerateFunc not implemented")
}

func (m *MockGenerationService) GetRun(ctx context.Context, id string) (*domain.GenerationRun, error) {
	if m.GetRunFunc != nil {
		return m.GetRunFunc(ctx, id)
	}
	panic("MockGenerationService.GetRunFunc not implemented")
}

func (m *MockGenerationService) ListRuns(ctx context.Context, limit int) ([]*domain.GenerationRun, error) {
	if m.ListRunsFunc != nil {
		return m.ListRunsFunc(ctx, limit)
	}
	panic("MockGenerationService.ListRunsFunc not implemented")
}

func (m *MockGenerationService) Providers() []domain.ProviderDescriptor {
	if m.ProvidersFunc != nil {
		return m.ProvidersFunc()
	}
	return nil
}

type stubCache struct{ pingErr error }

func (stubCache) Get(context.Context, string) (string, error) { return "", domain.ErrCacheMiss }
func (stubCache) Set(context.Context, string, string, time.Duration) error { return nil }
func (stubCache) Delete(context.Context, string) error { return nil }
func (s stubCache) Ping(context.Context) error { return s.pingErr }

func setupApp(svc *MockGenerationService, cache domain.Cache) *fiber.App {
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	h := handler.NewGenerationHandler(svc, handler.GenerationHandlerConfig{Cache: cache})
	h.RegisterRoutes(app.Group("/api"), middleware.Protected(""))
	return app
}

func fullOutcome(req domain.GenerationRequest) *domain.GenerationOutcome {
	return &domain.GenerationOutcome{
		RequestID: "01J9Z3K4M5N6P7Q8R9S0T1V2W3",
		Status:    domain.StatusFull,
		Requested: req.Count,
		Delivered: 1,
		Items: []domain.StudyItem{
			{Kind: req.Kind, Question: "What is ATP?", Answer: "The cell's energy currency.", Difficulty: req.Difficulty},
		},
		Attempts: []domain.AttemptRecord{
			{ProviderID: "gemini", Round: 1, Attempt: 1, Outcome: domain.OutcomeSuccess, Elapsed: 250 * time.Millisecond},
		},
	}
}

func postJSON(t *testing.T, app *fiber.App, path string, body interface{}) (*http.Response, map[string]interface{}) {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)
	req := httptest.NewRequest(fiber.MethodPost, path, bytes.NewReader(raw))
	req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	var decoded map[string]interface{}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&decoded))
	return resp, decoded
}

func TestGenerationHandler_Generate(t *testing.T) {
	var got domain.GenerationRequest
	svc := &MockGenerationService{
		GenerateFunc: func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
			got = req
			return fullOutcome(req), nil
		},
	}
	app := setupApp(svc, nil)

	resp, body := postJSON(t, app, "/api/generate", dto.GenerateRequest{
		SourceText: "Mitochondria produce ATP.",
		Count:      1,
		Kind:       "Flashcard",
		Difficulty: "expert",
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.OriginDocument, got.Origin)
	assert.Equal(t, domain.KindFlashcard, got.Kind)
	assert.Equal(t, domain.DifficultyBeginner, got.Difficulty)
	assert.Equal(t, "full", body["status"])
	assert.Equal(t, "Successfully generated 1 items", body["message"])
	attempts := body["attempts"].([]interface{})
	assert.Equal(t, float64(250), attempts[0].(map[string]interface{})["elapsed_ms"])
}

func TestGenerationHandler_GenerateErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"validation", domain.NewValidationError(domain.ValidationErrors{domain.NewOutOfRangeError("count", 50, 1, 20)}), fiber.StatusBadRequest, "VALIDATION_ERROR"},
		{"fail closed", domain.NewFailClosedError("0 of 2 candidates passed validation"), fiber.StatusUnprocessableEntity, "FAIL_CLOSED"},
		{"exhausted", domain.NewProviderExhaustedError("all providers failed"), fiber.StatusServiceUnavailable, "PROVIDER_EXHAUSTED"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc := &MockGenerationService{
				GenerateFunc: func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
					return &domain.GenerationOutcome{RequestID: "r", Status: domain.StatusProviderExhausted}, tt.err
				},
			}
			resp, body := postJSON(t, setupApp(svc, nil), "/api/generate", dto.GenerateRequest{SourceText: "x", Count: 50})

			assert.Equal(t, tt.status, resp.StatusCode)
			assert.Equal(t, tt.code, body["code"])
		})
	}
}

func TestGenerationHandler_GenerateFromTopic(t *testing.T) {
	var got domain.GenerationRequest
	svc := &MockGenerationService{
		GenerateFunc: func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
			got = req
			return fullOutcome(req), nil
		},
	}
	app := setupApp(svc, nil)

	resp, _ := postJSON(t, app, "/api/topics/generate", dto.TopicGenerateRequest{
		Topic:       "Volcanoes",
		Description: "How eruptions happen",
		Difficulty:  "advanced",
	})

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, domain.OriginTopicSearch, got.Origin)
	assert.Equal(t, handler.DefaultCount, got.Count)
	assert.Equal(t, domain.DifficultyAdvanced, got.Difficulty)
	assert.Equal(t, "Volcanoes\n\nHow eruptions happen", got.SourceText)

	t.Run("short topic", func(t *testing.T) {
		resp, body := postJSON(t, app, "/api/topics/generate", dto.TopicGenerateRequest{Topic: "AI"})
		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
		assert.Equal(t, "VALIDATION_ERROR", body["code"])
	})
}

func multipartRequest(t *testing.T, filename string, content []byte, fields map[string]string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		require.NoError(t, w.WriteField(k, v))
	}
	if filename != "" {
		fw, err := w.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = fw.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())
	req := httptest.NewRequest(fiber.MethodPost, "/api/documents/generate", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestGenerationHandler_GenerateFromDocument(t *testing.T) {
	var got domain.GenerationRequest
	svc := &MockGenerationService{
		GenerateFunc: func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
			got = req
			return fullOutcome(req), nil
		},
	}
	app := setupApp(svc, nil)

	t.Run("text file", func(t *testing.T) {
		req := multipartRequest(t, "notes.txt", []byte("Cells   divide by mitosis.\r\n"), map[string]string{"count": "3", "kind": "quiz"})
		resp, err := app.Test(req, -1)
		require.NoError(t, err)

		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		assert.Equal(t, "Cells divide by mitosis.", got.SourceText)
		assert.Equal(t, 3, got.Count)
		assert.Equal(t, domain.KindQuiz, got.Kind)
		assert.Equal(t, domain.OriginDocument, got.Origin)
	})

	cases := []struct {
		name     string
		filename string
		content  []byte
		fields   map[string]string
		status   int
	}{
		{"missing file", "", nil, nil, fiber.StatusBadRequest},
		{"unsupported type", "photo.png", []byte("x"), nil, fiber.StatusUnsupportedMediaType},
		{"bad count", "notes.txt", []byte("text"), map[string]string{"count": "many"}, fiber.StatusBadRequest},
		{"empty document", "blank.txt", []byte("   \n "), nil, fiber.StatusBadRequest},
		{"corrupt pdf", "broken.pdf", []byte("garbage"), nil, fiber.StatusBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, err := app.Test(multipartRequest(t, tc.filename, tc.content, tc.fields), -1)
			require.NoError(t, err)
			assert.Equal(t, tc.status, resp.StatusCode)
		})
	}
}

func setRequest(t *testing.T, kinds ...string) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, k := range kinds {
		require.NoError(t, w.WriteField("kinds", k))
	}
	require.NoError(t, w.WriteField("count", "2"))
	fw, err := w.CreateFormFile("file", "cells.txt")
	require.NoError(t, err)
	_, err = fw.Write([]byte("Cells divide by mitosis. Mitochondria produce ATP."))
	require.NoError(t, err)
	require.NoError(t, w.Close())
	req := httptest.NewRequest(fiber.MethodPost, "/api/documents/generate-set", &buf)
	req.Header.Set(fiber.HeaderContentType, w.FormDataContentType())
	return req
}

func TestGenerationHandler_GenerateSetFromDocument(t *testing.T) {
	var (
		mu  sync.Mutex
		got []domain.GenerationRequest
	)
	svc := &MockGenerationService{
		GenerateFunc: func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
			mu.Lock()
			got = append(got, req)
			mu.Unlock()
			if req.Kind == domain.KindExercise {
				o := &domain.GenerationOutcome{RequestID: "ex", Status: domain.StatusEmptyFailClosed, Requested: req.Count, Items: []domain.StudyItem{}}
				return o, domain.NewFailClosedError("0 of 3 candidates passed validation")
			}
			return fullOutcome(req), nil
		},
	}
	app := setupApp(svc, nil)

	resp, err := app.Test(setRequest(t, "flashcard,quiz", "exercise", "essay", "quiz"), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	var body dto.GenerationSetResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "partial", body.Status)
	assert.Equal(t, 2, body.Delivered)
	require.Len(t, body.Results, 3)
	assert.Equal(t, "flashcard", body.Results[0].Kind)
	assert.Equal(t, "quiz", body.Results[1].Kind)
	assert.Equal(t, "full", body.Results[1].Status)
	assert.Equal(t, "exercise", body.Results[2].Kind)
	assert.Equal(t, "empty-fail-closed", body.Results[2].Status)
	assert.NotEmpty(t, body.Results[2].Error)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 3)
	for _, r := range got {
		assert.Equal(t, domain.OriginDocument, r.Origin)
		assert.Equal(t, 2, r.Count)
		assert.Equal(t, "Cells divide by mitosis. Mitochondria produce ATP.", r.SourceText)
	}
}

func TestGenerationHandler_GenerateSetFromDocument_NothingDelivered(t *testing.T) {
	svc := &MockGenerationService{
		GenerateFunc: func(ctx context.Context, req domain.GenerationRequest) (*domain.GenerationOutcome, error) {
			o := &domain.GenerationOutcome{RequestID: "r", Status: domain.StatusProviderExhausted, Items: []domain.StudyItem{}}
			return o, domain.NewProviderExhaustedError("all providers failed")
		},
	}
	app := setupApp(svc, nil)

	resp, err := app.Test(setRequest(t), -1)
	require.NoError(t, err)

	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}

func TestGenerationHandler_SuggestedTopics(t *testing.T) {
	app := setupApp(&MockGenerationService{}, nil)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/topics/suggested", nil))
	require.NoError(t, err)

	var topics []string
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&topics))
	assert.Contains(t, topics, "Biology")
	assert.Len(t, topics, len(domain.SuggestedTopics()))
}

func TestGenerationHandler_Runs(t *testing.T) {
	id := "01J9Z3K4M5N6P7Q8R9S0T1V2W3"
	var gotLimit int
	svc := &MockGenerationService{
		ListRunsFunc: func(ctx context.Context, limit int) ([]*domain.GenerationRun, error) {
			gotLimit = limit
			return []*domain.GenerationRun{{ID: id, Status: domain.StatusFull}}, nil
		},
		GetRunFunc: func(ctx context.Context, runID string) (*domain.GenerationRun, error) {
			if runID != id {
				return nil, domain.NewNotFoundError("generation run not found")
			}
			return &domain.GenerationRun{ID: id, Status: domain.StatusPartial, Attempts: []domain.AttemptRecord{{ProviderID: "ollama"}}}, nil
		},
	}
	app := setupApp(svc, nil)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/runs?limit=5", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 5, gotLimit)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/runs/"+id, nil))
	require.NoError(t, err)
	var run dto.RunResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	assert.Equal(t, "partial", run.Status)
	assert.Len(t, run.Attempts, 1)

	resp, err = app.Test(httptest.NewRequest(fiber.MethodGet, "/api/runs/01J9Z3K4M5N6P7Q8R9S0T1V2W4", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestGenerationHandler_Health(t *testing.T) {
	svc := &MockGenerationService{
		ProvidersFunc: func() []domain.ProviderDescriptor {
			return []domain.ProviderDescriptor{{ID: "gemini", Priority: 1}, {ID: "ollama", Priority: 10, Local: true}}
		},
	}

	tests := []struct {
		name   string
		cache  domain.Cache
		status string
		cached string
	}{
		{"no cache", nil, "ok", "disabled"},
		{"cache up", stubCache{}, "ok", "ok"},
		{"cache down", stubCache{pingErr: errors.New("connection refused")}, "degraded", "unavailable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := setupApp(svc, tt.cache).Test(httptest.NewRequest(fiber.MethodGet, "/api/health", nil))
			require.NoError(t, err)

			var health dto.HealthResponse
			require.NoError(t, json.NewDecoder(resp.Body).Decode(&health))
			assert.Equal(t, tt.status, health.Status)
			assert.Equal(t, tt.cached, health.Cache)
			assert.Len(t, health.Providers, 2)
		})
	}
}

func TestGenerationHandler_RequiresTokenWhenConfigured(t *testing.T) {
	svc := &MockGenerationService{}
	app := fiber.New(fiber.Config{ErrorHandler: middleware.ErrorHandler()})
	handler.NewGenerationHandler(svc, handler.GenerationHandlerConfig{}).
		RegisterRoutes(app.Group("/api"), middleware.Protected("secret"))

	resp, _ := postJSON(t, app, "/api/generate", dto.GenerateRequest{SourceText: "x"})
	assert.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)

	resp, err := app.Test(httptest.NewRequest(fiber.MethodGet, "/api/topics/suggested", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}

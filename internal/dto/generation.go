package dto

import (
	"fmt"
	"time"

	"studyforge/internal/domain"
)

// GenerateRequest is the body of POST /api/generate.
type GenerateRequest struct {
	SourceText string `json:"source_text"`
	Count      int    `json:"count"`
	Kind       string `json:"kind"`
	Difficulty string `json:"difficulty"`
	Origin     string `json:"origin"`
	Language   string `json:"language"`
}

// TopicGenerateRequest is the body of POST /api/topics/generate.
type TopicGenerateRequest struct {
	Topic       string `json:"topic"`
	Description string `json:"description"`
	Count       int    `json:"count"`
	Kind        string `json:"kind"`
	Difficulty  string `json:"difficulty"`
}

// StudyItemResponse is one delivered item.
type StudyItemResponse struct {
	Kind       string   `json:"kind"`
	Question   string   `json:"question"`
	Answer     string   `json:"answer"`
	Options    []string `json:"options,omitempty"`
	Difficulty string   `json:"difficulty"`
}

// AttemptResponse is one entry of the attempt log.
type AttemptResponse struct {
	ProviderID string `json:"provider_id"`
	Round      int    `json:"round"`
	Attempt    int    `json:"attempt"`
	Outcome    string `json:"outcome"`
	ElapsedMS  int64  `json:"elapsed_ms"`
	Error      string `json:"error,omitempty"`
}

// GenerationResponse is returned by every generation route.
type GenerationResponse struct {
	RequestID string              `json:"request_id"`
	Status    string              `json:"status"`
	Requested int                 `json:"requested"`
	Delivered int                 `json:"delivered"`
	Items     []StudyItemResponse `json:"items"`
	Attempts  []AttemptResponse   `json:"attempts"`
	Cached    bool                `json:"cached"`
	Message   string              `json:"message"`
}

// KindResultResponse is one item kind of a multi-kind document generation.
type KindResultResponse struct {
	Kind string `json:"kind"`
	GenerationResponse
	Error string `json:"error,omitempty"`
}

// GenerationSetResponse is returned by POST /api/documents/generate-set.
type GenerationSetResponse struct {
	Status    string               `json:"status"`
	Delivered int                  `json:"delivered"`
	Results   []KindResultResponse `json:"results"`
	Message   string               `json:"message"`
}

// RunResponse is a persisted generation run.
type RunResponse struct {
	ID            string            `json:"id"`
	Origin        string            `json:"origin"`
	Kind          string            `json:"kind"`
	Difficulty    string            `json:"difficulty"`
	Requested     int               `json:"requested"`
	Delivered     int               `json:"delivered"`
	Status        string            `json:"status"`
	Rounds        int               `json:"rounds"`
	FailureReason string            `json:"failure_reason,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	Attempts      []AttemptResponse `json:"attempts,omitempty"`
}

// RunListResponse wraps GET /api/runs.
type RunListResponse struct {
	Runs  []RunResponse `json:"runs"`
	Count int           `json:"count"`
}

// ProviderResponse describes one catalog entry.
type ProviderResponse struct {
	ID       string `json:"id"`
	Priority int    `json:"priority"`
	Local    bool   `json:"local"`
}

// HealthResponse is returned by GET /api/health.
type HealthResponse struct {
	Status    string             `json:"status"`
	Providers []ProviderResponse `json:"providers"`
	Cache     string             `json:"cache"`
}

// NewGenerationResponse converts an outcome for the wire.
func NewGenerationResponse(o *domain.GenerationOutcome) GenerationResponse {
	items := make([]StudyItemResponse, 0, len(o.Items))
	for _, it := range o.Items {
		items = append(items, StudyItemResponse{
			Kind:       string(it.Kind),
			Question:   it.Question,
			Answer:     it.Answer,
			Options:    it.Options,
			Difficulty: string(it.Difficulty),
		})
	}
	return GenerationResponse{
		RequestID: o.RequestID,
		Status:    string(o.Status),
		Requested: o.Requested,
		Delivered: o.Delivered,
		Items:     items,
		Attempts:  NewAttemptResponses(o.Attempts),
		Cached:    o.Cached,
		Message:   OutcomeMessage(o),
	}
}

// NewGenerationSetResponse converts per-kind results. The set is full only
// when every kind is.
func NewGenerationSetResponse(results []domain.KindResult) GenerationSetResponse {
	resp := GenerationSetResponse{
		Status:  string(domain.StatusFull),
		Results: make([]KindResultResponse, 0, len(results)),
	}
	var kinds []string
	for _, r := range results {
		kr := KindResultResponse{Kind: string(r.Kind)}
		if r.Outcome != nil {
			kr.GenerationResponse = NewGenerationResponse(r.Outcome)
		} else {
			kr.Items = []StudyItemResponse{}
			kr.Attempts = []AttemptResponse{}
		}
		if r.Err != nil {
			kr.Error = r.Err.Error()
		}
		if r.Outcome == nil || r.Outcome.Status != domain.StatusFull {
			resp.Status = string(domain.StatusPartial)
		}
		if r.Delivered() > 0 {
			kinds = append(kinds, string(r.Kind))
		}
		resp.Delivered += r.Delivered()
		resp.Results = append(resp.Results, kr)
	}
	resp.Message = fmt.Sprintf("Generated %d items across %d of %d kinds", resp.Delivered, len(kinds), len(results))
	return resp
}

// NewAttemptResponses converts an attempt log.
func NewAttemptResponses(records []domain.AttemptRecord) []AttemptResponse {
	out := make([]AttemptResponse, 0, len(records))
	for _, a := range records {
		out = append(out, AttemptResponse{
			ProviderID: a.ProviderID,
			Round:      a.Round,
			Attempt:    a.Attempt,
			Outcome:    string(a.Outcome),
			ElapsedMS:  a.Elapsed.Milliseconds(),
			Error:      a.Error,
		})
	}
	return out
}

// NewRunResponse converts a persisted run.
func NewRunResponse(r *domain.GenerationRun) RunResponse {
	resp := RunResponse{
		ID:            r.ID,
		Origin:        string(r.Origin),
		Kind:          string(r.Kind),
		Difficulty:    string(r.Difficulty),
		Requested:     r.Requested,
		Delivered:     r.Delivered,
		Status:        string(r.Status),
		Rounds:        r.Rounds,
		FailureReason: r.FailureReason,
		CreatedAt:     r.CreatedAt,
	}
	if len(r.Attempts) > 0 {
		resp.Attempts = NewAttemptResponses(r.Attempts)
	}
	return resp
}

// OutcomeMessage is the human-readable summary sent with an outcome.
func OutcomeMessage(o *domain.GenerationOutcome) string {
	switch o.Status {
	case domain.StatusFull:
		return fmt.Sprintf("Successfully generated %d items", o.Delivered)
	case domain.StatusPartial:
		return fmt.Sprintf("Generated %d of %d requested items", o.Delivered, o.Requested)
	case domain.StatusEmptyFailClosed:
		return "Content unavailable for this input, try again"
	default:
		return "Generation providers are unavailable, retry later"
	}
}

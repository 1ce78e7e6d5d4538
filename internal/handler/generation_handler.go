package handler

import (
	"context"
	"io"
	"strconv"
	"strings"
	"time"

	"studyforge/internal/adapter/extract"
	"studyforge/internal/domain"
	"studyforge/internal/dto"
	"studyforge/internal/logger"
	"studyforge/internal/middleware"
	"studyforge/internal/service"
	"studyforge/internal/validation"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

const (
	DefaultCount          = 10
	DefaultMaxUploadBytes = 10 << 20
	healthPingTimeout     = 2 * time.Second
)

// GenerationHandler serves the generation, run history and health routes.
type GenerationHandler struct {
	service        service.GenerationService
	requests       *validation.Validator
	cache          domain.Cache
	maxUploadBytes int64
	logger         *zap.Logger
}

// GenerationHandlerConfig carries the optional collaborators of a handler.
type GenerationHandlerConfig struct {
	Requests       *validation.Validator
	Cache          domain.Cache
	MaxUploadBytes int64
	Logger         *zap.Logger
}

// NewGenerationHandler creates a new GenerationHandler instance
func NewGenerationHandler(svc service.GenerationService, cfg GenerationHandlerConfig) *GenerationHandler {
	if cfg.Requests == nil {
		cfg.Requests = validation.NewValidator(validation.CountBounds{Min: 1, Max: 20})
	}
	if cfg.MaxUploadBytes <= 0 {
		cfg.MaxUploadBytes = DefaultMaxUploadBytes
	}
	return &GenerationHandler{
		service:        svc,
		requests:       cfg.Requests,
		cache:          cfg.Cache,
		maxUploadBytes: cfg.MaxUploadBytes,
		logger:         logger.OrDefault(cfg.Logger),
	}
}

// RegisterRoutes mounts every route under api. auth guards the generation
// routes.
func (h *GenerationHandler) RegisterRoutes(api fiber.Router, auth fiber.Handler) {
	vm := middleware.NewValidationMiddleware(h.requests)

	api.Get("/health", h.Health)
	api.Get("/topics/suggested", h.SuggestedTopics)

	api.Post("/generate", auth, h.Generate)
	api.Post("/topics/generate", auth, h.GenerateFromTopic)
	api.Post("/documents/generate", auth, h.GenerateFromDocument)
	api.Post("/documents/generate-set", auth, h.GenerateSetFromDocument)

	api.Get("/runs", auth, vm.ValidateRunListParams(), h.ListRuns)
	api.Get("/runs/:id", auth, vm.ValidateRunID(), h.GetRun)
}

// Generate handles POST /api/generate
func (h *GenerationHandler) Generate(c *fiber.Ctx) error {
	var req dto.GenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("Request body is not valid JSON")
	}

	origin := domain.Origin(strings.TrimSpace(req.Origin))
	if origin == "" {
		origin = domain.OriginDocument
	}
	return h.generate(c, domain.GenerationRequest{
		SourceText: req.SourceText,
		Count:      countOrDefault(req.Count),
		Kind:       kindOrDefault(req.Kind),
		Difficulty: domain.ParseDifficulty(req.Difficulty),
		Origin:     origin,
		Language:   strings.TrimSpace(req.Language),
	})
}

// GenerateFromTopic handles POST /api/topics/generate
func (h *GenerationHandler) GenerateFromTopic(c *fiber.Ctx) error {
	var req dto.TopicGenerateRequest
	if err := c.BodyParser(&req); err != nil {
		return domain.NewInvalidInputError("Request body is not valid JSON")
	}
	if errs := h.requests.ValidateTopic(req.Topic); len(errs) > 0 {
		return errs
	}

	return h.generate(c, domain.GenerationRequest{
		SourceText: topicSource(req.Topic, req.Description),
		Count:      countOrDefault(req.Count),
		Kind:       kindOrDefault(req.Kind),
		Difficulty: domain.ParseDifficulty(req.Difficulty),
		Origin:     domain.OriginTopicSearch,
	})
}

// GenerateFromDocument handles POST /api/documents/generate
func (h *GenerationHandler) GenerateFromDocument(c *fiber.Ctx) error {
	req, err := h.documentRequest(c)
	if err != nil {
		return err
	}
	req.Kind = kindOrDefault(c.FormValue("kind"))
	return h.generate(c, req)
}

// GenerateSetFromDocument handles POST /api/documents/generate-set. The form
// field kinds may repeat or hold a comma separated list; unknown kinds are
// ignored and an empty list means flashcards.
func (h *GenerationHandler) GenerateSetFromDocument(c *fiber.Ctx) error {
	req, err := h.documentRequest(c)
	if err != nil {
		return err
	}

	var raw []string
	if form, err := c.MultipartForm(); err == nil {
		raw = form.Value["kinds"]
	}
	kinds := service.ParseKinds(raw)

	results, err := service.GenerateKinds(c.UserContext(), h.service, req, kinds)
	if err != nil {
		return err
	}
	resp := dto.NewGenerationSetResponse(results)
	h.logger.Info("Document set generated",
		zap.Int("kinds", len(kinds)),
		zap.Int("delivered", resp.Delivered),
		zap.String("status", resp.Status))
	return c.JSON(resp)
}

// documentRequest reads the uploaded file and the shared form fields. Kind is
// left for the caller.
func (h *GenerationHandler) documentRequest(c *fiber.Ctx) (domain.GenerationRequest, error) {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return domain.GenerationRequest{}, domain.ValidationErrors{domain.NewMissingFieldError("file")}
	}
	if !extract.Supported(fileHeader.Filename) {
		return domain.GenerationRequest{}, domain.NewUnsupportedDocumentError(fileHeader.Filename)
	}
	if fileHeader.Size > h.maxUploadBytes {
		return domain.GenerationRequest{}, fiber.NewError(fiber.StatusRequestEntityTooLarge, "Uploaded document is too large")
	}

	count := DefaultCount
	if raw := c.FormValue("count"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil {
			return domain.GenerationRequest{}, domain.ValidationErrors{domain.NewInvalidFormatError("count", raw)}
		}
		count = parsed
	}

	f, err := fileHeader.Open()
	if err != nil {
		return domain.GenerationRequest{}, domain.NewInternalError("Failed to open uploaded document", err)
	}
	defer f.Close()
	data, err := io.ReadAll(io.LimitReader(f, h.maxUploadBytes))
	if err != nil {
		return domain.GenerationRequest{}, domain.NewInternalError("Failed to read uploaded document", err)
	}

	text, err := extract.Text(fileHeader.Filename, data)
	if err != nil {
		return domain.GenerationRequest{}, err
	}
	if text == "" {
		return domain.GenerationRequest{}, domain.NewInvalidInputError("No text could be extracted from the document").
			WithContext("filename", fileHeader.Filename)
	}

	return domain.GenerationRequest{
		SourceText: text,
		Count:      count,
		Difficulty: domain.ParseDifficulty(c.FormValue("difficulty")),
		Origin:     domain.OriginDocument,
		Language:   strings.TrimSpace(c.FormValue("language")),
	}, nil
}

func (h *GenerationHandler) generate(c *fiber.Ctx, req domain.GenerationRequest) error {
	outcome, err := h.service.Generate(c.UserContext(), req)
	if err != nil {
		return err
	}
	return c.JSON(dto.NewGenerationResponse(outcome))
}

// SuggestedTopics handles GET /api/topics/suggested
func (h *GenerationHandler) SuggestedTopics(c *fiber.Ctx) error {
	return c.JSON(domain.SuggestedTopics())
}

// ListRuns handles GET /api/runs
func (h *GenerationHandler) ListRuns(c *fiber.Ctx) error {
	limit, ok := c.Locals("validated_limit").(int)
	if !ok {
		limit = middleware.DefaultRunLimit
	}
	runs, err := h.service.ListRuns(c.UserContext(), limit)
	if err != nil {
		return err
	}
	resp := dto.RunListResponse{Runs: make([]dto.RunResponse, 0, len(runs))}
	for _, r := range runs {
		resp.Runs = append(resp.Runs, dto.NewRunResponse(r))
	}
	resp.Count = len(resp.Runs)
	return c.JSON(resp)
}

// GetRun handles GET /api/runs/:id
func (h *GenerationHandler) GetRun(c *fiber.Ctx) error {
	run, err := h.service.GetRun(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(dto.NewRunResponse(run))
}

// Health handles GET /api/health
func (h *GenerationHandler) Health(c *fiber.Ctx) error {
	resp := dto.HealthResponse{Status: "ok", Cache: "disabled"}
	for _, d := range h.service.Providers() {
		resp.Providers = append(resp.Providers, dto.ProviderResponse{ID: d.ID, Priority: d.Priority, Local: d.Local})
	}
	if len(resp.Providers) == 0 {
		resp.Status = "degraded"
	}

	if h.cache != nil {
		ctx, cancel := context.WithTimeout(c.UserContext(), healthPingTimeout)
		defer cancel()
		if err := h.cache.Ping(ctx); err != nil {
			h.logger.Warn("Cache health check failed", zap.Error(err))
			resp.Cache = "unavailable"
			resp.Status = "degraded"
		} else {
			resp.Cache = "ok"
		}
	}
	return c.JSON(resp)
}

func countOrDefault(n int) int {
	if n == 0 {
		return DefaultCount
	}
	return n
}

func kindOrDefault(kind string) domain.ItemKind {
	k := domain.ParseItemKind(kind)
	if k == "" {
		return domain.KindFlashcard
	}
	return k
}

// topicSource is the text handed to the pipeline for a topic search.
func topicSource(topic, description string) string {
	topic = strings.TrimSpace(topic)
	description = strings.TrimSpace(description)
	if description == "" {
		return topic
	}
	return topic + "\n\n" + description
}

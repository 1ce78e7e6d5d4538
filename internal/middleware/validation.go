package middleware

import (
	"strconv"

	"studyforge/internal/domain"
	"studyforge/internal/validation"

	"github.com/gofiber/fiber/v2"
)

const (
	DefaultRunLimit = 20
	MaxRunLimit     = 200
)

// ValidationMiddleware provides request validation middleware
type ValidationMiddleware struct {
	validator *validation.Validator
}

// NewValidationMiddleware creates a new validation middleware instance
func NewValidationMiddleware(v *validation.Validator) *ValidationMiddleware {
	if v == nil {
		v = validation.NewValidator(validation.CountBounds{})
	}
	return &ValidationMiddleware{validator: v}
}

// ValidateRunID checks the :id path parameter.
func (vm *ValidationMiddleware) ValidateRunID() fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if errs := vm.validator.ValidateRunID(id); len(errs) > 0 {
			return errs // handled by ErrorHandler
		}
		c.Locals("validated_run_id", id)
		return c.Next()
	}
}

// ValidateRunListParams parses the optional limit query parameter.
func (vm *ValidationMiddleware) ValidateRunListParams() fiber.Handler {
	return func(c *fiber.Ctx) error {
		limit := DefaultRunLimit
		if raw := c.Query("limit"); raw != "" {
			parsed, err := strconv.Atoi(raw)
			if err != nil {
				return domain.ValidationErrors{domain.NewInvalidFormatError("limit", raw)}
			}
			if parsed < 1 || parsed > MaxRunLimit {
				return domain.ValidationErrors{domain.NewOutOfRangeError("limit", parsed, 1, MaxRunLimit)}
			}
			limit = parsed
		}
		c.Locals("validated_limit", limit)
		return c.Next()
	}
}

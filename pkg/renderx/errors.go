// Package renderx validates screenshot and PDF request bodies and enforces
// the SSRF-safe URL policy (§4.5) ahead of anything reaching the capture
// engine.
package renderx

import (
	"net/http"

	"github.com/screencraft/api/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("RENDERX")

var (
	CodeInvalidURL       = ErrRegistry.Register("INVALID_URL", errx.TypeValidation, http.StatusBadRequest, "URL is not allowed")
	CodeValidationFailed = ErrRegistry.Register("VALIDATION_FAILED", errx.TypeValidation, http.StatusBadRequest, "request failed validation")
)

func ErrInvalidURL(reason string) *errx.Error {
	return ErrRegistry.New(CodeInvalidURL).WithDetail("reason", reason)
}

// ErrValidation wraps field-level validator failures into a single error
// whose Details carry the per-field messages, the shape cmd's error handler
// already knows how to render.
func ErrValidation(fields []FieldError) *errx.Error {
	e := ErrRegistry.New(CodeValidationFailed)
	details := make(map[string]interface{}, len(fields))
	for _, f := range fields {
		details[f.Field] = f.Message
	}
	return e.WithDetails(details)
}

// FieldError is a single struct-tag validation failure.
type FieldError struct {
	Field   string
	Message string
}

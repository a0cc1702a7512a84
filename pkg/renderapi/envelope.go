// Package renderapi wires the admission pipeline, the job repository, the
// queue bridge, the object store and the capture engine into the five
// create/get/list/download/delete endpoints each artifact kind exposes
// (§4.11), and carries the uniform response envelope every handler writes
// through (§4.12).
package renderapi

import (
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/logx"
	"github.com/gofiber/fiber/v2"
)

const apiVersion = "v1"

// requestIDHeader matches the header name cmd/servier.go's requestid
// middleware is configured to stamp (the teacher's same "X-Request-ID"
// convention, see cmd/servier.go).
const requestIDHeader = "X-Request-ID"

// Meta accompanies every response: request bookkeeping plus, for list
// endpoints, pagination (§4.12).
type Meta struct {
	Timestamp  string          `json:"timestamp"`
	RequestID  string          `json:"requestId"`
	Version    string          `json:"version"`
	Pagination *PaginationMeta `json:"pagination,omitempty"`
}

type PaginationMeta struct {
	Page       int  `json:"page"`
	Limit      int  `json:"limit"`
	Total      int  `json:"total"`
	TotalPages int  `json:"totalPages"`
	HasNext    bool `json:"hasNext"`
	HasPrev    bool `json:"hasPrev"`
}

// ErrorBody is the shape of Envelope.Error (§4.12).
type ErrorBody struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// Envelope is the uniform JSON shape every non-binary response takes
// (§4.12): `{success, data?, error?, meta}`.
type Envelope struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorBody  `json:"error,omitempty"`
	Meta    Meta        `json:"meta"`
}

func newMeta(c *fiber.Ctx, pagination *PaginationMeta) Meta {
	return Meta{
		Timestamp:  time.Now().UTC().Format(time.RFC3339),
		RequestID:  c.Get(requestIDHeader),
		Version:    apiVersion,
		Pagination: pagination,
	}
}

// Success writes `{success:true, data, meta}` with the given HTTP status.
func Success(c *fiber.Ctx, status int, data interface{}) error {
	return c.Status(status).JSON(Envelope{Success: true, Data: data, Meta: newMeta(c, nil)})
}

// SuccessPaginated writes `{success:true, data, meta:{pagination}}`.
func SuccessPaginated(c *fiber.Ctx, data interface{}, pagination PaginationMeta) error {
	return c.Status(fiber.StatusOK).JSON(Envelope{Success: true, Data: data, Meta: newMeta(c, &pagination)})
}

// ErrorHandler is the Fiber error handler installed on the production app
// (cmd/servier.go); it shapes any *errx.Error into the envelope's error field
// and falls back to a generic 500 for anything else, following the same
// request-context logging the teacher's globalErrorHandler does.
func ErrorHandler(c *fiber.Ctx, err error) error {
	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"method":     c.Method(),
		"ip":         c.IP(),
		"request_id": c.Get(requestIDHeader),
	}).Errorf("request error: %v", err)

	if e, ok := err.(*errx.Error); ok {
		return c.Status(e.HTTPStatus).JSON(Envelope{
			Success: false,
			Error:   &ErrorBody{Code: e.Code, Message: e.Message, Details: e.Details},
			Meta:    newMeta(c, nil),
		})
	}

	if fe, ok := err.(*fiber.Error); ok {
		return c.Status(fe.Code).JSON(Envelope{
			Success: false,
			Error:   &ErrorBody{Code: "FIBER_ERROR", Message: fe.Message},
			Meta:    newMeta(c, nil),
		})
	}

	return c.Status(fiber.StatusInternalServerError).JSON(Envelope{
		Success: false,
		Error:   &ErrorBody{Code: "INTERNAL_ERROR", Message: "an unexpected error occurred"},
		Meta:    newMeta(c, nil),
	})
}

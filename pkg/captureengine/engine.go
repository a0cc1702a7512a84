// Package captureengine is the boundary to the headless-browser farm:
// given a screenshot or PDF request, it yields rendered bytes plus
// metadata. The real farm is an external collaborator and out of scope
// (§6); this package only defines the contract and a noop stand-in used
// for wiring and tests.
package captureengine

import (
	"context"
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/renderx"
)

var ErrRegistry = errx.NewRegistry("CAPTUREENGINE")

var CodeRenderFailed = ErrRegistry.Register("PROCESSING_FAILED", errx.TypeBusiness, http.StatusInternalServerError, "Rendering failed")

// ErrRenderFailed is the one rendering-fault error this package produces
// (§7's "rendering fault" taxonomy family); reason is echoed verbatim to
// the caller's `error` field, never wrapped further.
func ErrRenderFailed(reason string) *errx.Error {
	return ErrRegistry.New(CodeRenderFailed).WithDetail("reason", reason)
}

// Result is what a capture operation yields: the rendered bytes, the
// content type to serve them with, and whatever dimensions apply to the
// artifact kind (pixel size for a screenshot, page count for a PDF).
type Result struct {
	Data        []byte
	ContentType string
	Width       int
	Height      int
	PageCount   int
	Duration    time.Duration
}

// Engine is the capture-engine contract. Implementations must respect
// ctx's deadline — synchronous rendering inherits the engine's own
// 60-second hard ceiling (§5), so a real implementation should bound its
// own work to whichever is shorter.
type Engine interface {
	Screenshot(ctx context.Context, req renderx.ScreenshotRequest) (Result, error)
	PDF(ctx context.Context, req renderx.PDFRequest) (Result, error)
}

// DefaultTimeout is the hard ceiling synchronous rendering inherits
// from the capture engine (§5).
const DefaultTimeout = 60 * time.Second

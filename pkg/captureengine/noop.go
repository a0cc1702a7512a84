package captureengine

import (
	"context"
	"fmt"

	"github.com/screencraft/api/pkg/renderx"
)

// Noop is an Engine that fabricates a tiny, deterministic placeholder
// artifact instead of driving a real browser. It exists so the request
// pipeline can be wired and tested end to end before a real headless farm
// is plugged in; it never claims to render the requested page.
type Noop struct{}

func NewNoop() Noop { return Noop{} }

func (Noop) Screenshot(ctx context.Context, req renderx.ScreenshotRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, ErrRenderFailed(err.Error())
	}
	format := req.Format
	if format == "" {
		format = "png"
	}
	width, height := 1280, 720
	if req.Viewport != nil {
		width, height = req.Viewport.Width, req.Viewport.Height
	}
	return Result{
		Data:        []byte(fmt.Sprintf("noop-screenshot:%s", req.URL)),
		ContentType: contentTypeForImageFormat(format),
		Width:       width,
		Height:      height,
	}, nil
}

func (Noop) PDF(ctx context.Context, req renderx.PDFRequest) (Result, error) {
	if err := ctx.Err(); err != nil {
		return Result{}, ErrRenderFailed(err.Error())
	}
	source := req.URL
	if req.SourceKind == "html" {
		source = "inline-html"
	}
	return Result{
		Data:        []byte(fmt.Sprintf("noop-pdf:%s", source)),
		ContentType: "application/pdf",
		PageCount:   1,
	}, nil
}

func contentTypeForImageFormat(format string) string {
	switch format {
	case "jpeg":
		return "image/jpeg"
	case "webp":
		return "image/webp"
	default:
		return "image/png"
	}
}

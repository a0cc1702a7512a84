// Package objectstore is the adapter in front of whatever S3-compatible
// bucket holds rendered artifacts (§4.8): key layout, content-type policy
// and the presigned-download contract live here, independent of whether
// the backing implementation is a real bucket or the local filesystem.
package objectstore

import (
	"context"
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("OBJECTSTORE")

var (
	CodeNotFound           = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Object not found")
	CodeContentTypeDenied  = ErrRegistry.Register("CONTENT_TYPE_DENIED", errx.TypeValidation, http.StatusBadRequest, "Content type is not allowed")
	CodeUploadFailed       = ErrRegistry.Register("UPLOAD_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to upload object")
	CodeDownloadFailed     = ErrRegistry.Register("DOWNLOAD_FAILED", errx.TypeExternal, http.StatusBadGateway, "Failed to download object")
)

func ErrNotFound(key string) *errx.Error {
	return ErrRegistry.New(CodeNotFound).WithDetail("key", key)
}

func ErrContentTypeDenied(contentType string) *errx.Error {
	return ErrRegistry.New(CodeContentTypeDenied).WithDetail("content_type", contentType)
}

func ErrUploadFailed(reason string) *errx.Error {
	return ErrRegistry.New(CodeUploadFailed).WithDetail("reason", reason)
}

func ErrDownloadFailed(reason string) *errx.Error {
	return ErrRegistry.New(CodeDownloadFailed).WithDetail("reason", reason)
}

// AllowedContentTypes is the upload allow-list (§4.8); anything else is
// rejected before a single byte reaches the bucket.
var AllowedContentTypes = map[string]bool{
	"image/png":       true,
	"image/jpeg":      true,
	"image/webp":      true,
	"application/pdf": true,
}

func IsContentTypeAllowed(contentType string) bool {
	return AllowedContentTypes[strings.ToLower(strings.TrimSpace(contentType))]
}

// Object is what Download returns: the bytes plus the bookkeeping needed to
// serve them (content type, size, caller-supplied metadata).
type Object struct {
	Key         string
	Data        []byte
	ContentType string
	Size        int64
	Metadata    map[string]string
}

// Store is the object store contract (§4.8). Implementations must treat
// Delete as idempotent and Download as returning ErrNotFound (not a bare
// I/O error) for a missing key.
type Store interface {
	// Initialize idempotently ensures the backing bucket/directory exists.
	Initialize(ctx context.Context) error

	Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error)
	Download(ctx context.Context, key string) (Object, error)
	Delete(ctx context.Context, key string) error
	Exists(ctx context.Context, key string) (bool, error)

	// SignedURL returns a presigned GET URL valid for ttl.
	SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error)
}

var unsafeNameChars = regexp.MustCompile(`[\s\\/:*?"<>|'` + "`" + `$&;#%]+`)

// sanitizeName strips whitespace and shell/filesystem metacharacters so a
// caller-supplied name can never escape its key prefix or inject a path
// segment, a shell token, or a URL-significant character.
func sanitizeName(name string) string {
	cleaned := unsafeNameChars.ReplaceAllString(name, "-")
	cleaned = strings.Trim(cleaned, "-.")
	if cleaned == "" {
		cleaned = "file"
	}
	return cleaned
}

// ScreenshotKey builds the storage key for a screenshot artifact
// (§4.8: `screenshots/{tenant}/{unix_ms}-{sanitized}`).
func ScreenshotKey(tenant kernel.TenantID, name string, now time.Time) string {
	return fmt.Sprintf("screenshots/%s/%d-%s", tenant.String(), now.UnixMilli(), sanitizeName(name))
}

// PDFKey builds the storage key for a PDF artifact
// (§4.8: `pdfs/{tenant}/{unix_ms}-{sanitized}`).
func PDFKey(tenant kernel.TenantID, name string, now time.Time) string {
	return fmt.Sprintf("pdfs/%s/%d-%s", tenant.String(), now.UnixMilli(), sanitizeName(name))
}

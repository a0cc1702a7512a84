package renderapi

import (
	"fmt"
	"strings"
	"time"

	"github.com/screencraft/api/pkg/jobs"
	"github.com/gofiber/fiber/v2"
)

// Record is the public, camelCased, lowercase-status shape of a Job
// (§4.11/§9: "coercions happen only at the HTTP boundary" — internally
// jobs.Status/jobs.Kind stay upper-cased Go constants).
type Record struct {
	ID          string     `json:"id"`
	Kind        string     `json:"kind"`
	Status      string     `json:"status"`
	SourceKind  string     `json:"sourceKind,omitempty"`
	URL         string     `json:"url,omitempty"`
	Format      string     `json:"format,omitempty"`
	StorageKey  string     `json:"storageKey,omitempty"`
	DownloadURL string     `json:"downloadUrl,omitempty"`
	FileSize    int64      `json:"fileSize,omitempty"`
	PageCount   int        `json:"pageCount,omitempty"`
	Error       string     `json:"error,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

func ToRecord(j *jobs.Job) Record {
	return Record{
		ID:          j.ID.String(),
		Kind:        strings.ToLower(string(j.Kind)),
		Status:      strings.ToLower(string(j.Status)),
		SourceKind:  strings.ToLower(string(j.SourceKind)),
		URL:         j.SourceURL,
		Format:      j.Format,
		StorageKey:  j.StorageKey,
		DownloadURL: j.DownloadURL,
		FileSize:    j.FileSize,
		PageCount:   j.PageCount,
		Error:       j.Error,
		CreatedAt:   j.CreatedAt,
		CompletedAt: j.CompletedAt,
	}
}

// downloadURL builds the absolute `{scheme}://{host}/v1/{kind}s/{id}/download`
// link a completed, stored job's record carries (§4.11).
func downloadURL(c *fiber.Ctx, kind jobs.Kind, id string) string {
	return BuildDownloadURL(c.Protocol()+"://"+c.Hostname(), kind, id)
}

// BuildDownloadURL is the base-URL-parameterized form of downloadURL,
// usable outside of a request (the background worker has no *fiber.Ctx to
// read a scheme/host from, so it supplies its own configured base URL).
func BuildDownloadURL(baseURL string, kind jobs.Kind, id string) string {
	return fmt.Sprintf("%s/v1/%ss/%s/download", strings.TrimSuffix(baseURL, "/"), routeSegment(kind), id)
}

func routeSegment(kind jobs.Kind) string {
	switch kind {
	case jobs.KindScreenshot:
		return "screenshot"
	case jobs.KindPDF:
		return "pdf"
	default:
		return strings.ToLower(string(kind))
	}
}

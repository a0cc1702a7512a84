package renderapi

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/screencraft/api/pkg/admission"
	"github.com/screencraft/api/pkg/billing/usage"
	"github.com/screencraft/api/pkg/captureengine"
	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/jobs"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/screencraft/api/pkg/logx"
	"github.com/screencraft/api/pkg/objectstore"
	"github.com/screencraft/api/pkg/renderqueue"
	"github.com/screencraft/api/pkg/renderx"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
)

var ErrRegistry = errx.NewRegistry("RENDERAPI")

var (
	CodeScreenshotNotFound = ErrRegistry.Register("SCREENSHOT_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Screenshot not found")
	CodePDFNotFound        = ErrRegistry.Register("PDF_NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "PDF not found")
	CodeInvalidPagination  = ErrRegistry.Register("INVALID_PAGINATION", errx.TypeValidation, http.StatusBadRequest, "Invalid pagination parameters")
)

func errNotFound(kind jobs.Kind) *errx.Error {
	if kind == jobs.KindPDF {
		return ErrRegistry.New(CodePDFNotFound)
	}
	return ErrRegistry.New(CodeScreenshotNotFound)
}

// Deps are the collaborators every create/get/list/download/delete handler
// needs (§4.11). They are the same dependencies cmd/container.go composes
// once at startup and shares across both artifact kinds.
type Deps struct {
	Jobs   jobs.Repository
	Queue  renderqueue.Bridge
	Store  objectstore.Store
	Engine captureengine.Engine
	Usage  *usage.Accountant
}

// Handlers implements the five endpoints for one artifact kind.
type Handlers struct {
	deps Deps
	kind jobs.Kind
}

func NewHandlers(deps Deps, kind jobs.Kind) *Handlers {
	return &Handlers{deps: deps, kind: kind}
}

// RegisterRoutes mounts the five endpoints under /v1/{kind}s, with the
// admission pipeline's auth/rate-limit/CSRF legs applied to the whole
// group and a per-route quota precheck on create (§4.4, §4.11).
func (h *Handlers) RegisterRoutes(router fiber.Router, pipeline *admission.Pipeline) {
	group := router.Group("/v1/"+routeSegment(h.kind)+"s", pipeline.Auth(), pipeline.TierRateLimit(), pipeline.CSRF())

	group.Post("/", pipeline.QuotaPrecheck(h.ResolveEventType), h.create)
	group.Get("/:id", h.get)
	group.Get("/", h.list)
	group.Get("/:id/download", h.download)
	group.Delete("/:id", h.delete)
}

// ResolveEventType inspects the decoded body to price the request before
// any rendering work happens (§4.4 step 4). It duplicates the minimal body
// parse the create handler repeats in full below; admission never keeps
// the parsed body, so each leg decodes independently.
func (h *Handlers) ResolveEventType(c *fiber.Ctx) (usage.EventType, error) {
	if h.kind == jobs.KindScreenshot {
		var req renderx.ScreenshotRequest
		if err := c.BodyParser(&req); err != nil {
			return "", renderx.ErrValidation([]renderx.FieldError{{Field: "", Message: "malformed request body"}})
		}
		if req.FullPage {
			return usage.EventScreenshotFullPage, nil
		}
		return usage.EventScreenshot, nil
	}

	var req renderx.PDFRequest
	if err := c.BodyParser(&req); err != nil {
		return "", renderx.ErrValidation([]renderx.FieldError{{Field: "", Message: "malformed request body"}})
	}
	if strings.EqualFold(req.SourceKind, "html") {
		return usage.EventPDFWithTemplate, nil
	}
	return usage.EventPDF, nil
}

func (h *Handlers) create(c *fiber.Ctx) error {
	ac := admission.AuthFromContext(c)
	if !ac.IsValid() {
		return admission.ErrAuthRequired()
	}

	if h.kind == jobs.KindScreenshot {
		var req renderx.ScreenshotRequest
		if err := c.BodyParser(&req); err != nil {
			return renderx.ErrValidation([]renderx.FieldError{{Field: "", Message: "malformed request body"}})
		}
		if err := renderx.ValidateScreenshotRequest(&req); err != nil {
			return err
		}
		return h.createScreenshot(c, ac, req)
	}

	var req renderx.PDFRequest
	if err := c.BodyParser(&req); err != nil {
		return renderx.ErrValidation([]renderx.FieldError{{Field: "", Message: "malformed request body"}})
	}
	if err := renderx.ValidatePDFRequest(&req); err != nil {
		return err
	}
	return h.createPDF(c, ac, req)
}

func (h *Handlers) createScreenshot(c *fiber.Ctx, ac *kernel.AuthContext, req renderx.ScreenshotRequest) error {
	eventType := usage.EventScreenshot
	if req.FullPage {
		eventType = usage.EventScreenshotFullPage
	}
	sourceKind := jobs.SourceURL
	format := req.Format
	if format == "" {
		format = "png"
	}

	switch {
	case req.Async:
		return h.createAsync(c, ac, sourceKind, req.URL, format, eventType, req)
	case req.NoStore:
		return h.createSyncNoStore(c, ac, eventType, req.URL, func(ctx context.Context) (captureengine.Result, error) {
			return h.deps.Engine.Screenshot(ctx, req)
		})
	default:
		return h.createSyncStored(c, ac, sourceKind, req.URL, format, eventType, func(ctx context.Context) (captureengine.Result, error) {
			return h.deps.Engine.Screenshot(ctx, req)
		})
	}
}

func (h *Handlers) createPDF(c *fiber.Ctx, ac *kernel.AuthContext, req renderx.PDFRequest) error {
	eventType := usage.EventPDF
	sourceKind := jobs.SourceURL
	sourceURL := req.URL
	if strings.EqualFold(req.SourceKind, "html") {
		eventType = usage.EventPDFWithTemplate
		sourceKind = jobs.SourceHTML
		sourceURL = ""
	}
	format := "pdf"

	switch {
	case req.Async:
		return h.createAsync(c, ac, sourceKind, sourceURL, format, eventType, req)
	case req.NoStore:
		return h.createSyncNoStore(c, ac, eventType, sourceURL, func(ctx context.Context) (captureengine.Result, error) {
			return h.deps.Engine.PDF(ctx, req)
		})
	default:
		return h.createSyncStored(c, ac, sourceKind, sourceURL, format, eventType, func(ctx context.Context) (captureengine.Result, error) {
			return h.deps.Engine.PDF(ctx, req)
		})
	}
}

// createAsync inserts a PENDING row and submits it to the queue; an
// enqueue failure flips the row to FAILED rather than leaving it stuck
// (§4.11).
func (h *Handlers) createAsync(c *fiber.Ctx, ac *kernel.AuthContext, sourceKind jobs.SourceKind, sourceURL, format string, eventType usage.EventType, options interface{}) error {
	now := time.Now().UTC()
	j := jobs.NewJob(kernel.NewJobID(uuid.NewString()), ac.TenantID, h.kind, sourceKind, sourceURL, format, now)

	if err := h.deps.Jobs.Create(c.Context(), j); err != nil {
		return err
	}

	payload, err := json.Marshal(options)
	if err != nil {
		return errx.Wrap(err, "failed to marshal job options", errx.TypeInternal)
	}

	submit := h.deps.Queue.AddScreenshotJob
	if h.kind == jobs.KindPDF {
		submit = h.deps.Queue.AddPDFJob
	}
	queuePayload := renderqueue.Payload{URL: sourceURL, Options: payload, JobID: j.ID, TenantID: ac.TenantID}
	if _, err := submit(c.Context(), queuePayload, renderqueue.DefaultPriority); err != nil {
		_ = j.MarkFailed("enqueue failed: "+err.Error(), time.Now().UTC())
		_ = h.deps.Jobs.Save(c.Context(), j)
		return err
	}

	if _, err := h.deps.Usage.Debit(c.Context(), ac.TenantID, eventType, map[string]any{"url_domain": j.URLDomain, "async": true}); err != nil {
		return err
	}

	return Success(c, fiber.StatusAccepted, ToRecord(&j))
}

type renderFunc func(ctx context.Context) (captureengine.Result, error)

// createSyncNoStore never inserts a row: it renders inline, debits credits,
// and streams bytes straight back (§4.11).
func (h *Handlers) createSyncNoStore(c *fiber.Ctx, ac *kernel.AuthContext, eventType usage.EventType, sourceURL string, render renderFunc) error {
	ctx, cancel := context.WithTimeout(c.Context(), captureengine.DefaultTimeout)
	defer cancel()

	result, err := render(ctx)
	if err != nil {
		return captureengine.ErrRenderFailed(err.Error())
	}

	if _, err := h.deps.Usage.Debit(c.Context(), ac.TenantID, eventType, map[string]any{"url_domain": jobs.NewAnalytics(sourceURL).URLDomain, "no_store": true}); err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, result.ContentType)
	c.Set(fiber.HeaderCacheControl, "no-store, no-cache, must-revalidate")
	c.Set("X-Render-Width", strconv.Itoa(result.Width))
	c.Set("X-Render-Height", strconv.Itoa(result.Height))
	c.Set("X-Render-Page-Count", strconv.Itoa(result.PageCount))
	return c.Status(fiber.StatusOK).Send(result.Data)
}

// createSyncStored inserts, transitions through PROCESSING, renders, uploads,
// marks COMPLETED, then debits — on any failure the row is marked FAILED and
// the handler returns 500 PROCESSING_FAILED (§4.11).
func (h *Handlers) createSyncStored(c *fiber.Ctx, ac *kernel.AuthContext, sourceKind jobs.SourceKind, sourceURL, format string, eventType usage.EventType, render renderFunc) error {
	now := time.Now().UTC()
	j := jobs.NewJob(kernel.NewJobID(uuid.NewString()), ac.TenantID, h.kind, sourceKind, sourceURL, format, now)

	if err := h.deps.Jobs.Create(c.Context(), j); err != nil {
		return err
	}
	if err := j.MarkProcessing(); err != nil {
		return err
	}
	if err := h.deps.Jobs.Save(c.Context(), j); err != nil {
		return err
	}

	fail := func(reason string) error {
		_ = j.MarkFailed(reason, time.Now().UTC())
		_ = h.deps.Jobs.Save(c.Context(), j)
		return captureengine.ErrRenderFailed(reason)
	}

	ctx, cancel := context.WithTimeout(c.Context(), captureengine.DefaultTimeout)
	defer cancel()

	result, err := render(ctx)
	if err != nil {
		return fail(err.Error())
	}

	var key string
	if h.kind == jobs.KindPDF {
		key = objectstore.PDFKey(ac.TenantID, j.ID.String()+".pdf", now)
	} else {
		key = objectstore.ScreenshotKey(ac.TenantID, j.ID.String()+"."+format, now)
	}
	if _, err := h.deps.Store.Upload(c.Context(), key, result.Data, result.ContentType, map[string]string{
		"job_id":     j.ID.String(),
		"url_domain": j.URLDomain,
	}); err != nil {
		return fail(err.Error())
	}

	if err := j.MarkCompleted(downloadURL(c, h.kind, j.ID.String()), key, int64(len(result.Data)), result.PageCount, time.Now().UTC()); err != nil {
		return fail(err.Error())
	}
	if err := h.deps.Jobs.Save(c.Context(), j); err != nil {
		return err
	}

	if _, err := h.deps.Usage.Debit(c.Context(), ac.TenantID, eventType, map[string]any{"url_domain": j.URLDomain}); err != nil {
		return err
	}

	return Success(c, fiber.StatusCreated, ToRecord(&j))
}

func (h *Handlers) get(c *fiber.Ctx) error {
	ac := admission.AuthFromContext(c)
	if !ac.IsValid() {
		return admission.ErrAuthRequired()
	}
	j, err := h.deps.Jobs.FindByIDAndTenant(c.Context(), kernel.NewJobID(c.Params("id")), ac.TenantID)
	if err != nil {
		return errNotFound(h.kind)
	}
	return Success(c, fiber.StatusOK, ToRecord(j))
}

func (h *Handlers) list(c *fiber.Ctx) error {
	ac := admission.AuthFromContext(c)
	if !ac.IsValid() {
		return admission.ErrAuthRequired()
	}

	page := c.QueryInt("page", 1)
	limit := c.QueryInt("limit", 20)
	if page < 1 || limit < 1 || limit > 100 {
		return ErrRegistry.New(CodeInvalidPagination)
	}

	filter := jobs.ListFilter{
		Status:    jobs.Status(strings.ToUpper(c.Query("status"))),
		SortBy:    c.Query("sortBy", "created_at"),
		SortOrder: c.Query("sortOrder", "desc"),
	}

	result, err := h.deps.Jobs.ListByTenant(c.Context(), ac.TenantID, filter, kernel.PaginationOptions{Page: page, PageSize: limit})
	if err != nil {
		return err
	}

	records := make([]Record, 0, len(result.Items))
	for _, j := range result.Items {
		records = append(records, ToRecord(j))
	}

	return SuccessPaginated(c, records, PaginationMeta{
		Page:       result.Page.Number,
		Limit:      result.Page.Size,
		Total:      result.Page.Total,
		TotalPages: result.Page.Pages,
		HasNext:    result.HasNext(),
		HasPrev:    result.HasPrevious(),
	})
}

func (h *Handlers) download(c *fiber.Ctx) error {
	ac := admission.AuthFromContext(c)
	if !ac.IsValid() {
		return admission.ErrAuthRequired()
	}
	j, err := h.deps.Jobs.FindByIDAndTenant(c.Context(), kernel.NewJobID(c.Params("id")), ac.TenantID)
	if err != nil {
		return errNotFound(h.kind)
	}
	if !j.IsDownloadable() {
		return jobs.ErrNotDownloadable(j.Status)
	}

	obj, err := h.deps.Store.Download(c.Context(), j.StorageKey)
	if err != nil {
		return err
	}

	c.Set(fiber.HeaderContentType, obj.ContentType)
	c.Set(fiber.HeaderContentLength, strconv.FormatInt(obj.Size, 10))
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="`+j.ID.String()+"."+strings.ToLower(j.Format)+`"`)
	return c.Status(fiber.StatusOK).Send(obj.Data)
}

func (h *Handlers) delete(c *fiber.Ctx) error {
	ac := admission.AuthFromContext(c)
	if !ac.IsValid() {
		return admission.ErrAuthRequired()
	}
	id := kernel.NewJobID(c.Params("id"))
	j, err := h.deps.Jobs.FindByIDAndTenant(c.Context(), id, ac.TenantID)
	if err != nil {
		return errNotFound(h.kind)
	}

	if j.StorageKey != "" {
		if err := h.deps.Store.Delete(c.Context(), j.StorageKey); err != nil {
			logBestEffortDeleteFailure(c, j.StorageKey, err)
		}
	}

	deleted, err := h.deps.Jobs.DeleteByIDAndTenant(c.Context(), id, ac.TenantID)
	if err != nil {
		return err
	}
	if !deleted {
		return errNotFound(h.kind)
	}
	return c.SendStatus(fiber.StatusNoContent)
}

// logBestEffortDeleteFailure records a failed blob delete without failing
// the request: the row is the source of truth and a retention sweep or
// manual cleanup can reclaim an orphaned object later (§4.11: "best-effort
// deletes the blob, swallow failure but log").
func logBestEffortDeleteFailure(c *fiber.Ctx, key string, err error) {
	logx.WithFields(logx.Fields{
		"path":       c.Path(),
		"request_id": c.Get(requestIDHeader),
		"key":        key,
	}).Warnf("failed to delete object on job delete: %v", err)
}

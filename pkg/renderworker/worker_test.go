package renderworker_test

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/screencraft/api/pkg/captureengine"
	"github.com/screencraft/api/pkg/jobs"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/screencraft/api/pkg/objectstore"
	"github.com/screencraft/api/pkg/renderqueue"
	"github.com/screencraft/api/pkg/renderworker"
	"github.com/screencraft/api/pkg/renderx"
)

// fakeQueue is a single-entry renderqueue.Bridge: Pickup hands back the one
// queued payload once, then reports empty, mirroring a real queue drained
// down to nothing.
type fakeQueue struct {
	mu       sync.Mutex
	pending  map[renderqueue.Name][]queuedEntry
	failed   map[string]string
	complete map[string]json.RawMessage
}

type queuedEntry struct {
	id      string
	payload renderqueue.Payload
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{
		pending:  map[renderqueue.Name][]queuedEntry{},
		failed:   map[string]string{},
		complete: map[string]json.RawMessage{},
	}
}

func (f *fakeQueue) enqueue(queue renderqueue.Name, id string, p renderqueue.Payload) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[queue] = append(f.pending[queue], queuedEntry{id: id, payload: p})
}

func (f *fakeQueue) AddScreenshotJob(ctx context.Context, data renderqueue.Payload, priority int) (string, error) {
	return "", nil
}
func (f *fakeQueue) AddPDFJob(ctx context.Context, data renderqueue.Payload, priority int) (string, error) {
	return "", nil
}
func (f *fakeQueue) GetStatus(ctx context.Context, queue renderqueue.Name, id string) (renderqueue.StatusInfo, error) {
	return renderqueue.StatusInfo{}, nil
}
func (f *fakeQueue) Cancel(ctx context.Context, queue renderqueue.Name, id string) error { return nil }
func (f *fakeQueue) Retry(ctx context.Context, queue renderqueue.Name, id string) error  { return nil }
func (f *fakeQueue) Stats(ctx context.Context, queue renderqueue.Name) (renderqueue.Stats, error) {
	return nil, nil
}
func (f *fakeQueue) Clean(ctx context.Context, queue renderqueue.Name, grace time.Duration, limit int) (int, error) {
	return 0, nil
}
func (f *fakeQueue) PromoteScheduled(ctx context.Context, queue renderqueue.Name) error { return nil }

func (f *fakeQueue) Pickup(ctx context.Context, queue renderqueue.Name) (*renderqueue.Payload, string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	entries := f.pending[queue]
	if len(entries) == 0 {
		return nil, "", nil
	}
	next := entries[0]
	f.pending[queue] = entries[1:]
	p := next.payload
	return &p, next.id, nil
}

func (f *fakeQueue) Complete(ctx context.Context, queue renderqueue.Name, id string, result json.RawMessage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.complete[id] = result
	return nil
}

func (f *fakeQueue) Fail(ctx context.Context, queue renderqueue.Name, id string, reason string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.failed[id] = reason
	return nil
}

// fakeJobRepo is an in-memory jobs.Repository keyed by job ID.
type fakeJobRepo struct {
	mu   sync.Mutex
	byID map[kernel.JobID]*jobs.Job
}

func newFakeJobRepo(seed ...jobs.Job) *fakeJobRepo {
	f := &fakeJobRepo{byID: map[kernel.JobID]*jobs.Job{}}
	for _, j := range seed {
		cp := j
		f.byID[j.ID] = &cp
	}
	return f
}

func (f *fakeJobRepo) Create(ctx context.Context, j jobs.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := j
	f.byID[j.ID] = &cp
	return nil
}
func (f *fakeJobRepo) FindByIDAndTenant(ctx context.Context, id kernel.JobID, tenantID kernel.TenantID) (*jobs.Job, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	j, ok := f.byID[id]
	if !ok || j.TenantID != tenantID {
		return nil, jobs.ErrNotFound()
	}
	cp := *j
	return &cp, nil
}
func (f *fakeJobRepo) ListByTenant(ctx context.Context, tenantID kernel.TenantID, filter jobs.ListFilter, page kernel.PaginationOptions) (kernel.Paginated[*jobs.Job], error) {
	return kernel.Paginated[*jobs.Job]{}, nil
}
func (f *fakeJobRepo) DeleteByIDAndTenant(ctx context.Context, id kernel.JobID, tenantID kernel.TenantID) (bool, error) {
	return false, nil
}
func (f *fakeJobRepo) Save(ctx context.Context, j jobs.Job) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.byID[j.ID]; !ok {
		return jobs.ErrNotFound()
	}
	cp := j
	f.byID[j.ID] = &cp
	return nil
}
func (f *fakeJobRepo) FindPending(ctx context.Context, limit int) ([]*jobs.Job, error) { return nil, nil }
func (f *fakeJobRepo) CleanupExpired(ctx context.Context) (int64, error)               { return 0, nil }

func (f *fakeJobRepo) get(id kernel.JobID) jobs.Job {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.byID[id]
}

// fakeStore is an in-memory objectstore.Store.
type fakeStore struct {
	mu   sync.Mutex
	data map[string][]byte
	fail bool
}

func newFakeStore() *fakeStore { return &fakeStore{data: map[string][]byte{}} }

func (s *fakeStore) Initialize(ctx context.Context) error { return nil }
func (s *fakeStore) Upload(ctx context.Context, key string, data []byte, contentType string, metadata map[string]string) (string, error) {
	if s.fail {
		return "", errors.New("upload failed")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[key] = data
	return key, nil
}
func (s *fakeStore) Download(ctx context.Context, key string) (objectstore.Object, error) {
	return objectstore.Object{}, nil
}
func (s *fakeStore) Delete(ctx context.Context, key string) error        { return nil }
func (s *fakeStore) Exists(ctx context.Context, key string) (bool, error) { return true, nil }
func (s *fakeStore) SignedURL(ctx context.Context, key string, ttl time.Duration) (string, error) {
	return "https://example.test/" + key, nil
}

// fakeEngine is a captureengine.Engine that either always succeeds or
// always fails, controlled by the failWith field.
type fakeEngine struct {
	failWith error
}

func (e *fakeEngine) Screenshot(ctx context.Context, req renderx.ScreenshotRequest) (captureengine.Result, error) {
	if e.failWith != nil {
		return captureengine.Result{}, e.failWith
	}
	return captureengine.Result{Data: []byte("png-bytes"), ContentType: "image/png"}, nil
}

func (e *fakeEngine) PDF(ctx context.Context, req renderx.PDFRequest) (captureengine.Result, error) {
	if e.failWith != nil {
		return captureengine.Result{}, e.failWith
	}
	return captureengine.Result{Data: []byte("pdf-bytes"), ContentType: "application/pdf", PageCount: 3}, nil
}

func seedJob(kind jobs.Kind) (jobs.Job, renderqueue.Payload) {
	now := time.Now().UTC()
	j := jobs.NewJob(kernel.NewJobID("job-1"), kernel.NewTenantID("tenant-1"), kind, jobs.SourceURL, "https://example.com", "png", now)
	opts, _ := json.Marshal(renderx.ScreenshotRequest{URL: "https://example.com"})
	payload := renderqueue.Payload{
		URL:      j.SourceURL,
		Options:  opts,
		JobID:    j.ID,
		TenantID: j.TenantID,
	}
	return j, payload
}

func TestProcessScreenshotSuccess(t *testing.T) {
	j, payload := seedJob(jobs.KindScreenshot)
	repo := newFakeJobRepo(j)
	queue := newFakeQueue()
	queue.enqueue(renderqueue.NameScreenshot, "q-1", payload)
	store := newFakeStore()
	engine := &fakeEngine{}

	client := renderworker.NewClient(queue, repo, store, engine,
		renderworker.WithConcurrency(1),
		renderworker.WithPollInterval(10*time.Millisecond),
		renderworker.WithBaseURL("https://api.example.test"),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	client.Start(ctx)

	got := repo.get(j.ID)
	if got.Status != jobs.StatusCompleted {
		t.Fatalf("expected job to be COMPLETED, got %s", got.Status)
	}
	if got.DownloadURL == "" {
		t.Fatal("expected a download URL to be set on completion")
	}
	if got.FileSize != int64(len("png-bytes")) {
		t.Fatalf("expected file size %d, got %d", len("png-bytes"), got.FileSize)
	}
	if _, ok := queue.complete["q-1"]; !ok {
		t.Fatal("expected queue entry to be marked complete")
	}
}

func TestProcessRenderFailureMarksJobFailed(t *testing.T) {
	j, payload := seedJob(jobs.KindPDF)
	repo := newFakeJobRepo(j)
	queue := newFakeQueue()
	queue.enqueue(renderqueue.NamePDF, "q-2", payload)
	store := newFakeStore()
	engine := &fakeEngine{failWith: errors.New("renderer unavailable")}

	client := renderworker.NewClient(queue, repo, store, engine,
		renderworker.WithConcurrency(1),
		renderworker.WithPollInterval(10*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	client.Start(ctx)

	got := repo.get(j.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("expected job to be FAILED, got %s", got.Status)
	}
	if got.Error == "" {
		t.Fatal("expected a failure reason to be recorded")
	}
	if reason, ok := queue.failed["q-2"]; !ok || reason == "" {
		t.Fatal("expected queue entry to be marked failed with a reason")
	}
}

func TestProcessUploadFailureMarksJobFailed(t *testing.T) {
	j, payload := seedJob(jobs.KindScreenshot)
	repo := newFakeJobRepo(j)
	queue := newFakeQueue()
	queue.enqueue(renderqueue.NameScreenshot, "q-3", payload)
	store := newFakeStore()
	store.fail = true
	engine := &fakeEngine{}

	client := renderworker.NewClient(queue, repo, store, engine,
		renderworker.WithConcurrency(1),
		renderworker.WithPollInterval(10*time.Millisecond),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	client.Start(ctx)

	got := repo.get(j.ID)
	if got.Status != jobs.StatusFailed {
		t.Fatalf("expected job to be FAILED after upload error, got %s", got.Status)
	}
	if _, ok := queue.failed["q-3"]; !ok {
		t.Fatal("expected queue entry to be marked failed")
	}
}

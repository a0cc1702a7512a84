// Package renderworker is the process leg of the create->enqueue->process->
// persist->deliver job pipeline (§4.7, §4.11): it pops payloads the admission
// pipeline's create handler queued, runs them through the capture engine, and
// persists the result the same way the synchronous path does. Modeled on
// pkg/jobx.Client's scheduler/worker-loop split, generalized from jobx's
// single generic queue to renderqueue's fixed screenshot/PDF pair.
package renderworker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/screencraft/api/pkg/asyncx"
	"github.com/screencraft/api/pkg/captureengine"
	"github.com/screencraft/api/pkg/jobs"
	"github.com/screencraft/api/pkg/logx"
	"github.com/screencraft/api/pkg/objectstore"
	"github.com/screencraft/api/pkg/renderapi"
	"github.com/screencraft/api/pkg/renderqueue"
	"github.com/screencraft/api/pkg/renderx"
)

// bothQueues is the fixed fan-out set the scheduler and sweeper loops run
// concurrently over via asyncx.ForEach.
var bothQueues = []renderqueue.Name{renderqueue.NameScreenshot, renderqueue.NamePDF}

// Client drains both renderqueue.Bridge queues and drives jobs through the
// same render->upload->complete sequence renderapi's createSyncStored path
// uses, minus the HTTP request/response plumbing.
type Client struct {
	queue  renderqueue.Bridge
	jobs   jobs.Repository
	store  objectstore.Store
	engine captureengine.Engine
	opts   Options
}

func NewClient(queue renderqueue.Bridge, repo jobs.Repository, store objectstore.Store, engine captureengine.Engine, options ...Option) *Client {
	opts := defaultOptions()
	for _, o := range options {
		o(&opts)
	}
	return &Client{queue: queue, jobs: repo, store: store, engine: engine, opts: opts}
}

// Start runs the scheduler, sweeper and worker goroutines until ctx is
// cancelled, then waits up to ShutdownTimeout for in-flight jobs to finish.
func (c *Client) Start(ctx context.Context) {
	logx.Infof("renderworker: starting %d workers per queue", c.opts.Concurrency)

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.schedulerLoop(ctx)
	}()

	wg.Add(1)
	go func() {
		defer wg.Done()
		c.sweepLoop(ctx)
	}()

	for _, queue := range bothQueues {
		for i := 0; i < c.opts.Concurrency; i++ {
			wg.Add(1)
			go func(queue renderqueue.Name, id int) {
				defer wg.Done()
				c.workerLoop(ctx, queue, id)
			}(queue, i)
		}
	}

	<-ctx.Done()
	logx.Info("renderworker: shutting down...")

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		logx.Info("renderworker: all workers stopped")
	case <-time.After(c.opts.ShutdownTimeout):
		logx.Warn("renderworker: shutdown timed out, some jobs may not have completed")
	}
}

// schedulerLoop promotes due entries of the delayed set into the ready set on
// both queues, the same PromoteScheduled idiom jobx.Client's scheduler uses.
// The two queues are promoted concurrently via asyncx.ForEach rather than
// one after another, since neither promotion depends on the other.
func (c *Client) schedulerLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = asyncx.ForEach(ctx, bothQueues, func(ctx context.Context, queue renderqueue.Name) error {
				if err := c.queue.PromoteScheduled(ctx, queue); err != nil {
					logx.WithError(err).Warnf("renderworker: failed to promote scheduled %s jobs", queue)
				}
				return nil
			})
		}
	}
}

// sweepLoop clears finished queue entries older than CleanGrace so the
// Redis-side bookkeeping doesn't grow without bound. Both queues are swept
// concurrently via asyncx.ForEach.
func (c *Client) sweepLoop(ctx context.Context) {
	ticker := time.NewTicker(c.opts.CleanGrace)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			_ = asyncx.ForEach(ctx, bothQueues, func(ctx context.Context, queue renderqueue.Name) error {
				n, err := c.queue.Clean(ctx, queue, c.opts.CleanGrace, c.opts.CleanLimit)
				if err != nil {
					logx.WithError(err).Warnf("renderworker: failed to sweep %s queue", queue)
					return nil
				}
				if n > 0 {
					logx.Infof("renderworker: swept %d finished entries from %s queue", n, queue)
				}
				return nil
			})
		}
	}
}

func (c *Client) workerLoop(ctx context.Context, queue renderqueue.Name, id int) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		payload, queueID, err := c.queue.Pickup(ctx, queue)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			logx.WithError(err).Warnf("renderworker: %s worker %d pickup error", queue, id)
			time.Sleep(c.opts.PollInterval)
			continue
		}
		if payload == nil {
			time.Sleep(c.opts.PollInterval)
			continue
		}

		c.process(ctx, queue, queueID, *payload)
	}
}

// process renders one queued payload and persists the outcome, mirroring
// renderapi's createSyncStored transitions (PENDING -> PROCESSING ->
// {COMPLETED | FAILED}) without any HTTP response to write.
func (c *Client) process(ctx context.Context, queue renderqueue.Name, queueID string, payload renderqueue.Payload) {
	kind := jobs.KindScreenshot
	if queue == renderqueue.NamePDF {
		kind = jobs.KindPDF
	}

	j, err := c.jobs.FindByIDAndTenant(ctx, payload.JobID, payload.TenantID)
	if err != nil {
		logx.WithError(err).Errorf("renderworker: job %s not found for processing", payload.JobID.String())
		_ = c.queue.Fail(ctx, queue, queueID, "job record not found")
		return
	}

	if err := j.MarkProcessing(); err != nil {
		// Already processing (a retried pickup after a crash) or terminal;
		// either way there is nothing this pickup should do.
		return
	}
	if err := c.jobs.Save(ctx, *j); err != nil {
		logx.WithError(err).Errorf("renderworker: failed to mark job %s processing", j.ID.String())
		return
	}

	result, renderErr := asyncx.WithTimeout(ctx, captureengine.DefaultTimeout, func(ctx context.Context) (captureengine.Result, error) {
		return c.render(ctx, kind, payload.Options)
	})

	if renderErr != nil {
		c.fail(ctx, queue, queueID, j, renderErr.Error())
		return
	}

	now := time.Now().UTC()
	key := storageKey(kind, j, now)
	if _, err := c.store.Upload(ctx, key, result.Data, result.ContentType, map[string]string{
		"job_id":     j.ID.String(),
		"url_domain": j.URLDomain,
	}); err != nil {
		c.fail(ctx, queue, queueID, j, err.Error())
		return
	}

	link := renderapi.BuildDownloadURL(c.opts.BaseURL, kind, j.ID.String())
	if err := j.MarkCompleted(link, key, int64(len(result.Data)), result.PageCount, time.Now().UTC()); err != nil {
		c.fail(ctx, queue, queueID, j, err.Error())
		return
	}
	if err := c.jobs.Save(ctx, *j); err != nil {
		logx.WithError(err).Errorf("renderworker: failed to save completed job %s", j.ID.String())
		return
	}

	resultJSON, _ := json.Marshal(renderapi.ToRecord(j))
	if err := c.queue.Complete(ctx, queue, queueID, resultJSON); err != nil {
		logx.WithError(err).Warnf("renderworker: failed to mark queue entry %s complete", queueID)
	}
}

func (c *Client) render(ctx context.Context, kind jobs.Kind, options json.RawMessage) (captureengine.Result, error) {
	if kind == jobs.KindPDF {
		var req renderx.PDFRequest
		if err := json.Unmarshal(options, &req); err != nil {
			return captureengine.Result{}, err
		}
		return c.engine.PDF(ctx, req)
	}

	var req renderx.ScreenshotRequest
	if err := json.Unmarshal(options, &req); err != nil {
		return captureengine.Result{}, err
	}
	return c.engine.Screenshot(ctx, req)
}

func (c *Client) fail(ctx context.Context, queue renderqueue.Name, queueID string, j *jobs.Job, reason string) {
	_ = j.MarkFailed(reason, time.Now().UTC())
	if err := c.jobs.Save(ctx, *j); err != nil {
		logx.WithError(err).Errorf("renderworker: failed to save failed job %s", j.ID.String())
	}
	if err := c.queue.Fail(ctx, queue, queueID, reason); err != nil {
		logx.WithError(err).Warnf("renderworker: failed to mark queue entry %s failed", queueID)
	}
}

func storageKey(kind jobs.Kind, j *jobs.Job, now time.Time) string {
	if kind == jobs.KindPDF {
		return objectstore.PDFKey(j.TenantID, j.ID.String()+".pdf", now)
	}
	format := j.Format
	if format == "" {
		format = "png"
	}
	return objectstore.ScreenshotKey(j.TenantID, j.ID.String()+"."+format, now)
}

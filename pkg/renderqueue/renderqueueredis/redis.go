// Package renderqueueredis is the Redis-backed implementation of
// renderqueue.Bridge, built on the same list+sorted-set idiom as
// pkg/jobx/jobxredis, extended with the Cancel/Stats/Clean operations §4.7
// needs that the generic jobx.Queue contract doesn't expose.
package renderqueueredis

import (
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/renderqueue"
)

// entry is the wire format stored per job, the renderqueue analogue of
// jobx.JobInfo.
type entry struct {
	ID         string              `json:"id"`
	Queue      renderqueue.Name    `json:"queue"`
	Priority   int                 `json:"priority"`
	Payload    renderqueue.Payload `json:"payload"`
	State      renderqueue.State   `json:"state"`
	Result     json.RawMessage     `json:"result,omitempty"`
	Error      string              `json:"error,omitempty"`
	Attempts   int                 `json:"attempts"`
	MaxRetries int                 `json:"max_retries"`
	CreatedAt  time.Time           `json:"created_at"`
	UpdatedAt  time.Time           `json:"updated_at"`
}

const defaultMaxRetries = 3

func readyKey(queue renderqueue.Name) string     { return fmt.Sprintf("renderqueue:ready:%s", queue) }
func delayedKey(queue renderqueue.Name) string    { return fmt.Sprintf("renderqueue:delayed:%s", queue) }
func indexKey(queue renderqueue.Name) string      { return fmt.Sprintf("renderqueue:index:%s", queue) }
func entryKey(queue renderqueue.Name, id string) string {
	return fmt.Sprintf("renderqueue:entry:%s:%s", queue, id)
}

// Bridge implements renderqueue.Bridge against a single Redis client.
type Bridge struct {
	rdb *redis.Client
}

func NewBridge(rdb *redis.Client) *Bridge {
	return &Bridge{rdb: rdb}
}

// newJobID mints the queue-side id §4.7 specifies: {kind}_{unix_ms}_{random9}.
func newJobID(kind renderqueue.Name) (string, error) {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	buf := make([]byte, 9)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, b := range buf {
		buf[i] = alphabet[int(b)%len(alphabet)]
	}
	return fmt.Sprintf("%s_%d_%s", kind, time.Now().UTC().UnixMilli(), buf), nil
}

func (b *Bridge) submit(ctx context.Context, queue renderqueue.Name, data renderqueue.Payload, priority int) (string, error) {
	id, err := newJobID(queue)
	if err != nil {
		return "", errx.Wrap(err, "failed to mint queue job id", errx.TypeInternal)
	}
	now := time.Now().UTC()

	e := entry{
		ID:         id,
		Queue:      queue,
		Priority:   renderqueue.ClampPriority(priority),
		Payload:    data,
		State:      renderqueue.StateWaiting,
		MaxRetries: defaultMaxRetries,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	raw, err := json.Marshal(e)
	if err != nil {
		return "", errx.Wrap(err, "failed to marshal queue entry", errx.TypeInternal)
	}

	pipe := b.rdb.Pipeline()
	pipe.Set(ctx, entryKey(queue, id), raw, 0)
	pipe.SAdd(ctx, indexKey(queue), id)
	// Higher-priority (numerically lower) jobs sort to the front: ZADD
	// into the ready set ordered by priority, worker pops the lowest score.
	pipe.ZAdd(ctx, readyKey(queue), redis.Z{Score: float64(e.Priority), Member: id})
	if _, err := pipe.Exec(ctx); err != nil {
		return "", errx.Wrap(err, "failed to enqueue job", errx.TypeExternal)
	}
	return id, nil
}

func (b *Bridge) AddScreenshotJob(ctx context.Context, data renderqueue.Payload, priority int) (string, error) {
	return b.submit(ctx, renderqueue.NameScreenshot, data, priority)
}

func (b *Bridge) AddPDFJob(ctx context.Context, data renderqueue.Payload, priority int) (string, error) {
	return b.submit(ctx, renderqueue.NamePDF, data, priority)
}

func (b *Bridge) get(ctx context.Context, queue renderqueue.Name, id string) (*entry, error) {
	raw, err := b.rdb.Get(ctx, entryKey(queue, id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, renderqueue.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to read queue entry", errx.TypeExternal)
	}
	var e entry
	if err := json.Unmarshal(raw, &e); err != nil {
		return nil, errx.Wrap(err, "failed to decode queue entry", errx.TypeInternal)
	}
	return &e, nil
}

func (b *Bridge) save(ctx context.Context, e *entry) error {
	e.UpdatedAt = time.Now().UTC()
	raw, err := json.Marshal(e)
	if err != nil {
		return errx.Wrap(err, "failed to marshal queue entry", errx.TypeInternal)
	}
	return b.rdb.Set(ctx, entryKey(e.Queue, e.ID), raw, 0).Err()
}

func (b *Bridge) GetStatus(ctx context.Context, queue renderqueue.Name, id string) (renderqueue.StatusInfo, error) {
	e, err := b.get(ctx, queue, id)
	if err != nil {
		return renderqueue.StatusInfo{}, err
	}
	createdAt := e.CreatedAt
	return renderqueue.StatusInfo{
		State:     e.State,
		Result:    e.Result,
		Error:     e.Error,
		Attempts:  e.Attempts,
		CreatedAt: &createdAt,
	}, nil
}

// Cancel removes a waiting or delayed job outright; an active job is a
// best-effort abort since a worker may already be mid-capture (§4.7).
func (b *Bridge) Cancel(ctx context.Context, queue renderqueue.Name, id string) error {
	e, err := b.get(ctx, queue, id)
	if err != nil {
		return err
	}

	switch e.State {
	case renderqueue.StateWaiting:
		pipe := b.rdb.Pipeline()
		pipe.ZRem(ctx, readyKey(queue), id)
		pipe.Del(ctx, entryKey(queue, id))
		pipe.SRem(ctx, indexKey(queue), id)
		_, err = pipe.Exec(ctx)
		return err
	case renderqueue.StateDelayed:
		pipe := b.rdb.Pipeline()
		pipe.ZRem(ctx, delayedKey(queue), id)
		pipe.Del(ctx, entryKey(queue, id))
		pipe.SRem(ctx, indexKey(queue), id)
		_, err = pipe.Exec(ctx)
		return err
	case renderqueue.StateActive:
		e.State = renderqueue.StateFailed
		e.Error = "cancelled while active"
		return b.save(ctx, e)
	default:
		return renderqueue.ErrInvalidState("cancel", e.State)
	}
}

// Retry is only valid from failed (§4.7).
func (b *Bridge) Retry(ctx context.Context, queue renderqueue.Name, id string) error {
	e, err := b.get(ctx, queue, id)
	if err != nil {
		return err
	}
	if e.State != renderqueue.StateFailed {
		return renderqueue.ErrInvalidState("retry", e.State)
	}

	e.State = renderqueue.StateWaiting
	e.Error = ""
	if err := b.save(ctx, e); err != nil {
		return err
	}
	return b.rdb.ZAdd(ctx, readyKey(queue), redis.Z{Score: float64(e.Priority), Member: id}).Err()
}

func (b *Bridge) Stats(ctx context.Context, queue renderqueue.Name) (renderqueue.Stats, error) {
	ids, err := b.rdb.SMembers(ctx, indexKey(queue)).Result()
	if err != nil {
		return nil, errx.Wrap(err, "failed to list queue index", errx.TypeExternal)
	}

	stats := renderqueue.Stats{}
	for _, id := range ids {
		e, err := b.get(ctx, queue, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		stats[e.State]++
	}
	return stats, nil
}

// isNotFound compares by code rather than identity: renderqueue.ErrNotFound
// allocates a fresh *errx.Error on every call, so pointer/value equality
// would never match.
func isNotFound(err error) bool {
	e, ok := err.(*errx.Error)
	return ok && e.Code == renderqueue.CodeNotFound.Code
}

// Clean prunes completed/failed entries older than grace (§4.7), up to
// limit removals, in the order the index set returns them (not by age).
func (b *Bridge) Clean(ctx context.Context, queue renderqueue.Name, grace time.Duration, limit int) (int, error) {
	ids, err := b.rdb.SMembers(ctx, indexKey(queue)).Result()
	if err != nil {
		return 0, errx.Wrap(err, "failed to list queue index", errx.TypeExternal)
	}

	cutoff := time.Now().UTC().Add(-grace)
	removed := 0
	for _, id := range ids {
		if removed >= limit {
			break
		}
		e, err := b.get(ctx, queue, id)
		if err != nil {
			continue
		}
		if (e.State != renderqueue.StateCompleted && e.State != renderqueue.StateFailed) || e.UpdatedAt.After(cutoff) {
			continue
		}
		pipe := b.rdb.Pipeline()
		pipe.Del(ctx, entryKey(queue, id))
		pipe.SRem(ctx, indexKey(queue), id)
		if _, err := pipe.Exec(ctx); err != nil {
			return removed, errx.Wrap(err, "failed to clean queue entry", errx.TypeExternal)
		}
		removed++
	}
	return removed, nil
}

// --- worker-side pickup, mirroring jobx's Dequeue/Complete/Fail contract ---

// Pickup pops the highest-priority waiting job (lowest score) and marks it
// active, the entry point a worker loop uses before handing the payload to
// the capture engine.
func (b *Bridge) Pickup(ctx context.Context, queue renderqueue.Name) (*renderqueue.Payload, string, error) {
	res, err := b.rdb.ZPopMin(ctx, readyKey(queue), 1).Result()
	if err != nil {
		return nil, "", errx.Wrap(err, "failed to pop ready queue", errx.TypeExternal)
	}
	if len(res) == 0 {
		return nil, "", nil
	}
	id, _ := res[0].Member.(string)

	e, err := b.get(ctx, queue, id)
	if err != nil {
		return nil, "", err
	}
	e.State = renderqueue.StateActive
	e.Attempts++
	if err := b.save(ctx, e); err != nil {
		return nil, "", err
	}
	return &e.Payload, id, nil
}

// Complete marks the job completed with an opaque result payload.
func (b *Bridge) Complete(ctx context.Context, queue renderqueue.Name, id string, result json.RawMessage) error {
	e, err := b.get(ctx, queue, id)
	if err != nil {
		return err
	}
	e.State = renderqueue.StateCompleted
	e.Result = result
	return b.save(ctx, e)
}

// Fail marks the job failed; callers decide separately whether to call
// Retry (§4.7 keeps retry as an explicit operation, not automatic).
func (b *Bridge) Fail(ctx context.Context, queue renderqueue.Name, id string, reason string) error {
	e, err := b.get(ctx, queue, id)
	if err != nil {
		return err
	}
	e.State = renderqueue.StateFailed
	e.Error = reason
	return b.save(ctx, e)
}

// PromoteScheduled moves delayed jobs whose time has passed into the ready
// set, the same Lua-script atomicity idiom as jobx.RedisQueue.PromoteScheduled.
var promoteScript = redis.NewScript(`
local delayed_key = KEYS[1]
local ready_key = KEYS[2]
local now = tonumber(ARGV[1])
local ids = redis.call('ZRANGEBYSCORE', delayed_key, '-inf', now)
if #ids > 0 then
    for _, id in ipairs(ids) do
        redis.call('ZADD', ready_key, 5, id)
    end
    redis.call('ZREMRANGEBYSCORE', delayed_key, '-inf', now)
end
return #ids
`)

func (b *Bridge) PromoteScheduled(ctx context.Context, queue renderqueue.Name) error {
	now := strconv.FormatInt(time.Now().UTC().Unix(), 10)
	err := promoteScript.Run(ctx, b.rdb, []string{delayedKey(queue), readyKey(queue)}, now).Err()
	if err != nil && err != redis.Nil {
		return errx.Wrap(err, "failed to promote delayed jobs", errx.TypeExternal)
	}
	return nil
}

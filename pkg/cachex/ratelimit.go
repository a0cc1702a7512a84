package cachex

import (
	"context"
	"fmt"
	"time"
)

// Decision is the outcome of a rate limit check. RetryAt is when the
// blockout (if denied) or the counting window (if allowed) expires.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	RetryAt   time.Time
}

// FixedWindowLimiter caps requests per key to `limit` within `window`, and
// once exceeded keeps the key blocked for a separate, typically longer,
// `blockout` duration. This is the INCR+EXPIRE idiom the corpus uses for
// login throttling, generalized with an explicit blockout so a burst at the
// edge of the window doesn't immediately unblock the caller (§4.3).
type FixedWindowLimiter struct {
	store    *Store
	keyspace string
	limit    int
	window   time.Duration
	blockout time.Duration
}

// NewFixedWindowLimiter builds a limiter whose Redis keys are
// "{keyspace}:{id}" and "{keyspace}:block:{id}" — keyspace is the full
// namespace the caller wants (e.g. "rl:ip", "rl:FREE", "login") so each
// limiter can match its own wire key format exactly.
func NewFixedWindowLimiter(store *Store, keyspace string, limit int, window, blockout time.Duration) *FixedWindowLimiter {
	return &FixedWindowLimiter{store: store, keyspace: keyspace, limit: limit, window: window, blockout: blockout}
}

func (l *FixedWindowLimiter) counterKey(id string) string { return fmt.Sprintf("%s:%s", l.keyspace, id) }
func (l *FixedWindowLimiter) blockKey(id string) string   { return fmt.Sprintf("%s:block:%s", l.keyspace, id) }

// Check increments the counter for id and reports whether the caller may
// proceed. A key already in its blockout period is denied without
// incrementing the counter further.
func (l *FixedWindowLimiter) Check(ctx context.Context, id string) (Decision, error) {
	rdb := l.store.Client()

	if ttl, err := rdb.TTL(ctx, l.blockKey(id)).Result(); err == nil && ttl > 0 {
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, RetryAt: time.Now().Add(ttl)}, nil
	}

	count, err := rdb.Incr(ctx, l.counterKey(id)).Result()
	if err != nil {
		return Decision{}, err
	}
	if count == 1 {
		rdb.Expire(ctx, l.counterKey(id), l.window)
	}

	ttl, err := rdb.TTL(ctx, l.counterKey(id)).Result()
	if err != nil || ttl < 0 {
		ttl = l.window
	}
	windowResetAt := time.Now().Add(ttl)

	if count > int64(l.limit) {
		rdb.Set(ctx, l.blockKey(id), 1, l.blockout)
		return Decision{Allowed: false, Limit: l.limit, Remaining: 0, RetryAt: time.Now().Add(l.blockout)}, nil
	}

	return Decision{Allowed: true, Limit: l.limit, Remaining: l.limit - int(count), RetryAt: windowResetAt}, nil
}

// Reset clears both the counter and any active blockout for id, used after
// a successful login to forgive prior failed attempts.
func (l *FixedWindowLimiter) Reset(ctx context.Context, id string) error {
	return l.store.Client().Del(ctx, l.counterKey(id), l.blockKey(id)).Err()
}

package cachex

import "time"

// KeyCacheTTL is the lifetime of a cached API-key lookup result (§4.1: 3600s).
const KeyCacheTTL = time.Hour

// APIKeyCacheKey returns the Redis key under which a digest's lookup result
// is cached, per §4.1's `key:{digest}` format.
func APIKeyCacheKey(digest string) string { return "key:" + digest }

package cachex

import (
	"context"
	"time"

	"github.com/screencraft/api/pkg/kernel"
)

// TierWindow is a tier's points-per-window-seconds budget (§4.3).
type TierWindow struct {
	Limit  int
	Window time.Duration
}

// DefaultTierWindows is the spec's fixed tier table; a tenant on an unknown
// tier is treated as FREE.
var DefaultTierWindows = map[kernel.Tier]TierWindow{
	kernel.TierFree:       {Limit: 100, Window: time.Hour},
	kernel.TierPro:        {Limit: 5000, Window: time.Hour},
	kernel.TierBusiness:   {Limit: 25000, Window: time.Hour},
	kernel.TierEnterprise: {Limit: 100000, Window: time.Hour},
}

// tierBlockout is the fixed 60s penalty applied once a tenant exceeds its
// tier budget, independent of the window length itself (§4.3).
const tierBlockout = 60 * time.Second

// TierLimiter rate-limits each tenant against its tier's request budget.
type TierLimiter struct {
	store   *Store
	windows map[kernel.Tier]TierWindow
}

func NewTierLimiter(store *Store, windows map[kernel.Tier]TierWindow) *TierLimiter {
	if windows == nil {
		windows = DefaultTierWindows
	}
	return &TierLimiter{store: store, windows: windows}
}

func (l *TierLimiter) Check(ctx context.Context, tenantID kernel.TenantID, tier kernel.Tier) (Decision, error) {
	w, ok := l.windows[tier]
	if !ok {
		w = l.windows[kernel.TierFree]
	}
	limiter := NewFixedWindowLimiter(l.store, "rl:"+string(tier), w.Limit, w.Window, tierBlockout)
	return limiter.Check(ctx, tenantID.String())
}

// IPLimiter caps requests per source IP regardless of tenant identity,
// the outer perimeter guard ahead of tier-aware limiting (§4.3: 20/60s,
// 300s blockout).
type IPLimiter struct {
	limiter *FixedWindowLimiter
}

func NewIPLimiter(store *Store) *IPLimiter {
	return &IPLimiter{limiter: NewFixedWindowLimiter(store, "rl:ip", 20, 60*time.Second, 300*time.Second)}
}

func (l *IPLimiter) Check(ctx context.Context, addr string) (Decision, error) {
	return l.limiter.Check(ctx, addr)
}

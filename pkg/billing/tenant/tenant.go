// Package tenant is the account entity that owns API keys, jobs and credits
// (spec §3 Tenant, §4.9 monthly rollover).
package tenant

import (
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("TENANT")

var (
	CodeNotFound  = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "Tenant not found")
	CodeSuspended = ErrRegistry.Register("SUSPENDED", errx.TypeAuthorization, http.StatusForbidden, "Tenant is deactivated")
)

func ErrNotFound() *errx.Error  { return ErrRegistry.New(CodeNotFound) }
func ErrSuspended() *errx.Error { return ErrRegistry.New(CodeSuspended) }

// TierCredits is the monthly credit budget granted to each tier on creation
// or subscription reconciliation. FREE=250 is fixed by spec §8 scenario 1;
// the paid tiers get fixed budgets that grow with the tier but are not
// proportional to the rate-limit caps in §4.3.
var TierCredits = map[kernel.Tier]int{
	kernel.TierFree:       250,
	kernel.TierPro:        2500,
	kernel.TierBusiness:   10000,
	kernel.TierEnterprise: 50000,
}

// CreditsForTier returns the monthly credit budget for a tier, defaulting
// unknown tiers to FREE per §4.3's "unknown tiers fall back to FREE semantics".
func CreditsForTier(t kernel.Tier) int {
	if c, ok := TierCredits[t]; ok {
		return c
	}
	return TierCredits[kernel.TierFree]
}

// Tenant is the multi-tenant account entity.
type Tenant struct {
	ID             kernel.TenantID
	Email          string
	Tier           kernel.Tier
	MonthlyCredits int
	UsedCredits    int
	LastResetAt    time.Time
	WebhookURL     string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewFreeTenant creates a FREE-tier tenant with a seeded credit budget, the
// shape the OAuth/API-key onboarding paths use (§4.2, §4.4).
func NewFreeTenant(id kernel.TenantID, email string, now time.Time) Tenant {
	return Tenant{
		ID:             id,
		Email:          email,
		Tier:           kernel.TierFree,
		MonthlyCredits: CreditsForTier(kernel.TierFree),
		UsedCredits:    0,
		LastResetAt:    now,
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// NeedsMonthlyReset reports whether the tenant's stored reset anniversary
// predates the first of the current month, per §4.4 step 4 / §4.9.
func (t *Tenant) NeedsMonthlyReset(now time.Time) bool {
	ly, lm, _ := t.LastResetAt.Date()
	ny, nm, _ := now.Date()
	return ly != ny || lm != nm
}

// ResetMonthly zeroes used credits and stamps the reset anniversary.
func (t *Tenant) ResetMonthly(now time.Time) {
	t.UsedCredits = 0
	t.LastResetAt = now
	t.UpdatedAt = now
}

// HasCredits reports whether debiting cost would not exceed the budget.
func (t *Tenant) HasCredits(cost int) bool {
	return t.UsedCredits+cost <= t.MonthlyCredits
}

// Deactivate marks the tenant inactive. Tenants are never deleted (§3).
func (t *Tenant) Deactivate(now time.Time) {
	t.IsActive = false
	t.UpdatedAt = now
}

// ApplySubscription mutates tier and credit budget on a reconciler event
// (§4.10): resets the counter and stamps the reset anniversary.
func (t *Tenant) ApplySubscription(tier kernel.Tier, now time.Time) {
	t.Tier = tier
	t.MonthlyCredits = CreditsForTier(tier)
	t.UsedCredits = 0
	t.LastResetAt = now
	t.IsActive = true
	t.UpdatedAt = now
}

// Downgrade moves the tenant to FREE on subscription cancellation (§4.10).
func (t *Tenant) Downgrade(now time.Time) {
	t.Tier = kernel.TierFree
	t.MonthlyCredits = CreditsForTier(kernel.TierFree)
	t.UsedCredits = 0
	t.UpdatedAt = now
}

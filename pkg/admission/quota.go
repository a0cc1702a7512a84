package admission

import (
	"time"

	"github.com/screencraft/api/pkg/billing/usage"
	"github.com/screencraft/api/pkg/errx"
	"github.com/gofiber/fiber/v2"
)

// EventTypeResolver inspects the request and reports which billable event
// it will produce, so the quota precheck can price it before any work
// happens. Route handlers supply this since the mapping depends on the
// request body (§4.5's options schemas), which admission never parses.
type EventTypeResolver func(c *fiber.Ctx) (usage.EventType, error)

// QuotaPrecheck rejects a request early when the resolved tenant's
// remaining budget cannot cover the event's cost, rolling over the monthly
// counter first if the tenant's anniversary has passed (§4.4 step 4). The
// actual debit happens atomically at persist time via usage.Accountant;
// this is a fast, non-authoritative reject to avoid doing capture work for
// requests that will fail billing anyway.
func (p *Pipeline) QuotaPrecheck(resolve EventTypeResolver) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac := AuthFromContext(c)
		if !ac.IsValid() {
			return ErrAuthRequired()
		}

		eventType, err := resolve(c)
		if err != nil {
			return err
		}
		cost, ok := eventCost(eventType)
		if !ok {
			return errx.Internal("unknown usage event type").WithDetail("event_type", string(eventType))
		}

		t, err := p.tenants.FindByID(c.Context(), ac.TenantID)
		if err != nil {
			return err
		}

		now := time.Now().UTC()
		if t.NeedsMonthlyReset(now) {
			t.ResetMonthly(now)
			if err := p.tenants.Save(c.Context(), *t); err != nil {
				return err
			}
		}

		if !t.HasCredits(cost) {
			return usage.ErrQuotaExceeded()
		}

		return c.Next()
	}
}

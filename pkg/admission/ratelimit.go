package admission

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
)

// TierRateLimit consumes one point against the resolved tenant's tier
// bucket and emits X-RateLimit-{Limit,Remaining,Reset,Tier} headers (§4.4
// step 2). Must run after Auth().
func (p *Pipeline) TierRateLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		ac := AuthFromContext(c)
		if !ac.IsValid() {
			return ErrAuthRequired()
		}

		decision, err := p.tierLimiter.Check(c.Context(), ac.TenantID, ac.Tier)
		if err != nil {
			return err
		}

		reset := int(time.Until(decision.RetryAt).Seconds())
		if reset < 0 {
			reset = 0
		}

		c.Set("X-RateLimit-Limit", strconv.Itoa(decision.Limit))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))
		c.Set("X-RateLimit-Tier", string(ac.Tier))
		c.Set("X-RateLimit-Reset", strconv.Itoa(reset))

		if !decision.Allowed {
			return ErrRateLimited().WithDetail("retryAfter", reset)
		}

		return c.Next()
	}
}

// IPRateLimit guards unauthenticated endpoints ahead of Auth() (§4.4: "An
// unauthenticated IP-rate-limit filter may run ahead of (1) on public
// endpoints").
func (p *Pipeline) IPRateLimit() fiber.Handler {
	return func(c *fiber.Ctx) error {
		decision, err := p.ipLimiter.Check(c.Context(), c.IP())
		if err != nil {
			return err
		}
		if !decision.Allowed {
			retryAfter := int(time.Until(decision.RetryAt).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			return ErrRateLimited().WithDetail("retryAfter", retryAfter)
		}
		return c.Next()
	}
}

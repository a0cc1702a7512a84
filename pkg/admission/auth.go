package admission

import (
	"crypto/subtle"
	"strings"
	"time"

	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

// Auth resolves the caller's identity: trusted-gateway header, then bearer
// API key, then session cookie, in that order (§4.4 step 1). On success it
// attaches a *kernel.AuthContext to c.Locals under kernel.AuthContextKey.
func (p *Pipeline) Auth() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if p.gateway.Enabled {
			if ac, err := p.resolveGateway(c); err != nil {
				return err
			} else if ac != nil {
				c.Locals(kernel.AuthContextKey, ac)
				return c.Next()
			}
		}

		if ac, err := p.resolveAPIKey(c); err != nil {
			return err
		} else if ac != nil {
			c.Locals(kernel.AuthContextKey, ac)
			return c.Next()
		}

		if ac, err := p.resolveSession(c); err != nil {
			return err
		} else if ac != nil {
			c.Locals(kernel.AuthContextKey, ac)
			return c.Next()
		}

		return ErrAuthRequired()
	}
}

func (p *Pipeline) resolveGateway(c *fiber.Ctx) (*kernel.AuthContext, error) {
	secret := c.Get(p.gateway.ProxySecretHeader)
	if secret == "" {
		return nil, nil
	}
	if subtle.ConstantTimeCompare([]byte(secret), []byte(p.gateway.ProxySecret)) != 1 {
		return nil, ErrGatewayDenied()
	}

	userID := c.Get(p.gateway.UserIDHeader)
	tierHeader := c.Get(p.gateway.TierHeader)
	if userID == "" {
		return nil, ErrGatewayDenied()
	}
	tier := kernel.Tier(strings.ToUpper(tierHeader))
	if _, ok := tenant.TierCredits[tier]; !ok {
		tier = kernel.TierFree
	}

	tenantID := kernel.NewTenantID(userID)
	t, err := p.tenants.FindByID(c.Context(), tenantID)
	now := time.Now().UTC()
	if err != nil {
		fresh := tenant.NewFreeTenant(tenantID, "", now)
		fresh.ApplySubscription(tier, now)
		if err := p.tenants.Create(c.Context(), fresh); err != nil {
			return nil, err
		}
		t = &fresh
	} else if t.Tier != tier {
		t.ApplySubscription(tier, now)
		if err := p.tenants.Save(c.Context(), *t); err != nil {
			return nil, err
		}
	}

	return &kernel.AuthContext{
		TenantID: t.ID,
		Tier:     t.Tier,
		Source:   kernel.AuthSourceGateway,
	}, nil
}

func (p *Pipeline) resolveAPIKey(c *fiber.Ctx) (*kernel.AuthContext, error) {
	header := c.Get(fiber.HeaderAuthorization)
	var credential string
	switch {
	case header != "":
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			credential = parts[1]
		} else if strings.HasPrefix(header, "sk_") {
			credential = header
		} else {
			return nil, nil
		}
	default:
		return nil, nil
	}
	if credential == "" {
		return nil, nil
	}

	key, err := p.apiKeys.Validate(c.Context(), credential)
	if err != nil {
		return nil, err
	}

	t, err := p.tenants.FindByID(c.Context(), key.TenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, tenant.ErrSuspended()
	}

	return &kernel.AuthContext{
		TenantID: t.ID,
		Tier:     t.Tier,
		Source:   kernel.AuthSourceAPIKey,
	}, nil
}

func (p *Pipeline) resolveSession(c *fiber.Ctx) (*kernel.AuthContext, error) {
	token := c.Cookies("session_token")
	if token == "" {
		return nil, nil
	}

	sess, err := p.sessions.Validate(c.Context(), token)
	if err != nil {
		return nil, err
	}

	u, err := p.users.FindByID(c.Context(), sess.UserID)
	if err != nil {
		return nil, err
	}

	t, err := p.tenants.FindByID(c.Context(), u.TenantID)
	if err != nil {
		return nil, err
	}
	if !t.IsActive {
		return nil, tenant.ErrSuspended()
	}

	uid := u.ID
	return &kernel.AuthContext{
		TenantID: t.ID,
		UserID:   &uid,
		Tier:     t.Tier,
		Source:   kernel.AuthSourceSession,
	}, nil
}

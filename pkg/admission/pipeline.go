package admission

import (
	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/billing/usage"
	"github.com/screencraft/api/pkg/cachex"
	"github.com/screencraft/api/pkg/iam/apikey/apikeysrv"
	"github.com/screencraft/api/pkg/iam/session/sessionsrv"
	"github.com/screencraft/api/pkg/iam/user"
	"github.com/screencraft/api/pkg/kernel"
)

// GatewayConfig controls the trusted-gateway auth leg (§4.4 step 1a): a
// reverse proxy in front of the API may vouch for a caller's identity and
// tier directly, skipping the API-key/session legs entirely.
type GatewayConfig struct {
	Enabled           bool
	ProxySecret       string
	ProxySecretHeader string
	UserIDHeader      string
	TierHeader        string
}

func DefaultGatewayConfig() GatewayConfig {
	return GatewayConfig{
		ProxySecretHeader: "X-Gateway-Proxy-Secret",
		UserIDHeader:      "X-Gateway-User-Id",
		TierHeader:        "X-Gateway-Tier",
	}
}

// CSRFConfig controls the double-submit check applied to cookie-session
// requests (§4.4 step 3).
type CSRFConfig struct {
	CookieName string
	HeaderName string
}

func DefaultCSRFConfig() CSRFConfig {
	return CSRFConfig{CookieName: "csrf_token", HeaderName: "X-CSRF-Token"}
}

// Pipeline wires the four admission legs to the identity, rate-limit and
// billing components they depend on.
type Pipeline struct {
	apiKeys     *apikeysrv.Service
	sessions    *sessionsrv.Service
	users       user.Repository
	tenants     tenant.Repository
	tierLimiter *cachex.TierLimiter
	ipLimiter   *cachex.IPLimiter
	gateway     GatewayConfig
	csrf        CSRFConfig
}

// NewPipeline wires the four admission legs. tierWindows overrides the
// default per-tier rate-limit budgets (§4.3); pass nil (or call with the
// argument omitted by existing callers) to use cachex.DefaultTierWindows.
func NewPipeline(
	apiKeys *apikeysrv.Service,
	sessions *sessionsrv.Service,
	users user.Repository,
	tenants tenant.Repository,
	store *cachex.Store,
	gateway GatewayConfig,
	csrf CSRFConfig,
	tierWindows ...map[kernel.Tier]cachex.TierWindow,
) *Pipeline {
	var windows map[kernel.Tier]cachex.TierWindow
	if len(tierWindows) > 0 {
		windows = tierWindows[0]
	}
	return &Pipeline{
		apiKeys:     apiKeys,
		sessions:    sessions,
		users:       users,
		tenants:     tenants,
		tierLimiter: cachex.NewTierLimiter(store, windows),
		ipLimiter:   cachex.NewIPLimiter(store),
		gateway:     gateway,
		csrf:        csrf,
	}
}

func eventCost(eventType usage.EventType) (int, bool) {
	cost, ok := usage.Cost[eventType]
	return cost, ok
}

package admission_test

import (
	"context"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/screencraft/api/pkg/admission"
	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/billing/usage"
	"github.com/screencraft/api/pkg/cachex"
	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/iam/apikey"
	"github.com/screencraft/api/pkg/iam/apikey/apikeysrv"
	"github.com/screencraft/api/pkg/iam/session"
	"github.com/screencraft/api/pkg/iam/session/sessionsrv"
	"github.com/screencraft/api/pkg/iam/user"
	"github.com/screencraft/api/pkg/kernel"
)

// newTestApp wires a minimal errx-aware error handler (the bare *errx.Error
// as JSON, not the production response envelope), so middleware that returns
// an *errx.Error surfaces its own HTTP status instead of Fiber's default 500.
func newTestApp() *fiber.App {
	return fiber.New(fiber.Config{
		ErrorHandler: func(c *fiber.Ctx, err error) error {
			if e, ok := err.(*errx.Error); ok {
				return c.Status(e.HTTPStatus).JSON(e)
			}
			return c.SendStatus(fiber.StatusInternalServerError)
		},
	})
}

type fakeTenantRepo struct {
	byID map[kernel.TenantID]*tenant.Tenant
}

func newFakeTenantRepo(tenants ...*tenant.Tenant) *fakeTenantRepo {
	f := &fakeTenantRepo{byID: map[kernel.TenantID]*tenant.Tenant{}}
	for _, t := range tenants {
		cp := *t
		f.byID[t.ID] = &cp
	}
	return f
}

func (f *fakeTenantRepo) Create(ctx context.Context, t tenant.Tenant) error {
	cp := t
	f.byID[t.ID] = &cp
	return nil
}
func (f *fakeTenantRepo) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, tenant.ErrNotFound()
	}
	cp := *t
	return &cp, nil
}
func (f *fakeTenantRepo) FindByEmail(ctx context.Context, email string) (*tenant.Tenant, error) {
	for _, t := range f.byID {
		if t.Email == email {
			cp := *t
			return &cp, nil
		}
	}
	return nil, tenant.ErrNotFound()
}
func (f *fakeTenantRepo) Save(ctx context.Context, t tenant.Tenant) error {
	cp := t
	f.byID[t.ID] = &cp
	return nil
}
func (f *fakeTenantRepo) Deactivate(ctx context.Context, id kernel.TenantID) error {
	if t, ok := f.byID[id]; ok {
		t.IsActive = false
	}
	return nil
}
func (f *fakeTenantRepo) FindStaleForReset(ctx context.Context, limit int) ([]*tenant.Tenant, error) {
	return nil, nil
}

type fakeKeyRepo struct {
	byHash map[string]*apikey.APIKey
}

func newFakeKeyRepo() *fakeKeyRepo { return &fakeKeyRepo{byHash: map[string]*apikey.APIKey{}} }

func (f *fakeKeyRepo) Save(ctx context.Context, key apikey.APIKey) error {
	cp := key
	f.byHash[key.KeyHash] = &cp
	return nil
}
func (f *fakeKeyRepo) FindByID(ctx context.Context, id string, tenantID kernel.TenantID) (*apikey.APIKey, error) {
	for _, k := range f.byHash {
		if k.ID == id && k.TenantID == tenantID {
			return k, nil
		}
	}
	return nil, apikey.ErrNotFound()
}
func (f *fakeKeyRepo) FindByHash(ctx context.Context, keyHash string) (*apikey.APIKey, error) {
	k, ok := f.byHash[keyHash]
	if !ok {
		return nil, apikey.ErrNotFound()
	}
	return k, nil
}
func (f *fakeKeyRepo) FindByTenant(ctx context.Context, tenantID kernel.TenantID) ([]*apikey.APIKey, error) {
	return nil, nil
}
func (f *fakeKeyRepo) Delete(ctx context.Context, id string, tenantID kernel.TenantID) error {
	return nil
}
func (f *fakeKeyRepo) UpdateLastUsed(ctx context.Context, id string) error { return nil }

type fakeSessionRepo struct {
	byHash map[string]*session.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byHash: map[string]*session.Session{}}
}

func (f *fakeSessionRepo) Create(ctx context.Context, s session.Session) error {
	cp := s
	f.byHash[s.TokenHash] = &cp
	return nil
}
func (f *fakeSessionRepo) FindByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	s, ok := f.byHash[tokenHash]
	if !ok {
		return nil, session.ErrNotFound()
	}
	cp := *s
	return &cp, nil
}
func (f *fakeSessionRepo) Save(ctx context.Context, s session.Session) error {
	cp := s
	f.byHash[s.TokenHash] = &cp
	return nil
}
func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error                  { return nil }
func (f *fakeSessionRepo) DeleteByUser(ctx context.Context, userID kernel.UserID) error { return nil }
func (f *fakeSessionRepo) CleanExpired(ctx context.Context) (int64, error)              { return 0, nil }

type fakeUserRepo struct {
	byID map[kernel.UserID]*user.User
}

func newFakeUserRepo(users ...*user.User) *fakeUserRepo {
	f := &fakeUserRepo{byID: map[kernel.UserID]*user.User{}}
	for _, u := range users {
		cp := *u
		f.byID[u.ID] = &cp
	}
	return f
}

func (f *fakeUserRepo) Create(ctx context.Context, u user.User) error {
	cp := u
	f.byID[u.ID] = &cp
	return nil
}
func (f *fakeUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := f.byID[id]
	if !ok {
		return nil, user.ErrNotFound()
	}
	cp := *u
	return &cp, nil
}
func (f *fakeUserRepo) FindByProviderExternalID(ctx context.Context, provider string, externalID string) (*user.User, error) {
	return nil, user.ErrNotFound()
}
func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	return nil, user.ErrNotFound()
}
func (f *fakeUserRepo) Save(ctx context.Context, u user.User) error {
	cp := u
	f.byID[u.ID] = &cp
	return nil
}

func newTestPipeline(tenants *fakeTenantRepo, keys *fakeKeyRepo, sessions *fakeSessionRepo, users *fakeUserRepo, gateway admission.GatewayConfig) *admission.Pipeline {
	apiKeySvc := apikeysrv.NewService(keys, tenants)
	sessionSvc := sessionsrv.NewService(sessions, users, tenants, nil)
	store := cachex.NewStore(nil)
	return admission.NewPipeline(apiKeySvc, sessionSvc, users, tenants, store, gateway, admission.DefaultCSRFConfig())
}

func TestAuthRejectsWhenNoCredentialPresented(t *testing.T) {
	p := newTestPipeline(newFakeTenantRepo(), newFakeKeyRepo(), newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})

	app := newTestApp()
	app.Get("/protected", p.Auth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestAuthResolvesValidAPIKey(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	tn := tenant.NewFreeTenant(tid, "a@b.com", time.Now())
	tenants := newFakeTenantRepo(&tn)
	keys := newFakeKeyRepo()

	apiKeySvc := apikeysrv.NewService(keys, tenants)
	resp, err := apiKeySvc.Create(context.Background(), tid, apikey.CreateRequest{Name: "ci"})
	if err != nil {
		t.Fatalf("unexpected error creating key: %v", err)
	}

	p := newTestPipeline(tenants, keys, newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})

	var resolvedTenant kernel.TenantID
	app := newTestApp()
	app.Get("/protected", p.Auth(), func(c *fiber.Ctx) error {
		resolvedTenant = admission.AuthFromContext(c).TenantID
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+resp.SecretKey)
	httpResp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", httpResp.StatusCode)
	}
	if resolvedTenant != tid {
		t.Fatalf("expected resolved tenant %s, got %s", tid, resolvedTenant)
	}
}

func TestAuthResolvesBareSkPrefixedKey(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	tn := tenant.NewFreeTenant(tid, "a@b.com", time.Now())
	tenants := newFakeTenantRepo(&tn)
	keys := newFakeKeyRepo()

	apiKeySvc := apikeysrv.NewService(keys, tenants)
	resp, err := apiKeySvc.Create(context.Background(), tid, apikey.CreateRequest{Name: "ci"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	p := newTestPipeline(tenants, keys, newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})
	app := newTestApp()
	app.Get("/protected", p.Auth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", resp.SecretKey)
	httpResp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", httpResp.StatusCode)
	}
}

func TestAuthRejectsSuspendedTenantAPIKey(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	tn := tenant.NewFreeTenant(tid, "a@b.com", time.Now())
	tenants := newFakeTenantRepo(&tn)
	keys := newFakeKeyRepo()

	apiKeySvc := apikeysrv.NewService(keys, tenants)
	resp, err := apiKeySvc.Create(context.Background(), tid, apikey.CreateRequest{Name: "ci"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	suspended := tn
	suspended.IsActive = false
	tenants.Save(context.Background(), suspended)

	p := newTestPipeline(tenants, keys, newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})
	app := newTestApp()
	app.Get("/protected", p.Auth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+resp.SecretKey)
	httpResp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpResp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", httpResp.StatusCode)
	}
}

func TestAuthResolvesGatewayHeaders(t *testing.T) {
	tenants := newFakeTenantRepo()
	gateway := admission.GatewayConfig{
		Enabled:           true,
		ProxySecret:       "topsecret",
		ProxySecretHeader: "X-Gateway-Proxy-Secret",
		UserIDHeader:      "X-Gateway-User-Id",
		TierHeader:        "X-Gateway-Tier",
	}
	p := newTestPipeline(tenants, newFakeKeyRepo(), newFakeSessionRepo(), newFakeUserRepo(), gateway)

	var resolvedTier kernel.Tier
	app := newTestApp()
	app.Get("/protected", p.Auth(), func(c *fiber.Ctx) error {
		resolvedTier = admission.AuthFromContext(c).Tier
		return c.SendStatus(fiber.StatusOK)
	})

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("X-Gateway-Proxy-Secret", "topsecret")
	req.Header.Set("X-Gateway-User-Id", "gw-user-1")
	req.Header.Set("X-Gateway-Tier", "pro")
	httpResp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpResp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", httpResp.StatusCode)
	}
	if resolvedTier != kernel.TierPro {
		t.Fatalf("expected PRO tier, got %s", resolvedTier)
	}
}

func TestAuthRejectsWrongGatewaySecret(t *testing.T) {
	gateway := admission.GatewayConfig{
		Enabled:           true,
		ProxySecret:       "topsecret",
		ProxySecretHeader: "X-Gateway-Proxy-Secret",
		UserIDHeader:      "X-Gateway-User-Id",
		TierHeader:        "X-Gateway-Tier",
	}
	p := newTestPipeline(newFakeTenantRepo(), newFakeKeyRepo(), newFakeSessionRepo(), newFakeUserRepo(), gateway)

	app := newTestApp()
	app.Get("/protected", p.Auth(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/protected", nil)
	req.Header.Set("X-Gateway-Proxy-Secret", "wrong")
	req.Header.Set("X-Gateway-User-Id", "gw-user-1")
	httpResp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if httpResp.StatusCode != fiber.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", httpResp.StatusCode)
	}
}

func TestCSRFRejectsSessionPostWithoutToken(t *testing.T) {
	p := newTestPipeline(newFakeTenantRepo(), newFakeKeyRepo(), newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})

	app := newTestApp()
	app.Post("/dashboard/action", func(c *fiber.Ctx) error {
		uid := kernel.NewUserID("u1")
		c.Locals(kernel.AuthContextKey, &kernel.AuthContext{
			TenantID: kernel.NewTenantID("t1"),
			UserID:   &uid,
			Source:   kernel.AuthSourceSession,
		})
		return c.Next()
	}, p.CSRF(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodPost, "/dashboard/action", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusForbidden {
		t.Fatalf("expected 403, got %d", resp.StatusCode)
	}
}

func TestCSRFSkipsSafeMethods(t *testing.T) {
	p := newTestPipeline(newFakeTenantRepo(), newFakeKeyRepo(), newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})

	app := newTestApp()
	app.Get("/dashboard/view", p.CSRF(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/dashboard/view", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestCSRFAcceptsMatchingDoubleSubmit(t *testing.T) {
	p := newTestPipeline(newFakeTenantRepo(), newFakeKeyRepo(), newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})

	app := newTestApp()
	app.Post("/dashboard/action", func(c *fiber.Ctx) error {
		uid := kernel.NewUserID("u1")
		c.Locals(kernel.AuthContextKey, &kernel.AuthContext{
			TenantID: kernel.NewTenantID("t1"),
			UserID:   &uid,
			Source:   kernel.AuthSourceSession,
		})
		return c.Next()
	}, p.CSRF(), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodPost, "/dashboard/action", nil)
	req.Header.Set("Cookie", "csrf_token=abc123")
	req.Header.Set("X-CSRF-Token", "abc123")
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusOK {
		t.Fatalf("expected 200, got %d", resp.StatusCode)
	}
}

func TestQuotaPrecheckRejectsOverBudget(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	tn := tenant.NewFreeTenant(tid, "a@b.com", time.Now())
	tn.UsedCredits = tn.MonthlyCredits
	tenants := newFakeTenantRepo(&tn)

	p := newTestPipeline(tenants, newFakeKeyRepo(), newFakeSessionRepo(), newFakeUserRepo(), admission.GatewayConfig{})

	app := newTestApp()
	app.Get("/jobs", func(c *fiber.Ctx) error {
		c.Locals(kernel.AuthContextKey, &kernel.AuthContext{TenantID: tid, Tier: kernel.TierFree})
		return c.Next()
	}, p.QuotaPrecheck(func(c *fiber.Ctx) (usage.EventType, error) {
		return usage.EventScreenshot, nil
	}), func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest(fiber.MethodGet, "/jobs", nil)
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resp.StatusCode != fiber.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", resp.StatusCode)
	}
}

package subscription_test

import (
	"context"
	"testing"
	"time"

	"github.com/screencraft/api/pkg/billing/subscription"
	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/screencraft/api/pkg/logx"
)

type fakeTenants struct {
	byID map[kernel.TenantID]*tenant.Tenant
}

func newFakeTenants(ts ...tenant.Tenant) *fakeTenants {
	f := &fakeTenants{byID: make(map[kernel.TenantID]*tenant.Tenant)}
	for i := range ts {
		t := ts[i]
		f.byID[t.ID] = &t
	}
	return f
}

func (f *fakeTenants) Create(ctx context.Context, t tenant.Tenant) error { return nil }
func (f *fakeTenants) FindByID(ctx context.Context, id kernel.TenantID) (*tenant.Tenant, error) {
	t, ok := f.byID[id]
	if !ok {
		return nil, tenant.ErrNotFound()
	}
	cp := *t
	return &cp, nil
}
func (f *fakeTenants) FindByEmail(ctx context.Context, email string) (*tenant.Tenant, error) {
	return nil, tenant.ErrNotFound()
}
func (f *fakeTenants) Save(ctx context.Context, t tenant.Tenant) error {
	f.byID[t.ID] = &t
	return nil
}
func (f *fakeTenants) Deactivate(ctx context.Context, id kernel.TenantID) error {
	if t, ok := f.byID[id]; ok {
		t.IsActive = false
	}
	return nil
}
func (f *fakeTenants) FindStaleForReset(ctx context.Context, limit int) ([]*tenant.Tenant, error) {
	return nil, nil
}

type fakeSubs struct {
	processed map[string]bool
	current   map[kernel.TenantID]subscription.Subscription
}

func newFakeSubs() *fakeSubs {
	return &fakeSubs{processed: make(map[string]bool), current: make(map[kernel.TenantID]subscription.Subscription)}
}

func (f *fakeSubs) UpsertSubscription(ctx context.Context, s subscription.Subscription) error {
	f.current[s.TenantID] = s
	return nil
}
func (f *fakeSubs) MarkCanceled(ctx context.Context, tenantID string) error {
	id := kernel.NewTenantID(tenantID)
	s := f.current[id]
	s.Status = subscription.StatusCanceled
	f.current[id] = s
	return nil
}
func (f *fakeSubs) IsProcessed(ctx context.Context, providerEventID string) (bool, error) {
	return f.processed[providerEventID], nil
}
func (f *fakeSubs) RecordProcessed(ctx context.Context, providerEventID string, eventType subscription.EventType, raw []byte, procErr error) error {
	f.processed[providerEventID] = true
	return nil
}

func testLogger() *logx.Logger {
	return logx.NewLogger(nil)
}

func TestReconcileSubscriptionCreatedUpgradesTenant(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	subs := newFakeSubs()
	tenants := newFakeTenants(tenant.NewFreeTenant(tid, "a@b.com", time.Now()))
	r := subscription.NewReconciler(subs, tenants, testLogger())

	err := r.Reconcile(context.Background(), subscription.InboundEvent{
		ProviderEventID: "evt_1",
		EventType:       subscription.EventSubscriptionCreated,
		TenantID:        tid,
		Tier:            kernel.TierPro,
		Status:          subscription.StatusActive,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := tenants.FindByID(context.Background(), tid)
	if got.Tier != kernel.TierPro {
		t.Fatalf("expected tenant upgraded to PRO, got %s", got.Tier)
	}
	if !subs.processed["evt_1"] {
		t.Fatal("expected event marked as processed")
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	subs := newFakeSubs()
	subs.processed["evt_dup"] = true
	tenants := newFakeTenants(tenant.NewFreeTenant(tid, "a@b.com", time.Now()))
	r := subscription.NewReconciler(subs, tenants, testLogger())

	err := r.Reconcile(context.Background(), subscription.InboundEvent{
		ProviderEventID: "evt_dup",
		EventType:       subscription.EventSubscriptionCreated,
		TenantID:        tid,
		Tier:            kernel.TierEnterprise,
		Status:          subscription.StatusActive,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := tenants.FindByID(context.Background(), tid)
	if got.Tier != kernel.TierFree {
		t.Fatalf("expected already-processed event to be a no-op, tenant stayed %s", got.Tier)
	}
}

func TestReconcileSubscriptionDeletedDowngradesToFree(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	tn := tenant.NewFreeTenant(tid, "a@b.com", time.Now())
	tn.ApplySubscription(kernel.TierBusiness, time.Now())
	tn.UsedCredits = 500

	subs := newFakeSubs()
	tenants := newFakeTenants(tn)
	r := subscription.NewReconciler(subs, tenants, testLogger())

	err := r.Reconcile(context.Background(), subscription.InboundEvent{
		ProviderEventID: "evt_2",
		EventType:       subscription.EventSubscriptionDeleted,
		TenantID:        tid,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := tenants.FindByID(context.Background(), tid)
	if got.Tier != kernel.TierFree {
		t.Fatalf("expected downgrade to FREE, got %s", got.Tier)
	}
	if got.UsedCredits != 0 {
		t.Fatalf("expected used credits zeroed, got %d", got.UsedCredits)
	}
	if subs.current[tid].Status != subscription.StatusCanceled {
		t.Fatalf("expected subscription marked canceled, got %s", subs.current[tid].Status)
	}
}

func TestReconcileInvoiceFailedLeavesTierUnchanged(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	tn := tenant.NewFreeTenant(tid, "a@b.com", time.Now())
	tn.ApplySubscription(kernel.TierPro, time.Now())

	subs := newFakeSubs()
	tenants := newFakeTenants(tn)
	r := subscription.NewReconciler(subs, tenants, testLogger())

	err := r.Reconcile(context.Background(), subscription.InboundEvent{
		ProviderEventID: "evt_3",
		EventType:       subscription.EventInvoiceFailed,
		TenantID:        tid,
		Tier:            kernel.TierPro,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	got, _ := tenants.FindByID(context.Background(), tid)
	if got.Tier != kernel.TierPro {
		t.Fatalf("expected tier unchanged on invoice failure, got %s", got.Tier)
	}
	if subs.current[tid].Status != subscription.StatusPastDue {
		t.Fatalf("expected subscription marked past due, got %s", subs.current[tid].Status)
	}
}

func TestReconcileUnknownEventType(t *testing.T) {
	tid := kernel.NewTenantID("t1")
	subs := newFakeSubs()
	tenants := newFakeTenants(tenant.NewFreeTenant(tid, "a@b.com", time.Now()))
	r := subscription.NewReconciler(subs, tenants, testLogger())

	err := r.Reconcile(context.Background(), subscription.InboundEvent{
		ProviderEventID: "evt_4",
		EventType:       subscription.EventType("bogus.event"),
		TenantID:        tid,
	})
	if err == nil {
		t.Fatal("expected error for unknown event type")
	}
	if !subs.processed["evt_4"] {
		t.Fatal("expected outcome recorded even on failure")
	}
}

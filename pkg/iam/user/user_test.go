package user_test

import (
	"testing"
	"time"

	"github.com/screencraft/api/pkg/iam"
	"github.com/screencraft/api/pkg/iam/user"
	"github.com/screencraft/api/pkg/kernel"
)

func TestTouchLoginStampsTimestamps(t *testing.T) {
	u := user.User{
		ID:       kernel.NewUserID("u1"),
		TenantID: kernel.NewTenantID("t1"),
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	u.TouchLogin(now)

	if !u.LastLoginAt.Equal(now) {
		t.Fatalf("expected last_login_at %v, got %v", now, u.LastLoginAt)
	}
	if !u.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at %v, got %v", now, u.UpdatedAt)
	}
}

func TestLinkProviderAttachesNewIdentity(t *testing.T) {
	u := user.User{
		ID:       kernel.NewUserID("u1"),
		TenantID: kernel.NewTenantID("t1"),
		Provider: iam.OAuthProviderGoogle,
	}
	profile := user.Profile{
		Provider:    iam.OAuthProviderMicrosoft,
		ExternalID:  "ms-123",
		Email:       "a@b.com",
		DisplayName: "A B",
	}
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	u.LinkProvider(profile, now)

	if u.Provider != iam.OAuthProviderMicrosoft {
		t.Fatalf("expected provider to switch to microsoft, got %s", u.Provider)
	}
	if u.ExternalID != "ms-123" {
		t.Fatalf("expected external_id to update, got %s", u.ExternalID)
	}
	if !u.UpdatedAt.Equal(now) {
		t.Fatalf("expected updated_at stamped, got %v", u.UpdatedAt)
	}
}

func TestErrNotFoundIs404(t *testing.T) {
	err := user.ErrNotFound()
	if err.HTTPStatus != 404 {
		t.Fatalf("expected 404, got %d", err.HTTPStatus)
	}
	if err.Code != "USER_NOT_FOUND" {
		t.Fatalf("expected USER_NOT_FOUND code, got %s", err.Code)
	}
}

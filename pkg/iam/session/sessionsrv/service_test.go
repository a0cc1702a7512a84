package sessionsrv_test

import (
	"context"
	"testing"

	"github.com/screencraft/api/pkg/iam/session"
	"github.com/screencraft/api/pkg/iam/session/sessionsrv"
	"github.com/screencraft/api/pkg/iam/user"
	"github.com/screencraft/api/pkg/kernel"
)

type fakeSessionRepo struct {
	byHash map[string]*session.Session
	byID   map[string]*session.Session
}

func newFakeSessionRepo() *fakeSessionRepo {
	return &fakeSessionRepo{byHash: map[string]*session.Session{}, byID: map[string]*session.Session{}}
}

func (f *fakeSessionRepo) Create(ctx context.Context, s session.Session) error {
	cp := s
	f.byHash[s.TokenHash] = &cp
	f.byID[s.ID] = &cp
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
	if _, ok := f.byID[s.ID]; !ok {
		return session.ErrNotFound()
	}
	cp := s
	f.byID[s.ID] = &cp
	f.byHash[s.TokenHash] = &cp
	return nil
}
func (f *fakeSessionRepo) Delete(ctx context.Context, id string) error {
	if s, ok := f.byID[id]; ok {
		delete(f.byHash, s.TokenHash)
		delete(f.byID, id)
	}
	return nil
}
func (f *fakeSessionRepo) DeleteByUser(ctx context.Context, userID kernel.UserID) error {
	for id, s := range f.byID {
		if s.UserID == userID {
			delete(f.byHash, s.TokenHash)
			delete(f.byID, id)
		}
	}
	return nil
}
func (f *fakeSessionRepo) CleanExpired(ctx context.Context) (int64, error) { return 0, nil }

type fakeUserRepo struct {
	byID       map[string]*user.User
	byProvider map[string]*user.User
	byEmail    map[string]*user.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:       map[string]*user.User{},
		byProvider: map[string]*user.User{},
		byEmail:    map[string]*user.User{},
	}
}

func (f *fakeUserRepo) index(u *user.User) {
	f.byID[u.ID.String()] = u
	f.byProvider[string(u.Provider)+":"+u.ExternalID] = u
	f.byEmail[u.Email] = u
}

func (f *fakeUserRepo) Create(ctx context.Context, u user.User) error {
	cp := u
	f.index(&cp)
	return nil
}
func (f *fakeUserRepo) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	u, ok := f.byID[id.String()]
	if !ok {
		return nil, user.ErrNotFound()
	}
	cp := *u
	return &cp, nil
}
func (f *fakeUserRepo) FindByProviderExternalID(ctx context.Context, provider string, externalID string) (*user.User, error) {
	u, ok := f.byProvider[provider+":"+externalID]
	if !ok {
		return nil, user.ErrNotFound()
	}
	cp := *u
	return &cp, nil
}
func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	u, ok := f.byEmail[email]
	if !ok {
		return nil, user.ErrNotFound()
	}
	cp := *u
	return &cp, nil
}
func (f *fakeUserRepo) Save(ctx context.Context, u user.User) error {
	cp := u
	f.index(&cp)
	return nil
}

func TestIssueThenValidateRoundTrip(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := sessionsrv.NewService(sessions, newFakeUserRepo(), nil, nil)

	uid := kernel.NewUserID("u1")
	gen, err := svc.Issue(context.Background(), uid, "curl/8", "127.0.0.1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	validated, err := svc.Validate(context.Background(), gen.Plaintext)
	if err != nil {
		t.Fatalf("unexpected error validating freshly issued session: %v", err)
	}
	if validated.UserID != uid {
		t.Fatalf("expected session to resolve to user %s, got %s", uid, validated.UserID)
	}
}

func TestValidateRejectsUnknownToken(t *testing.T) {
	svc := sessionsrv.NewService(newFakeSessionRepo(), newFakeUserRepo(), nil, nil)
	if _, err := svc.Validate(context.Background(), "bogus"); err == nil {
		t.Fatal("expected validation of an unknown token to fail")
	}
}

func TestResolveFindsExistingProviderLink(t *testing.T) {
	users := newFakeUserRepo()
	existing := user.User{
		ID:         kernel.NewUserID("u1"),
		TenantID:   kernel.NewTenantID("t1"),
		Email:      "a@b.com",
		Provider:   "GOOGLE",
		ExternalID: "google-42",
	}
	users.index(&existing)

	svc := sessionsrv.NewService(newFakeSessionRepo(), users, nil, nil)
	resolved, err := svc.Resolve(context.Background(), user.Profile{
		Provider:   "GOOGLE",
		ExternalID: "google-42",
		Email:      "a@b.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.ID != existing.ID {
		t.Fatalf("expected to resolve existing user %s, got %s", existing.ID, resolved.ID)
	}
	if resolved.LastLoginAt.IsZero() {
		t.Fatal("expected last_login_at to be stamped on resolution")
	}
}

func TestResolveAttachesLinkByEmail(t *testing.T) {
	users := newFakeUserRepo()
	existing := user.User{
		ID:       kernel.NewUserID("u1"),
		TenantID: kernel.NewTenantID("t1"),
		Email:    "a@b.com",
	}
	users.index(&existing)

	svc := sessionsrv.NewService(newFakeSessionRepo(), users, nil, nil)
	resolved, err := svc.Resolve(context.Background(), user.Profile{
		Provider:   "MICROSOFT",
		ExternalID: "ms-99",
		Email:      "a@b.com",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if resolved.Provider != "MICROSOFT" || resolved.ExternalID != "ms-99" {
		t.Fatalf("expected provider link to be attached, got %s/%s", resolved.Provider, resolved.ExternalID)
	}
}

func TestLogoutAllRemovesEverySessionForUser(t *testing.T) {
	sessions := newFakeSessionRepo()
	svc := sessionsrv.NewService(sessions, newFakeUserRepo(), nil, nil)

	uid := kernel.NewUserID("u1")
	g1, _ := svc.Issue(context.Background(), uid, "ua", "ip")
	g2, _ := svc.Issue(context.Background(), uid, "ua", "ip")

	if err := svc.LogoutAll(context.Background(), uid); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.Validate(context.Background(), g1.Plaintext); err == nil {
		t.Fatal("expected first session to be revoked")
	}
	if _, err := svc.Validate(context.Background(), g2.Plaintext); err == nil {
		t.Fatal("expected second session to be revoked")
	}
}

// Package sessionsrv implements session validation and the OAuth resolution
// contract (spec §4.2).
package sessionsrv

import (
	"context"
	"time"

	"github.com/screencraft/api/pkg/billing/tenant"
	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/iam/session"
	"github.com/screencraft/api/pkg/iam/user"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// isNotFound reports whether err is the user package's not-found sentinel,
// matched by code rather than identity since ErrNotFound() allocates fresh.
func isNotFound(err error) bool {
	e, ok := err.(*errx.Error)
	return ok && e.Code == user.CodeNotFound.Code
}

// Service validates dashboard sessions and resolves OAuth callbacks into a
// User, creating the backing Tenant the first time a new person signs in.
type Service struct {
	sessions session.Repository
	users    user.Repository
	tenants  tenant.Repository
	db       *sqlx.DB
}

func NewService(sessions session.Repository, users user.Repository, tenants tenant.Repository, db *sqlx.DB) *Service {
	return &Service{sessions: sessions, users: users, tenants: tenants, db: db}
}

// Issue mints a new session for an already-resolved user.
func (s *Service) Issue(ctx context.Context, userID kernel.UserID, userAgent, ipAddress string) (*session.Generated, error) {
	gen, err := session.GenerateToken()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	sess := session.Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		TokenHash: gen.TokenHash,
		ExpiresAt: now.Add(session.DefaultTTL),
		UserAgent: userAgent,
		IPAddress: ipAddress,
		CreatedAt: now,
	}
	if err := s.sessions.Create(ctx, sess); err != nil {
		return nil, err
	}
	return gen, nil
}

// Validate digests the token, loads the session, and applies the
// sliding-window extension rule: extend to now+7d if within 24h of expiry,
// delete it and return ErrNotFound (401) if already expired (§4.2).
func (s *Service) Validate(ctx context.Context, plaintext string) (*session.Session, error) {
	tokenHash := session.HashToken(plaintext)
	sess, err := s.sessions.FindByTokenHash(ctx, tokenHash)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	if sess.IsExpired(now) {
		_ = s.sessions.Delete(ctx, sess.ID)
		return nil, session.ErrNotFound()
	}

	if sess.NeedsExtension(now) {
		sess.Extend(now)
		if err := s.sessions.Save(ctx, *sess); err != nil {
			return nil, err
		}
	}

	return sess, nil
}

// Logout revokes a single session.
func (s *Service) Logout(ctx context.Context, sessionID string) error {
	return s.sessions.Delete(ctx, sessionID)
}

// LogoutAll revokes every session belonging to a user.
func (s *Service) LogoutAll(ctx context.Context, userID kernel.UserID) error {
	return s.sessions.DeleteByUser(ctx, userID)
}

// Resolve implements the three-branch OAuth contract: find by
// (provider, external_id) link, else find by email and attach the link,
// else create a new Tenant+User atomically. last_login_at is refreshed on
// every successful resolution regardless of branch.
func (s *Service) Resolve(ctx context.Context, profile user.Profile) (*user.User, error) {
	now := time.Now().UTC()

	if u, err := s.users.FindByProviderExternalID(ctx, string(profile.Provider), profile.ExternalID); err == nil {
		u.TouchLogin(now)
		if err := s.users.Save(ctx, *u); err != nil {
			return nil, err
		}
		return u, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	if u, err := s.users.FindByEmail(ctx, profile.Email); err == nil {
		u.LinkProvider(profile, now)
		u.TouchLogin(now)
		if err := s.users.Save(ctx, *u); err != nil {
			return nil, err
		}
		return u, nil
	} else if !isNotFound(err) {
		return nil, err
	}

	return s.createTenantAndUser(ctx, profile, now)
}

// createTenantAndUser inserts a FREE-tier Tenant and its first User in a
// single transaction, the same direct-sqlx idiom usage.Accountant uses for
// a debit that must not tear across two tables.
func (s *Service) createTenantAndUser(ctx context.Context, profile user.Profile, now time.Time) (*user.User, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, errx.Wrap(err, "failed to begin onboarding transaction", errx.TypeInternal)
	}
	defer tx.Rollback()

	t := tenant.NewFreeTenant(kernel.NewTenantID(uuid.NewString()), profile.Email, now)
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO tenants (id, email, tier, monthly_credits, used_credits, last_reset_at, webhook_url, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		t.ID.String(), t.Email, string(t.Tier), t.MonthlyCredits, t.UsedCredits, t.LastResetAt, t.WebhookURL, t.IsActive, t.CreatedAt, t.UpdatedAt,
	); err != nil {
		return nil, errx.Wrap(err, "failed to create onboarding tenant", errx.TypeInternal)
	}

	u := user.User{
		ID:          kernel.NewUserID(uuid.NewString()),
		TenantID:    t.ID,
		Email:       profile.Email,
		DisplayName: profile.DisplayName,
		AvatarURL:   profile.AvatarURL,
		Provider:    profile.Provider,
		ExternalID:  profile.ExternalID,
		LastLoginAt: now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO users (id, tenant_id, email, display_name, avatar_url, provider, external_id, last_login_at, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		u.ID.String(), u.TenantID.String(), u.Email, u.DisplayName, u.AvatarURL, string(u.Provider), u.ExternalID, u.LastLoginAt, u.CreatedAt, u.UpdatedAt,
	); err != nil {
		return nil, errx.Wrap(err, "failed to create onboarding user", errx.TypeInternal)
	}

	if err := tx.Commit(); err != nil {
		return nil, errx.Wrap(err, "failed to commit onboarding transaction", errx.TypeInternal)
	}

	return &u, nil
}

// CleanExpired runs the administrative session sweep.
func (s *Service) CleanExpired(ctx context.Context) (int64, error) {
	return s.sessions.CleanExpired(ctx)
}

// Package userinfra is the PostgreSQL implementation of user.Repository.
package userinfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/iam"
	"github.com/screencraft/api/pkg/iam/user"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PostgresUserRepository struct {
	db *sqlx.DB
}

func NewPostgresUserRepository(db *sqlx.DB) user.Repository {
	return &PostgresUserRepository{db: db}
}

type userPersistence struct {
	ID          string    `db:"id"`
	TenantID    string    `db:"tenant_id"`
	Email       string    `db:"email"`
	DisplayName string    `db:"display_name"`
	AvatarURL   sql.NullString `db:"avatar_url"`
	Provider    string    `db:"provider"`
	ExternalID  string    `db:"external_id"`
	LastLoginAt time.Time `db:"last_login_at"`
	CreatedAt   time.Time `db:"created_at"`
	UpdatedAt   time.Time `db:"updated_at"`
}

func toPersistence(u user.User) userPersistence {
	return userPersistence{
		ID:          u.ID.String(),
		TenantID:    u.TenantID.String(),
		Email:       u.Email,
		DisplayName: u.DisplayName,
		AvatarURL:   sql.NullString{String: u.AvatarURL, Valid: u.AvatarURL != ""},
		Provider:    string(u.Provider),
		ExternalID:  u.ExternalID,
		LastLoginAt: u.LastLoginAt,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
	}
}

func toDomain(p userPersistence) user.User {
	return user.User{
		ID:          kernel.NewUserID(p.ID),
		TenantID:    kernel.NewTenantID(p.TenantID),
		Email:       p.Email,
		DisplayName: p.DisplayName,
		AvatarURL:   p.AvatarURL.String,
		Provider:    iam.OAuthProvider(p.Provider),
		ExternalID:  p.ExternalID,
		LastLoginAt: p.LastLoginAt,
		CreatedAt:   p.CreatedAt,
		UpdatedAt:   p.UpdatedAt,
	}
}

func (r *PostgresUserRepository) Create(ctx context.Context, u user.User) error {
	query := `
		INSERT INTO users (id, tenant_id, email, display_name, avatar_url, provider, external_id, last_login_at, created_at, updated_at)
		VALUES (:id, :tenant_id, :email, :display_name, :avatar_url, :provider, :external_id, :last_login_at, :created_at, :updated_at)`
	_, err := r.db.NamedExecContext(ctx, query, toPersistence(u))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errx.Conflict("user already exists").WithDetail("user_id", u.ID.String())
		}
		return errx.Wrap(err, "failed to create user", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresUserRepository) FindByID(ctx context.Context, id kernel.UserID) (*user.User, error) {
	var p userPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM users WHERE id = $1`, id.String())
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user", errx.TypeInternal)
	}
	u := toDomain(p)
	return &u, nil
}

func (r *PostgresUserRepository) FindByProviderExternalID(ctx context.Context, provider string, externalID string) (*user.User, error) {
	var p userPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM users WHERE provider = $1 AND external_id = $2`, provider, externalID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by provider link", errx.TypeInternal)
	}
	u := toDomain(p)
	return &u, nil
}

func (r *PostgresUserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var p userPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM users WHERE email = $1`, email)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, user.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find user by email", errx.TypeInternal)
	}
	u := toDomain(p)
	return &u, nil
}

func (r *PostgresUserRepository) Save(ctx context.Context, u user.User) error {
	query := `
		UPDATE users SET
			display_name = :display_name, avatar_url = :avatar_url, provider = :provider,
			external_id = :external_id, last_login_at = :last_login_at, updated_at = :updated_at
		WHERE id = :id`
	result, err := r.db.NamedExecContext(ctx, query, toPersistence(u))
	if err != nil {
		return errx.Wrap(err, "failed to save user", errx.TypeInternal)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return user.ErrNotFound()
	}
	return nil
}

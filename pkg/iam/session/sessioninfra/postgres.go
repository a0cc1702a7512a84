// Package sessioninfra is the PostgreSQL implementation of session.Repository.
package sessioninfra

import (
	"context"
	"database/sql"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/iam/session"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
)

type PostgresSessionRepository struct {
	db *sqlx.DB
}

func NewPostgresSessionRepository(db *sqlx.DB) session.Repository {
	return &PostgresSessionRepository{db: db}
}

type sessionPersistence struct {
	ID        string    `db:"id"`
	UserID    string    `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	UserAgent sql.NullString `db:"user_agent"`
	IPAddress sql.NullString `db:"ip_address"`
	CreatedAt time.Time `db:"created_at"`
}

func toPersistence(s session.Session) sessionPersistence {
	return sessionPersistence{
		ID:        s.ID,
		UserID:    s.UserID.String(),
		TokenHash: s.TokenHash,
		ExpiresAt: s.ExpiresAt,
		UserAgent: sql.NullString{String: s.UserAgent, Valid: s.UserAgent != ""},
		IPAddress: sql.NullString{String: s.IPAddress, Valid: s.IPAddress != ""},
		CreatedAt: s.CreatedAt,
	}
}

func toDomain(p sessionPersistence) session.Session {
	return session.Session{
		ID:        p.ID,
		UserID:    kernel.NewUserID(p.UserID),
		TokenHash: p.TokenHash,
		ExpiresAt: p.ExpiresAt,
		UserAgent: p.UserAgent.String,
		IPAddress: p.IPAddress.String,
		CreatedAt: p.CreatedAt,
	}
}

func (r *PostgresSessionRepository) Create(ctx context.Context, s session.Session) error {
	query := `
		INSERT INTO sessions (id, user_id, token_hash, expires_at, user_agent, ip_address, created_at)
		VALUES (:id, :user_id, :token_hash, :expires_at, :user_agent, :ip_address, :created_at)`
	_, err := r.db.NamedExecContext(ctx, query, toPersistence(s))
	if err != nil {
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
			return errx.Conflict("session token collision").WithDetail("session_id", s.ID)
		}
		return errx.Wrap(err, "failed to create session", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSessionRepository) FindByTokenHash(ctx context.Context, tokenHash string) (*session.Session, error) {
	var p sessionPersistence
	err := r.db.GetContext(ctx, &p, `SELECT * FROM sessions WHERE token_hash = $1`, tokenHash)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, session.ErrNotFound()
		}
		return nil, errx.Wrap(err, "failed to find session", errx.TypeInternal)
	}
	s := toDomain(p)
	return &s, nil
}

func (r *PostgresSessionRepository) Save(ctx context.Context, s session.Session) error {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE sessions SET expires_at = :expires_at WHERE id = :id`, toPersistence(s))
	if err != nil {
		return errx.Wrap(err, "failed to save session", errx.TypeInternal)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return session.ErrNotFound()
	}
	return nil
}

func (r *PostgresSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE id = $1`, id)
	if err != nil {
		return errx.Wrap(err, "failed to delete session", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSessionRepository) DeleteByUser(ctx context.Context, userID kernel.UserID) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE user_id = $1`, userID.String())
	if err != nil {
		return errx.Wrap(err, "failed to delete user sessions", errx.TypeInternal)
	}
	return nil
}

func (r *PostgresSessionRepository) CleanExpired(ctx context.Context) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM sessions WHERE expires_at < NOW()`)
	if err != nil {
		return 0, errx.Wrap(err, "failed to sweep expired sessions", errx.TypeInternal)
	}
	n, _ := result.RowsAffected()
	return n, nil
}

// Package session is the dashboard-user session store: opaque-secret
// sessions with sliding-window expiry (spec §3 Session, §4.2).
package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("SESSION")

var CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeAuthorization, http.StatusUnauthorized, "Session not found or expired")

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

// DefaultTTL is the session lifetime stamped at creation and on each
// sliding-window extension (§4.2: "default 7-day expiry").
const DefaultTTL = 7 * 24 * time.Hour

// ExtendWithin is how close to expiry a validation must land to trigger a
// sliding-window extension (§4.2: "within 24 h of expiry").
const ExtendWithin = 24 * time.Hour

// Generated is the one-time plaintext session token.
type Generated struct {
	Plaintext string
	TokenHash string
}

// GenerateToken mints a new opaque session secret with the same discipline
// as API keys: 32 bytes of randomness, hex-encoded, SHA-256 digest stored.
func GenerateToken() (*Generated, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, errx.Wrap(err, "failed to generate session token entropy", errx.TypeInternal)
	}
	plaintext := hex.EncodeToString(buf)
	return &Generated{Plaintext: plaintext, TokenHash: HashToken(plaintext)}, nil
}

func HashToken(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// Session is the persisted dashboard session record.
type Session struct {
	ID        string
	UserID    kernel.UserID
	TokenHash string
	ExpiresAt time.Time
	UserAgent string
	IPAddress string
	CreatedAt time.Time
}

// IsExpired reports whether the session has passed its expiry.
func (s *Session) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}

// NeedsExtension reports whether a validation at `now` falls within the
// sliding-window threshold of expiry.
func (s *Session) NeedsExtension(now time.Time) bool {
	return s.ExpiresAt.Sub(now) <= ExtendWithin
}

// Extend pushes expiry to now + DefaultTTL, the sliding-window refresh.
func (s *Session) Extend(now time.Time) {
	s.ExpiresAt = now.Add(DefaultTTL)
}

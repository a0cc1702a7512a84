// Package apikey is the tenant-facing credential used to authenticate render
// requests (spec §3 APIKey, §4.1 Identity & Key Store).
package apikey

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"regexp"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("APIKEY")

var (
	CodeInvalid  = ErrRegistry.Register("INVALID_API_KEY", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid API key")
	CodeRevoked  = ErrRegistry.Register("REVOKED_API_KEY", errx.TypeAuthorization, http.StatusUnauthorized, "API key has been revoked")
	CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "API key not found")
)

func ErrInvalid() *errx.Error  { return ErrRegistry.New(CodeInvalid) }
func ErrRevoked() *errx.Error  { return ErrRegistry.New(CodeRevoked) }
func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

// Environment selects the key's live/test namespace, encoded directly in
// the key string so routing and logging never need a database lookup to
// tell them apart.
type Environment string

const (
	EnvLive Environment = "live"
	EnvTest Environment = "test"
)

var keyFormat = regexp.MustCompile(`^sk_(live|test)_[0-9a-f]{64}$`)

// Generated is the one-time plaintext material returned at creation. The
// plaintext is never persisted; only KeyHash and Prefix survive past this
// call.
type Generated struct {
	Plaintext string
	KeyHash   string
	Prefix    string
}

// GenerateAPIKey mints a new secret of the form sk_{live|test}_{64hex},
// the hex encoding of 32 bytes of crypto/rand, per §4.1's exact wire format.
func GenerateAPIKey(env Environment) (*Generated, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return nil, errx.Wrap(err, "failed to generate API key entropy", errx.TypeInternal)
	}
	hexPart := hex.EncodeToString(buf)
	plaintext := "sk_" + string(env) + "_" + hexPart

	return &Generated{
		Plaintext: plaintext,
		KeyHash:   HashAPIKey(plaintext),
		Prefix:    hexPart[:8],
	}, nil
}

// HashAPIKey returns the SHA-256 digest stored in place of the plaintext key.
func HashAPIKey(plaintext string) string {
	sum := sha256.Sum256([]byte(plaintext))
	return hex.EncodeToString(sum[:])
}

// ValidateAPIKeyFormat reports whether a string is shaped like a key this
// service could have issued, before paying for a hash + lookup.
func ValidateAPIKeyFormat(plaintext string) bool {
	return keyFormat.MatchString(plaintext)
}

// APIKey is the persisted credential record. The plaintext secret is never
// stored; only its digest and a short display prefix survive (§3, §9
// privacy: "never logged or persisted in plaintext").
type APIKey struct {
	ID         string
	TenantID   kernel.TenantID
	KeyHash    string
	Prefix     string
	Name       string
	IsActive   bool
	CreatedAt  time.Time
	LastUsedAt *time.Time
	RevokedAt  *time.Time
}

// IsValid reports whether the key may still authenticate a request.
func (k *APIKey) IsValid() bool {
	return k.IsActive && k.RevokedAt == nil
}

// Revoke permanently disables the key. Revocation is irreversible (§4.1).
func (k *APIKey) Revoke(now time.Time) {
	k.IsActive = false
	k.RevokedAt = &now
}

// DTO is the API-facing representation; it never carries KeyHash.
type DTO struct {
	ID         string     `json:"id"`
	Prefix     string     `json:"prefix"`
	Name       string     `json:"name"`
	IsActive   bool       `json:"isActive"`
	CreatedAt  time.Time  `json:"createdAt"`
	LastUsedAt *time.Time `json:"lastUsedAt,omitempty"`
	RevokedAt  *time.Time `json:"revokedAt,omitempty"`
}

func (k *APIKey) ToDTO() DTO {
	return DTO{
		ID:         k.ID,
		Prefix:     k.Prefix,
		Name:       k.Name,
		IsActive:   k.IsActive,
		CreatedAt:  k.CreatedAt,
		LastUsedAt: k.LastUsedAt,
		RevokedAt:  k.RevokedAt,
	}
}

// CreateRequest is the dashboard-facing key creation payload.
type CreateRequest struct {
	Name        string
	Environment Environment
}

// CreateResponse carries the one and only appearance of the plaintext secret.
type CreateResponse struct {
	APIKey    DTO    `json:"apiKey"`
	SecretKey string `json:"secretKey"`
}

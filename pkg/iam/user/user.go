// Package user is the dashboard-facing identity behind a Session, distinct
// from the Tenant account it belongs to (spec §3 Session, §4.2 OAuth).
package user

import (
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/iam"
	"github.com/screencraft/api/pkg/kernel"
)

var ErrRegistry = errx.NewRegistry("USER")

var CodeNotFound = ErrRegistry.Register("NOT_FOUND", errx.TypeNotFound, http.StatusNotFound, "User not found")

func ErrNotFound() *errx.Error { return ErrRegistry.New(CodeNotFound) }

// User is a dashboard identity tied to exactly one OAuth provider link. A
// user always belongs to a tenant account, created alongside it the first
// time that person signs in (§4.2).
type User struct {
	ID          kernel.UserID
	TenantID    kernel.TenantID
	Email       string
	DisplayName string
	AvatarURL   string
	Provider    iam.OAuthProvider
	ExternalID  string
	LastLoginAt time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Profile is the provider payload presented at OAuth callback time.
type Profile struct {
	Provider    iam.OAuthProvider
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
}

// TouchLogin stamps the login timestamp, called on every successful
// resolution whether the user is new, linked, or already known (§4.2).
func (u *User) TouchLogin(now time.Time) {
	u.LastLoginAt = now
	u.UpdatedAt = now
}

// LinkProvider attaches a provider identity to a user found by email, the
// "attach the link" branch of the OAuth resolution contract.
func (u *User) LinkProvider(p Profile, now time.Time) {
	u.Provider = p.Provider
	u.ExternalID = p.ExternalID
	u.UpdatedAt = now
}

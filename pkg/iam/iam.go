// Package iam holds the identity sub-packages shared across the admission
// pipeline: api keys (pkg/iam/apikey) and dashboard sessions (pkg/iam/session).
package iam

import (
	"net/http"

	"github.com/screencraft/api/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("IAM")

var (
	CodeUnauthorized = ErrRegistry.Register("AUTHENTICATION_REQUIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Authentication required")
	CodeInvalidToken = ErrRegistry.Register("INVALID_AUTH_FORMAT", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid authorization header format")
	CodeAccessDenied = ErrRegistry.Register("FORBIDDEN", errx.TypeAuthorization, http.StatusForbidden, "Access denied")
)

func ErrUnauthorized() *errx.Error { return ErrRegistry.New(CodeUnauthorized) }
func ErrInvalidToken() *errx.Error { return ErrRegistry.New(CodeInvalidToken) }
func ErrAccessDenied() *errx.Error { return ErrRegistry.New(CodeAccessDenied) }

// OAuthProvider identifies the external identity provider that linked a
// dashboard user, per §4.2's OAuth profile contract.
type OAuthProvider string

const (
	OAuthProviderGoogle    OAuthProvider = "GOOGLE"
	OAuthProviderMicrosoft OAuthProvider = "MICROSOFT"
)

func (p OAuthProvider) GetProviderName() string {
	switch p {
	case OAuthProviderGoogle:
		return "Google"
	case OAuthProviderMicrosoft:
		return "Microsoft"
	default:
		return "Unknown"
	}
}

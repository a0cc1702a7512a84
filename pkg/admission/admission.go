// Package admission is the ordered filter chain applied to every protected
// endpoint: auth resolution, tier rate limiting, CSRF for cookie-session
// auth, and quota precheck (spec §4.4).
package admission

import (
	"net/http"

	"github.com/screencraft/api/pkg/errx"
)

var ErrRegistry = errx.NewRegistry("ADMISSION")

var (
	CodeAuthRequired  = ErrRegistry.Register("AUTHENTICATION_REQUIRED", errx.TypeAuthorization, http.StatusUnauthorized, "Authentication required")
	CodeRateLimited   = ErrRegistry.Register("RATE_LIMIT_EXCEEDED", errx.TypeBusiness, http.StatusTooManyRequests, "Too many requests")
	CodeCSRFMismatch  = ErrRegistry.Register("CSRF_MISMATCH", errx.TypeAuthorization, http.StatusForbidden, "CSRF token missing or invalid")
	CodeGatewayDenied = ErrRegistry.Register("GATEWAY_DENIED", errx.TypeAuthorization, http.StatusUnauthorized, "Invalid gateway proxy secret")
)

func ErrAuthRequired() *errx.Error  { return ErrRegistry.New(CodeAuthRequired) }
func ErrRateLimited() *errx.Error   { return ErrRegistry.New(CodeRateLimited) }
func ErrCSRFMismatch() *errx.Error  { return ErrRegistry.New(CodeCSRFMismatch) }
func ErrGatewayDenied() *errx.Error { return ErrRegistry.New(CodeGatewayDenied) }

package session

import (
	"fmt"
	"net/http"
	"time"

	"github.com/screencraft/api/pkg/errx"
	"github.com/screencraft/api/pkg/kernel"
	"github.com/golang-jwt/jwt/v5"
)

var (
	CodeTokenGenerationFailed = ErrRegistry.Register("TOKEN_GENERATION_FAILED", errx.TypeInternal, http.StatusInternalServerError, "Failed to generate access token")
	CodeTokenInvalid          = ErrRegistry.Register("TOKEN_INVALID", errx.TypeAuthorization, http.StatusUnauthorized, "Access token is invalid or expired")
)

// JWTClaims is the short-lived dashboard access token issued alongside a
// session cookie, scoped to a single tenant and user.
type JWTClaims struct {
	UserID   kernel.UserID   `json:"user_id"`
	TenantID kernel.TenantID `json:"tenant_id"`
	jwt.RegisteredClaims
}

// JWTIssuer mints and validates short-lived access tokens. Unlike the
// opaque session token, it carries no server-side state: expiry alone
// bounds its lifetime, so it is deliberately short (§4.2, no refresh-token
// flow — the sliding-window session cookie plays that role instead).
type JWTIssuer struct {
	secretKey []byte
	ttl       time.Duration
	issuer    string
}

func NewJWTIssuer(secretKey string, ttl time.Duration, issuer string) *JWTIssuer {
	if ttl == 0 {
		ttl = 15 * time.Minute
	}
	if issuer == "" {
		issuer = "screencraft"
	}
	return &JWTIssuer{secretKey: []byte(secretKey), ttl: ttl, issuer: issuer}
}

func (j *JWTIssuer) Generate(userID kernel.UserID, tenantID kernel.TenantID) (string, error) {
	now := time.Now()
	claims := JWTClaims{
		UserID:   userID,
		TenantID: tenantID,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    j.issuer,
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(j.secretKey)
	if err != nil {
		return "", ErrRegistry.New(CodeTokenGenerationFailed).WithDetail("error", err.Error())
	}
	return signed, nil
}

func (j *JWTIssuer) Validate(tokenString string) (*JWTClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &JWTClaims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return j.secretKey, nil
	})
	if err != nil || !token.Valid {
		return nil, ErrRegistry.New(CodeTokenInvalid)
	}

	claims, ok := token.Claims.(*JWTClaims)
	if !ok {
		return nil, ErrRegistry.New(CodeTokenInvalid)
	}
	return claims, nil
}

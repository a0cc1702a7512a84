package cachex

import (
	"context"
	"strings"
	"time"
)

// LoginLimiter throttles brute-force login attempts keyed by IP and the
// attempted email, so an attacker cycling emails from one address and an
// attacker cycling addresses against one email are both caught (§4.3:
// 5/900s, 1800s blockout, key `login:{ip}:{email_lowercase}`).
type LoginLimiter struct {
	limiter *FixedWindowLimiter
}

func NewLoginLimiter(store *Store) *LoginLimiter {
	return &LoginLimiter{limiter: NewFixedWindowLimiter(store, "login", 5, 900*time.Second, 1800*time.Second)}
}

func loginKey(ip, email string) string {
	return ip + ":" + strings.ToLower(email)
}

func (l *LoginLimiter) Check(ctx context.Context, ip, email string) (Decision, error) {
	return l.limiter.Check(ctx, loginKey(ip, email))
}

// Reset clears the attempt counter after a successful login.
func (l *LoginLimiter) Reset(ctx context.Context, ip, email string) error {
	return l.limiter.Reset(ctx, loginKey(ip, email))
}

package admission

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"

	"github.com/screencraft/api/pkg/kernel"
	"github.com/gofiber/fiber/v2"
)

var safeMethods = map[string]bool{
	fiber.MethodGet:     true,
	fiber.MethodHead:    true,
	fiber.MethodOptions: true,
}

// GenerateCSRFToken mints the 32-byte double-submit secret stamped into the
// SameSite=strict cookie at sign-in (§4.4 step 3).
func GenerateCSRFToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

// CSRF enforces the double-submit check for cookie-session auth only;
// api-key and gateway sources, safe methods, and allow-listed webhook paths
// are exempt (§4.4 step 3). Must run after Auth().
func (p *Pipeline) CSRF(allowListedPaths ...string) fiber.Handler {
	allowed := make(map[string]bool, len(allowListedPaths))
	for _, path := range allowListedPaths {
		allowed[path] = true
	}

	return func(c *fiber.Ctx) error {
		if safeMethods[c.Method()] || allowed[c.Path()] {
			return c.Next()
		}

		ac := AuthFromContext(c)
		if ac == nil || ac.Source != kernel.AuthSourceSession {
			return c.Next()
		}

		cookieToken := c.Cookies(p.csrf.CookieName)
		headerToken := c.Get(p.csrf.HeaderName)
		if cookieToken == "" || headerToken == "" {
			return ErrCSRFMismatch()
		}
		if subtle.ConstantTimeCompare([]byte(cookieToken), []byte(headerToken)) != 1 {
			return ErrCSRFMismatch()
		}

		return c.Next()
	}
}

package config

import "time"

// JWTConfig configures session.JWTIssuer, the short-lived access token a
// cookie-session caller carries (§4.4's session auth leg).
type JWTConfig struct {
	Secret string
	TTL    time.Duration
	Issuer string
}

func loadJWTConfig() JWTConfig {
	return JWTConfig{
		Secret: getEnv("JWT_SECRET", "dev-only-jwt-secret-change-me"),
		TTL:    getEnvDuration("JWT_TTL", 15*time.Minute),
		Issuer: getEnv("JWT_ISSUER", "screencraft"),
	}
}

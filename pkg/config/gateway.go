package config

import "github.com/screencraft/api/pkg/admission"

// loadGatewayConfig reads the trusted-gateway leg's settings into the same
// admission.GatewayConfig the pipeline consumes directly, rather than
// duplicating the type.
func loadGatewayConfig() admission.GatewayConfig {
	cfg := admission.DefaultGatewayConfig()
	cfg.Enabled = getEnvBool("GATEWAY_AUTH_ENABLED", false)
	cfg.ProxySecret = getEnv("GATEWAY_PROXY_SECRET", "")
	if v := getEnv("GATEWAY_PROXY_SECRET_HEADER", ""); v != "" {
		cfg.ProxySecretHeader = v
	}
	if v := getEnv("GATEWAY_USER_ID_HEADER", ""); v != "" {
		cfg.UserIDHeader = v
	}
	if v := getEnv("GATEWAY_TIER_HEADER", ""); v != "" {
		cfg.TierHeader = v
	}
	return cfg
}

// loadCSRFConfig reads the double-submit cookie/header names into
// admission.CSRFConfig.
func loadCSRFConfig() admission.CSRFConfig {
	cfg := admission.DefaultCSRFConfig()
	if v := getEnv("CSRF_COOKIE_NAME", ""); v != "" {
		cfg.CookieName = v
	}
	if v := getEnv("CSRF_HEADER_NAME", ""); v != "" {
		cfg.HeaderName = v
	}
	return cfg
}

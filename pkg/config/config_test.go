package config_test

import (
	"os"
	"testing"

	"github.com/screencraft/api/pkg/config"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"PORT", "GATEWAY_AUTH_ENABLED", "CSRF_COOKIE_NAME", "BILLING_WEBHOOK_SECRET"} {
		os.Unsetenv(key)
	}

	cfg := config.Load()

	if cfg.Port != 8080 {
		t.Errorf("expected default port 8080, got %d", cfg.Port)
	}
	if cfg.Gateway.Enabled {
		t.Error("expected gateway auth disabled by default")
	}
	if cfg.Webhook.Secret != "" {
		t.Error("expected empty webhook secret by default")
	}
}

func TestLoadReadsOverrides(t *testing.T) {
	os.Setenv("PORT", "9090")
	os.Setenv("GATEWAY_AUTH_ENABLED", "true")
	os.Setenv("GATEWAY_PROXY_SECRET", "s3cr3t")
	os.Setenv("CSRF_COOKIE_NAME", "csrf_override")
	os.Setenv("BILLING_WEBHOOK_SECRET", "whsec_test")
	defer func() {
		os.Unsetenv("PORT")
		os.Unsetenv("GATEWAY_AUTH_ENABLED")
		os.Unsetenv("GATEWAY_PROXY_SECRET")
		os.Unsetenv("CSRF_COOKIE_NAME")
		os.Unsetenv("BILLING_WEBHOOK_SECRET")
	}()

	cfg := config.Load()

	if cfg.Port != 9090 {
		t.Errorf("expected overridden port 9090, got %d", cfg.Port)
	}
	if !cfg.Gateway.Enabled {
		t.Error("expected gateway auth enabled")
	}
	if cfg.Gateway.ProxySecret != "s3cr3t" {
		t.Errorf("expected proxy secret to be read from env, got %q", cfg.Gateway.ProxySecret)
	}
	if cfg.CSRF.CookieName != "csrf_override" {
		t.Errorf("expected overridden csrf cookie name, got %q", cfg.CSRF.CookieName)
	}
	if cfg.Webhook.Secret != "whsec_test" {
		t.Errorf("expected webhook secret to be read from env, got %q", cfg.Webhook.Secret)
	}
}

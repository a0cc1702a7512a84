package config

import "github.com/screencraft/api/pkg/admission"

// Config is the fully loaded set of settings cmd/container.go wires into the
// running server, one field per loadXConfig() concern.
type Config struct {
	Port int

	Database    DatabaseConfig
	Redis       RedisConfig
	S3          S3Config
	RenderQueue RenderQueueConfig
	Tier        TierConfig
	SSRF        SSRFConfig
	Gateway     admission.GatewayConfig
	CSRF        admission.CSRFConfig
	JWT         JWTConfig
	Webhook     WebhookConfig
}

// Load reads Config from the environment, falling back to development
// defaults for anything unset.
func Load() *Config {
	return &Config{
		Port: getEnvInt("PORT", 8080),

		Database:    loadDatabaseConfig(),
		Redis:       loadRedisConfig(),
		S3:          loadS3Config(),
		RenderQueue: loadRenderQueueConfig(),
		Tier:        loadTierConfig(),
		SSRF:        loadSSRFConfig(),
		Gateway:     loadGatewayConfig(),
		CSRF:        loadCSRFConfig(),
		JWT:         loadJWTConfig(),
		Webhook:     loadWebhookConfig(),
	}
}

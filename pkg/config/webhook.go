package config

// WebhookConfig configures the subscription reconciler's inbound webhook
// leg: the shared secret subscription.VerifySignature checks every payload
// against (§4.10).
type WebhookConfig struct {
	Secret string
}

func loadWebhookConfig() WebhookConfig {
	return WebhookConfig{
		Secret: getEnv("BILLING_WEBHOOK_SECRET", ""),
	}
}

package config

import "time"

// RenderQueueConfig configures the background loop that promotes delayed
// jobs and sweeps finished ones, the teacher's JobxConfig generalized from a
// single queue to the screenshot/PDF pair renderqueueredis drives (§4.7).
type RenderQueueConfig struct {
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	CleanGrace      time.Duration
	CleanLimit      int
}

func loadRenderQueueConfig() RenderQueueConfig {
	return RenderQueueConfig{
		PollInterval:    getEnvDuration("RENDERQUEUE_POLL_INTERVAL", time.Second),
		ShutdownTimeout: getEnvDuration("RENDERQUEUE_SHUTDOWN_TIMEOUT", 30*time.Second),
		CleanGrace:      getEnvDuration("RENDERQUEUE_CLEAN_GRACE", time.Hour),
		CleanLimit:      getEnvInt("RENDERQUEUE_CLEAN_LIMIT", 500),
	}
}

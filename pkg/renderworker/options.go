package renderworker

import "time"

// Options configures the worker pool, the renderqueue analogue of
// jobx.WorkerOptions.
type Options struct {
	Concurrency     int
	PollInterval    time.Duration
	ShutdownTimeout time.Duration
	CleanGrace      time.Duration
	CleanLimit      int
	BaseURL         string
}

func defaultOptions() Options {
	return Options{
		Concurrency:     4,
		PollInterval:    time.Second,
		ShutdownTimeout: 30 * time.Second,
		CleanGrace:      time.Hour,
		CleanLimit:      500,
		BaseURL:         "http://localhost:8080",
	}
}

// Option is a functional option for configuring the Client.
type Option func(*Options)

func WithConcurrency(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.Concurrency = n
		}
	}
}

func WithPollInterval(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.PollInterval = d
		}
	}
}

func WithShutdownTimeout(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.ShutdownTimeout = d
		}
	}
}

func WithCleanGrace(d time.Duration) Option {
	return func(o *Options) {
		if d > 0 {
			o.CleanGrace = d
		}
	}
}

func WithCleanLimit(n int) Option {
	return func(o *Options) {
		if n > 0 {
			o.CleanLimit = n
		}
	}
}

// WithBaseURL sets the externally reachable base URL used to build a
// completed job's download link; the worker has no request to read a
// scheme/host from the way a handler does.
func WithBaseURL(base string) Option {
	return func(o *Options) {
		if base != "" {
			o.BaseURL = base
		}
	}
}

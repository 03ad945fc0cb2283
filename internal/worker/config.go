package worker

import "time"

type Config struct {
	MaxAttempts int           `envconfig:"DEVBOX_PERSIST_MAX_ATTEMPTS" default:"5"`
	RetryDelay  time.Duration `envconfig:"DEVBOX_PERSIST_RETRY_DELAY" default:"200ms"`
	JobTimeout  time.Duration `envconfig:"DEVBOX_PERSIST_JOB_TIMEOUT" default:"30s"`
}

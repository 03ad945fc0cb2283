package workspace

import (
	"time"

	"github.com/lzjever/mbos-devbox/internal/mirror"
)

type Config struct {
	GracePeriod     time.Duration `envconfig:"DEVBOX_GRACE_PERIOD" default:"10s"`
	MaxTerminals    int           `envconfig:"DEVBOX_MAX_TERMINALS" default:"4"`
	EvictOnTeardown bool          `envconfig:"DEVBOX_EVICT_ON_TEARDOWN" default:"false"`
	EvictTimeout    time.Duration `envconfig:"DEVBOX_EVICT_TIMEOUT" default:"30s"`
	Mirror          mirror.Config
}

func (c Config) withDefaults() Config {
	if c.GracePeriod <= 0 {
		c.GracePeriod = 10 * time.Second
	}
	if c.EvictTimeout <= 0 {
		c.EvictTimeout = 30 * time.Second
	}
	return c
}

package api

import (
	"time"

	"github.com/lzjever/mbos-devbox/internal/session"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

type Config struct {
	HTTPAddr        string        `envconfig:"DEVBOX_HTTP_ADDR" default:"0.0.0.0:8080"`
	MetricsAddr     string        `envconfig:"DEVBOX_METRICS_ADDR" default:"0.0.0.0:9090"`
	GRPCAddr        string        `envconfig:"DEVBOX_GRPC_ADDR" default:"0.0.0.0:9091"`
	LogLevel        string        `envconfig:"DEVBOX_LOG_LEVEL" default:"info"`
	ShutdownTimeout time.Duration `envconfig:"DEVBOX_SHUTDOWN_TIMEOUT" default:"30s"`

	// empty DB_DSN runs against the in-memory store and directory
	DBDSN            string        `envconfig:"DEVBOX_DB_DSN"`
	DirectoryURL     string        `envconfig:"DEVBOX_DIRECTORY_URL"`
	DirectoryToken   string        `envconfig:"DEVBOX_DIRECTORY_TOKEN"`
	DirectoryTimeout time.Duration `envconfig:"DEVBOX_DIRECTORY_TIMEOUT" default:"5s"`

	// empty REDIS_ADDR keeps quota buckets in process
	RedisAddr     string        `envconfig:"DEVBOX_REDIS_ADDR"`
	QuotaInterval time.Duration `envconfig:"DEVBOX_QUOTA_INTERVAL" default:"2s"`
	QuotaBurst    int           `envconfig:"DEVBOX_QUOTA_BURST" default:"1"`

	WorkRoot       string   `envconfig:"DEVBOX_WORK_ROOT" default:"/var/lib/devbox"`
	Shell          string   `envconfig:"DEVBOX_SHELL" default:"bash"`
	AllowedOrigins []string `envconfig:"DEVBOX_ALLOWED_ORIGINS"`

	// user:workspace pairs loaded into the in-memory directory
	DevOwners []string `envconfig:"DEVBOX_DEV_OWNERS"`
	DevShares []string `envconfig:"DEVBOX_DEV_SHARES"`

	Workspace workspace.Config
	Session   session.Config
}

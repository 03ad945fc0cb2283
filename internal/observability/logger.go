package observability

import (
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func NewLogger(level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.EncoderConfig.TimeKey = "ts"
	cfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// WorkspaceLogger returns a child logger scoped to one workspace instance.
func WorkspaceLogger(base *zap.Logger, workspaceID string) *zap.Logger {
	return base.With(zap.String("workspace_id", workspaceID))
}

// SessionLogger returns a child logger with connection-context fields.
func SessionLogger(base *zap.Logger, sessionID, workspaceID, userID string) *zap.Logger {
	return base.With(
		zap.String("session_id", sessionID),
		zap.String("workspace_id", workspaceID),
		zap.String("user_id", userID),
	)
}

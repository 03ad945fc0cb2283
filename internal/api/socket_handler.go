package api

import (
	"context"
	"net/http"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/observability"
	"github.com/lzjever/mbos-devbox/internal/session"
)

// SocketHandler authorizes a handshake and hands the upgraded connection to
// a session. Malformed and unauthorized handshakes are refused before the
// upgrade.
func (a *API) SocketHandler(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	hs := auth.Handshake{
		UserID:      q.Get("userId"),
		WorkspaceID: q.Get("workspaceId"),
		Transport:   q.Get("transport"),
	}

	grant, err := a.gate.Authorize(r.Context(), hs)
	if err != nil {
		appErr := core.AsAppError(err)
		switch appErr.Code {
		case core.ErrValidation:
			observability.AdmissionsTotal.WithLabelValues("invalid").Inc()
		case core.ErrAuth:
			observability.AdmissionsTotal.WithLabelValues("denied").Inc()
		default:
			observability.AdmissionsTotal.WithLabelValues("error").Inc()
			a.log.Error("authorize failed", zap.Error(err), zap.String("user_id", hs.UserID))
		}
		WriteError(w, appErr)
		return
	}

	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied to the client.
		a.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	session.Serve(context.WithoutCancel(r.Context()), conn, grant, a.registry, a.opts.Session, a.log)
}

package api

import (
	"context"
	"net/http"
	"slices"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/api/middleware"
	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/session"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

// AuditReader lists recorded audit events of a workspace, newest first.
type AuditReader interface {
	ListAudit(ctx context.Context, workspaceID string, limit int) ([]core.AuditEvent, error)
}

type Options struct {
	Session        session.Config
	AllowedOrigins []string
	// Ready reports whether backing services are reachable. Nil means always ready.
	Ready func(ctx context.Context) error
	Audit AuditReader
}

type API struct {
	gate     *auth.Gate
	registry *workspace.Registry
	opts     Options
	upgrader websocket.Upgrader
	log      *zap.Logger
}

func NewAPI(gate *auth.Gate, registry *workspace.Registry, opts Options, log *zap.Logger) *API {
	a := &API{
		gate:     gate,
		registry: registry,
		opts:     opts,
		log:      log,
	}
	a.upgrader = websocket.Upgrader{
		ReadBufferSize:  4096,
		WriteBufferSize: 4096,
		CheckOrigin:     a.checkOrigin,
	}
	return a
}

func (a *API) checkOrigin(r *http.Request) bool {
	if len(a.opts.AllowedOrigins) == 0 {
		return true
	}
	return slices.Contains(a.opts.AllowedOrigins, r.Header.Get("Origin"))
}

func (a *API) Router() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.Metrics)
	r.Use(middleware.Recoverer(a.log))
	r.Use(middleware.Logger)

	// Health endpoints
	r.Get("/healthz", a.HealthHandler)
	r.Get("/readyz", a.ReadyHandler)

	// Realtime sessions
	r.Get("/ws", a.SocketHandler)

	// Admin view of live instances
	r.Route("/v1", func(r chi.Router) {
		r.Use(chiMiddleware.AllowContentType("application/json"))

		r.Get("/workspaces", a.ListWorkspaces)
		r.Get("/workspaces/{wsid}", a.GetWorkspace)
		r.Get("/workspaces/{wsid}/audit", a.ListAudit)
		r.Post("/workspaces/{wsid}/teardown", a.TeardownWorkspace)
	})

	return r
}

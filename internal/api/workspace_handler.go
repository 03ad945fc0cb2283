package api

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

// ListWorkspaces lists the live workspace instances.
func (a *API) ListWorkspaces(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	instances := a.registry.List()

	resp := make([]workspace.Status, 0, len(instances))
	for _, inst := range instances {
		st, err := inst.Status(ctx)
		if err != nil {
			a.log.Error("workspace status failed", zap.String("workspace_id", inst.ID()), zap.Error(err))
			continue
		}
		resp = append(resp, st)
	}

	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"workspaces": resp,
	})
}

// GetWorkspace reports one live instance.
func (a *API) GetWorkspace(w http.ResponseWriter, r *http.Request) {
	inst, ok := a.registry.Get(chi.URLParam(r, "wsid"))
	if !ok {
		WriteError(w, core.NewAppError(core.ErrNotFound, "workspace not loaded"))
		return
	}
	st, err := inst.Status(r.Context())
	if err != nil {
		a.log.Error("workspace status failed", zap.String("workspace_id", inst.ID()), zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to read workspace status"))
		return
	}
	WriteJSON(w, http.StatusOK, st)
}

// TeardownWorkspace runs the teardown of an instance with no connected
// sessions without waiting for the grace period.
func (a *API) TeardownWorkspace(w http.ResponseWriter, r *http.Request) {
	wsid := chi.URLParam(r, "wsid")
	inst, ok := a.registry.Get(wsid)
	if !ok {
		WriteError(w, core.NewAppError(core.ErrNotFound, "workspace not loaded"))
		return
	}
	if err := inst.Teardown(); err != nil {
		WriteError(w, core.AsAppError(err))
		return
	}
	a.log.Info("workspace torn down by admin", zap.String("workspace_id", wsid))
	WriteJSON(w, http.StatusOK, map[string]string{"workspace_id": wsid, "presence": string(workspace.NoOwner)})
}

// ListAudit returns recent audit events of a workspace.
func (a *API) ListAudit(w http.ResponseWriter, r *http.Request) {
	if a.opts.Audit == nil {
		WriteError(w, core.NewAppError(core.ErrNotFound, "audit log not configured"))
		return
	}
	wsid := chi.URLParam(r, "wsid")
	limit := parseLimit(r.URL.Query().Get("limit"), 50, 500)

	events, err := a.opts.Audit.ListAudit(r.Context(), wsid, limit)
	if err != nil {
		a.log.Error("list audit failed", zap.String("workspace_id", wsid), zap.Error(err))
		WriteError(w, core.NewAppError(core.ErrInternal, "failed to list audit events"))
		return
	}
	if events == nil {
		events = []core.AuditEvent{}
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{"events": events})
}

func parseLimit(s string, def, max int) int {
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return def
	}
	if n > max {
		return max
	}
	return n
}

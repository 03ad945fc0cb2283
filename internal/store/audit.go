package store

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// AuditLog appends events to devbox.audit_log.
type AuditLog struct {
	pool *pgxpool.Pool
}

func NewAuditLog(pool *pgxpool.Pool) *AuditLog {
	return &AuditLog{pool: pool}
}

func (a *AuditLog) Record(ctx context.Context, ev core.AuditEvent) error {
	payload := "{}"
	if len(ev.Payload) > 0 {
		payload = string(ev.Payload)
	}
	_, err := a.pool.Exec(ctx,
		`INSERT INTO devbox.audit_log (ts, workspace_id, user_id, session_id, action, payload)
		 VALUES ($1, $2, $3, $4, $5, $6::jsonb)`,
		ev.Ts, ev.WorkspaceID, ev.UserID, ev.SessionID, ev.Action, payload)
	if err != nil {
		return fmt.Errorf("insert audit event: %w", err)
	}
	return nil
}

// ListAudit returns the newest events of a workspace, newest first.
func (a *AuditLog) ListAudit(ctx context.Context, workspaceID string, limit int) ([]core.AuditEvent, error) {
	rows, err := a.pool.Query(ctx,
		`SELECT event_id, ts, workspace_id, user_id, session_id, action, payload
		 FROM devbox.audit_log WHERE workspace_id = $1 ORDER BY ts DESC LIMIT $2`,
		workspaceID, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit log: %w", err)
	}
	defer rows.Close()

	var events []core.AuditEvent
	for rows.Next() {
		var (
			ev      core.AuditEvent
			payload []byte
		)
		if err := rows.Scan(&ev.EventID, &ev.Ts, &ev.WorkspaceID, &ev.UserID, &ev.SessionID, &ev.Action, &payload); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		ev.Payload = payload
		events = append(events, ev)
	}
	return events, rows.Err()
}

package core

import (
	"encoding/json"
	"time"
)

const (
	AuditSessionAdmit  = "session.admit"
	AuditSessionDenied = "session.denied"
	AuditFileCreate    = "file.create"
	AuditFolderCreate  = "folder.create"
	AuditFileRename    = "file.rename"
	AuditFileDelete    = "file.delete"
	AuditFolderDelete  = "folder.delete"
	AuditFileSave      = "file.save"
	AuditTeardown      = "workspace.teardown"
)

type AuditEvent struct {
	EventID     int64           `json:"event_id"`
	Ts          time.Time       `json:"ts"`
	WorkspaceID string          `json:"workspace_id"`
	UserID      string          `json:"user_id,omitempty"`
	SessionID   string          `json:"session_id,omitempty"`
	Action      string          `json:"action"`
	Payload     json.RawMessage `json:"payload,omitempty"`
}

package session

import (
	"encoding/json"

	"github.com/lzjever/mbos-devbox/internal/core"
)

// Client events.
const (
	EventGetFile        = "getFile"
	EventGetFolder      = "getFolder"
	EventSaveFile       = "saveFile"
	EventCreateFile     = "createFile"
	EventCreateFolder   = "createFolder"
	EventRenameFile     = "renameFile"
	EventMoveFile       = "moveFile"
	EventDeleteFile     = "deleteFile"
	EventDeleteFolder   = "deleteFolder"
	EventCreateTerminal = "createTerminal"
	EventCloseTerminal  = "closeTerminal"
	EventResizeTerminal = "resizeTerminal"
	EventTerminalData   = "terminalData"

	// EventAck carries the result of a request that asked for one.
	EventAck = "ack"
)

// Frame is one websocket text message in either direction. A client request
// with Ack > 0 is answered by an "ack" frame carrying the same number.
type Frame struct {
	Event string          `json:"event"`
	Ack   int64           `json:"ack,omitempty"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outFrame struct {
	Event string `json:"event"`
	Ack   int64  `json:"ack,omitempty"`
	Data  any    `json:"data,omitempty"`
}

type fileRequest struct {
	ID string `json:"id"`
}

type nameRequest struct {
	Name string `json:"name"`
}

type saveRequest struct {
	ID   string `json:"id"`
	Body string `json:"body"`
}

type renameRequest struct {
	ID      string `json:"id"`
	NewName string `json:"newName"`
}

type moveRequest struct {
	ID       string `json:"id"`
	FolderID string `json:"folderId"`
}

type terminalRequest struct {
	ID string `json:"id"`
}

type resizeRequest struct {
	Cols int `json:"cols"`
	Rows int `json:"rows"`
}

type terminalDataRequest struct {
	ID   string `json:"id"`
	Data string `json:"data"`
}

type createResult struct {
	Success bool `json:"success"`
}

type errorNotice struct {
	Code    core.ErrorCode `json:"code"`
	Message string         `json:"message"`
}

// Notices for refused operations; users only see these texts.
const (
	noticeFileTooLarge  = "Rate limited: file size too large. Please reduce the file size."
	noticeWorkspaceFull = "Rate limited: project size exceeded. Please delete some files."
)

package core

import (
	"path"
	"strings"
)

type Visibility string

const (
	VisibilityPublic  Visibility = "public"
	VisibilityPrivate Visibility = "private"
)

type FileKind string

const (
	KindFile   FileKind = "file"
	KindFolder FileKind = "folder"
)

// FileNode is one entry in a workspace tree. Folder nodes carry their
// children; file nodes never do.
type FileNode struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Kind     FileKind    `json:"type"`
	Children []*FileNode `json:"children,omitempty"`
}

// FileRecord is a file as the persistent store sees it.
type FileRecord struct {
	ID      string `json:"id"`
	Content []byte `json:"content"`
}

// NormalizeID turns a client supplied file id into canonical form: a cleaned
// slash path with a single leading "/". The workspace root is "/".
func NormalizeID(id string) string {
	id = strings.ReplaceAll(id, "\\", "/")
	return path.Clean("/" + id)
}

// ParentID returns the id of the folder containing id.
func ParentID(id string) string {
	return path.Dir(NormalizeID(id))
}

// BaseName returns the last element of id.
func BaseName(id string) string {
	return path.Base(NormalizeID(id))
}

// JoinID builds the id of name inside folder.
func JoinID(folder, name string) string {
	return NormalizeID(path.Join(NormalizeID(folder), name))
}

// IsWithin reports whether id is folder itself or a descendant of it.
func IsWithin(id, folder string) bool {
	id, folder = NormalizeID(id), NormalizeID(folder)
	if folder == "/" || id == folder {
		return true
	}
	return strings.HasPrefix(id, folder+"/")
}

// StorageKey is the key a file is persisted under: ids are prefixed with
// the owning workspace.
func StorageKey(workspaceID, id string) string {
	return "projects/" + workspaceID + NormalizeID(id)
}

// IDFromStorageKey reverses StorageKey. ok is false when key does not belong
// to workspaceID.
func IDFromStorageKey(workspaceID, key string) (string, bool) {
	prefix := "projects/" + workspaceID + "/"
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return NormalizeID(strings.TrimPrefix(key, prefix)), true
}

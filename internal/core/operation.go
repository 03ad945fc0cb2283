package core

// OperationKind names a quota bucket. Each kind is limited independently.
type OperationKind string

const (
	OpCreateFile   OperationKind = "createFile"
	OpCreateFolder OperationKind = "createFolder"
	OpRenameFile   OperationKind = "renameFile"
	OpDeleteFile   OperationKind = "deleteFile"
	OpSaveFile     OperationKind = "saveFile"
)

// AllOperations lists every rate limited operation kind.
var AllOperations = []OperationKind{OpCreateFile, OpCreateFolder, OpRenameFile, OpDeleteFile, OpSaveFile}

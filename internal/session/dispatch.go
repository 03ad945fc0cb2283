package session

import (
	"context"
	"encoding/json"
	"errors"

	"go.uber.org/zap"

	"github.com/lzjever/mbos-devbox/internal/core"
	"github.com/lzjever/mbos-devbox/internal/mirror"
	"github.com/lzjever/mbos-devbox/internal/quota"
	"github.com/lzjever/mbos-devbox/internal/workspace"
)

var errMissingData = errors.New("missing data")

func decode[T any](f Frame) (T, error) {
	var v T
	if len(f.Data) == 0 || string(f.Data) == "null" {
		return v, errMissingData
	}
	err := json.Unmarshal(f.Data, &v)
	return v, err
}

func (s *Session) dispatch(ctx context.Context, f Frame) {
	var err error
	switch f.Event {
	case EventGetFile:
		err = s.getFile(ctx, f)
	case EventGetFolder:
		err = s.getFolder(ctx, f)
	case EventSaveFile:
		err = s.saveFile(ctx, f)
	case EventCreateFile:
		err = s.createFile(ctx, f)
	case EventCreateFolder:
		err = s.createFolder(ctx, f)
	case EventRenameFile:
		err = s.renameFile(ctx, f)
	case EventMoveFile:
		err = s.moveFile(ctx, f)
	case EventDeleteFile:
		err = s.deleteFile(ctx, f)
	case EventDeleteFolder:
		err = s.deleteFolder(ctx, f)
	case EventCreateTerminal:
		err = s.createTerminal(f)
	case EventCloseTerminal:
		err = s.closeTerminal(f)
	case EventResizeTerminal:
		err = s.resizeTerminal(f)
	case EventTerminalData:
		err = s.terminalData(f)
	default:
		s.emit(0, workspace.EventError, errorNotice{Code: core.ErrValidation, Message: "unknown event " + f.Event})
		return
	}
	if err != nil {
		s.fail(f, err)
	}
}

// fail turns an operation error into the notice the user sees.
func (s *Session) fail(f Frame, err error) {
	switch {
	case errors.Is(err, quota.ErrExhausted):
		// the rateLimit notice has already been published
	case errors.Is(err, mirror.ErrPayloadTooLarge):
		s.emit(0, workspace.EventRateLimit, noticeFileTooLarge)
	case errors.Is(err, mirror.ErrWorkspaceFull):
		s.emit(0, workspace.EventRateLimit, noticeWorkspaceFull)
		s.reply(f.Ack, createResult{Success: false})
	default:
		var syntaxErr *json.SyntaxError
		var typeErr *json.UnmarshalTypeError
		appErr := core.AsAppError(err)
		if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) || errors.Is(err, errMissingData) {
			appErr = core.NewAppError(core.ErrValidation, "malformed "+f.Event+" request")
		}
		if appErr.Code == core.ErrInternal || appErr.Code == core.ErrProcessFailure {
			s.log.Error("session: operation failed", zap.String("event", f.Event), zap.Error(err))
		}
		s.emit(0, workspace.EventError, errorNotice{Code: appErr.Code, Message: appErr.Message})
	}
}

func (s *Session) getFile(ctx context.Context, f Frame) error {
	req, err := decode[fileRequest](f)
	if err != nil {
		return err
	}
	content, ok, err := s.inst.GetFile(ctx, req.ID)
	if err != nil {
		return err
	}
	if !ok {
		s.reply(f.Ack, nil)
		return nil
	}
	s.reply(f.Ack, string(content))
	return nil
}

func (s *Session) getFolder(ctx context.Context, f Frame) error {
	req, err := decode[fileRequest](f)
	if err != nil {
		return err
	}
	ids, err := s.inst.ListFolder(ctx, req.ID)
	if err != nil {
		return err
	}
	s.reply(f.Ack, ids)
	return nil
}

func (s *Session) saveFile(ctx context.Context, f Frame) error {
	req, err := decode[saveRequest](f)
	if err != nil {
		return err
	}
	saved, err := s.inst.SaveFile(ctx, s.actor(), req.ID, []byte(req.Body))
	if err != nil {
		return err
	}
	s.reply(f.Ack, saved)
	return nil
}

func (s *Session) createFile(ctx context.Context, f Frame) error {
	req, err := decode[nameRequest](f)
	if err != nil {
		return err
	}
	created, err := s.inst.CreateFile(ctx, s.actor(), req.Name)
	if err != nil {
		return err
	}
	s.reply(f.Ack, createResult{Success: created})
	return nil
}

func (s *Session) createFolder(ctx context.Context, f Frame) error {
	req, err := decode[nameRequest](f)
	if err != nil {
		return err
	}
	created, err := s.inst.CreateFolder(ctx, s.actor(), req.Name)
	if err != nil {
		return err
	}
	s.reply(f.Ack, created)
	return nil
}

func (s *Session) renameFile(ctx context.Context, f Frame) error {
	req, err := decode[renameRequest](f)
	if err != nil {
		return err
	}
	renamed, err := s.inst.RenameFile(ctx, s.actor(), req.ID, req.NewName)
	if err != nil {
		return err
	}
	s.reply(f.Ack, renamed)
	return nil
}

func (s *Session) moveFile(ctx context.Context, f Frame) error {
	req, err := decode[moveRequest](f)
	if err != nil {
		return err
	}
	tree, err := s.inst.MoveFile(ctx, s.actor(), req.ID, req.FolderID)
	if err != nil {
		return err
	}
	s.reply(f.Ack, tree)
	return nil
}

func (s *Session) deleteFile(ctx context.Context, f Frame) error {
	req, err := decode[fileRequest](f)
	if err != nil {
		return err
	}
	tree, err := s.inst.DeleteFile(ctx, s.actor(), req.ID)
	if err != nil {
		return err
	}
	s.reply(f.Ack, tree)
	return nil
}

func (s *Session) deleteFolder(ctx context.Context, f Frame) error {
	req, err := decode[fileRequest](f)
	if err != nil {
		return err
	}
	tree, err := s.inst.DeleteFolder(ctx, s.actor(), req.ID)
	if err != nil {
		return err
	}
	s.reply(f.Ack, tree)
	return nil
}

// createTerminal only acknowledges when a terminal was started.
func (s *Session) createTerminal(f Frame) error {
	req, err := decode[terminalRequest](f)
	if err != nil {
		return err
	}
	created, err := s.inst.Terminals().Create(req.ID)
	if err != nil {
		return err
	}
	if created {
		s.reply(f.Ack, true)
	}
	return nil
}

func (s *Session) closeTerminal(f Frame) error {
	req, err := decode[terminalRequest](f)
	if err != nil {
		return err
	}
	s.reply(f.Ack, s.inst.Terminals().Close(req.ID))
	return nil
}

func (s *Session) resizeTerminal(f Frame) error {
	req, err := decode[resizeRequest](f)
	if err != nil {
		return err
	}
	s.inst.Terminals().ResizeAll(req.Cols, req.Rows)
	s.reply(f.Ack, true)
	return nil
}

func (s *Session) terminalData(f Frame) error {
	req, err := decode[terminalDataRequest](f)
	if err != nil {
		return err
	}
	s.inst.Terminals().Write(req.ID, []byte(req.Data))
	return nil
}

// Package auth admits or refuses connection attempts before any session
// state is created.
package auth

import (
	"context"
	"errors"
	"fmt"
	"regexp"

	"github.com/lzjever/mbos-devbox/internal/core"
)

const maxIdentifierLen = 128

var identifierPattern = regexp.MustCompile(`^[A-Za-z0-9_.:@-]+$`)

// Handshake carries the connection parameters of one attempt.
type Handshake struct {
	UserID      string
	WorkspaceID string
	Transport   string
}

// Grant is the outcome of a successful authorization.
type Grant struct {
	UserID      string
	WorkspaceID string
	IsOwner     bool
}

// Validate checks that the handshake is well formed.
func (h Handshake) Validate() error {
	if err := validateIdentifier("userId", h.UserID); err != nil {
		return err
	}
	if err := validateIdentifier("workspaceId", h.WorkspaceID); err != nil {
		return err
	}
	if h.Transport != "" && h.Transport != "websocket" {
		return core.NewAppError(core.ErrValidation, fmt.Sprintf("unsupported transport %q", h.Transport))
	}
	return nil
}

func validateIdentifier(field, v string) error {
	switch {
	case v == "":
		return core.NewAppError(core.ErrValidation, field+" required")
	case len(v) > maxIdentifierLen:
		return core.NewAppError(core.ErrValidation, field+" too long")
	case !identifierPattern.MatchString(v):
		return core.NewAppError(core.ErrValidation, field+" contains invalid characters")
	}
	return nil
}

// Gate authorizes handshakes against a Directory. It makes exactly one
// directory call per attempt and never retries.
type Gate struct {
	dir Directory
}

func NewGate(dir Directory) *Gate {
	return &Gate{dir: dir}
}

func (g *Gate) Authorize(ctx context.Context, h Handshake) (Grant, error) {
	if err := h.Validate(); err != nil {
		return Grant{}, err
	}

	m, err := g.dir.ResolveUser(ctx, h.UserID)
	if errors.Is(err, ErrUnknownUser) {
		return Grant{}, core.NewAppError(core.ErrAuth, "unknown user")
	}
	if err != nil {
		return Grant{}, fmt.Errorf("resolve user %s: %w", h.UserID, err)
	}

	owner := m.Owns(h.WorkspaceID)
	if !owner && !m.SharedWith(h.WorkspaceID) {
		return Grant{}, core.NewAppError(core.ErrAuth, "workspace not accessible")
	}
	return Grant{UserID: h.UserID, WorkspaceID: h.WorkspaceID, IsOwner: owner}, nil
}

package auth

import (
	"context"
	"errors"
	"slices"
	"sync"
)

// ErrUnknownUser is returned by a Directory that has no record of the user.
var ErrUnknownUser = errors.New("unknown user")

// Membership lists the workspaces a user owns and the ones shared with them.
type Membership struct {
	OwnedWorkspaces  []string
	SharedWorkspaces []string
}

func (m Membership) Owns(workspaceID string) bool {
	return slices.Contains(m.OwnedWorkspaces, workspaceID)
}

func (m Membership) SharedWith(workspaceID string) bool {
	return slices.Contains(m.SharedWorkspaces, workspaceID)
}

// Directory resolves a user to their workspace memberships.
type Directory interface {
	ResolveUser(ctx context.Context, userID string) (Membership, error)
}

// MemoryDirectory is an in-process Directory for development and tests.
type MemoryDirectory struct {
	mu    sync.RWMutex
	users map[string]*Membership
}

var _ Directory = (*MemoryDirectory)(nil)

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{users: make(map[string]*Membership)}
}

func (d *MemoryDirectory) member(userID string) *Membership {
	m, ok := d.users[userID]
	if !ok {
		m = &Membership{}
		d.users[userID] = m
	}
	return m
}

// AddUser registers userID with no memberships.
func (d *MemoryDirectory) AddUser(userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.member(userID)
}

// Grant records that owner owns workspaceID.
func (d *MemoryDirectory) Grant(owner, workspaceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.member(owner)
	if !slices.Contains(m.OwnedWorkspaces, workspaceID) {
		m.OwnedWorkspaces = append(m.OwnedWorkspaces, workspaceID)
	}
}

// Share records that workspaceID is shared with userID.
func (d *MemoryDirectory) Share(userID, workspaceID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	m := d.member(userID)
	if !slices.Contains(m.SharedWorkspaces, workspaceID) {
		m.SharedWorkspaces = append(m.SharedWorkspaces, workspaceID)
	}
}

func (d *MemoryDirectory) ResolveUser(ctx context.Context, userID string) (Membership, error) {
	if err := ctx.Err(); err != nil {
		return Membership{}, err
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	m, ok := d.users[userID]
	if !ok {
		return Membership{}, ErrUnknownUser
	}
	return Membership{
		OwnedWorkspaces:  slices.Clone(m.OwnedWorkspaces),
		SharedWorkspaces: slices.Clone(m.SharedWorkspaces),
	}, nil
}

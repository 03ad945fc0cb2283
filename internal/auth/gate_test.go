package auth

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/lzjever/mbos-devbox/internal/core"
)

type countingDirectory struct {
	Directory
	calls int
}

func (d *countingDirectory) ResolveUser(ctx context.Context, userID string) (Membership, error) {
	d.calls++
	return d.Directory.ResolveUser(ctx, userID)
}

func newTestGate() (*Gate, *countingDirectory) {
	mem := NewMemoryDirectory()
	mem.Grant("alice", "w1")
	mem.Share("bob", "w1")
	mem.AddUser("carol")
	dir := &countingDirectory{Directory: mem}
	return NewGate(dir), dir
}

func TestAuthorize_MissingFields(t *testing.T) {
	g, dir := newTestGate()
	for _, h := range []Handshake{
		{WorkspaceID: "w1"},
		{UserID: "alice"},
		{},
		{UserID: "alice", WorkspaceID: "../w1"},
		{UserID: "alice", WorkspaceID: "w1", Transport: "polling"},
	} {
		_, err := g.Authorize(context.Background(), h)
		require.True(t, core.IsCode(err, core.ErrValidation), "handshake %+v: %v", h, err)
	}
	require.Zero(t, dir.calls, "malformed handshakes must not reach the directory")
}

func TestAuthorize_OwnerAndShared(t *testing.T) {
	g, dir := newTestGate()

	grant, err := g.Authorize(context.Background(), Handshake{UserID: "alice", WorkspaceID: "w1"})
	require.NoError(t, err)
	require.True(t, grant.IsOwner)

	grant, err = g.Authorize(context.Background(), Handshake{UserID: "bob", WorkspaceID: "w1", Transport: "websocket"})
	require.NoError(t, err)
	require.False(t, grant.IsOwner)
	require.Equal(t, 2, dir.calls)
}

func TestAuthorize_Refused(t *testing.T) {
	g, _ := newTestGate()

	_, err := g.Authorize(context.Background(), Handshake{UserID: "carol", WorkspaceID: "w1"})
	require.True(t, core.IsCode(err, core.ErrAuth))

	_, err = g.Authorize(context.Background(), Handshake{UserID: "alice", WorkspaceID: "w2"})
	require.True(t, core.IsCode(err, core.ErrAuth))

	_, err = g.Authorize(context.Background(), Handshake{UserID: "mallory", WorkspaceID: "w1"})
	require.True(t, core.IsCode(err, core.ErrAuth))
}

type brokenDirectory struct{}

func (brokenDirectory) ResolveUser(context.Context, string) (Membership, error) {
	return Membership{}, errors.New("connection reset")
}

func TestAuthorize_DirectoryFailureIsInternal(t *testing.T) {
	g := NewGate(brokenDirectory{})
	_, err := g.Authorize(context.Background(), Handshake{UserID: "alice", WorkspaceID: "w1"})
	require.Error(t, err)
	require.Equal(t, core.ErrInternal, core.AsAppError(err).Code)
}

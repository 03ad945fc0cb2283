package store

import (
	"context"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/lzjever/mbos-devbox/internal/auth"
	"github.com/lzjever/mbos-devbox/internal/core"
)

func TestStoreIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("Skipping integration test in short mode")
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("devbox"),
		postgres.WithUsername("devbox"),
		postgres.WithPassword("devbox_pass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start container: %s", err)
	}
	defer pgContainer.Terminate(ctx)

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %s", err)
	}

	pool, err := NewPool(ctx, connStr)
	if err != nil {
		t.Fatalf("failed to connect: %s", err)
	}
	defer pool.Close()

	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("failed to migrate: %s", err)
	}
	if err := Migrate(ctx, pool); err != nil {
		t.Fatalf("migration is not repeatable: %s", err)
	}

	dir := NewDirectory(pool)
	files := NewProjectStore(pool)
	audit := NewAuditLog(pool)

	t.Run("Directory", func(t *testing.T) {
		for _, u := range []string{"alice", "bob"} {
			if err := dir.CreateUser(ctx, u); err != nil {
				t.Fatalf("create user %s: %s", u, err)
			}
		}
		if err := dir.CreateWorkspace(ctx, "w1", "alice", core.VisibilityPrivate); err != nil {
			t.Fatalf("create workspace: %s", err)
		}
		if err := dir.ShareWorkspace(ctx, "w1", "bob"); err != nil {
			t.Fatalf("share workspace: %s", err)
		}

		m, err := dir.ResolveUser(ctx, "alice")
		if err != nil {
			t.Fatalf("resolve alice: %s", err)
		}
		if !m.Owns("w1") {
			t.Errorf("expected alice to own w1, got %+v", m)
		}

		m, err = dir.ResolveUser(ctx, "bob")
		if err != nil {
			t.Fatalf("resolve bob: %s", err)
		}
		if m.Owns("w1") || !m.SharedWith("w1") {
			t.Errorf("expected w1 shared with bob, got %+v", m)
		}

		if _, err := dir.ResolveUser(ctx, "mallory"); err != auth.ErrUnknownUser {
			t.Errorf("expected ErrUnknownUser, got %v", err)
		}
	})

	t.Run("Files", func(t *testing.T) {
		if err := files.CreateFile(ctx, "w1", "/a.txt"); err != nil {
			t.Fatalf("create: %s", err)
		}
		if err := files.SaveFile(ctx, "w1", "/a.txt", []byte("hello")); err != nil {
			t.Fatalf("save: %s", err)
		}
		if err := files.CreateFile(ctx, "w1", "/a.txt"); err != nil {
			t.Fatalf("create existing: %s", err)
		}
		if err := files.RenameFile(ctx, "w1", "/a.txt", "/src/a.txt", []byte("hello")); err != nil {
			t.Fatalf("rename: %s", err)
		}
		if err := files.CreateFile(ctx, "w1", "/gone.txt"); err != nil {
			t.Fatalf("create: %s", err)
		}
		if err := files.DeleteFile(ctx, "w1", "/gone.txt"); err != nil {
			t.Fatalf("delete: %s", err)
		}

		records, err := files.LoadWorkspace(ctx, "w1")
		if err != nil {
			t.Fatalf("load: %s", err)
		}
		if len(records) != 1 {
			t.Fatalf("expected 1 file, got %d", len(records))
		}
		if records[0].ID != "/src/a.txt" || string(records[0].Content) != "hello" {
			t.Errorf("unexpected record %s=%q", records[0].ID, records[0].Content)
		}
	})

	t.Run("AuditLog", func(t *testing.T) {
		ev := core.AuditEvent{
			Ts:          time.Now().UTC(),
			WorkspaceID: "w1",
			UserID:      "alice",
			SessionID:   "s1",
			Action:      core.AuditFileSave,
			Payload:     []byte(`{"id":"/src/a.txt"}`),
		}
		if err := audit.Record(ctx, ev); err != nil {
			t.Fatalf("record: %s", err)
		}
		events, err := audit.ListAudit(ctx, "w1", 10)
		if err != nil {
			t.Fatalf("list: %s", err)
		}
		if len(events) != 1 || events[0].Action != core.AuditFileSave || events[0].EventID == 0 {
			t.Errorf("unexpected audit events %+v", events)
		}
	})
}

package core

import "testing"

func TestNormalizeID(t *testing.T) {
	cases := map[string]string{
		"b.txt":          "/b.txt",
		"/b.txt":         "/b.txt",
		"src//main.go":   "/src/main.go",
		"/src/../a.txt":  "/a.txt",
		"../../etc/pass": "/etc/pass",
		"":               "/",
		`src\win.txt`:    "/src/win.txt",
	}
	for in, want := range cases {
		if got := NormalizeID(in); got != want {
			t.Errorf("NormalizeID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestIsWithin(t *testing.T) {
	if !IsWithin("/src/a.go", "/src") {
		t.Error("expected /src/a.go within /src")
	}
	if IsWithin("/srcx/a.go", "/src") {
		t.Error("/srcx/a.go must not be within /src")
	}
	if !IsWithin("/anything", "/") {
		t.Error("everything is within root")
	}
}

func TestStorageKeyRoundTrip(t *testing.T) {
	key := StorageKey("w1", "src/a.go")
	if key != "projects/w1/src/a.go" {
		t.Fatalf("unexpected key %s", key)
	}
	id, ok := IDFromStorageKey("w1", key)
	if !ok || id != "/src/a.go" {
		t.Fatalf("IDFromStorageKey = %q, %v", id, ok)
	}
	if _, ok := IDFromStorageKey("w2", key); ok {
		t.Fatal("key of another workspace must not match")
	}
}

func TestJoinIDAndParent(t *testing.T) {
	if got := JoinID("/src", "a.go"); got != "/src/a.go" {
		t.Fatalf("JoinID = %s", got)
	}
	if got := ParentID("/src/a.go"); got != "/src" {
		t.Fatalf("ParentID = %s", got)
	}
	if got := BaseName("src/a.go"); got != "a.go" {
		t.Fatalf("BaseName = %s", got)
	}
}

package core

import "testing"

func TestContentDigest_Deterministic(t *testing.T) {
	h1 := ContentDigest([]byte("hello"))
	h2 := ContentDigest([]byte("hello"))
	if h1 != h2 {
		t.Fatalf("same input produced different digests: %s vs %s", h1, h2)
	}
}

func TestContentDigest_DifferentContent(t *testing.T) {
	if ContentDigest([]byte("hello")) == ContentDigest([]byte("world")) {
		t.Fatal("different content produced same digest")
	}
}

func TestContentDigest_Empty(t *testing.T) {
	const emptySHA = "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855"
	if got := ContentDigest(nil); got != emptySHA {
		t.Fatalf("expected %s, got %s", emptySHA, got)
	}
}

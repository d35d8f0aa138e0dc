package object_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"research-portal/internal/shared/storage/object"
	"research-portal/internal/shared/storage/object/local"
)

func TestDocumentKey(t *testing.T) {
	key, err := object.DocumentKey("documents/", "Q3 report.pdf")
	if err != nil {
		t.Fatalf("document key: %v", err)
	}
	parts := strings.Split(key, "/")
	if len(parts) != 3 || parts[0] != "documents" {
		t.Fatalf("unexpected key layout %q", key)
	}
	if !strings.HasSuffix(parts[2], "-Q3 report.pdf") {
		t.Fatalf("expected file name suffix, got %q", parts[2])
	}

	if _, err := object.DocumentKey("documents", "../secret.pdf"); err == nil {
		t.Fatalf("expected traversal to be rejected")
	}
}

func TestCleanKey(t *testing.T) {
	cases := map[string]string{
		"documents/a.pdf":    "documents/a.pdf",
		"/documents/a.pdf":   "documents/a.pdf",
		"documents//b/a.pdf": "documents/b/a.pdf",
		`documents\a.pdf`:    "documents/a.pdf",
	}
	for in, want := range cases {
		got, err := object.CleanKey(in)
		if err != nil || got != want {
			t.Fatalf("CleanKey(%q) = %q, %v; want %q", in, got, err, want)
		}
	}
	for _, bad := range []string{"", "  ", "..", "../x", "/"} {
		if _, err := object.CleanKey(bad); !errors.Is(err, object.ErrInvalidKey) {
			t.Fatalf("CleanKey(%q): expected ErrInvalidKey, got %v", bad, err)
		}
	}
}

func TestReadAllEnforcesLimit(t *testing.T) {
	store := local.New(t.TempDir())
	ctx := context.Background()
	if _, err := store.Put(ctx, "big.pdf", "application/pdf", strings.NewReader(strings.Repeat("x", 64))); err != nil {
		t.Fatalf("put: %v", err)
	}

	data, err := object.ReadAll(ctx, store, "big.pdf", 64)
	if err != nil || len(data) != 64 {
		t.Fatalf("expected full read at the limit, got %d bytes, %v", len(data), err)
	}
	if _, err := object.ReadAll(ctx, store, "big.pdf", 63); !errors.Is(err, object.ErrTooLarge) {
		t.Fatalf("expected ErrTooLarge, got %v", err)
	}
}

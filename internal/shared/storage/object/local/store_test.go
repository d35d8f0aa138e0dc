package local

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"research-portal/internal/shared/storage/object"
)

func TestPutOpenRoundTrip(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	n, err := store.Put(ctx, "documents/doc/file-report.pdf", "application/pdf", strings.NewReader("%PDF-1.4"))
	if err != nil {
		t.Fatalf("put: %v", err)
	}
	if n != 8 {
		t.Fatalf("expected 8 bytes written, got %d", n)
	}

	rc, err := store.Open(ctx, "/documents/doc/file-report.pdf")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer rc.Close()
	got, _ := io.ReadAll(rc)
	if string(got) != "%PDF-1.4" {
		t.Fatalf("unexpected content %q", got)
	}
}

func TestOpenErrors(t *testing.T) {
	store := New(t.TempDir())
	ctx := context.Background()

	if _, err := store.Open(ctx, "documents/missing.pdf"); !errors.Is(err, object.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	for _, key := range []string{"", "../etc/passwd", "a/../../b"} {
		if _, err := store.Open(ctx, key); !errors.Is(err, object.ErrInvalidKey) {
			t.Fatalf("%q: expected ErrInvalidKey, got %v", key, err)
		}
	}

	cancelled, cancel := context.WithCancel(ctx)
	cancel()
	if _, err := store.Put(cancelled, "a.pdf", "", strings.NewReader("x")); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context error, got %v", err)
	}
}

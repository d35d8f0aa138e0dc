package object

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/google/uuid"

	"research-portal/internal/shared/util"
)

// ErrNotFound is returned by Open when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// ErrInvalidKey is returned for keys that are empty or escape the store root.
var ErrInvalidKey = errors.New("invalid storage key")

// ErrTooLarge is returned by ReadAll when an object exceeds the size limit.
var ErrTooLarge = errors.New("object exceeds size limit")

// ObjectStore reads and writes documents by key.
type ObjectStore interface {
	Put(ctx context.Context, key string, contentType string, r io.Reader) (sizeBytes int64, err error)
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// DocumentKey builds "<prefix>/<docID>/<fileID>-<name>" for a new document.
func DocumentKey(prefix, fileName string) (string, error) {
	sanitized, err := util.SanitizeFileName(fileName)
	if err != nil {
		return "", err
	}
	return path.Join(strings.Trim(prefix, "/"), uuid.NewString(), uuid.NewString()+"-"+sanitized), nil
}

// CleanKey normalizes a caller-supplied key and rejects traversal.
func CleanKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", ErrInvalidKey
	}
	clean := path.Clean(strings.ReplaceAll(key, "\\", "/"))
	clean = strings.TrimPrefix(clean, "/")
	if clean == "." || clean == "" || clean == ".." || strings.HasPrefix(clean, "../") {
		return "", fmt.Errorf("%w: %q", ErrInvalidKey, key)
	}
	return clean, nil
}

// ReadAll opens key and reads at most maxBytes from it. A larger object is
// rejected with ErrTooLarge.
func ReadAll(ctx context.Context, store ObjectStore, key string, maxBytes int64) ([]byte, error) {
	rc, err := store.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	if maxBytes <= 0 {
		return io.ReadAll(rc)
	}
	data, err := io.ReadAll(io.LimitReader(rc, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, ErrTooLarge
	}
	return data, nil
}

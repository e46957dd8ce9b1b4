// Package storage defines the interface for object storage operations.
// The MinIO implementation works with any S3-compatible provider.
package storage

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Get when no object exists under the key.
var ErrNotFound = errors.New("object not found")

// Storage is the interface for writing and reading blobs by name.
type Storage interface {
	// Put streams data to the store under key and returns the object's locator URL.
	Put(ctx context.Context, key string, reader io.Reader, size int64, contentType string) (string, error)
	// Get opens a read stream for key. The caller must close it.
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

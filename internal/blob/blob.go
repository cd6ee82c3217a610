// Package blob defines where exported snapshots are written.
package blob

import (
	"context"
	"errors"
	"io"
)

// ErrExists is returned when a key is already taken. Stores never overwrite.
var ErrExists = errors.New("blob already exists")

// Store writes immutable objects addressed by key.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, contentType string) error
	// Location returns a human-readable address for key, such as a path or s3:// URL.
	Location(key string) string
}

// Package objectstore wraps the external object-storage capability:
// put/get/delete by key and minting short-lived signed GET URLs.
package objectstore

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrObjectNotFound signals that no object exists under the key.
var ErrObjectNotFound = errors.New("objectstore: object not found")

// Store is the capability surface the rest of the system depends on.
// Stored document references may be bare keys or full URLs pointing
// into the store; Holds and KeyFor translate between the two.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	// PresignGet mints a signed GET URL valid for ttl. The URL must
	// never be cached or persisted.
	PresignGet(ctx context.Context, key string, ttl time.Duration) (string, error)
	// Holds reports whether the stored reference points into this store.
	Holds(ref string) bool
	// KeyFor extracts the object key from a stored reference. Only
	// meaningful when Holds(ref) is true.
	KeyFor(ref string) string
}

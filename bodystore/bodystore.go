// Package bodystore provides byte-addressable blob storage for cached
// response bodies, indexed by secondary cache key. It is deliberately
// separate from the journal: the journal owns metadata and consistency
// decisions, the store only owns bytes.
package bodystore

import (
	"context"
	"errors"
	"io"
)

// ErrNotFound is returned by Open and Size when no blob exists for a key.
var ErrNotFound = errors.New("bodystore: not found")

// Store is the byte-addressable blob backend for cached response bodies.
// Implementations must allow concurrent reads of distinct or shared keys;
// writes to the same key are serialized by the implementation so that the
// most recent Create wins, per the journal's own write-then-persist order.
type Store interface {
	// Open returns a reader for the blob stored under key. Multiple readers
	// may be active concurrently, including while a Create for the same key
	// is in flight (readers started before the write completes see the old
	// content; none see a torn write).
	Open(ctx context.Context, key string) (io.ReadCloser, error)

	// Create returns a writer for the blob stored under key. Closing the
	// writer commits the blob; an error from Close means nothing was
	// committed. Concurrent writers to the same key are serialized; the
	// last Close to commit wins.
	Create(ctx context.Context, key string) (io.WriteCloser, error)

	// Delete removes the blob for key. Deleting a missing key is not an
	// error.
	Delete(ctx context.Context, key string) error

	// Keys lists every blob key currently stored. Used at startup to
	// reconcile orphan and missing blobs against the journal.
	Keys(ctx context.Context) ([]string, error)

	// Size returns the byte length of the blob stored under key, or
	// ErrNotFound if it does not exist.
	Size(ctx context.Context, key string) (int64, error)
}

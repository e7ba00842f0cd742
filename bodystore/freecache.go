package bodystore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/coocood/freecache"
)

// FreecacheStore is a Store backed by freecache: a fixed-size, zero-GC
// ring-buffer cache with its own LRU eviction. It is a good fit for
// initInMemory construction when the caller wants a hard memory ceiling
// with automatic eviction instead of an unbounded map.
type FreecacheStore struct {
	cache *freecache.Cache
}

// NewFreecacheStore allocates a FreecacheStore of the given size in bytes
// (minimum enforced by freecache itself, currently 512KiB).
func NewFreecacheStore(size int) *FreecacheStore {
	return &FreecacheStore{cache: freecache.NewCache(size)}
}

func (s *FreecacheStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, err := s.cache.Get([]byte(key))
	if err != nil {
		if err == freecache.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *FreecacheStore) Create(_ context.Context, key string) (io.WriteCloser, error) {
	return &freecacheWriter{cache: s.cache, key: key}, nil
}

func (s *FreecacheStore) Delete(_ context.Context, key string) error {
	s.cache.Del([]byte(key))
	return nil
}

func (s *FreecacheStore) Keys(_ context.Context) ([]string, error) {
	it := s.cache.NewIterator()
	var keys []string
	for entry := it.Next(); entry != nil; entry = it.Next() {
		keys = append(keys, string(entry.Key))
	}
	return keys, nil
}

func (s *FreecacheStore) Size(_ context.Context, key string) (int64, error) {
	data, err := s.cache.Get([]byte(key))
	if err != nil {
		if err == freecache.ErrNotFound {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return int64(len(data)), nil
}

type freecacheWriter struct {
	cache *freecache.Cache
	key   string
	buf   bytes.Buffer
}

func (w *freecacheWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *freecacheWriter) Close() error {
	if err := w.cache.Set([]byte(w.key), w.buf.Bytes(), 0); err != nil {
		return fmt.Errorf("bodystore: writing %q: %w", w.key, err)
	}
	return nil
}

var _ Store = (*FreecacheStore)(nil)

package bodystore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// LevelDBStore is a Store backed by an embedded goleveldb database, useful
// when the cache directory should hold a single compacted file set instead
// of one file per entry.
type LevelDBStore struct {
	db *leveldb.DB
}

// NewLevelDBStore opens (or creates) a LevelDB database at path.
func NewLevelDBStore(path string) (*LevelDBStore, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, fmt.Errorf("bodystore: opening leveldb at %q: %w", path, err)
	}
	return &LevelDBStore{db: db}, nil
}

// Close releases the underlying database handle.
func (s *LevelDBStore) Close() error { return s.db.Close() }

func (s *LevelDBStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *LevelDBStore) Create(_ context.Context, key string) (io.WriteCloser, error) {
	return &leveldbWriter{db: s.db, key: key}, nil
}

func (s *LevelDBStore) Delete(_ context.Context, key string) error {
	if err := s.db.Delete([]byte(key), nil); err != nil {
		return fmt.Errorf("bodystore: deleting %q: %w", key, err)
	}
	return nil
}

func (s *LevelDBStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	iter := s.db.NewIterator(util.BytesPrefix(nil), nil)
	defer iter.Release()
	for iter.Next() {
		select {
		case <-ctx.Done():
			return keys, ctx.Err()
		default:
		}
		keys = append(keys, string(iter.Key()))
	}
	return keys, iter.Error()
}

func (s *LevelDBStore) Size(_ context.Context, key string) (int64, error) {
	data, err := s.db.Get([]byte(key), nil)
	if err != nil {
		if err == leveldb.ErrNotFound {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return int64(len(data)), nil
}

type leveldbWriter struct {
	db  *leveldb.DB
	key string
	buf bytes.Buffer
}

func (w *leveldbWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *leveldbWriter) Close() error {
	if err := w.db.Put([]byte(w.key), w.buf.Bytes(), nil); err != nil {
		return fmt.Errorf("bodystore: writing %q: %w", w.key, err)
	}
	return nil
}

var _ Store = (*LevelDBStore)(nil)

package bodystore

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/peterbourgon/diskv"
)

// FileStore is a Store backed by diskv, rooted at a configured directory.
// Every key maps to exactly one file directly under that directory; diskv's
// default flat transform keeps the layout a single level deep so the
// on-disk shape matches one-file-per-secondary-key.
type FileStore struct {
	d *diskv.Diskv
}

// NewFileStore returns a FileStore rooted at dir. dir is created on first
// write if it does not exist.
func NewFileStore(dir string) *FileStore {
	return &FileStore{
		d: diskv.New(diskv.Options{
			BasePath:     dir,
			Transform:    func(string) []string { return []string{} },
			CacheSizeMax: 0,
		}),
	}
}

func (s *FileStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	rc, err := s.d.ReadStream(key, false)
	if err != nil {
		return nil, ErrNotFound
	}
	return rc, nil
}

func (s *FileStore) Create(_ context.Context, key string) (io.WriteCloser, error) {
	return &fileWriter{d: s.d, key: key}, nil
}

func (s *FileStore) Delete(_ context.Context, key string) error {
	if err := s.d.Erase(key); err != nil && !s.d.Has(key) {
		return nil
	}
	return nil
}

func (s *FileStore) Keys(ctx context.Context) ([]string, error) {
	var keys []string
	cancel := make(chan struct{})
	defer close(cancel)
	for key := range s.d.Keys(cancel) {
		select {
		case <-ctx.Done():
			return keys, ctx.Err()
		default:
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func (s *FileStore) Size(_ context.Context, key string) (int64, error) {
	if !s.d.Has(key) {
		return 0, ErrNotFound
	}
	data, err := s.d.Read(key)
	if err != nil {
		return 0, ErrNotFound
	}
	return int64(len(data)), nil
}

// fileWriter buffers in memory and commits atomically via diskv.WriteStream
// on Close, so a reader opening the same key never observes a partial file.
type fileWriter struct {
	d   *diskv.Diskv
	key string
	buf bytes.Buffer
}

func (w *fileWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *fileWriter) Close() error {
	if err := w.d.WriteStream(w.key, bytes.NewReader(w.buf.Bytes()), true); err != nil {
		return fmt.Errorf("bodystore: writing %q: %w", w.key, err)
	}
	return nil
}

var _ Store = (*FileStore)(nil)

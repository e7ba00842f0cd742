package bodystore

import (
	"bytes"
	"compress/gzip"
	"context"
	"fmt"
	"io"

	"github.com/andybalholm/brotli"
	"github.com/golang/snappy"
)

// Algorithm identifies a body compression codec.
type Algorithm byte

const (
	// None leaves the blob exactly as written; used as the Compressed
	// struct's marker byte when the configured algorithm is None or
	// compression failed. A blob is stored compressed even when that makes
	// it larger.
	None Algorithm = iota
	Gzip
	Brotli
	Snappy
)

func (a Algorithm) String() string {
	switch a {
	case Gzip:
		return "gzip"
	case Brotli:
		return "brotli"
	case Snappy:
		return "snappy"
	default:
		return "none"
	}
}

// Compressed wraps a Store, transparently compressing blobs on write and
// decompressing on read. The first byte of the persisted blob records which
// algorithm (if any) was used, so a store can be opened by any instance of
// Compressed regardless of which algorithm wrote a given entry.
type Compressed struct {
	inner     Store
	algorithm Algorithm
	level     int
}

// NewCompressed wraps inner, compressing new writes with algorithm. level is
// algorithm-specific (gzip: -2..9, brotli: 0..11, ignored for snappy).
func NewCompressed(inner Store, algorithm Algorithm, level int) *Compressed {
	return &Compressed{inner: inner, algorithm: algorithm, level: level}
}

func (c *Compressed) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	rc, err := c.inner.Open(ctx, key)
	if err != nil {
		return nil, err
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return nil, fmt.Errorf("bodystore: reading compressed blob %q: %w", key, err)
	}
	if len(data) == 0 {
		return io.NopCloser(bytes.NewReader(nil)), nil
	}
	marker, payload := Algorithm(data[0]), data[1:]
	plain, err := decompress(marker, payload)
	if err != nil {
		return nil, fmt.Errorf("bodystore: decompressing blob %q: %w", key, err)
	}
	return io.NopCloser(bytes.NewReader(plain)), nil
}

func (c *Compressed) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	w, err := c.inner.Create(ctx, key)
	if err != nil {
		return nil, err
	}
	return &compressedWriter{inner: w, algorithm: c.algorithm, level: c.level}, nil
}

func (c *Compressed) Delete(ctx context.Context, key string) error { return c.inner.Delete(ctx, key) }
func (c *Compressed) Keys(ctx context.Context) ([]string, error)   { return c.inner.Keys(ctx) }

// Size returns the compressed on-disk size, not the decompressed length;
// callers that need the logical body size should read the blob.
func (c *Compressed) Size(ctx context.Context, key string) (int64, error) {
	return c.inner.Size(ctx, key)
}

type compressedWriter struct {
	inner     io.WriteCloser
	algorithm Algorithm
	level     int
	buf       bytes.Buffer
}

func (w *compressedWriter) Write(p []byte) (int, error) { return w.buf.Write(p) }

func (w *compressedWriter) Close() error {
	compressed, algo, err := compress(w.algorithm, w.level, w.buf.Bytes())
	if err != nil {
		algo, compressed = None, w.buf.Bytes()
	}
	if _, err := w.inner.Write([]byte{byte(algo)}); err != nil {
		_ = w.inner.Close()
		return fmt.Errorf("bodystore: writing compression marker: %w", err)
	}
	if _, err := w.inner.Write(compressed); err != nil {
		_ = w.inner.Close()
		return fmt.Errorf("bodystore: writing compressed payload: %w", err)
	}
	return w.inner.Close()
}

func compress(algo Algorithm, level int, data []byte) ([]byte, Algorithm, error) {
	switch algo {
	case Gzip:
		var buf bytes.Buffer
		w, err := gzip.NewWriterLevel(&buf, level)
		if err != nil {
			return nil, None, err
		}
		if _, err := w.Write(data); err != nil {
			return nil, None, err
		}
		if err := w.Close(); err != nil {
			return nil, None, err
		}
		return buf.Bytes(), Gzip, nil
	case Brotli:
		var buf bytes.Buffer
		w := brotli.NewWriterLevel(&buf, level)
		if _, err := w.Write(data); err != nil {
			return nil, None, err
		}
		if err := w.Close(); err != nil {
			return nil, None, err
		}
		return buf.Bytes(), Brotli, nil
	case Snappy:
		return snappy.Encode(nil, data), Snappy, nil
	default:
		return data, None, nil
	}
}

func decompress(algo Algorithm, data []byte) ([]byte, error) {
	switch algo {
	case Gzip:
		r, err := gzip.NewReader(bytes.NewReader(data))
		if err != nil {
			return nil, err
		}
		defer r.Close()
		return io.ReadAll(r)
	case Brotli:
		return io.ReadAll(brotli.NewReader(bytes.NewReader(data)))
	case Snappy:
		return snappy.Decode(nil, data)
	default:
		return data, nil
	}
}

var _ Store = (*Compressed)(nil)

package bodystore

import (
	"context"
	"io"
)

// Tiered cascades reads through tiers ordered fastest/smallest first,
// promoting a blob found in a slower tier into every faster tier ahead of
// it. Writes and deletes fan out to all tiers so every tier stays a
// complete copy of the cache, just at different speed/capacity points.
type Tiered struct {
	tiers []Store
}

// NewTiered builds a Tiered store over tiers, ordered fastest-first.
func NewTiered(tiers ...Store) *Tiered {
	return &Tiered{tiers: tiers}
}

func (t *Tiered) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	for i, tier := range t.tiers {
		rc, err := tier.Open(ctx, key)
		if err == nil {
			if i > 0 {
				t.promote(ctx, key, i)
			}
			return rc, nil
		}
	}
	return nil, ErrNotFound
}

// promote copies the blob found at tiers[foundAt] into every faster tier.
// Best-effort: a promotion failure does not fail the read that triggered it.
func (t *Tiered) promote(ctx context.Context, key string, foundAt int) {
	rc, err := t.tiers[foundAt].Open(ctx, key)
	if err != nil {
		return
	}
	data, err := io.ReadAll(rc)
	rc.Close()
	if err != nil {
		return
	}
	for i := 0; i < foundAt; i++ {
		w, err := t.tiers[i].Create(ctx, key)
		if err != nil {
			continue
		}
		if _, err := w.Write(data); err != nil {
			w.Close()
			continue
		}
		w.Close()
	}
}

func (t *Tiered) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	writers := make([]io.WriteCloser, 0, len(t.tiers))
	for _, tier := range t.tiers {
		w, err := tier.Create(ctx, key)
		if err != nil {
			for _, opened := range writers {
				opened.Close()
			}
			return nil, err
		}
		writers = append(writers, w)
	}
	return &tieredWriter{writers: writers}, nil
}

func (t *Tiered) Delete(ctx context.Context, key string) error {
	var firstErr error
	for _, tier := range t.tiers {
		if err := tier.Delete(ctx, key); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

func (t *Tiered) Keys(ctx context.Context) ([]string, error) {
	seen := map[string]struct{}{}
	var keys []string
	for _, tier := range t.tiers {
		tierKeys, err := tier.Keys(ctx)
		if err != nil {
			return nil, err
		}
		for _, k := range tierKeys {
			if _, ok := seen[k]; !ok {
				seen[k] = struct{}{}
				keys = append(keys, k)
			}
		}
	}
	return keys, nil
}

func (t *Tiered) Size(ctx context.Context, key string) (int64, error) {
	for _, tier := range t.tiers {
		if size, err := tier.Size(ctx, key); err == nil {
			return size, nil
		}
	}
	return 0, ErrNotFound
}

type tieredWriter struct {
	writers []io.WriteCloser
}

func (w *tieredWriter) Write(p []byte) (int, error) {
	for _, inner := range w.writers {
		if _, err := inner.Write(p); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

func (w *tieredWriter) Close() error {
	var firstErr error
	for _, inner := range w.writers {
		if err := inner.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

var _ Store = (*Tiered)(nil)

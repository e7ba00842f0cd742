package prometheus

import (
	"context"
	"io"
	"time"

	"github.com/kaelbridge/httpflow/bodystore"
	"github.com/kaelbridge/httpflow/metrics"
)

// Metric result labels recorded against the bodystore operations below.
const (
	resultHit     = "hit"
	resultMiss    = "miss"
	resultSuccess = "success"
	resultError   = "error"
)

// InstrumentedStore wraps a bodystore.Store with metrics recording for every
// blob operation.
type InstrumentedStore struct {
	underlying bodystore.Store
	collector  metrics.Collector
	backend    string
}

// NewInstrumentedStore wraps store, recording metrics against backend's name
// (e.g. "file", "leveldb", "freecache"). If collector is nil,
// metrics.DefaultCollector (a no-op) is used.
func NewInstrumentedStore(store bodystore.Store, backend string, collector metrics.Collector) *InstrumentedStore {
	if collector == nil {
		collector = metrics.DefaultCollector
	}
	return &InstrumentedStore{underlying: store, collector: collector, backend: backend}
}

var _ bodystore.Store = (*InstrumentedStore)(nil)

func (s *InstrumentedStore) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	start := time.Now()
	rc, err := s.underlying.Open(ctx, key)
	result := resultHit
	if err != nil {
		if err == bodystore.ErrNotFound {
			result = resultMiss
		} else {
			result = resultError
		}
	}
	s.collector.RecordCacheOperation("get", s.backend, result, time.Since(start))
	return rc, err
}

func (s *InstrumentedStore) Create(ctx context.Context, key string) (io.WriteCloser, error) {
	start := time.Now()
	wc, err := s.underlying.Create(ctx, key)
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	s.collector.RecordCacheOperation("set", s.backend, result, time.Since(start))
	return wc, err
}

func (s *InstrumentedStore) Delete(ctx context.Context, key string) error {
	start := time.Now()
	err := s.underlying.Delete(ctx, key)
	result := resultSuccess
	if err != nil {
		result = resultError
	}
	s.collector.RecordCacheOperation("delete", s.backend, result, time.Since(start))
	return err
}

func (s *InstrumentedStore) Keys(ctx context.Context) ([]string, error) {
	return s.underlying.Keys(ctx)
}

func (s *InstrumentedStore) Size(ctx context.Context, key string) (int64, error) {
	return s.underlying.Size(ctx, key)
}

package cache

import "github.com/kaelbridge/httpflow/bodystore"

// Option configures an Interceptor (and, for NewLocal/NewInMemory, the body
// store they build) at construction time.
type Option func(*options)

type options struct {
	cacheName           string
	maxCacheSize        int64
	private             bool
	markCachedResponses bool
	varyLimit           int

	compressionAlgo  bodystore.Algorithm
	compressionLevel int
	compress         bool

	encryptionPassphrase string
}

func defaultOptions() options {
	return options{
		cacheName:           "httpflow",
		maxCacheSize:        100 * 1024 * 1024,
		private:             true,
		markCachedResponses: true,
	}
}

// WithMaxCacheSize overrides the default 100 MiB total persisted-body budget.
func WithMaxCacheSize(bytes int64) Option {
	return func(o *options) { o.maxCacheSize = bytes }
}

// WithPrivate controls whether responses marked Cache-Control: private are
// stored. Default true (this is a private, single-user cache).
func WithPrivate(private bool) Option {
	return func(o *options) { o.private = private }
}

// WithMarkCachedResponses toggles whether served cache hits get a
// human-readable detail= field on their Cache-Status header.
func WithMarkCachedResponses(mark bool) Option {
	return func(o *options) { o.markCachedResponses = mark }
}

// WithVaryLimit caps the number of distinct Vary-segmented variants kept per
// primary key; exceeding it evicts the lowest-frecency variant under that
// key. Zero (the default) means unlimited.
func WithVaryLimit(n int) Option {
	return func(o *options) { o.varyLimit = n }
}

// WithCacheName sets the name reported in the Cache-Status header. Default "httpflow".
func WithCacheName(name string) Option {
	return func(o *options) { o.cacheName = name }
}

// WithCompression wraps NewLocal/NewInMemory's body store in bodystore.Compressed.
func WithCompression(algo bodystore.Algorithm, level int) Option {
	return func(o *options) {
		o.compress = true
		o.compressionAlgo = algo
		o.compressionLevel = level
	}
}

// WithEncryption wraps NewLocal/NewInMemory's body store in bodystore.Encrypted.
func WithEncryption(passphrase string) Option {
	return func(o *options) { o.encryptionPassphrase = passphrase }
}

func wrapStore(store bodystore.Store, o options) (bodystore.Store, error) {
	if o.compress {
		store = bodystore.NewCompressed(store, o.compressionAlgo, o.compressionLevel)
	}
	if o.encryptionPassphrase != "" {
		enc, err := bodystore.NewEncrypted(store, o.encryptionPassphrase)
		if err != nil {
			return nil, err
		}
		store = enc
	}
	return store, nil
}

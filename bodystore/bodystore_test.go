package bodystore

import (
	"context"
	"errors"
	"io"
	"testing"
)

func newStores(t *testing.T) map[string]Store {
	t.Helper()
	dir := t.TempDir()
	fileStore := NewFileStore(dir)

	leveldbDir := t.TempDir() + "/ldb"
	ldb, err := NewLevelDBStore(leveldbDir)
	if err != nil {
		t.Fatalf("opening leveldb store: %v", err)
	}
	t.Cleanup(func() { ldb.Close() })

	return map[string]Store{
		"memory":   NewMemoryStore(),
		"file":     fileStore,
		"leveldb":  ldb,
		"freecache": NewFreecacheStore(512 * 1024),
	}
}

func writeBlob(t *testing.T, s Store, key string, data []byte) {
	t.Helper()
	w, err := s.Create(context.Background(), key)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatalf("Write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func readBlob(t *testing.T, s Store, key string) []byte {
	t.Helper()
	rc, err := s.Open(context.Background(), key)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return data
}

func TestStoreRoundTrip(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			writeBlob(t, store, "k1", []byte("hello world"))
			if got := readBlob(t, store, "k1"); string(got) != "hello world" {
				t.Errorf("got %q, want %q", got, "hello world")
			}

			size, err := store.Size(context.Background(), "k1")
			if err != nil {
				t.Fatalf("Size: %v", err)
			}
			if size != int64(len("hello world")) {
				t.Errorf("Size = %d, want %d", size, len("hello world"))
			}
		})
	}
}

func TestStoreOpenMissingReturnsErrNotFound(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Open(context.Background(), "missing")
			if !errors.Is(err, ErrNotFound) {
				t.Errorf("Open(missing) error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreDeleteThenMissing(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			writeBlob(t, store, "k1", []byte("data"))
			if err := store.Delete(context.Background(), "k1"); err != nil {
				t.Fatalf("Delete: %v", err)
			}
			if _, err := store.Open(context.Background(), "k1"); !errors.Is(err, ErrNotFound) {
				t.Errorf("Open after delete error = %v, want ErrNotFound", err)
			}
		})
	}
}

func TestStoreOverwriteLastWriteWins(t *testing.T) {
	for name, store := range newStores(t) {
		t.Run(name, func(t *testing.T) {
			writeBlob(t, store, "k1", []byte("first"))
			writeBlob(t, store, "k1", []byte("second"))
			if got := readBlob(t, store, "k1"); string(got) != "second" {
				t.Errorf("got %q, want %q", got, "second")
			}
		})
	}
}

func TestCompressedRoundTrip(t *testing.T) {
	for _, algo := range []Algorithm{Gzip, Brotli, Snappy} {
		t.Run(algo.String(), func(t *testing.T) {
			store := NewCompressed(NewMemoryStore(), algo, 0)
			payload := []byte("the quick brown fox jumps over the lazy dog, repeatedly, many times over")
			writeBlob(t, store, "k1", payload)
			if got := readBlob(t, store, "k1"); string(got) != string(payload) {
				t.Errorf("got %q, want %q", got, payload)
			}
		})
	}
}

func TestEncryptedRoundTrip(t *testing.T) {
	store, err := NewEncrypted(NewMemoryStore(), "correct horse battery staple")
	if err != nil {
		t.Fatalf("NewEncrypted: %v", err)
	}
	writeBlob(t, store, "k1", []byte("secret payload"))
	if got := readBlob(t, store, "k1"); string(got) != "secret payload" {
		t.Errorf("got %q, want %q", got, "secret payload")
	}
}

func TestEncryptedRejectsEmptyPassphrase(t *testing.T) {
	if _, err := NewEncrypted(NewMemoryStore(), ""); err == nil {
		t.Error("expected error for empty passphrase")
	}
}

func TestTieredPromotesOnRead(t *testing.T) {
	fast := NewMemoryStore()
	slow := NewMemoryStore()
	writeBlob(t, slow, "k1", []byte("from slow tier"))

	tiered := NewTiered(fast, slow)
	if got := readBlob(t, tiered, "k1"); string(got) != "from slow tier" {
		t.Errorf("got %q, want %q", got, "from slow tier")
	}

	if got := readBlob(t, fast, "k1"); string(got) != "from slow tier" {
		t.Errorf("expected promotion to fast tier, got %q", got)
	}
}

func TestTieredWriteFansOutToAllTiers(t *testing.T) {
	a := NewMemoryStore()
	b := NewMemoryStore()
	tiered := NewTiered(a, b)

	writeBlob(t, tiered, "k1", []byte("payload"))

	if got := readBlob(t, a, "k1"); string(got) != "payload" {
		t.Errorf("tier a got %q", got)
	}
	if got := readBlob(t, b, "k1"); string(got) != "payload" {
		t.Errorf("tier b got %q", got)
	}
}

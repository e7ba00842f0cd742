package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/kaelbridge/httpflow/bodystore"
)

func newEntry(secondary string, size int64) *Entry {
	now := NewTimestamp(time.Now())
	return &Entry{
		SecondaryKey:  secondary,
		CreatedAt:     now,
		ReasonPhrase:  "OK",
		ContentLength: size,
		Headers:       map[string][]string{"content-type": {"text/plain"}},
		Vary:          map[string]string{},
		LastAccess:    now,
		PersistedSize: size,
	}
}

func TestPutAndMatch(t *testing.T) {
	j := OpenInMemory()
	entry := newEntry("sec1", 10)
	entry.Vary = map[string]string{"user-agent": "go-test"}
	j.Put("primary1", entry)

	got, ok := j.Match("primary1", func(name string) (string, bool) {
		if name == "user-agent" {
			return "go-test", true
		}
		return "", false
	})
	if !ok {
		t.Fatal("expected a match")
	}
	if got.SecondaryKey != "sec1" {
		t.Errorf("got secondary key %q", got.SecondaryKey)
	}
}

func TestMatchFailsOnVaryMismatch(t *testing.T) {
	j := OpenInMemory()
	entry := newEntry("sec1", 10)
	entry.Vary = map[string]string{"user-agent": "go-test"}
	j.Put("primary1", entry)

	_, ok := j.Match("primary1", func(name string) (string, bool) {
		return "other-agent", true
	})
	if ok {
		t.Error("expected no match on differing header value")
	}
}

func TestMatchFailsOnMissingHeader(t *testing.T) {
	j := OpenInMemory()
	entry := newEntry("sec1", 10)
	entry.Vary = map[string]string{"user-agent": "go-test"}
	j.Put("primary1", entry)

	_, ok := j.Match("primary1", func(name string) (string, bool) {
		return "", false
	})
	if ok {
		t.Error("expected no match when request header is absent")
	}
}

func TestDeletePrimaryRemovesAllSecondaries(t *testing.T) {
	j := OpenInMemory()
	j.Put("primary1", newEntry("sec1", 10))
	j.Put("primary1", newEntry("sec2", 20))

	keys := j.DeletePrimary("primary1")
	if len(keys) != 2 {
		t.Fatalf("expected 2 removed keys, got %d", len(keys))
	}
	if _, ok := j.Get("primary1", "sec1"); ok {
		t.Error("expected sec1 to be gone")
	}
	if len(j.All()) != 0 {
		t.Error("expected journal empty after DeletePrimary")
	}
}

func TestDeleteCollapsesEmptyPrimary(t *testing.T) {
	j := OpenInMemory()
	j.Put("primary1", newEntry("sec1", 10))
	if _, ok := j.Delete("primary1", "sec1"); !ok {
		t.Fatal("expected delete to succeed")
	}
	refs := j.All()
	if len(refs) != 0 {
		t.Errorf("expected no refs left, got %d", len(refs))
	}
}

func TestTotalSizeSumsAcrossEntries(t *testing.T) {
	j := OpenInMemory()
	j.Put("p1", newEntry("s1", 10))
	j.Put("p1", newEntry("s2", 15))
	j.Put("p2", newEntry("s3", 5))

	if total := j.TotalSize(); total != 30 {
		t.Errorf("TotalSize = %d, want 30", total)
	}
}

func TestTouchIncrementsHitCount(t *testing.T) {
	j := OpenInMemory()
	j.Put("p1", newEntry("s1", 10))

	entry, ok := j.Touch("p1", "s1", time.Now())
	if !ok {
		t.Fatal("expected touch to find entry")
	}
	if entry.HitCount != 1 {
		t.Errorf("HitCount = %d, want 1", entry.HitCount)
	}
	entry, _ = j.Touch("p1", "s1", time.Now())
	if entry.HitCount != 2 {
		t.Errorf("HitCount = %d, want 2", entry.HitCount)
	}
}

func TestMutateOverlaysFields(t *testing.T) {
	j := OpenInMemory()
	j.Put("p1", newEntry("s1", 10))

	ok := j.Mutate("p1", "s1", func(e *Entry) {
		e.Headers["etag"] = []string{`"v2"`}
	})
	if !ok {
		t.Fatal("expected mutate to find entry")
	}
	got, _ := j.Get("p1", "s1")
	if got.Headers["etag"][0] != `"v2"` {
		t.Errorf("etag not updated: %v", got.Headers["etag"])
	}
}

func TestClearRemovesEverything(t *testing.T) {
	j := OpenInMemory()
	j.Put("p1", newEntry("s1", 10))
	j.Put("p2", newEntry("s2", 20))

	refs := j.Clear()
	if len(refs) != 2 {
		t.Fatalf("expected 2 cleared refs, got %d", len(refs))
	}
	if len(j.All()) != 0 {
		t.Error("expected journal empty after Clear")
	}
}

func TestOpenPersistsAndReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal")
	store := bodystore.NewMemoryStore()

	j, err := Open(context.Background(), path, store, WithFlushDebounce(time.Millisecond))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	w, err := store.Create(context.Background(), "sec1")
	if err != nil {
		t.Fatalf("Create blob: %v", err)
	}
	w.Write([]byte("hello"))
	w.Close()

	j.Put("p1", newEntry("sec1", 5))
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(context.Background(), path, store)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	entry, ok := reopened.Get("p1", "sec1")
	if !ok {
		t.Fatal("expected reloaded entry to be present")
	}
	if entry.PersistedSize != 5 {
		t.Errorf("PersistedSize = %d, want 5", entry.PersistedSize)
	}
}

func TestOpenReconcilesMissingBlob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal")
	store := bodystore.NewMemoryStore()

	j, err := Open(context.Background(), path, store)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	j.Put("p1", newEntry("sec-no-blob", 5))
	if err := j.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	reopened, err := Open(context.Background(), path, store)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if _, ok := reopened.Get("p1", "sec-no-blob"); ok {
		t.Error("expected entry with missing blob to be dropped on reconciliation")
	}
}

func TestOpenReconcilesOrphanBlob(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal")
	store := bodystore.NewMemoryStore()

	w, _ := store.Create(context.Background(), "orphan")
	w.Write([]byte("data"))
	w.Close()

	if _, err := Open(context.Background(), path, store); err != nil {
		t.Fatalf("Open: %v", err)
	}

	if _, err := store.Open(context.Background(), "orphan"); err == nil {
		t.Error("expected orphan blob to be deleted during reconciliation")
	}
}

func TestOpenMissingFileStartsEmpty(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "journal")

	j, err := Open(context.Background(), path, nil)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if len(j.All()) != 0 {
		t.Error("expected empty journal")
	}
}

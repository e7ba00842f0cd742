// Package journal provides the in-memory index of cache entries — primary
// key to secondary key to Entry — with durable, debounced, atomically
// rewritten binary snapshots.
package journal

import (
	"context"
	"sync"
	"time"

	"github.com/kaelbridge/httpflow/bodystore"
)

// Journal is the mapping from primary key to a set of secondary-keyed cache
// entries. All exported methods are safe for concurrent use; no lock is
// held across blob or file I/O.
type Journal struct {
	mu       sync.Mutex
	entries  map[string]map[string]*Entry
	path     string
	debounce time.Duration
	timer    *time.Timer
	dirty    bool
	closed   bool
}

// Open loads a Journal from path, reconciling it against store: entries
// whose blob is missing are dropped, and blobs with no referring entry are
// deleted. If path does not exist or fails to parse, an empty journal is
// initialized and immediately persisted, matching the recovery rule that a
// missing or corrupt journal is never fatal.
func Open(ctx context.Context, path string, store bodystore.Store, opts ...Option) (*Journal, error) {
	j := &Journal{path: path, debounce: defaultDebounce, entries: map[string]map[string]*Entry{}}
	for _, opt := range opts {
		if err := opt(j); err != nil {
			return nil, err
		}
	}

	data, err := readFile(path)
	if err != nil {
		GetLogger().Error("journal: reading snapshot failed, starting empty", "path", path, "error", err)
		data = nil
	}
	if data != nil {
		entries, decodeErr := decode(data)
		if decodeErr != nil {
			GetLogger().Warn("journal: snapshot corrupt, starting empty", "path", path, "error", decodeErr)
		} else {
			j.entries = entries
		}
	}

	if store != nil {
		j.reconcile(ctx, store)
	}

	if err := j.flushNow(); err != nil {
		GetLogger().Error("journal: initial flush failed", "path", path, "error", err)
	}
	return j, nil
}

// OpenInMemory returns a Journal with no on-disk persistence, for an
// in-process-only cache.
func OpenInMemory(opts ...Option) *Journal {
	j := &Journal{debounce: defaultDebounce, entries: map[string]map[string]*Entry{}}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// reconcile deletes journal entries whose blob does not exist in store, and
// deletes blobs in store that no entry refers to. Runs once at startup,
// outside the mutation lock's debounce bookkeeping.
func (j *Journal) reconcile(ctx context.Context, store bodystore.Store) {
	keys, err := store.Keys(ctx)
	if err != nil {
		GetLogger().Error("journal: listing blobs for reconciliation failed", "error", err)
		return
	}
	present := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		present[k] = struct{}{}
	}

	referenced := map[string]struct{}{}
	for primary, secondaries := range j.entries {
		for secondary := range secondaries {
			if _, ok := present[secondary]; !ok {
				GetLogger().Warn("journal: dropping entry with missing blob", "primary", primary, "secondary", secondary)
				delete(secondaries, secondary)
				continue
			}
			referenced[secondary] = struct{}{}
		}
		if len(secondaries) == 0 {
			delete(j.entries, primary)
		}
	}

	for key := range present {
		if _, ok := referenced[key]; !ok {
			GetLogger().Warn("journal: deleting orphan blob", "secondary", key)
			if err := store.Delete(ctx, key); err != nil {
				GetLogger().Error("journal: deleting orphan blob failed", "secondary", key, "error", err)
			}
		}
	}
}

// Match returns the entry under primaryKey whose recorded vary headers are
// all satisfied by get, or (nil, false) if none match.
func (j *Journal) Match(primaryKey string, get func(name string) (string, bool)) (*Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, entry := range j.entries[primaryKey] {
		if entry.matchesVary(get) {
			return entry.Clone(), true
		}
	}
	return nil, false
}

// Get returns the entry addressed by (primaryKey, secondaryKey).
func (j *Journal) Get(primaryKey, secondaryKey string) (*Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	secondaries, ok := j.entries[primaryKey]
	if !ok {
		return nil, false
	}
	entry, ok := secondaries[secondaryKey]
	if !ok {
		return nil, false
	}
	return entry.Clone(), true
}

// Put inserts or replaces the entry addressed by (primaryKey,
// entry.SecondaryKey), scheduling a debounced flush.
func (j *Journal) Put(primaryKey string, entry *Entry) {
	j.mu.Lock()
	secondaries, ok := j.entries[primaryKey]
	if !ok {
		secondaries = map[string]*Entry{}
		j.entries[primaryKey] = secondaries
	}
	secondaries[entry.SecondaryKey] = entry.Clone()
	j.markDirtyLocked()
	j.mu.Unlock()
}

// Touch records a cache hit against (primaryKey, secondaryKey): increments
// HitCount and refreshes LastAccess, returning the updated entry.
func (j *Journal) Touch(primaryKey, secondaryKey string, at time.Time) (*Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	secondaries, ok := j.entries[primaryKey]
	if !ok {
		return nil, false
	}
	entry, ok := secondaries[secondaryKey]
	if !ok {
		return nil, false
	}
	entry.HitCount++
	entry.LastAccess = NewTimestamp(at)
	j.markDirtyLocked()
	return entry.Clone(), true
}

// Mutate applies fn to the entry addressed by (primaryKey, secondaryKey) in
// place, returning false if no such entry exists. Used for the 304 header
// overlay, where only a subset of fields changes.
func (j *Journal) Mutate(primaryKey, secondaryKey string, fn func(*Entry)) bool {
	j.mu.Lock()
	defer j.mu.Unlock()
	secondaries, ok := j.entries[primaryKey]
	if !ok {
		return false
	}
	entry, ok := secondaries[secondaryKey]
	if !ok {
		return false
	}
	fn(entry)
	j.markDirtyLocked()
	return true
}

// Delete removes the entry addressed by (primaryKey, secondaryKey),
// collapsing the primary entry if it becomes empty. Returns the removed
// entry, if any, so the caller can delete its blob.
func (j *Journal) Delete(primaryKey, secondaryKey string) (*Entry, bool) {
	j.mu.Lock()
	defer j.mu.Unlock()
	secondaries, ok := j.entries[primaryKey]
	if !ok {
		return nil, false
	}
	entry, ok := secondaries[secondaryKey]
	if !ok {
		return nil, false
	}
	delete(secondaries, secondaryKey)
	if len(secondaries) == 0 {
		delete(j.entries, primaryKey)
	}
	j.markDirtyLocked()
	return entry, true
}

// DeletePrimary removes every entry under primaryKey, returning their
// secondary keys so the caller can delete the corresponding blobs. Used for
// unsafe-method invalidation.
func (j *Journal) DeletePrimary(primaryKey string) []string {
	j.mu.Lock()
	defer j.mu.Unlock()
	secondaries, ok := j.entries[primaryKey]
	if !ok || len(secondaries) == 0 {
		return nil
	}
	keys := make([]string, 0, len(secondaries))
	for k := range secondaries {
		keys = append(keys, k)
	}
	delete(j.entries, primaryKey)
	j.markDirtyLocked()
	return keys
}

// All returns every entry in the journal as an EntryRef, for eviction
// scoring and full-cache iteration.
func (j *Journal) All() []EntryRef {
	j.mu.Lock()
	defer j.mu.Unlock()
	var refs []EntryRef
	for primary, secondaries := range j.entries {
		for secondary, entry := range secondaries {
			refs = append(refs, EntryRef{PrimaryKey: primary, SecondaryKey: secondary, Entry: entry.Clone()})
		}
	}
	return refs
}

// TotalSize sums PersistedSize across every entry.
func (j *Journal) TotalSize() int64 {
	j.mu.Lock()
	defer j.mu.Unlock()
	var total int64
	for _, secondaries := range j.entries {
		for _, entry := range secondaries {
			total += entry.PersistedSize
		}
	}
	return total
}

// Clear removes every entry, returning their (primary, secondary) pairs so
// the caller can delete the corresponding blobs.
func (j *Journal) Clear() []EntryRef {
	j.mu.Lock()
	defer j.mu.Unlock()
	refs := make([]EntryRef, 0)
	for primary, secondaries := range j.entries {
		for secondary, entry := range secondaries {
			refs = append(refs, EntryRef{PrimaryKey: primary, SecondaryKey: secondary, Entry: entry})
		}
	}
	j.entries = map[string]map[string]*Entry{}
	j.markDirtyLocked()
	return refs
}

// markDirtyLocked schedules a debounced flush. j.mu must be held.
func (j *Journal) markDirtyLocked() {
	j.dirty = true
	if j.path == "" || j.closed {
		return
	}
	if j.timer != nil {
		j.timer.Stop()
	}
	j.timer = time.AfterFunc(j.debounce, func() {
		if err := j.flushNow(); err != nil {
			GetLogger().Error("journal: debounced flush failed", "path", j.path, "error", err)
		}
	})
}

// flushNow writes the current snapshot to disk synchronously, regardless of
// the debounce timer. A no-op for in-memory journals.
func (j *Journal) flushNow() error {
	j.mu.Lock()
	if j.path == "" {
		j.dirty = false
		j.mu.Unlock()
		return nil
	}
	snapshotCopy := make(map[string]map[string]*Entry, len(j.entries))
	for primary, secondaries := range j.entries {
		inner := make(map[string]*Entry, len(secondaries))
		for k, v := range secondaries {
			inner[k] = v
		}
		snapshotCopy[primary] = inner
	}
	j.dirty = false
	j.mu.Unlock()

	data, err := encode(snapshotCopy)
	if err != nil {
		return err
	}
	return writeFileAtomic(j.path, data)
}

// Close flushes any pending write and marks the journal closed.
func (j *Journal) Close() error {
	j.mu.Lock()
	if j.timer != nil {
		j.timer.Stop()
	}
	dirty := j.dirty
	j.closed = true
	j.mu.Unlock()
	if !dirty {
		return nil
	}
	return j.flushNow()
}

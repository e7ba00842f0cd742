package cache

import (
	"context"
	"sort"
	"time"

	"github.com/kaelbridge/httpflow/bodystore"
	"github.com/kaelbridge/httpflow/journal"
)

// frecency scores an entry as hitCount / (secondsSinceLastAccess + 1): a
// recently or frequently touched entry survives eviction longer than one
// that is old and rarely hit.
func frecency(e *journal.Entry, now time.Time) float64 {
	secondsSinceAccess := now.Sub(e.LastAccess.Time()).Seconds()
	if secondsSinceAccess < 0 {
		secondsSinceAccess = 0
	}
	return float64(e.HitCount) / (secondsSinceAccess + 1)
}

// sortByFrecencyAsc orders refs from most to least evictable: lowest
// frecency first, ties broken by older LastAccess first.
func sortByFrecencyAsc(refs []journal.EntryRef, now time.Time) {
	sort.Slice(refs, func(i, j int) bool {
		si, sj := frecency(refs[i].Entry, now), frecency(refs[j].Entry, now)
		if si != sj {
			return si < sj
		}
		return refs[i].Entry.LastAccess.Time().Before(refs[j].Entry.LastAccess.Time())
	})
}

// evictToFit deletes entries, lowest-frecency first, until the journal's
// total persisted size is at or under maxSize.
func evictToFit(ctx context.Context, j *journal.Journal, store bodystore.Store, maxSize int64) {
	total := j.TotalSize()
	if total <= maxSize {
		return
	}
	refs := j.All()
	now := time.Now()
	sortByFrecencyAsc(refs, now)

	for _, ref := range refs {
		if total <= maxSize {
			return
		}
		if removed, ok := j.Delete(ref.PrimaryKey, ref.SecondaryKey); ok {
			if err := store.Delete(ctx, ref.SecondaryKey); err != nil {
				GetLogger().Error("evict: deleting blob", "key", ref.SecondaryKey, "error", err)
			}
			total -= removed.PersistedSize
		}
	}
}

// enforceVaryLimit deletes the lowest-frecency variants under primary until
// at most limit remain. limit <= 0 means unlimited.
func enforceVaryLimit(ctx context.Context, j *journal.Journal, store bodystore.Store, primary string, limit int) {
	if limit <= 0 {
		return
	}
	var group []journal.EntryRef
	for _, ref := range j.All() {
		if ref.PrimaryKey == primary {
			group = append(group, ref)
		}
	}
	if len(group) <= limit {
		return
	}
	now := time.Now()
	sortByFrecencyAsc(group, now)

	excess := len(group) - limit
	for i := 0; i < excess; i++ {
		ref := group[i]
		if _, ok := j.Delete(ref.PrimaryKey, ref.SecondaryKey); ok {
			if err := store.Delete(ctx, ref.SecondaryKey); err != nil {
				GetLogger().Error("vary limit: deleting blob", "key", ref.SecondaryKey, "error", err)
			}
		}
	}
}

package journal

import "time"

// Timestamp is a (seconds, nanoseconds)-since-epoch pair, the on-disk
// representation mandated for every clock value stored in a snapshot so the
// format stays independent of time.Time's monotonic-reading internals.
type Timestamp struct {
	Sec  int64
	Nsec int32
}

// NewTimestamp captures t as a Timestamp.
func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Sec: t.Unix(), Nsec: int32(t.Nanosecond())}
}

// Time reconstructs the time.Time this Timestamp recorded.
func (ts Timestamp) Time() time.Time {
	return time.Unix(ts.Sec, int64(ts.Nsec)).UTC()
}

// IsZero reports whether ts is the zero Timestamp.
func (ts Timestamp) IsZero() bool { return ts == Timestamp{} }

// Entry is one cached response variant: a secondary key's metadata, owned
// exclusively by the Journal. Headers are stored with lowercased names.
type Entry struct {
	SecondaryKey  string
	CreatedAt     Timestamp
	ReasonPhrase  string
	ContentLength int64
	Headers       map[string][]string
	Vary          map[string]string
	HitCount      int64
	LastAccess    Timestamp
	PersistedSize int64
}

// Clone returns a deep copy of e, safe to mutate without affecting the
// journal's own copy.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Headers = make(map[string][]string, len(e.Headers))
	for k, v := range e.Headers {
		vv := make([]string, len(v))
		copy(vv, v)
		clone.Headers[k] = vv
	}
	clone.Vary = make(map[string]string, len(e.Vary))
	for k, v := range e.Vary {
		clone.Vary[k] = v
	}
	return &clone
}

// matchesVary reports whether requestHeaders satisfies every (name, value)
// pair recorded in e.Vary: case-insensitive on name, exact on value. Extra
// request headers are allowed; a missing or differing one is a mismatch.
func (e *Entry) matchesVary(get func(name string) (string, bool)) bool {
	for name, want := range e.Vary {
		got, ok := get(name)
		if !ok || got != want {
			return false
		}
	}
	return true
}

// EntryRef identifies an Entry by the pair of keys that address it, for
// callers (eviction, invalidation, iteration) that need both.
type EntryRef struct {
	PrimaryKey   string
	SecondaryKey string
	Entry        *Entry
}

package journal

import "time"

// Option configures a Journal at construction time.
type Option func(*Journal) error

// WithFlushDebounce overrides the default ~1s debounce between the last
// mutation and the on-disk snapshot write.
func WithFlushDebounce(d time.Duration) Option {
	return func(j *Journal) error {
		j.debounce = d
		return nil
	}
}

const defaultDebounce = time.Second

package session

import "time"

// Option is a functional option for configuring a Store.
type Option func(*storeOptions)

type storeOptions struct {
	inactivity time.Duration
	persist    Persistence
}

func defaultOptions() storeOptions {
	return storeOptions{inactivity: 5 * time.Minute}
}

// WithInactivityTimeout sets how long a conversation may stay quiet before
// its session is reset on the next access. Zero disables resets.
func WithInactivityTimeout(d time.Duration) Option {
	return func(o *storeOptions) { o.inactivity = d }
}

// WithPersistence attaches a durable snapshot backend.
func WithPersistence(p Persistence) Option {
	return func(o *storeOptions) { o.persist = p }
}

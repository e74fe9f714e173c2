package registry

import "time"

// Option configures the Registry.
type Option func(*Registry)

// WithMailboxSize sets the backpressure threshold: the buffer capacity of
// each session's event mailbox.
func WithMailboxSize(size int) Option {
	return func(r *Registry) {
		if size > 0 {
			r.config.mailboxSize = size
		}
	}
}

// WithSendTimeout bounds how long a routed event may wait for mailbox space
// before the priority-shedding path kicks in.
func WithSendTimeout(d time.Duration) Option {
	return func(r *Registry) {
		if d > 0 {
			r.config.sendTimeout = d
		}
	}
}

// ReaperOption configures the inactivity reaper.
type ReaperOption func(*Reaper)

// WithSweepInterval configures how often the reaper scans for stale entries.
func WithSweepInterval(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.interval = d
		}
	}
}

// WithIdleTimeout defines the quiet period after which a session is
// considered dead and eligible for eviction.
func WithIdleTimeout(d time.Duration) ReaperOption {
	return func(r *Reaper) {
		if d > 0 {
			r.idle = d
		}
	}
}

package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// EvictFunc handles one stale session: emit session_timeout, unregister,
// announce offline. Supplied by the presence service so the reaper stays a
// pure scheduler.
type EvictFunc func(sess Session, idleFor time.Duration)

// Reaper is the only source of unilateral session cancellation. It sweeps
// the registry on a fixed interval and evicts entries whose inactivity
// exceeds the idle threshold.
type Reaper struct {
	reg    *Registry
	logger *slog.Logger

	mu       sync.RWMutex
	interval time.Duration
	idle     time.Duration
	onEvict  EvictFunc

	cancel context.CancelFunc
	done   chan struct{}
}

func NewReaper(reg *Registry, logger *slog.Logger, opts ...ReaperOption) *Reaper {
	r := &Reaper{
		reg:      reg,
		logger:   logger,
		interval: time.Minute,
		idle:     30 * time.Minute,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SetEvictFunc wires the eviction handler. Must be called before Start.
func (r *Reaper) SetEvictFunc(fn EvictFunc) {
	r.mu.Lock()
	r.onEvict = fn
	r.mu.Unlock()
}

// Retarget applies new tunables, picked up on the next sweep cycle.
// Used by the config hot-reload path.
func (r *Reaper) Retarget(interval, idle time.Duration) {
	r.mu.Lock()
	if interval > 0 {
		r.interval = interval
	}
	if idle > 0 {
		r.idle = idle
	}
	r.mu.Unlock()
}

func (r *Reaper) Start(ctx context.Context) {
	ctx, r.cancel = context.WithCancel(ctx)
	r.done = make(chan struct{})
	go r.loop(ctx)
}

func (r *Reaper) Stop() {
	if r.cancel != nil {
		r.cancel()
		<-r.done
	}
}

func (r *Reaper) loop(ctx context.Context) {
	defer close(r.done)
	for {
		r.mu.RLock()
		interval := r.interval
		r.mu.RUnlock()

		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
			r.sweep()
		}
	}
}

func (r *Reaper) sweep() {
	r.mu.RLock()
	idle := r.idle
	onEvict := r.onEvict
	r.mu.RUnlock()

	stale := r.reg.Idle(idle)
	if len(stale) == 0 {
		return
	}

	r.logger.Info("evicting stale sessions",
		"count", len(stale),
		"idle_threshold", idle.String(),
	)

	now := time.Now()
	for _, sess := range stale {
		idleFor := now.Sub(sess.LastActivityAt)
		if onEvict != nil {
			onEvict(sess, idleFor)
			continue
		}
		// No handler wired: reclaim the entry anyway so the registry
		// never leaks dead sessions.
		r.reg.Unregister(sess.UserID, sess.ConnID)
	}
}

/*
Package registry tracks live sessions and room subscriptions in process
memory. It is the single shared mutable structure touched by every
concurrently running connection handler, so every mutation is serialized
behind one mutex.

The registry enforces the single-session-per-user policy: a second login for
the same user silently supersedes the first. This is a documented limitation
of the platform, not an error path.
*/
package registry

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
)

// Registrar is the gateway for session management and event routing,
// injected behind an interface so services and tests never touch the
// concrete map.
type Registrar interface {
	Register(conn Connector) (prev Session, replaced bool)
	Touch(userID uuid.UUID) bool
	Unregister(userID, connID uuid.UUID) (Session, bool)
	IsOnline(userID uuid.UUID) bool
	SendTo(userID uuid.UUID, ev event.Eventer) bool
	BroadcastAll(ev event.Eventer, except uuid.UUID)
	Snapshot() []Session
	Stats() Stats
}

// Interface guard
var _ Registrar = (*Registry)(nil)

// Session is the exported view of one live registration. The connection
// handle itself stays inside the registry.
type Session struct {
	UserID         uuid.UUID
	ConnID         uuid.UUID
	ConnectedAt    time.Time
	LastActivityAt time.Time
}

type Stats struct {
	Sessions int           `json:"sessions"`
	Uptime   time.Duration `json:"uptime"`
}

type entry struct {
	conn           Connector
	connectedAt    time.Time
	lastActivityAt time.Time
}

type Registry struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*entry

	config struct {
		mailboxSize int
		sendTimeout time.Duration
	}

	startedAt time.Time
}

func New(opts ...Option) *Registry {
	r := &Registry{
		sessions:  make(map[uuid.UUID]*entry),
		startedAt: time.Now(),
	}
	r.config.mailboxSize = 1024
	r.config.sendTimeout = 500 * time.Millisecond

	for _, opt := range opts {
		opt(r)
	}
	return r
}

// MailboxSize exposes the configured per-session buffer for connector
// factories in the transport layer.
func (r *Registry) MailboxSize() int { return r.config.mailboxSize }

// Register installs conn as the user's current session, replacing and
// closing any prior one. The superseded session is returned so callers can
// decide whether presence announcements apply.
func (r *Registry) Register(conn Connector) (Session, bool) {
	now := time.Now()

	r.mu.Lock()
	old, replaced := r.sessions[conn.GetUserID()]
	var prev Session
	if replaced {
		prev = old.session(conn.GetUserID())
	}
	r.sessions[conn.GetUserID()] = &entry{
		conn:           conn,
		connectedAt:    now,
		lastActivityAt: now,
	}
	r.mu.Unlock()

	if replaced {
		// Close outside the lock; Close may contend with a pending Send.
		old.conn.Close()
	}
	return prev, replaced
}

// Touch refreshes the activity stamp used by the inactivity reaper.
func (r *Registry) Touch(userID uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[userID]
	if !ok {
		return false
	}
	e.lastActivityAt = time.Now()
	return true
}

// Unregister removes the user's session, but only when connID still matches
// the current registration. A disconnect arriving from a stale, superseded
// session must not evict its successor.
func (r *Registry) Unregister(userID, connID uuid.UUID) (Session, bool) {
	r.mu.Lock()
	e, ok := r.sessions[userID]
	if !ok || e.conn.GetID() != connID {
		r.mu.Unlock()
		return Session{}, false
	}
	delete(r.sessions, userID)
	sess := e.session(userID)
	r.mu.Unlock()

	e.conn.Close()
	return sess, true
}

func (r *Registry) IsOnline(userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sessions[userID]
	return ok
}

// SendTo routes an event to the user's live session. Returns false on miss
// or mailbox overflow; callers needing durability use the notification
// fallback instead.
func (r *Registry) SendTo(userID uuid.UUID, ev event.Eventer) bool {
	r.mu.RLock()
	e, ok := r.sessions[userID]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	return e.conn.Send(ev, r.config.sendTimeout)
}

// BroadcastAll fans an event out to every live session except the given
// user. Used for presence announcements.
func (r *Registry) BroadcastAll(ev event.Eventer, except uuid.UUID) {
	r.mu.RLock()
	conns := make([]Connector, 0, len(r.sessions))
	for userID, e := range r.sessions {
		if userID == except {
			continue
		}
		conns = append(conns, e.conn)
	}
	r.mu.RUnlock()

	for _, conn := range conns {
		conn.Send(ev, r.config.sendTimeout)
	}
}

// Snapshot returns the current registrations, used to answer a freshly
// connected client's "who's online" query.
func (r *Registry) Snapshot() []Session {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Session, 0, len(r.sessions))
	for userID, e := range r.sessions {
		out = append(out, e.session(userID))
	}
	return out
}

// Idle returns sessions whose inactivity exceeds threshold.
func (r *Registry) Idle(threshold time.Duration) []Session {
	now := time.Now()

	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []Session
	for userID, e := range r.sessions {
		if now.Sub(e.lastActivityAt) > threshold {
			out = append(out, e.session(userID))
		}
	}
	return out
}

func (r *Registry) Stats() Stats {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Stats{
		Sessions: len(r.sessions),
		Uptime:   time.Since(r.startedAt),
	}
}

// Shutdown closes every live session. Called from the fx OnStop hook.
func (r *Registry) Shutdown() {
	r.mu.Lock()
	conns := make([]Connector, 0, len(r.sessions))
	for _, e := range r.sessions {
		conns = append(conns, e.conn)
	}
	r.sessions = make(map[uuid.UUID]*entry)
	r.mu.Unlock()

	for _, conn := range conns {
		conn.Close()
	}
}

func (e *entry) session(userID uuid.UUID) Session {
	return Session{
		UserID:         userID,
		ConnID:         e.conn.GetID(),
		ConnectedAt:    e.connectedAt,
		LastActivityAt: e.lastActivityAt,
	}
}

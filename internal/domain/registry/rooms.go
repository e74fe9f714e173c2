package registry

import (
	"sync"

	"github.com/google/uuid"
)

// Rooms tracks which users are subscribed to which thread's broadcast group.
// Like the session map it is process-local and reconstructible: membership
// truth lives in Thread.Participants, this is only the live-subscription
// view for routing.
type Rooms struct {
	mu      sync.RWMutex
	members map[uuid.UUID]map[uuid.UUID]struct{} // threadID -> userIDs
	byUser  map[uuid.UUID]map[uuid.UUID]struct{} // userID -> threadIDs
}

func NewRooms() *Rooms {
	return &Rooms{
		members: make(map[uuid.UUID]map[uuid.UUID]struct{}),
		byUser:  make(map[uuid.UUID]map[uuid.UUID]struct{}),
	}
}

// Join subscribes the user to a thread's broadcast group. Idempotent.
func (r *Rooms) Join(threadID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.members[threadID]; !ok {
		r.members[threadID] = make(map[uuid.UUID]struct{})
	}
	r.members[threadID][userID] = struct{}{}

	if _, ok := r.byUser[userID]; !ok {
		r.byUser[userID] = make(map[uuid.UUID]struct{})
	}
	r.byUser[userID][threadID] = struct{}{}
}

// Leave removes one subscription, dropping empty room entries to avoid
// leaking map headers over time.
func (r *Rooms) Leave(threadID, userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.leaveLocked(threadID, userID)
}

// LeaveAll drops every subscription held by the user. Called on disconnect.
func (r *Rooms) LeaveAll(userID uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for threadID := range r.byUser[userID] {
		r.leaveLocked(threadID, userID)
	}
}

func (r *Rooms) leaveLocked(threadID, userID uuid.UUID) {
	if members, ok := r.members[threadID]; ok {
		delete(members, userID)
		if len(members) == 0 {
			delete(r.members, threadID)
		}
	}
	if threads, ok := r.byUser[userID]; ok {
		delete(threads, threadID)
		if len(threads) == 0 {
			delete(r.byUser, userID)
		}
	}
}

// Contains reports whether the user is currently subscribed to the thread.
func (r *Rooms) Contains(threadID, userID uuid.UUID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[threadID][userID]
	return ok
}

// Members returns the users currently subscribed to the thread.
func (r *Rooms) Members(threadID uuid.UUID) []uuid.UUID {
	r.mu.RLock()
	defer r.mu.RUnlock()

	m, ok := r.members[threadID]
	if !ok {
		return nil
	}
	out := make([]uuid.UUID, 0, len(m))
	for userID := range m {
		out = append(out, userID)
	}
	return out
}

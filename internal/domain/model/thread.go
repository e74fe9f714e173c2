package model

import (
	"fmt"

	"github.com/google/uuid"
)

type ThreadKind string

const (
	ThreadDirect       ThreadKind = "direct"
	ThreadGroup        ThreadKind = "group"
	ThreadConsultation ThreadKind = "consultation"
	ThreadEmergency    ThreadKind = "emergency"
)

// Role is the participant's role within the clinic platform.
type Role string

const (
	RolePatient Role = "patient"
	RoleDoctor  Role = "doctor"
	RoleNurse   Role = "nurse"
	RoleAdmin   Role = "admin"
)

// Elevated reports whether the role may act on other users' content,
// e.g. delete a message it did not author.
func (r Role) Elevated() bool {
	switch r {
	case RoleDoctor, RoleAdmin:
		return true
	}
	return false
}

// Participant captures membership within a thread.
// A participant is never removed, only deactivated.
type Participant struct {
	UserID     uuid.UUID
	Role       Role
	JoinedAt   int64
	LeftAt     int64 // zero while active
	Active     bool
	LastSeenAt int64
}

// Thread is a conversation container. Threads are never hard-deleted.
type Thread struct {
	ID             uuid.UUID
	Kind           ThreadKind
	Participants   []Participant
	LastMessageID  uuid.UUID // zero until the first send
	LastActivityAt int64
	Settings       map[string]string
	CreatedAt      int64
}

// Participant returns the membership entry for userID, if any.
func (t *Thread) Participant(userID uuid.UUID) (Participant, bool) {
	for _, p := range t.Participants {
		if p.UserID == userID {
			return p, true
		}
	}
	return Participant{}, false
}

// IsActiveParticipant reports whether userID currently belongs to the thread.
// Membership must be re-checked on every operation; participant status can
// change between connections.
func (t *Thread) IsActiveParticipant(userID uuid.UUID) bool {
	p, ok := t.Participant(userID)
	return ok && p.Active
}

// ActiveParticipants returns all members with Active set.
func (t *Thread) ActiveParticipants() []Participant {
	out := make([]Participant, 0, len(t.Participants))
	for _, p := range t.Participants {
		if p.Active {
			out = append(out, p)
		}
	}
	return out
}

// DirectKey builds the canonical key for a direct thread over an unordered
// user pair. Re-creating a direct thread for the same pair must resolve to
// the same key, and therefore to the same thread row.
func DirectKey(a, b uuid.UUID) string {
	if a.String() > b.String() {
		a, b = b, a
	}
	return fmt.Sprintf("%s:%s", a, b)
}

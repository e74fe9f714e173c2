package model

import "github.com/google/uuid"

type MessageKind string

const (
	MessageText     MessageKind = "text"
	MessageImage    MessageKind = "image"
	MessageFile     MessageKind = "file"
	MessageAudio    MessageKind = "audio"
	MessageVideo    MessageKind = "video"
	MessageLocation MessageKind = "location"
	MessageSystem   MessageKind = "system"
)

// Receipt is one entry of a message's delivered/read set.
// Both sets are append-only and never contain the sender.
type Receipt struct {
	UserID uuid.UUID
	At     int64
}

type Reaction struct {
	UserID uuid.UUID
	Emoji  string
	At     int64
}

// Message is the core conversation entity.
//
// Delivery state is tracked in two append-only sets: DeliveredTo is a
// best-effort stamp made at send time for online peers, ReadBy is an
// acknowledged receipt. Edited and Deleted are orthogonal flags; neither
// resets the delivery/read track.
type Message struct {
	ID        uuid.UUID
	ThreadID  uuid.UUID
	Seq       int64 // monotonic within the thread, assigned at commit
	SenderID  uuid.UUID
	Kind      MessageKind
	Content   Content
	ReplyToID uuid.UUID // zero when not a reply

	DeliveredTo []Receipt
	ReadBy      []Receipt
	Reactions   []Reaction

	Edited    bool
	Deleted   bool
	DeletedBy uuid.UUID
	DeletedAt int64

	CreatedAt int64
}

// DeliveredAt returns the delivery stamp for userID, if present.
func (m *Message) DeliveredAt(userID uuid.UUID) (int64, bool) {
	for _, r := range m.DeliveredTo {
		if r.UserID == userID {
			return r.At, true
		}
	}
	return 0, false
}

// ReadAt returns the read stamp for userID, if present.
func (m *Message) ReadAt(userID uuid.UUID) (int64, bool) {
	for _, r := range m.ReadBy {
		if r.UserID == userID {
			return r.At, true
		}
	}
	return 0, false
}

// HasReaction reports whether userID already reacted with emoji.
func (m *Message) HasReaction(userID uuid.UUID, emoji string) bool {
	for _, r := range m.Reactions {
		if r.UserID == userID && r.Emoji == emoji {
			return true
		}
	}
	return false
}

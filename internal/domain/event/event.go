package event

import (
	"time"

	"github.com/google/uuid"
)

// Kind names every outbound event the core emits over a live connection.
type Kind string

const (
	KindThreadCreated     Kind = "thread_created"
	KindNewMessage        Kind = "new_message"
	KindMessageRead       Kind = "message_read"
	KindUserTyping        Kind = "user_typing"
	KindUserStoppedTyping Kind = "user_stopped_typing"
	KindUserOnline        Kind = "user_online"
	KindUserOffline       Kind = "user_offline"
	KindOnlineUsersList   Kind = "online_users_list"
	KindEmergencyAlert    Kind = "emergency_alert"
	KindNewNotification   Kind = "new_notification"
	KindSessionTimeout    Kind = "session_timeout"
	KindError             Kind = "error"
)

type Priority int32

const (
	PriorityLow    Priority = 10
	PriorityNormal Priority = 20
	PriorityHigh   Priority = 30
)

// Eventer defines the contract for all data packets flowing through the
// registry toward live connections.
type Eventer interface {
	GetID() string
	GetKind() Kind
	GetPriority() Priority
	GetOccurredAt() int64
	GetPayload() any
}

// [GUARD] Ensure compliance with the Eventer interface.
var _ Eventer = (*Event)(nil)

// Event is the generic envelope for every outbound signal. Typed payloads
// live in payloads.go; constructors there pick the kind and priority.
type Event struct {
	id         string
	kind       Kind
	priority   Priority
	occurredAt int64
	payload    any
}

func (e *Event) GetID() string         { return e.id }
func (e *Event) GetKind() Kind         { return e.kind }
func (e *Event) GetPriority() Priority { return e.priority }
func (e *Event) GetOccurredAt() int64  { return e.occurredAt }
func (e *Event) GetPayload() any       { return e.payload }

// New is the universal factory for outbound events.
func New(kind Kind, priority Priority, payload any) *Event {
	return &Event{
		id:         uuid.NewString(),
		kind:       kind,
		priority:   priority,
		occurredAt: time.Now().UnixMilli(),
		payload:    payload,
	}
}

package event

import (
	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

// PresencePayload backs user_online and user_offline.
// LastSeen is only set on the offline side.
type PresencePayload struct {
	UserID   uuid.UUID `json:"user_id"`
	LastSeen int64     `json:"last_seen,omitempty"`
}

type OnlineUser struct {
	UserID      uuid.UUID `json:"user_id"`
	ConnectedAt int64     `json:"connected_at"`
}

type OnlineUsersPayload struct {
	Users []OnlineUser `json:"users"`
}

type ThreadPayload struct {
	Thread *model.Thread `json:"thread"`
}

type MessagePayload struct {
	Message *model.Message `json:"message"`
}

type ReadPayload struct {
	ThreadID  uuid.UUID `json:"thread_id"`
	MessageID uuid.UUID `json:"message_id"`
	UserID    uuid.UUID `json:"user_id"`
	ReadAt    int64     `json:"read_at"`
}

type TypingPayload struct {
	ThreadID uuid.UUID `json:"thread_id"`
	UserID   uuid.UUID `json:"user_id"`
}

type EmergencyPayload struct {
	AlertID  uuid.UUID `json:"alert_id"`
	CallerID uuid.UUID `json:"caller_id"`
	Message  string    `json:"message"`
	Location string    `json:"location,omitempty"`
	Severity string    `json:"severity"`
}

type NotificationPayload struct {
	Notification *model.Notification `json:"notification"`
}

type SessionTimeoutPayload struct {
	UserID  uuid.UUID `json:"user_id"`
	IdleFor int64     `json:"idle_for_ms"`
}

type ErrorPayload struct {
	Kind   model.ErrorKind `json:"kind"`
	Detail string          `json:"detail"`
}

func NewUserOnline(userID uuid.UUID) *Event {
	return New(KindUserOnline, PriorityNormal, &PresencePayload{UserID: userID})
}

func NewUserOffline(userID uuid.UUID, lastSeen int64) *Event {
	return New(KindUserOffline, PriorityNormal, &PresencePayload{UserID: userID, LastSeen: lastSeen})
}

func NewOnlineUsersList(users []OnlineUser) *Event {
	return New(KindOnlineUsersList, PriorityNormal, &OnlineUsersPayload{Users: users})
}

func NewThreadCreated(th *model.Thread) *Event {
	return New(KindThreadCreated, PriorityNormal, &ThreadPayload{Thread: th})
}

func NewMessageCreated(msg *model.Message) *Event {
	return New(KindNewMessage, PriorityHigh, &MessagePayload{Message: msg})
}

func NewMessageRead(threadID, messageID, userID uuid.UUID, readAt int64) *Event {
	return New(KindMessageRead, PriorityNormal, &ReadPayload{
		ThreadID:  threadID,
		MessageID: messageID,
		UserID:    userID,
		ReadAt:    readAt,
	})
}

// Typing signals are droppable under backpressure; they carry no guarantee
// and clients expire them on their own.
func NewTyping(threadID, userID uuid.UUID, stopped bool) *Event {
	kind := KindUserTyping
	if stopped {
		kind = KindUserStoppedTyping
	}
	return New(kind, PriorityLow, &TypingPayload{ThreadID: threadID, UserID: userID})
}

func NewEmergencyAlert(alertID, callerID uuid.UUID, message, location, severity string) *Event {
	return New(KindEmergencyAlert, PriorityHigh, &EmergencyPayload{
		AlertID:  alertID,
		CallerID: callerID,
		Message:  message,
		Location: location,
		Severity: severity,
	})
}

func NewNotificationCreated(n *model.Notification) *Event {
	prio := PriorityNormal
	if n.Priority == model.PriorityUrgentNotification {
		prio = PriorityHigh
	}
	return New(KindNewNotification, prio, &NotificationPayload{Notification: n})
}

func NewSessionTimeout(userID uuid.UUID, idleFor int64) *Event {
	return New(KindSessionTimeout, PriorityHigh, &SessionTimeoutPayload{UserID: userID, IdleFor: idleFor})
}

func NewError(kind model.ErrorKind, detail string) *Event {
	return New(KindError, PriorityHigh, &ErrorPayload{Kind: kind, Detail: detail})
}

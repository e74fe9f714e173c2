package model

import "github.com/google/uuid"

type NotificationPriority string

const (
	PriorityNormalNotification NotificationPriority = "normal"
	PriorityUrgentNotification NotificationPriority = "urgent"
)

type NotificationKind string

const (
	NotificationMessageFallback NotificationKind = "message_fallback"
	NotificationEmergencyAlert  NotificationKind = "emergency_alert"
	NotificationSystem          NotificationKind = "system"
)

// Notification is the durable fallback record created when live delivery to
// a recipient cannot be confirmed. Created once; the only permitted mutation
// afterwards is flipping Read.
type Notification struct {
	ID          uuid.UUID
	RecipientID uuid.UUID
	SenderID    uuid.UUID // zero for system-originated notifications
	Kind        NotificationKind
	Title       string
	Body        string
	Priority    NotificationPriority
	RelatedRefs map[string]string // e.g. thread_id, message_id, alert_id
	Read        bool
	CreatedAt   int64
}

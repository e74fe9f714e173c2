package wsmarshaller

import (
	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

type WSNotification struct {
	ID          string            `json:"id"`
	RecipientID string            `json:"recipient_id"`
	SenderID    string            `json:"sender_id,omitempty"`
	Kind        string            `json:"kind"` // "message_fallback", "emergency_alert", ...
	Title       string            `json:"title"`
	Body        string            `json:"body"`
	Priority    string            `json:"priority"`
	RelatedRefs map[string]string `json:"related_refs,omitempty"`
	Read        bool              `json:"read"`
	CreatedAt   int64             `json:"created_at"`
}

func mapNotification(n *model.Notification) *WSNotification {
	wn := &WSNotification{
		ID:          n.ID.String(),
		RecipientID: n.RecipientID.String(),
		Kind:        string(n.Kind),
		Title:       n.Title,
		Body:        n.Body,
		Priority:    string(n.Priority),
		RelatedRefs: n.RelatedRefs,
		Read:        n.Read,
		CreatedAt:   n.CreatedAt,
	}
	if n.SenderID != uuid.Nil {
		wn.SenderID = n.SenderID.String()
	}
	return wn
}

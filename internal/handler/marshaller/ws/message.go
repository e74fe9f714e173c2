package wsmarshaller

import (
	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

type WSMessage struct {
	ID        string       `json:"id"`
	ThreadID  string       `json:"thread_id"`
	Seq       int64        `json:"seq"`
	From      string       `json:"from_id"`
	Type      string       `json:"type"` // "text", "image", "file", ...
	Content   any          `json:"content"`
	ReplyTo   string       `json:"reply_to,omitempty"`
	Delivered []WSReceipt  `json:"delivered_to,omitempty"`
	Read      []WSReceipt  `json:"read_by,omitempty"`
	Reactions []WSReaction `json:"reactions,omitempty"`
	Edited    bool         `json:"edited,omitempty"`
	Deleted   bool         `json:"deleted,omitempty"`
	CreatedAt int64        `json:"created_at"`
}

type WSReceipt struct {
	UserID string `json:"user_id"`
	At     int64  `json:"at"`
}

type WSReaction struct {
	UserID string `json:"user_id"`
	Emoji  string `json:"emoji"`
	At     int64  `json:"at"`
}

func mapMessage(m *model.Message) *WSMessage {
	msg := &WSMessage{
		ID:        m.ID.String(),
		ThreadID:  m.ThreadID.String(),
		Seq:       m.Seq,
		From:      m.SenderID.String(),
		Type:      string(m.Kind),
		Content:   m.Content,
		Edited:    m.Edited,
		Deleted:   m.Deleted,
		CreatedAt: m.CreatedAt,
	}
	if m.ReplyToID != uuid.Nil {
		msg.ReplyTo = m.ReplyToID.String()
	}
	for _, r := range m.DeliveredTo {
		msg.Delivered = append(msg.Delivered, WSReceipt{UserID: r.UserID.String(), At: r.At})
	}
	for _, r := range m.ReadBy {
		msg.Read = append(msg.Read, WSReceipt{UserID: r.UserID.String(), At: r.At})
	}
	for _, r := range m.Reactions {
		msg.Reactions = append(msg.Reactions, WSReaction{UserID: r.UserID.String(), Emoji: r.Emoji, At: r.At})
	}
	return msg
}

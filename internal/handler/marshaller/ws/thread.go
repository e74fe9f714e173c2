package wsmarshaller

import (
	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
)

type WSThread struct {
	ID             string          `json:"id"`
	Kind           string          `json:"kind"` // "direct", "group", ...
	Participants   []WSParticipant `json:"participants"`
	LastMessageID  string          `json:"last_message_id,omitempty"`
	LastActivityAt int64           `json:"last_activity_at,omitempty"`
	CreatedAt      int64           `json:"created_at"`
}

type WSParticipant struct {
	UserID   string `json:"user_id"`
	Role     string `json:"role"`
	JoinedAt int64  `json:"joined_at"`
	Active   bool   `json:"active"`
}

func mapThread(t *model.Thread) *WSThread {
	th := &WSThread{
		ID:             t.ID.String(),
		Kind:           string(t.Kind),
		LastActivityAt: t.LastActivityAt,
		CreatedAt:      t.CreatedAt,
	}
	if t.LastMessageID != uuid.Nil {
		th.LastMessageID = t.LastMessageID.String()
	}
	for _, p := range t.Participants {
		th.Participants = append(th.Participants, WSParticipant{
			UserID:   p.UserID.String(),
			Role:     string(p.Role),
			JoinedAt: p.JoinedAt,
			Active:   p.Active,
		})
	}
	return th
}

package wsmarshaller

import (
	"encoding/json"

	"github.com/clinicore/rtc-service/internal/domain/event"
)

// WSEvent is a generic wrapper for WebSocket messages to provide consistent structure
type WSEvent struct {
	Event   string `json:"event"` // e.g., "new_message", "user_online"
	ID      string `json:"id"`
	SentAt  int64  `json:"sent_at"`
	Payload any    `json:"payload"`
}

// MarshallEvent prepares an outbound event for WebSocket transmission.
func MarshallEvent(ev event.Eventer) ([]byte, error) {
	res := &WSEvent{
		Event:  string(ev.GetKind()),
		ID:     ev.GetID(),
		SentAt: ev.GetOccurredAt(),
	}

	switch p := ev.GetPayload().(type) {
	case *event.MessagePayload:
		// Domain entities get a wire mapping; plain event payloads are
		// already JSON-shaped.
		res.Payload = &messageEnvelope{Message: mapMessage(p.Message)}
	case *event.ThreadPayload:
		res.Payload = &threadEnvelope{Thread: mapThread(p.Thread)}
	case *event.NotificationPayload:
		res.Payload = &notificationEnvelope{Notification: mapNotification(p.Notification)}
	default:
		res.Payload = p
	}

	return json.Marshal(res)
}

type messageEnvelope struct {
	Message *WSMessage `json:"message"`
}

type threadEnvelope struct {
	Thread *WSThread `json:"thread"`
}

type notificationEnvelope struct {
	Notification *WSNotification `json:"notification"`
}

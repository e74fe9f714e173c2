package ws

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
)

// command is the inbound client envelope.
type command struct {
	Action  string          `json:"action"`
	Payload json.RawMessage `json:"payload"`
}

type threadRef struct {
	ThreadID uuid.UUID `json:"thread_id"`
}

type createThread struct {
	Kind         model.ThreadKind `json:"kind"`
	Participants []struct {
		UserID uuid.UUID  `json:"user_id"`
		Role   model.Role `json:"role"`
	} `json:"participants"`
}

type sendMessage struct {
	ThreadID uuid.UUID         `json:"thread_id"`
	Type     model.MessageKind `json:"type"`
	Content  json.RawMessage   `json:"content"`
	ReplyTo  uuid.UUID         `json:"reply_to"`
}

type editMessage struct {
	MessageID uuid.UUID       `json:"message_id"`
	Content   json.RawMessage `json:"content"`
}

type messageRef struct {
	MessageID uuid.UUID `json:"message_id"`
}

type reactionRef struct {
	MessageID uuid.UUID `json:"message_id"`
	Emoji     string    `json:"emoji"`
}

type emergencyAlert struct {
	Message  string `json:"message"`
	Location string `json:"location"`
	Severity string `json:"severity"`
}

type notificationRef struct {
	NotificationID uuid.UUID `json:"notification_id"`
}

// dispatch routes one client frame to the matching service operation. Any
// failure is reported back to the originating connection only; nothing leaks
// to other sessions.
func (h *WSHandler) dispatch(conn registry.Connector, principal model.Principal, data []byte) {
	var cmd command
	if err := json.Unmarshal(data, &cmd); err != nil {
		h.sendErr(conn, model.ErrValidation("malformed command envelope"))
		return
	}

	// Commands run against a background context: a socket dropping mid-write
	// must not abort a persist already in flight. Storage applies its own
	// per-operation deadline.
	ctx := context.Background()
	userID := principal.UserID

	var err error
	switch cmd.Action {
	case "join_thread":
		var p threadRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.rooms.Join(ctx, p.ThreadID, userID)
		}

	case "create_thread":
		var p createThread
		if err = decode(cmd.Payload, &p); err == nil {
			participants := make([]model.Participant, 0, len(p.Participants))
			for _, pp := range p.Participants {
				participants = append(participants, model.Participant{UserID: pp.UserID, Role: pp.Role})
			}
			var th *model.Thread
			th, err = h.rooms.CreateThread(ctx, p.Kind, participants)
			if err == nil {
				if err = h.rooms.Join(ctx, th.ID, userID); err == nil {
					conn.Send(event.NewThreadCreated(th), h.cfg.Registry.SendTimeout)
				}
			}
		}

	case "leave_thread":
		var p threadRef
		if err = decode(cmd.Payload, &p); err == nil {
			h.rooms.Leave(p.ThreadID, userID)
		}

	case "send_message":
		var p sendMessage
		if err = decode(cmd.Payload, &p); err == nil {
			var content model.Content
			content, err = model.DecodeContent(p.Type, p.Content)
			if err == nil {
				_, err = h.messages.Send(ctx, p.ThreadID, userID, p.Type, content, p.ReplyTo)
			}
		}

	case "edit_message":
		var p editMessage
		if err = decode(cmd.Payload, &p); err == nil {
			_, err = h.messages.Edit(ctx, p.MessageID, userID, p.Content)
		}

	case "delete_message":
		var p messageRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.messages.SoftDelete(ctx, p.MessageID, userID)
		}

	case "add_reaction":
		var p reactionRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.messages.React(ctx, p.MessageID, userID, p.Emoji)
		}

	case "remove_reaction":
		var p reactionRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.messages.Unreact(ctx, p.MessageID, userID, p.Emoji)
		}

	case "mark_delivered":
		var p messageRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.receipts.MarkDelivered(ctx, p.MessageID, userID)
		}

	case "mark_read":
		var p messageRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.receipts.MarkRead(ctx, p.MessageID, userID)
		}

	case "typing_start":
		var p threadRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.typing.Start(p.ThreadID, userID)
		}

	case "typing_stop":
		var p threadRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.typing.Stop(p.ThreadID, userID)
		}

	case "emergency_alert":
		var p emergencyAlert
		if err = decode(cmd.Payload, &p); err == nil {
			_, err = h.emergency.Trigger(ctx, userID, p.Message, p.Location, p.Severity)
		}

	case "notification_read":
		var p notificationRef
		if err = decode(cmd.Payload, &p); err == nil {
			err = h.notifications.MarkRead(ctx, p.NotificationID, userID)
		}

	default:
		err = model.ErrValidation("unknown action " + cmd.Action)
	}

	if err != nil {
		h.logger.Debug("command failed",
			"action", cmd.Action,
			"user_id", userID,
			"err", err,
		)
		h.sendErr(conn, err)
	}
}

func decode(raw json.RawMessage, out any) error {
	if len(raw) == 0 {
		return model.ErrValidation("missing command payload")
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return model.ErrValidation("malformed command payload")
	}
	return nil
}

// sendErr reports a failure to the originating connection only.
func (h *WSHandler) sendErr(conn registry.Connector, err error) {
	detail := "internal error"
	var domainErr *model.Error
	if errors.As(err, &domainErr) {
		detail = domainErr.Detail
	}
	conn.Send(event.NewError(model.KindOf(err), detail), h.cfg.Registry.SendTimeout)
}

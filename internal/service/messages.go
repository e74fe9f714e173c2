package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
	"github.com/clinicore/rtc-service/internal/storage"
)

// Messages is the send/edit/delete/react pipeline.
//
// [ORDERING] Sends within one thread are serialized behind a per-thread
// mutex: the sequence number is assigned and committed, and the broadcast
// fired, before the next send for that thread may proceed. Recipients
// therefore observe events in sequence order. Sends to different threads run
// concurrently.
//
// [DURABILITY] A message becomes visible only after its commit. A failed
// persist surfaces to the sender and nothing is broadcast.
type Messages struct {
	db       *storage.DB
	reg      registry.Registrar
	rooms    *registry.Rooms
	notifier *Notifications
	logger   *slog.Logger

	mu      sync.Mutex
	threads map[uuid.UUID]*sync.Mutex
}

func NewMessages(db *storage.DB, reg registry.Registrar, rooms *registry.Rooms, notifier *Notifications, logger *slog.Logger) *Messages {
	return &Messages{
		db:       db,
		reg:      reg,
		rooms:    rooms,
		notifier: notifier,
		logger:   logger,
		threads:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (s *Messages) lockThread(threadID uuid.UUID) func() {
	s.mu.Lock()
	m, ok := s.threads[threadID]
	if !ok {
		m = &sync.Mutex{}
		s.threads[threadID] = m
	}
	s.mu.Unlock()

	m.Lock()
	return m.Unlock
}

// Send validates, persists and fans out a new message. Recipients online at
// send time are stamped delivered in the same transaction; active
// participants who were offline get a durable notification fallback.
func (s *Messages) Send(ctx context.Context, threadID, senderID uuid.UUID, kind model.MessageKind, content model.Content, replyTo uuid.UUID) (*model.Message, error) {
	if content == nil {
		return nil, model.ErrValidation("missing message payload")
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}

	unlock := s.lockThread(threadID)
	defer unlock()

	th, err := s.db.GetThread(ctx, threadID)
	if err != nil {
		return nil, err
	}
	if !th.IsActiveParticipant(senderID) {
		return nil, model.ErrAccessDenied("not an active participant of the thread")
	}
	if replyTo != uuid.Nil {
		parent, err := s.db.GetMessage(ctx, replyTo)
		if err != nil {
			return nil, model.ErrValidation("reply target does not exist")
		}
		if parent.ThreadID != threadID {
			return nil, model.ErrValidation("reply target belongs to another thread")
		}
	}

	now := time.Now().UnixMilli()

	var delivered []model.Receipt
	var offline []model.Participant
	for _, p := range th.ActiveParticipants() {
		if p.UserID == senderID {
			continue
		}
		if s.reg.IsOnline(p.UserID) {
			delivered = append(delivered, model.Receipt{UserID: p.UserID, At: now})
		} else {
			offline = append(offline, p)
		}
	}

	msg := &model.Message{
		ID:        uuid.New(),
		ThreadID:  threadID,
		SenderID:  senderID,
		Kind:      kind,
		Content:   content,
		ReplyToID: replyTo,
		CreatedAt: now,
	}
	if err := s.db.CreateMessage(ctx, msg, delivered); err != nil {
		return nil, err
	}

	s.broadcastRoom(threadID, event.NewMessageCreated(msg), uuid.Nil)

	// Fallback rows are created before Send returns; channel dispatch behind
	// them is fire-and-forget. Failures here never undo the committed message.
	for _, p := range offline {
		if err := s.notifier.EnqueueMessageFallback(ctx, p.UserID, senderID, threadID, msg.ID, preview(msg)); err != nil {
			s.logger.Error("notification fallback failed",
				slog.String("message_id", msg.ID.String()),
				slog.String("recipient_id", p.UserID.String()),
				slog.Any("error", err),
			)
		}
	}
	return msg, nil
}

// Edit replaces the payload of the editor's own message. The raw payload is
// decoded against the message's immutable kind. The prior payload is
// archived, Edited is set, and read markers are left alone: an edit does not
// make a message unread.
func (s *Messages) Edit(ctx context.Context, messageID, editorID uuid.UUID, raw []byte) (*model.Message, error) {
	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return nil, err
	}
	if msg.SenderID != editorID {
		return nil, model.ErrAccessDenied("only the sender may edit a message")
	}

	content, err := model.DecodeContent(msg.Kind, raw)
	if err != nil {
		return nil, err
	}
	if err := content.Validate(); err != nil {
		return nil, err
	}

	payload, err := model.EncodeContent(content)
	if err != nil {
		return nil, err
	}
	if err := s.db.ApplyEdit(ctx, messageID, payload, time.Now().UnixMilli()); err != nil {
		return nil, err
	}
	return s.db.GetMessage(ctx, messageID)
}

// SoftDelete tombstones a message. The sender may delete their own; doctors
// and admins may delete anyone's. The payload is scrubbed at the storage
// layer while receipts and sequence survive.
func (s *Messages) SoftDelete(ctx context.Context, messageID, requesterID uuid.UUID) error {
	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID != requesterID {
		th, err := s.db.GetThread(ctx, msg.ThreadID)
		if err != nil {
			return err
		}
		p, ok := th.Participant(requesterID)
		if !ok || !p.Role.Elevated() {
			return model.ErrAccessDenied("not permitted to delete this message")
		}
	}
	return s.db.MarkDeleted(ctx, messageID, requesterID, time.Now().UnixMilli())
}

// React records a reaction. One (user, emoji) pair per message; a duplicate
// surfaces as an already-exists error.
func (s *Messages) React(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if emoji == "" {
		return model.ErrValidation("missing reaction emoji")
	}
	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	th, err := s.db.GetThread(ctx, msg.ThreadID)
	if err != nil {
		return err
	}
	if !th.IsActiveParticipant(userID) {
		return model.ErrAccessDenied("not an active participant of the thread")
	}
	return s.db.AddReaction(ctx, messageID, userID, emoji, time.Now().UnixMilli())
}

// Unreact removes a reaction. Removing one that is not there is a no-op.
func (s *Messages) Unreact(ctx context.Context, messageID, userID uuid.UUID, emoji string) error {
	if emoji == "" {
		return model.ErrValidation("missing reaction emoji")
	}
	return s.db.RemoveReaction(ctx, messageID, userID, emoji)
}

func (s *Messages) broadcastRoom(threadID uuid.UUID, ev event.Eventer, except uuid.UUID) {
	for _, userID := range s.rooms.Members(threadID) {
		if userID == except {
			continue
		}
		s.reg.SendTo(userID, ev)
	}
}

// preview renders the short notification body for a message.
func preview(msg *model.Message) string {
	switch c := msg.Content.(type) {
	case model.TextContent:
		const max = 120
		if len(c.Text) > max {
			return c.Text[:max] + "…"
		}
		return c.Text
	case model.MediaContent:
		if c.FileName != "" {
			return fmt.Sprintf("[%s] %s", msg.Kind, c.FileName)
		}
		return fmt.Sprintf("[%s]", msg.Kind)
	case model.LocationContent:
		if c.Label != "" {
			return "[location] " + c.Label
		}
		return "[location]"
	default:
		return fmt.Sprintf("[%s]", msg.Kind)
	}
}

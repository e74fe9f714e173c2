package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
	"github.com/clinicore/rtc-service/internal/storage"
)

// Receipts maintains the per-message delivered/read sets. Both sets are
// append-only; duplicate marks are idempotent no-ops and never re-announce.
type Receipts struct {
	db     *storage.DB
	reg    registry.Registrar
	rooms  *registry.Rooms
	logger *slog.Logger
}

func NewReceipts(db *storage.DB, reg registry.Registrar, rooms *registry.Rooms, logger *slog.Logger) *Receipts {
	return &Receipts{
		db:     db,
		reg:    reg,
		rooms:  rooms,
		logger: logger,
	}
}

// MarkDelivered stamps delivery confirmation from a recipient, typically when
// a client acknowledges a message it received after reconnecting. The sender
// is never part of their own receipt sets.
func (s *Receipts) MarkDelivered(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return nil
	}
	if err := s.requireParticipant(ctx, msg.ThreadID, userID); err != nil {
		return err
	}
	_, err = s.db.AddReceipt(ctx, messageID, userID, storage.ReceiptDelivered, time.Now().UnixMilli())
	return err
}

// MarkRead records a read receipt and announces message_read to the thread
// room. Reading implies delivery: a missing delivered stamp is backfilled
// first. Only a genuinely new read mark is announced.
func (s *Receipts) MarkRead(ctx context.Context, messageID, userID uuid.UUID) error {
	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return err
	}
	if msg.SenderID == userID {
		return nil
	}
	if err := s.requireParticipant(ctx, msg.ThreadID, userID); err != nil {
		return err
	}

	now := time.Now().UnixMilli()
	if _, err := s.db.AddReceipt(ctx, messageID, userID, storage.ReceiptDelivered, now); err != nil {
		return err
	}
	inserted, err := s.db.AddReceipt(ctx, messageID, userID, storage.ReceiptRead, now)
	if err != nil {
		return err
	}
	if !inserted {
		return nil
	}

	ev := event.NewMessageRead(msg.ThreadID, messageID, userID, now)
	for _, member := range s.rooms.Members(msg.ThreadID) {
		s.reg.SendTo(member, ev)
	}
	return nil
}

// IsFullyRead reports whether every active participant other than the sender
// has read the message.
func (s *Receipts) IsFullyRead(ctx context.Context, messageID uuid.UUID) (bool, error) {
	msg, err := s.db.GetMessage(ctx, messageID)
	if err != nil {
		return false, err
	}
	th, err := s.db.GetThread(ctx, msg.ThreadID)
	if err != nil {
		return false, err
	}
	for _, p := range th.ActiveParticipants() {
		if p.UserID == msg.SenderID {
			continue
		}
		if _, ok := msg.ReadAt(p.UserID); !ok {
			return false, nil
		}
	}
	return true, nil
}

func (s *Receipts) requireParticipant(ctx context.Context, threadID, userID uuid.UUID) error {
	th, err := s.db.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if _, ok := th.Participant(userID); !ok {
		return model.ErrAccessDenied("not a participant of the thread")
	}
	return nil
}

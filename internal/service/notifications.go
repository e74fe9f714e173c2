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

// Notifications is the durable fallback for recipients who could not be
// reached live. The database row is the point of truth: Enqueue returns only
// after the row is committed. Pushing the job onto the secondary-channel bus
// and hinting a live session are both best effort on top of that.
type Notifications struct {
	db         *storage.DB
	reg        registry.Registrar
	dispatcher ChannelDispatcher
	directory  Directory
	logger     *slog.Logger
}

func NewNotifications(db *storage.DB, reg registry.Registrar, dispatcher ChannelDispatcher, directory Directory, logger *slog.Logger) *Notifications {
	return &Notifications{
		db:         db,
		reg:        reg,
		dispatcher: dispatcher,
		directory:  directory,
		logger:     logger,
	}
}

// Enqueue persists the notification, hints the recipient's live session if
// one exists, and hands the secondary-channel job to the bus.
func (s *Notifications) Enqueue(ctx context.Context, n *model.Notification) (*model.Notification, error) {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	if n.CreatedAt == 0 {
		n.CreatedAt = time.Now().UnixMilli()
	}
	if n.Priority == "" {
		n.Priority = model.PriorityNormalNotification
	}

	if err := s.db.CreateNotification(ctx, n); err != nil {
		return nil, err
	}

	s.reg.SendTo(n.RecipientID, event.NewNotificationCreated(n))

	if err := s.dispatcher.Dispatch(ctx, ChannelJob{
		NotificationID: n.ID,
		RecipientID:    n.RecipientID,
		Kind:           n.Kind,
		Title:          n.Title,
		Body:           n.Body,
		Priority:       n.Priority,
	}); err != nil {
		// The durable row already exists; a bus hiccup costs only the
		// secondary channel, never the notification itself.
		s.logger.Warn("channel dispatch failed",
			slog.String("notification_id", n.ID.String()),
			slog.String("recipient_id", n.RecipientID.String()),
			slog.Any("error", err),
		)
	}
	return n, nil
}

// EnqueueMessageFallback builds the fallback record for a message that could
// not be delivered live.
func (s *Notifications) EnqueueMessageFallback(ctx context.Context, recipientID, senderID, threadID, messageID uuid.UUID, body string) error {
	title := "New message"
	if profile, err := s.directory.Profile(ctx, senderID); err == nil && profile.Name != "" {
		title = "New message from " + profile.Name
	}

	_, err := s.Enqueue(ctx, &model.Notification{
		RecipientID: recipientID,
		SenderID:    senderID,
		Kind:        model.NotificationMessageFallback,
		Title:       title,
		Body:        body,
		Priority:    model.PriorityNormalNotification,
		RelatedRefs: map[string]string{
			"thread_id":  threadID.String(),
			"message_id": messageID.String(),
		},
	})
	return err
}

// MarkRead flips the read flag. Unknown ids and repeat marks are no-ops.
func (s *Notifications) MarkRead(ctx context.Context, id, recipientID uuid.UUID) error {
	_, err := s.db.MarkNotificationRead(ctx, id, recipientID)
	return err
}

// List returns the recipient's notifications, newest first.
func (s *Notifications) List(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]model.Notification, error) {
	return s.db.ListNotifications(ctx, recipientID, unreadOnly, limit)
}

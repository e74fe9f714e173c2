package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
	"github.com/clinicore/rtc-service/internal/storage"
)

// RoomManager gates live room subscriptions behind fresh membership checks.
// The rooms map itself is dumb routing state; authorization happens here, on
// every join, against the store.
type RoomManager struct {
	db     *storage.DB
	rooms  *registry.Rooms
	logger *slog.Logger
}

func NewRoomManager(db *storage.DB, rooms *registry.Rooms, logger *slog.Logger) *RoomManager {
	return &RoomManager{
		db:     db,
		rooms:  rooms,
		logger: logger,
	}
}

// Join subscribes the user to a thread's broadcast group after re-validating
// membership. Idempotent: re-joining an already joined thread succeeds.
func (s *RoomManager) Join(ctx context.Context, threadID, userID uuid.UUID) error {
	th, err := s.db.GetThread(ctx, threadID)
	if err != nil {
		return err
	}
	if !th.IsActiveParticipant(userID) {
		return model.ErrAccessDenied("not an active participant of the thread")
	}

	s.rooms.Join(threadID, userID)

	if err := s.db.TouchParticipant(ctx, threadID, userID, time.Now().UnixMilli()); err != nil {
		// Last-seen bookkeeping must not fail the join.
		s.logger.Warn("participant touch failed",
			slog.String("thread_id", threadID.String()),
			slog.String("user_id", userID.String()),
			slog.Any("error", err),
		)
	}
	return nil
}

// Leave drops the live subscription. Membership is untouched.
func (s *RoomManager) Leave(threadID, userID uuid.UUID) {
	s.rooms.Leave(threadID, userID)
}

// CreateThread persists a new conversation container. For direct threads the
// canonical pair key makes creation idempotent: a re-create for the same pair
// returns the existing thread.
func (s *RoomManager) CreateThread(ctx context.Context, kind model.ThreadKind, participants []model.Participant) (*model.Thread, error) {
	switch kind {
	case model.ThreadDirect:
		if len(participants) != 2 {
			return nil, model.ErrValidation("direct thread requires exactly two participants")
		}
	case model.ThreadGroup, model.ThreadConsultation, model.ThreadEmergency:
		if len(participants) < 2 {
			return nil, model.ErrValidation("thread requires at least two participants")
		}
	default:
		return nil, model.ErrValidation("unknown thread kind")
	}

	now := time.Now().UnixMilli()
	for i := range participants {
		participants[i].Active = true
		if participants[i].JoinedAt == 0 {
			participants[i].JoinedAt = now
		}
	}

	th := &model.Thread{
		ID:           uuid.New(),
		Kind:         kind,
		Participants: participants,
		CreatedAt:    now,
	}
	created, err := s.db.CreateThread(ctx, th)
	if err != nil {
		return nil, err
	}
	if created.ID != th.ID {
		s.logger.Debug("direct thread deduplicated",
			slog.String("thread_id", created.ID.String()),
		)
	}
	return created, nil
}

package service

import (
	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
)

// Typing relays ephemeral typing indicators to a thread room. Nothing is
// persisted and delivery is best effort: typing events carry low priority and
// are the first to be shed under backpressure.
type Typing struct {
	reg   registry.Registrar
	rooms *registry.Rooms
}

func NewTyping(reg registry.Registrar, rooms *registry.Rooms) *Typing {
	return &Typing{reg: reg, rooms: rooms}
}

func (s *Typing) Start(threadID, userID uuid.UUID) error {
	return s.relay(threadID, userID, false)
}

func (s *Typing) Stop(threadID, userID uuid.UUID) error {
	return s.relay(threadID, userID, true)
}

func (s *Typing) relay(threadID, userID uuid.UUID, stopped bool) error {
	if !s.rooms.Contains(threadID, userID) {
		return model.ErrAccessDenied("join the thread before sending typing signals")
	}
	ev := event.NewTyping(threadID, userID, stopped)
	for _, member := range s.rooms.Members(threadID) {
		if member == userID {
			continue
		}
		s.reg.SendTo(member, ev)
	}
	return nil
}

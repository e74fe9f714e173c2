package service

import (
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/registry"
)

// Presence turns raw connect/disconnect edges into presence announcements.
//
// [PRESENCE_ORDER] Transitions for a user are serialized behind mu so that
// observers never see user_offline before the matching user_online, even
// when a connect and a disconnect race on separate goroutines.
type Presence struct {
	mu     sync.Mutex
	reg    registry.Registrar
	rooms  *registry.Rooms
	logger *slog.Logger
}

func NewPresence(reg registry.Registrar, rooms *registry.Rooms, logger *slog.Logger) *Presence {
	return &Presence{
		reg:    reg,
		rooms:  rooms,
		logger: logger,
	}
}

// Connect registers the session, announces user_online to everyone else, and
// answers the newcomer with the current online roster. When the registration
// supersedes an existing session for the same user no announcement goes out;
// to observers the user never stopped being online.
func (s *Presence) Connect(conn registry.Connector) {
	s.mu.Lock()
	_, replaced := s.reg.Register(conn)
	if !replaced {
		s.reg.BroadcastAll(event.NewUserOnline(conn.GetUserID()), conn.GetUserID())
	}
	roster := s.roster()
	s.mu.Unlock()

	if replaced {
		s.logger.Info("session superseded",
			slog.String("user_id", conn.GetUserID().String()),
			slog.String("conn_id", conn.GetID().String()),
		)
	} else {
		s.logger.Info("user online",
			slog.String("user_id", conn.GetUserID().String()),
			slog.String("conn_id", conn.GetID().String()),
		)
	}

	s.reg.SendTo(conn.GetUserID(), event.NewOnlineUsersList(roster))
}

// Disconnect tears the session down and announces user_offline. A disconnect
// from a superseded connection is ignored; the newer session owns the user's
// presence now.
func (s *Presence) Disconnect(userID, connID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sess, ok := s.reg.Unregister(userID, connID)
	if !ok {
		return
	}
	s.rooms.LeaveAll(userID)
	s.reg.BroadcastAll(event.NewUserOffline(userID, sess.LastActivityAt.UnixMilli()), userID)

	s.logger.Info("user offline",
		slog.String("user_id", userID.String()),
		slog.String("conn_id", connID.String()),
		slog.Duration("connected_for", time.Since(sess.ConnectedAt)),
	)
}

// EvictIdle is the inactivity reaper hook: warn the stale session, then run
// the ordinary disconnect path so the offline announcement and room cleanup
// happen exactly as they would on a client-initiated close.
func (s *Presence) EvictIdle(sess registry.Session, idleFor time.Duration) {
	s.reg.SendTo(sess.UserID, event.NewSessionTimeout(sess.UserID, idleFor.Milliseconds()))
	s.logger.Info("idle session reaped",
		slog.String("user_id", sess.UserID.String()),
		slog.Duration("idle_for", idleFor),
	)
	s.Disconnect(sess.UserID, sess.ConnID)
}

func (s *Presence) roster() []event.OnlineUser {
	sessions := s.reg.Snapshot()
	out := make([]event.OnlineUser, 0, len(sessions))
	for _, sess := range sessions {
		out = append(out, event.OnlineUser{
			UserID:      sess.UserID,
			ConnectedAt: sess.ConnectedAt.UnixMilli(),
		})
	}
	return out
}

package service

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
	"github.com/clinicore/rtc-service/internal/storage"
)

type fakeDirectory struct {
	mu         sync.Mutex
	profiles   map[uuid.UUID]model.Profile
	responders []model.Profile
	rosterErr  error
	lookups    int
}

func (f *fakeDirectory) Profile(_ context.Context, userID uuid.UUID) (model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookups++
	if p, ok := f.profiles[userID]; ok {
		return p, nil
	}
	return model.Profile{}, model.ErrNotFound("no such user")
}

func (f *fakeDirectory) Responders(context.Context) ([]model.Profile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.responders, f.rosterErr
}

type fakeDispatcher struct {
	mu   sync.Mutex
	jobs []ChannelJob
	err  error
}

func (f *fakeDispatcher) Dispatch(_ context.Context, job ChannelJob) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeDispatcher) dispatched() []ChannelJob {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]ChannelJob(nil), f.jobs...)
}

type harness struct {
	db            *storage.DB
	reg           *registry.Registry
	rooms         *registry.Rooms
	directory     *fakeDirectory
	dispatcher    *fakeDispatcher
	presence      *Presence
	roomMgr       *RoomManager
	messages      *Messages
	receipts      *Receipts
	typing        *Typing
	notifications *Notifications
	emergency     *Emergency
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	db, err := storage.Open(filepath.Join(t.TempDir(), "svc_test.db"), 5*time.Second)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if _, err := db.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	reg := registry.New()
	rooms := registry.NewRooms()
	directory := &fakeDirectory{profiles: make(map[uuid.UUID]model.Profile)}
	dispatcher := &fakeDispatcher{}

	notifications := NewNotifications(db, reg, dispatcher, directory, logger)
	h := &harness{
		db:            db,
		reg:           reg,
		rooms:         rooms,
		directory:     directory,
		dispatcher:    dispatcher,
		presence:      NewPresence(reg, rooms, logger),
		roomMgr:       NewRoomManager(db, rooms, logger),
		messages:      NewMessages(db, reg, rooms, notifications, logger),
		receipts:      NewReceipts(db, reg, rooms, logger),
		typing:        NewTyping(reg, rooms),
		notifications: notifications,
		emergency:     NewEmergency(notifications, directory, reg, logger),
	}
	return h
}

// connect registers a live session through the presence path, like the
// websocket handler does.
func (h *harness) connect(userID uuid.UUID) registry.Connector {
	conn := registry.NewConnector(context.Background(), userID, 64)
	h.presence.Connect(conn)
	return conn
}

func (h *harness) thread(t *testing.T, kind model.ThreadKind, doctor, patient uuid.UUID) *model.Thread {
	t.Helper()
	th, err := h.roomMgr.CreateThread(context.Background(), kind, []model.Participant{
		{UserID: doctor, Role: model.RoleDoctor},
		{UserID: patient, Role: model.RolePatient},
	})
	if err != nil {
		t.Fatalf("create thread: %v", err)
	}
	return th
}

func (h *harness) join(t *testing.T, threadID uuid.UUID, users ...uuid.UUID) {
	t.Helper()
	for _, u := range users {
		if err := h.roomMgr.Join(context.Background(), threadID, u); err != nil {
			t.Fatalf("join %s: %v", u, err)
		}
	}
}

// waitEvent reads the mailbox until an event of the wanted kind shows up.
func waitEvent(t *testing.T, conn registry.Connector, kind event.Kind) event.Eventer {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case ev, ok := <-conn.Recv():
			if !ok {
				t.Fatalf("connection closed while waiting for %s", kind)
			}
			if ev.GetKind() == kind {
				return ev
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

// drain empties the mailbox of whatever is queued right now.
func drain(conn registry.Connector) []event.Eventer {
	var out []event.Eventer
	for {
		select {
		case ev, ok := <-conn.Recv():
			if !ok {
				return out
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

// expectNoEvent asserts the mailbox stays free of the given kind for a beat.
func expectNoEvent(t *testing.T, conn registry.Connector, kind event.Kind) {
	t.Helper()
	timeout := time.After(100 * time.Millisecond)
	for {
		select {
		case ev, ok := <-conn.Recv():
			if !ok {
				return
			}
			if ev.GetKind() == kind {
				t.Fatalf("unexpected %s event", kind)
			}
		case <-timeout:
			return
		}
	}
}

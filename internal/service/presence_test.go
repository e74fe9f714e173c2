package service

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
	"github.com/clinicore/rtc-service/internal/domain/registry"
)

func TestConnectAnnouncesAndListsOnline(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()

	aliceConn := h.connect(alice)

	// The newcomer gets the roster, not their own online announcement.
	ev := waitEvent(t, aliceConn, event.KindOnlineUsersList)
	roster := ev.GetPayload().(*event.OnlineUsersPayload)
	if len(roster.Users) != 1 || roster.Users[0].UserID != alice {
		t.Fatalf("roster: %+v", roster.Users)
	}

	bobConn := h.connect(bob)

	// The watcher sees the peer come online.
	waitEvent(t, aliceConn, event.KindUserOnline)

	ev = waitEvent(t, bobConn, event.KindOnlineUsersList)
	roster = ev.GetPayload().(*event.OnlineUsersPayload)
	if len(roster.Users) != 2 {
		t.Fatalf("roster size: got %d want 2", len(roster.Users))
	}
}

func TestDisconnectAnnouncesOfflineWithLastSeen(t *testing.T) {
	h := newHarness(t)
	alice, bob := uuid.New(), uuid.New()

	watcher := h.connect(alice)
	bobConn := h.connect(bob)
	drain(watcher)

	h.presence.Disconnect(bob, bobConn.GetID())

	ev := waitEvent(t, watcher, event.KindUserOffline)
	p := ev.GetPayload().(*event.PresencePayload)
	if p.UserID != bob {
		t.Fatalf("offline for wrong user: %s", p.UserID)
	}
	if p.LastSeen == 0 {
		t.Fatal("offline announcement must carry last seen")
	}
	if h.reg.IsOnline(bob) {
		t.Fatal("user still online after disconnect")
	}
}

// A user reconnects before the old transport notices it is dead. The second
// session supersedes the first silently; the late teardown of the first must
// not knock the user offline.
func TestReconnectSupersedesWithoutPresenceFlap(t *testing.T) {
	h := newHarness(t)
	user, watcherID := uuid.New(), uuid.New()

	watcher := h.connect(watcherID)
	first := h.connect(user)
	waitEvent(t, watcher, event.KindUserOnline)
	drain(watcher)
	staleID := first.GetID()

	second := h.connect(user)

	// No user_offline and no second user_online: to observers the user was
	// online the whole time.
	expectNoEvent(t, watcher, event.KindUserOffline)
	expectNoEvent(t, watcher, event.KindUserOnline)

	// The stale session's disconnect finally lands. Still no flap.
	h.presence.Disconnect(user, staleID)
	if !h.reg.IsOnline(user) {
		t.Fatal("stale disconnect evicted the live session")
	}
	expectNoEvent(t, watcher, event.KindUserOffline)

	// The live session disconnecting is a real offline transition.
	h.presence.Disconnect(user, second.GetID())
	waitEvent(t, watcher, event.KindUserOffline)
}

func TestDisconnectDropsRoomSubscriptions(t *testing.T) {
	h := newHarness(t)
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	conn := h.connect(patient)
	h.join(t, th.ID, patient)
	if !h.rooms.Contains(th.ID, patient) {
		t.Fatal("join did not register in the room")
	}

	h.presence.Disconnect(patient, conn.GetID())
	if h.rooms.Contains(th.ID, patient) {
		t.Fatal("room subscription survived disconnect")
	}
}

// The reaper path warns the idle session, then runs the ordinary disconnect,
// so observers see a normal offline transition.
func TestEvictIdleRunsFullDisconnect(t *testing.T) {
	h := newHarness(t)
	user, watcherID := uuid.New(), uuid.New()

	watcher := h.connect(watcherID)
	idle := h.connect(user)
	drain(watcher)
	drain(idle)

	sess := registry.Session{
		UserID:         user,
		ConnID:         idle.GetID(),
		ConnectedAt:    time.Now(),
		LastActivityAt: time.Now().Add(-time.Hour),
	}
	h.presence.EvictIdle(sess, time.Hour)

	// The evicted session was told why before the close.
	var sawTimeout bool
	for _, ev := range drain(idle) {
		if ev.GetKind() == event.KindSessionTimeout {
			sawTimeout = true
		}
	}
	if !sawTimeout {
		t.Fatal("evicted session never saw session_timeout")
	}

	waitEvent(t, watcher, event.KindUserOffline)
	if h.reg.IsOnline(user) {
		t.Fatal("user still online after eviction")
	}
}

package registry

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
)

func newTestConn(t *testing.T, userID uuid.UUID) Connector {
	t.Helper()
	return NewConnector(context.Background(), userID, 16)
}

func TestRegisterAndSendTo(t *testing.T) {
	reg := New()
	userID := uuid.New()
	conn := newTestConn(t, userID)

	if _, replaced := reg.Register(conn); replaced {
		t.Fatal("first registration reported as replaced")
	}
	if !reg.IsOnline(userID) {
		t.Fatal("user should be online after Register")
	}

	ev := event.NewUserOnline(uuid.New())
	if !reg.SendTo(userID, ev) {
		t.Fatal("SendTo returned false for online user")
	}
	select {
	case got := <-conn.Recv():
		if got.GetID() != ev.GetID() {
			t.Fatalf("received wrong event: got %s want %s", got.GetID(), ev.GetID())
		}
	case <-time.After(time.Second):
		t.Fatal("event never arrived in mailbox")
	}

	if reg.SendTo(uuid.New(), ev) {
		t.Fatal("SendTo should return false for unknown user")
	}
}

func TestRegisterSupersedesPriorSession(t *testing.T) {
	reg := New()
	userID := uuid.New()

	first := newTestConn(t, userID)
	second := newTestConn(t, userID)

	reg.Register(first)
	prev, replaced := reg.Register(second)
	if !replaced {
		t.Fatal("second registration should supersede the first")
	}
	if prev.ConnID != first.GetID() {
		t.Fatalf("superseded session has wrong conn id: got %s want %s", prev.ConnID, first.GetID())
	}

	// The superseded connection's mailbox must be closed.
	select {
	case _, ok := <-first.Recv():
		if ok {
			t.Fatal("superseded connection received an event instead of close")
		}
	case <-time.After(time.Second):
		t.Fatal("superseded connection was not closed")
	}

	if !reg.IsOnline(userID) {
		t.Fatal("user must stay online through a supersede")
	}
}

func TestUnregisterIgnoresStaleConnID(t *testing.T) {
	reg := New()
	userID := uuid.New()

	first := newTestConn(t, userID)
	reg.Register(first)
	staleID := first.GetID()

	second := newTestConn(t, userID)
	reg.Register(second)

	// The stale session's teardown arrives late; it must not evict the
	// successor.
	if _, ok := reg.Unregister(userID, staleID); ok {
		t.Fatal("stale unregister should be a no-op")
	}
	if !reg.IsOnline(userID) {
		t.Fatal("current session was evicted by a stale unregister")
	}

	if _, ok := reg.Unregister(userID, second.GetID()); !ok {
		t.Fatal("matching unregister should succeed")
	}
	if reg.IsOnline(userID) {
		t.Fatal("user still online after unregister")
	}
}

func TestBroadcastAllExcludesSender(t *testing.T) {
	reg := New()
	alice, bob := uuid.New(), uuid.New()
	aliceConn := newTestConn(t, alice)
	bobConn := newTestConn(t, bob)
	reg.Register(aliceConn)
	reg.Register(bobConn)

	ev := event.NewUserOnline(alice)
	reg.BroadcastAll(ev, alice)

	select {
	case got := <-bobConn.Recv():
		if got.GetKind() != event.KindUserOnline {
			t.Fatalf("unexpected event kind %s", got.GetKind())
		}
	case <-time.After(time.Second):
		t.Fatal("peer never received broadcast")
	}

	select {
	case <-aliceConn.Recv():
		t.Fatal("excluded user received its own broadcast")
	case <-time.After(50 * time.Millisecond):
	}
}

func TestIdleAndTouch(t *testing.T) {
	reg := New()
	userID := uuid.New()
	reg.Register(newTestConn(t, userID))

	if idle := reg.Idle(time.Millisecond); len(idle) != 0 {
		t.Fatal("fresh session reported idle")
	}

	time.Sleep(10 * time.Millisecond)
	idle := reg.Idle(time.Millisecond)
	if len(idle) != 1 || idle[0].UserID != userID {
		t.Fatalf("expected one idle session, got %d", len(idle))
	}

	if !reg.Touch(userID) {
		t.Fatal("Touch returned false for online user")
	}
	if idle := reg.Idle(5 * time.Millisecond); len(idle) != 0 {
		t.Fatal("touched session still reported idle")
	}
}

func TestSnapshotAndStats(t *testing.T) {
	reg := New()
	reg.Register(newTestConn(t, uuid.New()))
	reg.Register(newTestConn(t, uuid.New()))

	if got := len(reg.Snapshot()); got != 2 {
		t.Fatalf("snapshot size: got %d want 2", got)
	}
	if stats := reg.Stats(); stats.Sessions != 2 {
		t.Fatalf("stats sessions: got %d want 2", stats.Sessions)
	}
}

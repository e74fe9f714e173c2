package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
)

func TestEnqueueHintsLiveSessionAndDispatches(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	recipient := uuid.New()
	conn := h.connect(recipient)
	drain(conn)

	n, err := h.notifications.Enqueue(ctx, &model.Notification{
		RecipientID: recipient,
		Kind:        model.NotificationSystem,
		Title:       "Maintenance window",
		Body:        "Scheduled downtime tonight",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	if n.ID == uuid.Nil || n.CreatedAt == 0 || n.Priority != model.PriorityNormalNotification {
		t.Fatalf("defaults not filled: %+v", n)
	}

	ev := waitEvent(t, conn, event.KindNewNotification)
	got := ev.GetPayload().(*event.NotificationPayload).Notification
	if got.ID != n.ID {
		t.Fatalf("hinted notification %s, want %s", got.ID, n.ID)
	}

	jobs := h.dispatcher.dispatched()
	if len(jobs) != 1 {
		t.Fatalf("dispatched %d jobs, want 1", len(jobs))
	}
	if jobs[0].NotificationID != n.ID || jobs[0].RecipientID != recipient {
		t.Fatalf("job: %+v", jobs[0])
	}
}

func TestMarkNotificationReadIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	recipient := uuid.New()

	n, err := h.notifications.Enqueue(ctx, &model.Notification{
		RecipientID: recipient,
		Kind:        model.NotificationSystem,
		Title:       "Reminder",
		Body:        "Review pending charts",
	})
	if err != nil {
		t.Fatalf("enqueue: %v", err)
	}

	for i := 0; i < 2; i++ {
		if err := h.notifications.MarkRead(ctx, n.ID, recipient); err != nil {
			t.Fatalf("mark read #%d: %v", i+1, err)
		}
	}
	// Marking someone else's notification changes nothing.
	if err := h.notifications.MarkRead(ctx, n.ID, uuid.New()); err != nil {
		t.Fatalf("foreign mark read: %v", err)
	}

	unread, err := h.notifications.List(ctx, recipient, true, 10)
	if err != nil || len(unread) != 0 {
		t.Fatalf("unread after mark: %v %v", unread, err)
	}
	all, err := h.notifications.List(ctx, recipient, false, 10)
	if err != nil || len(all) != 1 || !all[0].Read {
		t.Fatalf("all after mark: %+v %v", all, err)
	}
}

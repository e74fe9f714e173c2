package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
)

func TestMarkReadBroadcastsOnceAndImpliesDelivered(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	doctorConn := h.connect(doctor)
	h.join(t, th.ID, doctor)
	drain(doctorConn)

	// Patient was offline at send time: no delivery stamp exists yet.
	msg, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "please confirm"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	drain(doctorConn)

	if err := h.receipts.MarkRead(ctx, msg.ID, patient); err != nil {
		t.Fatalf("mark read: %v", err)
	}

	ev := waitEvent(t, doctorConn, event.KindMessageRead)
	p := ev.GetPayload().(*event.ReadPayload)
	if p.MessageID != msg.ID || p.UserID != patient {
		t.Fatalf("read payload: %+v", p)
	}

	got, err := h.db.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if _, ok := got.ReadAt(patient); !ok {
		t.Fatal("read stamp missing")
	}
	// Reading implies delivery.
	if _, ok := got.DeliveredAt(patient); !ok {
		t.Fatal("delivered stamp not backfilled by read")
	}

	// A duplicate mark is a silent no-op: no second broadcast.
	if err := h.receipts.MarkRead(ctx, msg.ID, patient); err != nil {
		t.Fatalf("repeat mark read: %v", err)
	}
	expectNoEvent(t, doctorConn, event.KindMessageRead)
}

func TestMarkReadBySenderIsNoOp(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	msg, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "note"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := h.receipts.MarkRead(ctx, msg.ID, doctor); err != nil {
		t.Fatalf("sender mark read: %v", err)
	}
	got, _ := h.db.GetMessage(ctx, msg.ID)
	if len(got.ReadBy) != 0 || len(got.DeliveredTo) != 0 {
		t.Fatal("sender crept into its own receipt sets")
	}
}

func TestMarkReadRejectsOutsiders(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	msg, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "private"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := h.receipts.MarkRead(ctx, msg.ID, uuid.New()); !model.IsKind(err, model.KindAccessDenied) {
		t.Fatalf("outsider mark read: got %v", err)
	}
	if err := h.receipts.MarkRead(ctx, uuid.New(), patient); !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("unknown message: got %v", err)
	}
}

func TestIsFullyRead(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	msg, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "sign-off"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	full, err := h.receipts.IsFullyRead(ctx, msg.ID)
	if err != nil || full {
		t.Fatalf("fresh message fully read: %v %v", full, err)
	}

	if err := h.receipts.MarkRead(ctx, msg.ID, patient); err != nil {
		t.Fatalf("mark read: %v", err)
	}
	full, err = h.receipts.IsFullyRead(ctx, msg.ID)
	if err != nil || !full {
		t.Fatalf("expected fully read: %v %v", full, err)
	}
}

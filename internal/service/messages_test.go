package service

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/clinicore/rtc-service/internal/domain/event"
	"github.com/clinicore/rtc-service/internal/domain/model"
)

// A doctor and a patient share a consultation thread, both online and
// subscribed. The patient must see the message live, stamped delivered.
func TestSendDeliversLiveToRoomMembers(t *testing.T) {
	h := newHarness(t)
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadConsultation, doctor, patient)

	doctorConn := h.connect(doctor)
	patientConn := h.connect(patient)
	h.join(t, th.ID, doctor, patient)
	drain(doctorConn)
	drain(patientConn)

	msg, err := h.messages.Send(context.Background(), th.ID, doctor,
		model.MessageText, model.TextContent{Text: "how are you feeling?"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Seq != 1 {
		t.Fatalf("seq: got %d want 1", msg.Seq)
	}
	if _, ok := msg.DeliveredAt(patient); !ok {
		t.Fatal("online recipient not stamped delivered")
	}
	if _, ok := msg.DeliveredAt(doctor); ok {
		t.Fatal("sender must never appear in its own delivery set")
	}

	ev := waitEvent(t, patientConn, event.KindNewMessage)
	payload, ok := ev.GetPayload().(*event.MessagePayload)
	if !ok {
		t.Fatalf("wrong payload type %T", ev.GetPayload())
	}
	if payload.Message.ID != msg.ID {
		t.Fatal("recipient saw a different message")
	}

	// Sender is in the room too and gets the authoritative copy with seq.
	waitEvent(t, doctorConn, event.KindNewMessage)

	// Nobody was offline, so there is nothing to fall back on.
	if jobs := h.dispatcher.dispatched(); len(jobs) != 0 {
		t.Fatalf("unexpected fallback jobs: %d", len(jobs))
	}
}

// Successive sends observe strictly increasing sequence numbers, and the
// recipient sees them in that order.
func TestSendOrderingWithinThread(t *testing.T) {
	h := newHarness(t)
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	patientConn := h.connect(patient)
	h.join(t, th.ID, patient)
	drain(patientConn)

	texts := []string{"one", "two", "three", "four"}
	for i, txt := range texts {
		msg, err := h.messages.Send(context.Background(), th.ID, doctor,
			model.MessageText, model.TextContent{Text: txt}, uuid.Nil)
		if err != nil {
			t.Fatalf("send %d: %v", i, err)
		}
		if msg.Seq != int64(i+1) {
			t.Fatalf("seq: got %d want %d", msg.Seq, i+1)
		}
	}

	var lastSeq int64
	for range texts {
		ev := waitEvent(t, patientConn, event.KindNewMessage)
		seq := ev.GetPayload().(*event.MessagePayload).Message.Seq
		if seq <= lastSeq {
			t.Fatalf("out of order: %d after %d", seq, lastSeq)
		}
		lastSeq = seq
	}
}

// An offline recipient gets a durable fallback notification instead of a
// live event, and finds it on reconnect.
func TestSendFallsBackForOfflineRecipient(t *testing.T) {
	h := newHarness(t)
	doctor, patient := uuid.New(), uuid.New()
	h.directory.profiles[doctor] = model.Profile{UserID: doctor, Name: "Dr. Grey", Role: model.RoleDoctor}
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	doctorConn := h.connect(doctor)
	h.join(t, th.ID, doctor)
	drain(doctorConn)

	msg, err := h.messages.Send(context.Background(), th.ID, doctor,
		model.MessageText, model.TextContent{Text: "your results are in"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if len(msg.DeliveredTo) != 0 {
		t.Fatal("offline recipient must not be stamped delivered")
	}

	// Reconnect: the fallback is waiting.
	list, err := h.notifications.List(context.Background(), patient, true, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("notifications: got %d want 1", len(list))
	}
	n := list[0]
	if n.Kind != model.NotificationMessageFallback {
		t.Fatalf("kind: got %s", n.Kind)
	}
	if n.Title != "New message from Dr. Grey" {
		t.Fatalf("title: got %q", n.Title)
	}
	if n.RelatedRefs["message_id"] != msg.ID.String() || n.RelatedRefs["thread_id"] != th.ID.String() {
		t.Fatalf("refs: %v", n.RelatedRefs)
	}

	jobs := h.dispatcher.dispatched()
	if len(jobs) != 1 || jobs[0].RecipientID != patient {
		t.Fatalf("channel jobs: %+v", jobs)
	}
}

// A bus failure costs the secondary channel only; the durable row and the
// committed message survive.
func TestSendSurvivesDispatchFailure(t *testing.T) {
	h := newHarness(t)
	h.dispatcher.err = context.DeadlineExceeded
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	if _, err := h.messages.Send(context.Background(), th.ID, doctor,
		model.MessageText, model.TextContent{Text: "still getting through"}, uuid.Nil); err != nil {
		t.Fatalf("send should not fail on dispatch error: %v", err)
	}

	list, err := h.notifications.List(context.Background(), patient, true, 10)
	if err != nil || len(list) != 1 {
		t.Fatalf("durable notification missing: %d %v", len(list), err)
	}
}

func TestSendAuthorization(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	if _, err := h.messages.Send(ctx, th.ID, uuid.New(),
		model.MessageText, model.TextContent{Text: "hi"}, uuid.Nil); !model.IsKind(err, model.KindAccessDenied) {
		t.Fatalf("stranger send: got %v", err)
	}
	if _, err := h.messages.Send(ctx, uuid.New(), doctor,
		model.MessageText, model.TextContent{Text: "hi"}, uuid.Nil); !model.IsKind(err, model.KindNotFound) {
		t.Fatalf("unknown thread: got %v", err)
	}
	if _, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "   "}, uuid.Nil); !model.IsKind(err, model.KindValidation) {
		t.Fatalf("blank content: got %v", err)
	}
	if _, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, nil, uuid.Nil); !model.IsKind(err, model.KindValidation) {
		t.Fatalf("nil content: got %v", err)
	}

	// A deactivated participant loses send rights immediately.
	if err := h.db.DeactivateParticipant(ctx, th.ID, patient, 1); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	if _, err := h.messages.Send(ctx, th.ID, patient,
		model.MessageText, model.TextContent{Text: "hi"}, uuid.Nil); !model.IsKind(err, model.KindAccessDenied) {
		t.Fatalf("deactivated send: got %v", err)
	}
}

func TestReplyValidation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)
	other := h.thread(t, model.ThreadGroup, doctor, patient)

	parent, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "parent"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	reply, err := h.messages.Send(ctx, th.ID, patient,
		model.MessageText, model.TextContent{Text: "child"}, parent.ID)
	if err != nil {
		t.Fatalf("reply: %v", err)
	}
	if reply.ReplyToID != parent.ID {
		t.Fatal("reply reference lost")
	}

	if _, err := h.messages.Send(ctx, other.ID, doctor,
		model.MessageText, model.TextContent{Text: "cross"}, parent.ID); !model.IsKind(err, model.KindValidation) {
		t.Fatalf("cross-thread reply: got %v", err)
	}
	if _, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "dangling"}, uuid.New()); !model.IsKind(err, model.KindValidation) {
		t.Fatalf("dangling reply: got %v", err)
	}
}

func TestEditOnlyBySender(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	msg, err := h.messages.Send(ctx, th.ID, patient,
		model.MessageText, model.TextContent{Text: "original"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if _, err := h.messages.Edit(ctx, msg.ID, doctor, []byte(`{"text":"hijack"}`)); !model.IsKind(err, model.KindAccessDenied) {
		t.Fatalf("foreign edit: got %v", err)
	}

	edited, err := h.messages.Edit(ctx, msg.ID, patient, []byte(`{"text":"corrected"}`))
	if err != nil {
		t.Fatalf("edit: %v", err)
	}
	if !edited.Edited {
		t.Fatal("edited flag missing")
	}
	if tc := edited.Content.(model.TextContent); tc.Text != "corrected" {
		t.Fatalf("content: %q", tc.Text)
	}
}

func TestDeletePermissions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	// The patient's own message: a second patient-level user cannot delete
	// it, the authoring patient and the doctor can.
	msg, err := h.messages.Send(ctx, th.ID, patient,
		model.MessageText, model.TextContent{Text: "remove me"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := h.messages.SoftDelete(ctx, msg.ID, uuid.New()); !model.IsKind(err, model.KindAccessDenied) {
		t.Fatalf("stranger delete: got %v", err)
	}
	if err := h.messages.SoftDelete(ctx, msg.ID, doctor); err != nil {
		t.Fatalf("elevated delete: %v", err)
	}

	got, err := h.db.GetMessage(ctx, msg.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if !got.Deleted || got.DeletedBy != doctor {
		t.Fatalf("tombstone wrong: %+v", got)
	}
}

func TestReactions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	doctor, patient := uuid.New(), uuid.New()
	th := h.thread(t, model.ThreadDirect, doctor, patient)

	msg, err := h.messages.Send(ctx, th.ID, doctor,
		model.MessageText, model.TextContent{Text: "good news"}, uuid.Nil)
	if err != nil {
		t.Fatalf("send: %v", err)
	}

	if err := h.messages.React(ctx, msg.ID, patient, "🎉"); err != nil {
		t.Fatalf("react: %v", err)
	}
	if err := h.messages.React(ctx, msg.ID, patient, "🎉"); !model.IsKind(err, model.KindAlreadyExists) {
		t.Fatalf("duplicate react: got %v", err)
	}
	if err := h.messages.React(ctx, msg.ID, uuid.New(), "🎉"); !model.IsKind(err, model.KindAccessDenied) {
		t.Fatalf("stranger react: got %v", err)
	}
	if err := h.messages.Unreact(ctx, msg.ID, patient, "🎉"); err != nil {
		t.Fatalf("unreact: %v", err)
	}
	if err := h.messages.Unreact(ctx, msg.ID, patient, "🎉"); err != nil {
		t.Fatalf("repeat unreact: %v", err)
	}
}

package delivery

import (
	"context"
	"errors"
	"testing"
	"time"

	"msgsync/pkg/models"
	"msgsync/pkg/store"
	"msgsync/pkg/utils"
)

func setup(t *testing.T) *Tracker {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewTracker()
}

func seedThread(t *testing.T, users ...string) models.Thread {
	t.Helper()
	now := time.Now().UTC().UnixNano()
	th := models.Thread{ID: utils.GenThreadID(), Tenant: "school-1", Kind: models.KindClassGroup, CreatedTS: now, LastActivityTS: now}
	wb := store.NewBatch()
	if err := store.PutThreadRecord(wb, th); err != nil {
		t.Fatalf("PutThreadRecord: %v", err)
	}
	for _, u := range users {
		if err := store.PutParticipant(wb, models.Participant{Thread: th.ID, User: u, JoinedTS: now}); err != nil {
			t.Fatalf("PutParticipant: %v", err)
		}
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	return th
}

func seedMessage(t *testing.T, threadID, sender, body string) models.Message {
	t.Helper()
	m := models.Message{
		ID: utils.GenID(), Thread: threadID, Sender: sender,
		Body:      models.Content{Kind: models.ContentText, Text: body},
		CreatedTS: time.Now().UTC().UnixNano(), Seq: store.NextMsgSeq(),
	}
	wb := store.NewBatch()
	if err := store.PutMessage(wb, m, m.CreatedTS, m.Seq); err != nil {
		t.Fatalf("PutMessage: %v", err)
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	return m
}

func TestUnreadAndReadFlow(t *testing.T) {
	tr := setup(t)
	th := seedThread(t, "alice", "bob")
	ctx := context.Background()

	seedMessage(t, th.ID, "alice", "one")
	seedMessage(t, th.ID, "alice", "two")

	n, err := UnreadCount(th.ID, "bob")
	if err != nil {
		t.Fatalf("UnreadCount: %v", err)
	}
	if n != 2 {
		t.Fatalf("unread = %d, want 2", n)
	}
	// sender's own messages never count
	if n, _ := UnreadCount(th.ID, "alice"); n != 0 {
		t.Fatalf("sender unread = %d, want 0", n)
	}

	if err := tr.MarkRead(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	if n, _ := UnreadCount(th.ID, "bob"); n != 0 {
		t.Fatalf("unread after read = %d, want 0", n)
	}

	// a new message reopens the count
	seedMessage(t, th.ID, "alice", "three")
	if n, _ := UnreadCount(th.ID, "bob"); n != 1 {
		t.Fatalf("unread after new message = %d, want 1", n)
	}
}

func TestReadImpliesDelivered(t *testing.T) {
	tr := setup(t)
	th := seedThread(t, "alice", "bob")
	ctx := context.Background()

	m := seedMessage(t, th.ID, "alice", "hello")
	if err := tr.MarkRead(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}

	st, err := tr.State(th.ID, m.ID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if !st.ReadBy("bob") {
		t.Fatalf("bob should have read the message")
	}
	if !st.DeliveredTo("bob") {
		t.Fatalf("read must imply delivered")
	}
}

func TestMarksAreMonotonic(t *testing.T) {
	tr := setup(t)
	th := seedThread(t, "alice", "bob")
	ctx := context.Background()

	m := seedMessage(t, th.ID, "alice", "hello")
	if err := tr.MarkRead(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	st1, err := tr.State(th.ID, m.ID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	readTS := st1.Read["bob"]

	// a later delivered mark must not rewind the read state
	if err := tr.MarkDelivered(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if err := tr.MarkRead(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
	st2, err := tr.State(th.ID, m.ID)
	if err != nil {
		t.Fatalf("State: %v", err)
	}
	if st2.Read["bob"] != readTS {
		t.Fatalf("read timestamp moved: %d -> %d", readTS, st2.Read["bob"])
	}
}

func TestDeliveredDoesNotTouchUnread(t *testing.T) {
	tr := setup(t)
	th := seedThread(t, "alice", "bob")
	ctx := context.Background()

	seedMessage(t, th.ID, "alice", "hello")
	if err := tr.MarkDelivered(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("MarkDelivered: %v", err)
	}
	if n, _ := UnreadCount(th.ID, "bob"); n != 1 {
		t.Fatalf("delivered changed unread: %d, want 1", n)
	}
}

func TestDeletedExcludedFromUnread(t *testing.T) {
	setup(t)
	th := seedThread(t, "alice", "bob")

	m := seedMessage(t, th.ID, "alice", "oops")
	m.Deleted = true
	wb := store.NewBatch()
	if err := store.PutMessage(wb, m, m.CreatedTS, m.Seq); err != nil {
		t.Fatalf("PutMessage: %v", err)
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	if n, _ := UnreadCount(th.ID, "bob"); n != 0 {
		t.Fatalf("deleted message counted as unread: %d", n)
	}
}

func TestMarkNonMember(t *testing.T) {
	tr := setup(t)
	th := seedThread(t, "alice")
	if err := tr.MarkRead(context.Background(), th.ID, "mallory"); !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("non-member mark: got %v, want ErrPermissionDenied", err)
	}
}

func TestDeliveryEventCommitted(t *testing.T) {
	tr := setup(t)
	th := seedThread(t, "alice", "bob")
	ctx := context.Background()

	seedMessage(t, th.ID, "alice", "hello")
	if err := tr.MarkRead(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("MarkRead: %v", err)
	}
	evts, err := store.ListEvents(th.ID, 0, 0)
	if err != nil {
		t.Fatalf("ListEvents: %v", err)
	}
	if len(evts) != 1 {
		t.Fatalf("events = %d, want 1", len(evts))
	}
	if evts[0].Kind != models.EventDeliveryChanged || evts[0].State != "read" {
		t.Fatalf("event = %+v", evts[0])
	}

	// repeating the mark with nothing pending emits no event
	if err := tr.MarkRead(ctx, th.ID, "bob"); err != nil {
		t.Fatalf("repeat MarkRead: %v", err)
	}
	evts, _ = store.ListEvents(th.ID, 0, 0)
	if len(evts) != 1 {
		t.Fatalf("idempotent mark appended an event: %d", len(evts))
	}
}

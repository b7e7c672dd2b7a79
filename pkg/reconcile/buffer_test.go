package reconcile

import (
	"testing"

	"msgsync/pkg/models"
)

func text(s string) models.Content {
	return models.Content{Kind: models.ContentText, Text: s}
}

func TestOptimisticThenConfirm(t *testing.T) {
	b := NewBuffer("t1")
	b.ApplyOptimistic("local-1", "alice", text("hello"))

	snap := b.Snapshot()
	if len(snap) != 1 || snap[0].State != StatePending {
		t.Fatalf("snapshot = %+v", snap)
	}

	confirmed := models.Message{ID: "msg-1", Thread: "t1", Sender: "alice", Body: text("hello"), CreatedTS: 100, Seq: 1}
	if !b.Reconcile("local-1", confirmed) {
		t.Fatalf("reconcile returned false")
	}
	snap = b.Snapshot()
	if snap[0].State != StateConfirmed || snap[0].Msg.ID != "msg-1" {
		t.Fatalf("after reconcile: %+v", snap[0])
	}
}

func TestReconcileTwiceIsNoOp(t *testing.T) {
	b := NewBuffer("t1")
	b.ApplyOptimistic("local-1", "alice", text("hello"))

	confirmed := models.Message{ID: "msg-1", Thread: "t1", CreatedTS: 100, Seq: 1}
	if !b.Reconcile("local-1", confirmed) {
		t.Fatalf("first reconcile failed")
	}
	// duplicate fanout event for the same append
	if b.Reconcile("local-1", confirmed) {
		t.Fatalf("second reconcile should be a no-op")
	}
	if b.Reconcile("local-unknown", confirmed) {
		t.Fatalf("unknown placeholder should be a no-op")
	}
	if len(b.Snapshot()) != 1 {
		t.Fatalf("duplicate reconcile duplicated the entry")
	}
}

func TestFailedRetryKeepsPlaceholder(t *testing.T) {
	b := NewBuffer("t1")
	b.ApplyOptimistic("local-1", "alice", text("hello"))

	if !b.MarkFailed("local-1") {
		t.Fatalf("MarkFailed returned false")
	}
	snap := b.Snapshot()
	if snap[0].State != StateFailed {
		t.Fatalf("state = %s, want failed", snap[0].State)
	}

	e, ok := b.Retry("local-1")
	if !ok || e.State != StatePending || e.LocalID != "local-1" {
		t.Fatalf("Retry = %+v, %v", e, ok)
	}
	// retry may not run on entries that are not failed
	if _, ok := b.Retry("local-1"); ok {
		t.Fatalf("Retry on pending entry succeeded")
	}
}

func TestDiscardRemovesEntry(t *testing.T) {
	b := NewBuffer("t1")
	b.ApplyOptimistic("local-1", "alice", text("hello"))
	b.MarkFailed("local-1")
	b.Discard("local-1")
	if len(b.Snapshot()) != 0 {
		t.Fatalf("discarded entry still present")
	}
	b.Discard("local-missing")
}

func TestSnapshotOrdering(t *testing.T) {
	b := NewBuffer("t1")
	b.ApplyOptimistic("local-1", "alice", text("first"))
	b.ApplyOptimistic("local-2", "alice", text("second"))
	b.ApplyOptimistic("local-3", "alice", text("third"))

	// confirmations arrive out of order; server positions win
	if !b.Reconcile("local-2", models.Message{ID: "msg-2", Thread: "t1", CreatedTS: 200, Seq: 2}) {
		t.Fatalf("reconcile local-2")
	}
	if !b.Reconcile("local-1", models.Message{ID: "msg-1", Thread: "t1", CreatedTS: 100, Seq: 1}) {
		t.Fatalf("reconcile local-1")
	}

	snap := b.Snapshot()
	if len(snap) != 3 {
		t.Fatalf("entries = %d", len(snap))
	}
	if snap[0].Msg.ID != "msg-1" || snap[1].Msg.ID != "msg-2" {
		t.Fatalf("confirmed order wrong: %s, %s", snap[0].Msg.ID, snap[1].Msg.ID)
	}
	if snap[2].State != StatePending || snap[2].LocalID != "local-3" {
		t.Fatalf("placeholder not at tail: %+v", snap[2])
	}
}

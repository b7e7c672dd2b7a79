package messages

import (
	"context"
	"errors"
	"testing"
	"time"

	"msgsync/pkg/models"
	"msgsync/pkg/store"
	"msgsync/pkg/utils"
)

func setup(t *testing.T) *Log {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return NewLog()
}

func seedThread(t *testing.T, kind models.ThreadKind, allowReplies bool, admin string, users ...string) models.Thread {
	t.Helper()
	now := time.Now().UTC().UnixNano()
	th := models.Thread{
		ID: utils.GenThreadID(), Tenant: "school-1", Kind: kind,
		AllowReplies: allowReplies, CreatedTS: now, LastActivityTS: now,
	}
	wb := store.NewBatch()
	if err := store.PutThreadRecord(wb, th); err != nil {
		t.Fatalf("PutThreadRecord: %v", err)
	}
	for _, u := range users {
		p := models.Participant{Thread: th.ID, User: u, IsAdmin: u == admin, JoinedTS: now}
		if err := store.PutParticipant(wb, p); err != nil {
			t.Fatalf("PutParticipant: %v", err)
		}
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	return th
}

func text(s string) models.Content {
	return models.Content{Kind: models.ContentText, Text: s}
}

func TestAppendOrdering(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	for _, s := range []string{"one", "two", "three"} {
		if _, err := l.Append(ctx, th.ID, "alice", text(s), "", ""); err != nil {
			t.Fatalf("Append %q: %v", s, err)
		}
	}

	msgs, _, err := l.List(ctx, th.ID, "bob", "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3", len(msgs))
	}
	for i, want := range []string{"one", "two", "three"} {
		if msgs[i].Body.Text != want {
			t.Fatalf("position %d = %q, want %q", i, msgs[i].Body.Text, want)
		}
	}
	for i := 1; i < len(msgs); i++ {
		prev, cur := msgs[i-1], msgs[i]
		if cur.CreatedTS < prev.CreatedTS || (cur.CreatedTS == prev.CreatedTS && cur.Seq <= prev.Seq) {
			t.Fatalf("order violated at %d: (%d,%d) after (%d,%d)", i, cur.CreatedTS, cur.Seq, prev.CreatedTS, prev.Seq)
		}
	}
}

func TestListPaging(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		if _, err := l.Append(ctx, th.ID, "alice", text("m"), "", ""); err != nil {
			t.Fatalf("Append: %v", err)
		}
	}

	var got int
	cursor := ""
	for {
		msgs, next, err := l.List(ctx, th.ID, "bob", cursor, 2)
		if err != nil {
			t.Fatalf("List: %v", err)
		}
		got += len(msgs)
		if len(msgs) == 0 {
			break
		}
		cursor = next
	}
	if got != 5 {
		t.Fatalf("paged total = %d, want 5", got)
	}
}

func TestAppendInvalidContent(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice")
	if _, err := l.Append(context.Background(), th.ID, "alice", models.Content{Kind: "text"}, "", ""); !errors.Is(err, models.ErrInvalidContent) {
		t.Fatalf("empty text: got %v, want ErrInvalidContent", err)
	}
}

func TestAppendNonMember(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice")
	if _, err := l.Append(context.Background(), th.ID, "mallory", text("hi"), "", ""); !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("non-member append: got %v, want ErrPermissionDenied", err)
	}
}

func TestAnnouncementReadOnly(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindAnnouncement, false, "alice", "alice", "bob")
	ctx := context.Background()

	if _, err := l.Append(ctx, th.ID, "alice", text("notice"), "", ""); err != nil {
		t.Fatalf("admin append: %v", err)
	}
	if _, err := l.Append(ctx, th.ID, "bob", text("reply"), "", ""); !errors.Is(err, models.ErrThreadReadOnly) {
		t.Fatalf("member reply to announcement: got %v, want ErrThreadReadOnly", err)
	}
	if !errors.Is(errors.Unwrap(models.ErrThreadReadOnly), models.ErrPermissionDenied) {
		t.Fatalf("ErrThreadReadOnly should wrap ErrPermissionDenied")
	}
}

func TestReplySnapshotFrozen(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	orig, err := l.Append(ctx, th.ID, "alice", text("original wording"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	reply, err := l.Append(ctx, th.ID, "bob", text("re"), orig.ID, "")
	if err != nil {
		t.Fatalf("reply Append: %v", err)
	}
	if reply.ReplySnapshot == nil || reply.ReplySnapshot.Excerpt != "original wording" || reply.ReplySnapshot.Sender != "alice" {
		t.Fatalf("snapshot = %+v", reply.ReplySnapshot)
	}

	// editing the target must not rewrite the frozen quote
	if _, err := l.Edit(ctx, orig.ID, "alice", text("rewritten")); err != nil {
		t.Fatalf("Edit: %v", err)
	}
	got, err := l.Get(ctx, reply.ID, "bob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ReplySnapshot.Excerpt != "original wording" {
		t.Fatalf("snapshot changed after edit: %q", got.ReplySnapshot.Excerpt)
	}
}

func TestReplyCrossThreadRejected(t *testing.T) {
	l := setup(t)
	th1 := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	th2 := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	m, err := l.Append(ctx, th1.ID, "alice", text("here"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Append(ctx, th2.ID, "bob", text("re"), m.ID, ""); !errors.Is(err, models.ErrInvalidReference) {
		t.Fatalf("cross-thread reply: got %v, want ErrInvalidReference", err)
	}
}

func TestEditOnlyBySender(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	m, err := l.Append(ctx, th.ID, "alice", text("v1"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Edit(ctx, m.ID, "bob", text("v2")); !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("edit by non-sender: got %v, want ErrPermissionDenied", err)
	}

	edited, err := l.Edit(ctx, m.ID, "alice", text("v2"))
	if err != nil {
		t.Fatalf("Edit: %v", err)
	}
	if edited.EditedTS == 0 || edited.Body.Text != "v2" {
		t.Fatalf("edit not applied: %+v", edited)
	}
	// the row keeps its (ts, seq) position
	if edited.CreatedTS != m.CreatedTS || edited.Seq != m.Seq {
		t.Fatalf("edit moved the row: (%d,%d) -> (%d,%d)", m.CreatedTS, m.Seq, edited.CreatedTS, edited.Seq)
	}

	versions, err := store.ListMessageVersions(m.ID)
	if err != nil {
		t.Fatalf("ListMessageVersions: %v", err)
	}
	if len(versions) != 2 {
		t.Fatalf("versions = %d, want 2", len(versions))
	}
}

func TestSoftDeleteKeepsPosition(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	m1, err := l.Append(ctx, th.ID, "alice", text("first"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if _, err := l.Append(ctx, th.ID, "bob", text("second"), "", ""); err != nil {
		t.Fatalf("Append: %v", err)
	}

	if err := l.SoftDelete(ctx, m1.ID, "alice"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}
	// deleting again is a no-op
	if err := l.SoftDelete(ctx, m1.ID, "alice"); err != nil {
		t.Fatalf("repeat SoftDelete: %v", err)
	}

	msgs, _, err := l.List(ctx, th.ID, "bob", "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(msgs) != 2 {
		t.Fatalf("deleted row vanished: %d rows", len(msgs))
	}
	if !msgs[0].Deleted || msgs[0].ID != m1.ID {
		t.Fatalf("first row = %+v, want deleted m1", msgs[0])
	}

	// a deleted message cannot be edited
	if _, err := l.Edit(ctx, m1.ID, "alice", text("zombie")); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("edit deleted: got %v, want ErrNotFound", err)
	}
}

func TestSoftDeleteHidesContent(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	orig, err := l.Append(ctx, th.ID, "alice", text("secret text"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	quote, err := l.Append(ctx, th.ID, "bob", text("re"), orig.ID, "")
	if err != nil {
		t.Fatalf("reply Append: %v", err)
	}
	if err := l.SoftDelete(ctx, quote.ID, "bob"); err != nil {
		t.Fatalf("SoftDelete reply: %v", err)
	}
	if err := l.SoftDelete(ctx, orig.ID, "alice"); err != nil {
		t.Fatalf("SoftDelete: %v", err)
	}

	msgs, _, err := l.List(ctx, th.ID, "bob", "", 0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	for _, m := range msgs {
		if !m.Deleted {
			t.Fatalf("row not deleted: %+v", m)
		}
		if m.Body.Text != "" || m.Body.Kind != "" {
			t.Fatalf("deleted row still serves its body: %+v", m.Body)
		}
		if m.ReplySnapshot != nil {
			t.Fatalf("deleted row still serves its quote: %+v", m.ReplySnapshot)
		}
	}

	// the by-id read serves the same tombstone
	got, err := l.Get(ctx, orig.ID, "bob")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if !got.Deleted || got.Body.Text != "" {
		t.Fatalf("by-id read leaks content: %+v", got)
	}
}

func TestSoftDeleteByNonAuthorNonAdmin(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob", "carol")
	ctx := context.Background()

	m, err := l.Append(ctx, th.ID, "bob", text("mine"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := l.SoftDelete(ctx, m.ID, "carol"); !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("delete by bystander: got %v, want ErrPermissionDenied", err)
	}
}

func TestForwardRequiresSourceMembership(t *testing.T) {
	l := setup(t)
	src := seedThread(t, models.KindClassGroup, false, "alice", "alice")
	dst := seedThread(t, models.KindClassGroup, false, "bob", "alice", "bob")
	ctx := context.Background()

	m, err := l.Append(ctx, src.ID, "alice", text("origin"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	// bob is not in src
	if _, err := l.Append(ctx, dst.ID, "bob", text("fwd"), "", m.ID); !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("forward without source membership: got %v, want ErrPermissionDenied", err)
	}
	// alice is in both
	fwd, err := l.Append(ctx, dst.ID, "alice", text("fwd"), "", m.ID)
	if err != nil {
		t.Fatalf("forward: %v", err)
	}
	if fwd.ForwardedFrom != m.ID {
		t.Fatalf("ForwardedFrom = %q", fwd.ForwardedFrom)
	}
}

func TestAppendBumpsActivityAndSenderWatermark(t *testing.T) {
	l := setup(t)
	th := seedThread(t, models.KindClassGroup, false, "alice", "alice", "bob")
	ctx := context.Background()

	m, err := l.Append(ctx, th.ID, "alice", text("hi"), "", "")
	if err != nil {
		t.Fatalf("Append: %v", err)
	}
	got, err := store.GetThreadRecord(th.ID)
	if err != nil {
		t.Fatalf("GetThreadRecord: %v", err)
	}
	if got.LastActivityTS != m.CreatedTS {
		t.Fatalf("LastActivityTS = %d, want %d", got.LastActivityTS, m.CreatedTS)
	}
	p, ok, err := store.GetParticipant(th.ID, "alice")
	if err != nil || !ok {
		t.Fatalf("GetParticipant: %v ok=%v", err, ok)
	}
	if p.LastReadTS != m.CreatedTS {
		t.Fatalf("sender watermark = %d, want %d", p.LastReadTS, m.CreatedTS)
	}
}

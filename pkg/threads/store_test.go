package threads

import (
	"context"
	"errors"
	"sync"
	"testing"

	"msgsync/pkg/directory"
	"msgsync/pkg/models"
	"msgsync/pkg/store"
)

func setup(t *testing.T) *Store {
	t.Helper()
	if err := store.Open(t.TempDir()); err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	dir := directory.NewStatic()
	dir.Add("school-1", directory.Profile{ID: "alice", DisplayName: "Alice", Role: "teacher"})
	dir.Add("school-1", directory.Profile{ID: "bob", DisplayName: "Bob", Role: "parent"})
	dir.Add("school-1", directory.Profile{ID: "carol", DisplayName: "Carol", Role: "parent"})
	return New(dir)
}

func TestDirectThreadDedup(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	th1, err := s.GetOrCreateDirect(ctx, "school-1", "alice", "bob")
	if err != nil {
		t.Fatalf("first GetOrCreateDirect: %v", err)
	}
	// reversed pair must resolve to the same thread
	th2, err := s.GetOrCreateDirect(ctx, "school-1", "bob", "alice")
	if err != nil {
		t.Fatalf("second GetOrCreateDirect: %v", err)
	}
	if th1.ID != th2.ID {
		t.Fatalf("pair produced two threads: %s vs %s", th1.ID, th2.ID)
	}
	if th1.Kind != models.KindDirect {
		t.Fatalf("kind = %s, want direct", th1.Kind)
	}
}

func TestDirectThreadConcurrentCreate(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	const n = 8
	ids := make([]string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			a, b := "alice", "bob"
			if i%2 == 1 {
				a, b = b, a
			}
			th, err := s.GetOrCreateDirect(ctx, "school-1", a, b)
			if err != nil {
				t.Errorf("GetOrCreateDirect: %v", err)
				return
			}
			ids[i] = th.ID
		}(i)
	}
	wg.Wait()
	for i := 1; i < n; i++ {
		if ids[i] != ids[0] {
			t.Fatalf("concurrent creates diverged: %v", ids)
		}
	}
}

func TestDirectThreadSelfPair(t *testing.T) {
	s := setup(t)
	if _, err := s.GetOrCreateDirect(context.Background(), "school-1", "alice", "alice"); !errors.Is(err, models.ErrInvalidParticipants) {
		t.Fatalf("self pair: got %v, want ErrInvalidParticipants", err)
	}
}

func TestDirectThreadUnknownPeer(t *testing.T) {
	s := setup(t)
	if _, err := s.GetOrCreateDirect(context.Background(), "school-1", "alice", "mallory"); !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("unknown peer: got %v, want ErrPermissionDenied", err)
	}
}

func TestCreateGroup(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	th, err := s.CreateGroup(ctx, "school-1", models.KindClassGroup, "alice", []string{"bob", "carol", "bob"}, GroupOptions{Subject: "3B"})
	if err != nil {
		t.Fatalf("CreateGroup: %v", err)
	}
	if th.Subject != "3B" {
		t.Fatalf("subject = %q", th.Subject)
	}

	parts, err := store.ListParticipants(th.ID)
	if err != nil {
		t.Fatalf("ListParticipants: %v", err)
	}
	if len(parts) != 3 {
		t.Fatalf("participants = %d, want 3 (dupes collapsed)", len(parts))
	}
	for _, p := range parts {
		if p.User == "alice" && !p.IsAdmin {
			t.Fatalf("founder is not admin")
		}
		if p.User != "alice" && p.IsAdmin {
			t.Fatalf("non-founder %s is admin", p.User)
		}
	}
}

func TestCreateGroupRejectsDirectKind(t *testing.T) {
	s := setup(t)
	if _, err := s.CreateGroup(context.Background(), "school-1", models.KindDirect, "alice", []string{"bob"}, GroupOptions{}); !errors.Is(err, models.ErrInvalidReference) {
		t.Fatalf("direct kind via CreateGroup: got %v, want ErrInvalidReference", err)
	}
	if _, err := s.CreateGroup(context.Background(), "school-1", "bogus", "alice", []string{"bob"}, GroupOptions{}); !errors.Is(err, models.ErrInvalidReference) {
		t.Fatalf("bogus kind: got %v, want ErrInvalidReference", err)
	}
}

func TestListForUserOrderAndArchived(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	th1, err := s.GetOrCreateDirect(ctx, "school-1", "alice", "bob")
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	th2, err := s.CreateGroup(ctx, "school-1", models.KindClassGroup, "alice", []string{"bob"}, GroupOptions{Subject: "3B"})
	if err != nil {
		t.Fatalf("group: %v", err)
	}

	// bump th1 so it sorts first
	th1r, err := store.GetThreadRecord(th1.ID)
	if err != nil {
		t.Fatalf("GetThreadRecord: %v", err)
	}
	th1r.LastActivityTS = th2.LastActivityTS + 1
	wb := store.NewBatch()
	if err := store.PutThreadRecord(wb, th1r); err != nil {
		t.Fatalf("PutThreadRecord: %v", err)
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	out, err := s.ListForUser(ctx, "school-1", "alice")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("threads = %d, want 2", len(out))
	}
	if out[0].Thread.ID != th1.ID {
		t.Fatalf("order wrong: got %s first", out[0].Thread.ID)
	}

	// archived threads drop out of the listing
	th1r.Archived = true
	wb = store.NewBatch()
	if err := store.PutThreadRecord(wb, th1r); err != nil {
		t.Fatalf("PutThreadRecord: %v", err)
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}
	out, err = s.ListForUser(ctx, "school-1", "alice")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(out) != 1 || out[0].Thread.ID != th2.ID {
		t.Fatalf("archived thread still listed: %+v", out)
	}
}

func TestListForUserDanglingMembership(t *testing.T) {
	s := setup(t)
	ctx := context.Background()

	th, err := s.GetOrCreateDirect(ctx, "school-1", "alice", "bob")
	if err != nil {
		t.Fatalf("direct: %v", err)
	}

	// a membership index row without a participant record: the unread count
	// cannot be computed for that entry, but the listing must still succeed
	orphan := models.Thread{ID: "t-orphan", Tenant: "school-1", Kind: models.KindClassGroup, CreatedTS: 1, LastActivityTS: 1}
	wb := store.NewBatch()
	if err := store.PutThreadRecord(wb, orphan); err != nil {
		t.Fatalf("PutThreadRecord: %v", err)
	}
	if err := wb.Set([]byte(store.UserThreadKey("school-1", "alice", orphan.ID)), []byte{1}, nil); err != nil {
		t.Fatalf("Set index: %v", err)
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		t.Fatalf("ApplyBatch: %v", err)
	}

	out, err := s.ListForUser(ctx, "school-1", "alice")
	if err != nil {
		t.Fatalf("ListForUser: %v", err)
	}
	if len(out) != 2 {
		t.Fatalf("threads = %d, want 2", len(out))
	}
	for _, sum := range out {
		if sum.Thread.ID == orphan.ID && sum.UnreadCount != 0 {
			t.Fatalf("orphan entry unread = %d, want 0", sum.UnreadCount)
		}
		if sum.Thread.ID != orphan.ID && sum.Thread.ID != th.ID {
			t.Fatalf("unexpected entry %s", sum.Thread.ID)
		}
	}
}

func TestGetChecksMembership(t *testing.T) {
	s := setup(t)
	th, err := s.GetOrCreateDirect(context.Background(), "school-1", "alice", "bob")
	if err != nil {
		t.Fatalf("direct: %v", err)
	}
	if _, err := s.Get(th.ID, "carol"); !errors.Is(err, models.ErrPermissionDenied) {
		t.Fatalf("outsider read: got %v, want ErrPermissionDenied", err)
	}
	if _, err := s.Get("thread-missing", "alice"); !errors.Is(err, models.ErrNotFound) {
		t.Fatalf("missing thread: got %v, want ErrNotFound", err)
	}
}

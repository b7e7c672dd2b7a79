package presence

import (
	"context"
	"strings"
	"testing"
	"time"

	"msgsync/pkg/directory"
)

func newDir() *directory.Cache {
	static := directory.NewStatic()
	static.Add("school-1", directory.Profile{ID: "alice", DisplayName: "Alice"})
	static.Add("school-1", directory.Profile{ID: "bob", DisplayName: "Bob"})
	static.Add("school-1", directory.Profile{ID: "carol", DisplayName: "Carol"})
	static.Add("school-1", directory.Profile{ID: "dave", DisplayName: "Dave"})
	return directory.NewCache(static, 16)
}

func TestTypingExcludesSelf(t *testing.T) {
	tr := NewTracker(time.Second, newDir())
	tr.StartTyping("t1", "alice")
	tr.StartTyping("t1", "bob")

	got := tr.TypingIn("t1", "alice")
	if len(got) != 1 || got[0] != "bob" {
		t.Fatalf("TypingIn = %v, want [bob]", got)
	}
}

func TestTypingExpires(t *testing.T) {
	tr := NewTracker(20*time.Millisecond, newDir())
	tr.StartTyping("t1", "alice")
	if got := tr.TypingIn("t1", ""); len(got) != 1 {
		t.Fatalf("signal missing before expiry: %v", got)
	}
	time.Sleep(40 * time.Millisecond)
	if got := tr.TypingIn("t1", ""); len(got) != 0 {
		t.Fatalf("signal survived expiry: %v", got)
	}
}

func TestStopTypingClearsEarly(t *testing.T) {
	tr := NewTracker(time.Minute, newDir())
	tr.StartTyping("t1", "alice")
	tr.StopTyping("t1", "alice")
	if got := tr.TypingIn("t1", ""); len(got) != 0 {
		t.Fatalf("signal survived stop: %v", got)
	}
}

func TestIndicatorAggregation(t *testing.T) {
	tr := NewTracker(time.Minute, newDir())
	ctx := context.Background()

	line, err := tr.Indicator(ctx, "school-1", "t1", "")
	if err != nil || line != "" {
		t.Fatalf("empty thread indicator = %q, %v", line, err)
	}

	tr.StartTyping("t1", "alice")
	line, err = tr.Indicator(ctx, "school-1", "t1", "")
	if err != nil {
		t.Fatalf("Indicator: %v", err)
	}
	if line != "Alice is typing…" {
		t.Fatalf("one typer: %q", line)
	}

	tr.StartTyping("t1", "bob")
	line, _ = tr.Indicator(ctx, "school-1", "t1", "")
	if !strings.HasSuffix(line, " are typing…") || !strings.Contains(line, " and ") {
		t.Fatalf("two typers: %q", line)
	}

	tr.StartTyping("t1", "carol")
	tr.StartTyping("t1", "dave")
	line, _ = tr.Indicator(ctx, "school-1", "t1", "")
	if !strings.Contains(line, "2 others are typing…") {
		t.Fatalf("four typers: %q", line)
	}
}

func TestSweepBoundsMemory(t *testing.T) {
	tr := NewTracker(10*time.Millisecond, newDir())
	tr.StartTyping("t1", "alice")
	time.Sleep(20 * time.Millisecond)
	tr.sweep(time.Now())

	tr.mu.Lock()
	n := len(tr.typing)
	tr.mu.Unlock()
	if n != 0 {
		t.Fatalf("expired thread entry retained: %d", n)
	}
}

func TestOnlineAndLastSeen(t *testing.T) {
	tr := NewTracker(time.Minute, newDir())

	if tr.Online("alice") {
		t.Fatalf("alice online before connect")
	}
	tr.Connected("alice")
	tr.Connected("alice")
	if !tr.Online("alice") {
		t.Fatalf("alice offline after connect")
	}

	// one of two connections dropping keeps her online
	tr.Disconnected("alice")
	if !tr.Online("alice") {
		t.Fatalf("alice offline with a live connection remaining")
	}
	if _, ok := tr.LastSeen("alice"); ok {
		t.Fatalf("last-seen stamped while still online")
	}

	tr.Disconnected("alice")
	if tr.Online("alice") {
		t.Fatalf("alice online after last disconnect")
	}
	ts, ok := tr.LastSeen("alice")
	if !ok || ts == 0 {
		t.Fatalf("last-seen missing after disconnect")
	}
}

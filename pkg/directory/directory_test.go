package directory

import (
	"context"
	"errors"
	"testing"
)

type countingAdapter struct {
	inner *Static
	calls int
}

func (c *countingAdapter) Lookup(ctx context.Context, tenant string, ids []string) ([]Profile, error) {
	c.calls++
	return c.inner.Lookup(ctx, tenant, ids)
}

func newStatic() *Static {
	s := NewStatic()
	s.Add("school-1", Profile{ID: "alice", DisplayName: "Alice", Role: "teacher"})
	s.Add("school-1", Profile{ID: "bob", DisplayName: "Bob", Role: "parent"})
	s.Add("school-2", Profile{ID: "alice", DisplayName: "Other Alice", Role: "parent"})
	return s
}

func TestStaticLookupScopedByTenant(t *testing.T) {
	s := newStatic()
	out, err := s.Lookup(context.Background(), "school-2", []string{"alice", "bob"})
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if len(out) != 1 || out[0].DisplayName != "Other Alice" {
		t.Fatalf("tenant scoping broken: %+v", out)
	}
}

func TestCacheServesRepeatsWithoutAdapter(t *testing.T) {
	ad := &countingAdapter{inner: newStatic()}
	c := NewCache(ad, 16)
	ctx := context.Background()

	if _, err := c.Lookup(ctx, "school-1", []string{"alice", "bob"}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ad.calls != 1 {
		t.Fatalf("adapter calls = %d, want 1", ad.calls)
	}
	out, err := c.Lookup(ctx, "school-1", []string{"bob", "alice"})
	if err != nil {
		t.Fatalf("cached Lookup: %v", err)
	}
	if ad.calls != 1 {
		t.Fatalf("cache missed on repeat: calls = %d", ad.calls)
	}
	// result order follows the requested ids
	if out[0].ID != "bob" || out[1].ID != "alice" {
		t.Fatalf("order = %+v", out)
	}
}

func TestCacheInvalidate(t *testing.T) {
	ad := &countingAdapter{inner: newStatic()}
	c := NewCache(ad, 16)
	ctx := context.Background()

	if _, err := c.Lookup(ctx, "school-1", []string{"alice"}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	c.Invalidate("school-1", "alice")
	if _, err := c.Lookup(ctx, "school-1", []string{"alice"}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ad.calls != 2 {
		t.Fatalf("invalidate did not force a re-fetch: calls = %d", ad.calls)
	}
}

func TestCacheEvictsOldest(t *testing.T) {
	ad := &countingAdapter{inner: newStatic()}
	c := NewCache(ad, 1)
	ctx := context.Background()

	if _, err := c.Lookup(ctx, "school-1", []string{"alice"}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if _, err := c.Lookup(ctx, "school-1", []string{"bob"}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	// alice was evicted by the bound
	if _, err := c.Lookup(ctx, "school-1", []string{"alice"}); err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if ad.calls != 3 {
		t.Fatalf("eviction not applied: calls = %d", ad.calls)
	}
}

type failingAdapter struct{}

var errDirectoryDown = errors.New("directory down")

func (failingAdapter) Lookup(context.Context, string, []string) ([]Profile, error) {
	return nil, errDirectoryDown
}

func TestCachePropagatesAdapterError(t *testing.T) {
	c := NewCache(failingAdapter{}, 4)
	if _, err := c.Lookup(context.Background(), "school-1", []string{"alice"}); !errors.Is(err, errDirectoryDown) {
		t.Fatalf("error not propagated: %v", err)
	}
}

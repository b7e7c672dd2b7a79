// Package directory adapts the external user/profile directory. The engine
// never owns identity; it resolves ids to display profiles through this
// adapter and treats a missing profile as "outside the tenant".
package directory

import (
	"context"
	"fmt"
	"sync"
)

// Profile is the directory's view of a user.
type Profile struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
	Role        string `json:"role"`
}

// Adapter resolves user ids within a tenant. Implementations are external
// services; Static below serves tests and single-box deployments.
type Adapter interface {
	Lookup(ctx context.Context, tenant string, ids []string) ([]Profile, error)
}

// Static is an in-memory adapter keyed by "tenant/userID".
type Static struct {
	mu       sync.RWMutex
	profiles map[string]Profile
}

// NewStatic builds a Static adapter.
func NewStatic() *Static {
	return &Static{profiles: map[string]Profile{}}
}

// Add registers a profile under a tenant.
func (s *Static) Add(tenant string, p Profile) {
	s.mu.Lock()
	s.profiles[tenant+"/"+p.ID] = p
	s.mu.Unlock()
}

// Lookup returns profiles for the ids that exist in the tenant; unknown ids
// are simply absent from the result.
func (s *Static) Lookup(_ context.Context, tenant string, ids []string) ([]Profile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := s.profiles[tenant+"/"+id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Cache is a bounded, session-scoped lookup cache in front of an Adapter.
// It exists so repeated "who reacted" disclosures do not hammer the
// directory; eviction is oldest-insertion-first and the bound is fixed at
// construction.
type Cache struct {
	ad  Adapter
	max int

	mu      sync.Mutex
	entries map[string]Profile
	order   []string
}

// NewCache wraps ad with a cache holding at most max profiles.
func NewCache(ad Adapter, max int) *Cache {
	if max <= 0 {
		max = 256
	}
	return &Cache{ad: ad, max: max, entries: map[string]Profile{}}
}

// Lookup resolves ids, serving hits from the cache and fetching the rest in
// one adapter call. Results keep the order of ids; ids unknown to the
// directory are omitted.
func (c *Cache) Lookup(ctx context.Context, tenant string, ids []string) ([]Profile, error) {
	c.mu.Lock()
	hits := map[string]Profile{}
	var missing []string
	for _, id := range ids {
		if p, ok := c.entries[tenant+"/"+id]; ok {
			hits[id] = p
		} else {
			missing = append(missing, id)
		}
	}
	c.mu.Unlock()

	if len(missing) > 0 {
		fetched, err := c.ad.Lookup(ctx, tenant, missing)
		if err != nil {
			return nil, fmt.Errorf("directory lookup: %w", err)
		}
		c.mu.Lock()
		for _, p := range fetched {
			c.put(tenant+"/"+p.ID, p)
			hits[p.ID] = p
		}
		c.mu.Unlock()
	}

	out := make([]Profile, 0, len(ids))
	for _, id := range ids {
		if p, ok := hits[id]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

// Invalidate drops any cached profile for the user, forcing a re-fetch.
func (c *Cache) Invalidate(tenant, id string) {
	c.mu.Lock()
	delete(c.entries, tenant+"/"+id)
	c.mu.Unlock()
}

// put inserts under c.mu, evicting the oldest entry at capacity.
func (c *Cache) put(key string, p Profile) {
	if _, ok := c.entries[key]; !ok {
		c.order = append(c.order, key)
		if len(c.order) > c.max {
			oldest := c.order[0]
			c.order = c.order[1:]
			delete(c.entries, oldest)
		}
	}
	c.entries[key] = p
}

// Package threads owns thread records, participant membership, and the
// one-conversation-per-contact-pair invariant for direct messages.
package threads

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"msgsync/pkg/delivery"
	"msgsync/pkg/directory"
	"msgsync/pkg/logger"
	"msgsync/pkg/models"
	"msgsync/pkg/store"
	"msgsync/pkg/utils"
)

// Store is the thread service. The directory adapter is the authority on
// tenant membership and roles.
type Store struct {
	dir directory.Adapter
}

// New builds a Store.
func New(dir directory.Adapter) *Store {
	return &Store{dir: dir}
}

// GroupOptions carries optional settings for group creation.
type GroupOptions struct {
	Subject      string
	AllowReplies bool
}

// GetOrCreateDirect returns the single direct thread for the unordered user
// pair, creating it when absent. The direct-pair index key is the uniqueness
// constraint: it is written in the same batch as the thread row and checked
// under a per-pair lock, so concurrent attempts from both parties converge
// on one thread. A creation race is resolved internally and never surfaces
// as Conflict.
func (s *Store) GetOrCreateDirect(ctx context.Context, tenant, userA, userB string) (models.Thread, error) {
	if userA == userB {
		return models.Thread{}, fmt.Errorf("direct thread for %s: %w", userA, models.ErrInvalidParticipants)
	}
	profiles, err := s.requireMembers(ctx, tenant, []string{userA, userB})
	if err != nil {
		return models.Thread{}, err
	}

	pairKey := store.DirectPairKey(tenant, userA, userB)
	unlock := store.Lock(pairKey)
	defer unlock()

	// create-if-absent, retried as a lookup on conflict
	if v, err := store.Get(pairKey); err == nil {
		th, terr := store.GetThreadRecord(string(v))
		if terr == nil {
			return th, nil
		}
		logger.Log.Warn("direct_index_dangling", zap.String("pair", pairKey), zap.Error(terr))
	} else if !store.IsNotFound(err) {
		return models.Thread{}, fmt.Errorf("direct lookup: %w: %v", models.ErrTransient, err)
	}

	// legacy data may predate the index: collapse duplicates for reads by
	// preferring the most recently active row, and backfill the index so
	// writes keep targeting the canonical thread.
	if th, ok, err := s.scanDirect(tenant, userA, userB); err != nil {
		return models.Thread{}, err
	} else if ok {
		if err := store.Set(pairKey, []byte(th.ID)); err != nil {
			return models.Thread{}, fmt.Errorf("backfill direct index: %w: %v", models.ErrTransient, err)
		}
		logger.Log.Info("direct_index_backfilled", zap.String("thread", th.ID), zap.String("pair", pairKey))
		return th, nil
	}

	now := time.Now().UTC().UnixNano()
	th := models.Thread{
		ID:             utils.GenThreadID(),
		Tenant:         tenant,
		Kind:           models.KindDirect,
		CreatedTS:      now,
		LastActivityTS: now,
	}
	wb := store.NewBatch()
	if err := store.PutThreadRecord(wb, th); err != nil {
		return models.Thread{}, err
	}
	for _, user := range []string{userA, userB} {
		p := models.Participant{Thread: th.ID, User: user, Role: roleOf(profiles, user), JoinedTS: now}
		if err := store.PutParticipant(wb, p); err != nil {
			return models.Thread{}, err
		}
		if err := wb.Set([]byte(store.UserThreadKey(tenant, user, th.ID)), []byte{1}, nil); err != nil {
			return models.Thread{}, err
		}
	}
	if err := wb.Set([]byte(pairKey), []byte(th.ID), nil); err != nil {
		return models.Thread{}, err
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		return models.Thread{}, fmt.Errorf("create direct thread: %w: %v", models.ErrTransient, err)
	}
	logger.Log.Info("direct_thread_created",
		zap.String("thread", th.ID), zap.String("tenant", tenant),
		zap.String("user_a", userA), zap.String("user_b", userB))
	return th, nil
}

// CreateGroup creates a non-direct thread founded by founder, who becomes
// its first admin.
func (s *Store) CreateGroup(ctx context.Context, tenant string, kind models.ThreadKind, founder string, participants []string, opts GroupOptions) (models.Thread, error) {
	if !kind.Valid() || kind == models.KindDirect {
		return models.Thread{}, fmt.Errorf("group kind %q: %w", kind, models.ErrInvalidReference)
	}
	members := append([]string{founder}, participants...)
	members = dedupe(members)
	profiles, err := s.requireMembers(ctx, tenant, members)
	if err != nil {
		return models.Thread{}, err
	}

	now := time.Now().UTC().UnixNano()
	th := models.Thread{
		ID:             utils.GenThreadID(),
		Tenant:         tenant,
		Kind:           kind,
		Subject:        opts.Subject,
		AllowReplies:   opts.AllowReplies,
		CreatedTS:      now,
		LastActivityTS: now,
	}
	wb := store.NewBatch()
	if err := store.PutThreadRecord(wb, th); err != nil {
		return models.Thread{}, err
	}
	for _, user := range members {
		p := models.Participant{
			Thread:   th.ID,
			User:     user,
			Role:     roleOf(profiles, user),
			IsAdmin:  user == founder,
			JoinedTS: now,
		}
		if err := store.PutParticipant(wb, p); err != nil {
			return models.Thread{}, err
		}
		if err := wb.Set([]byte(store.UserThreadKey(tenant, user, th.ID)), []byte{1}, nil); err != nil {
			return models.Thread{}, err
		}
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		return models.Thread{}, fmt.Errorf("create group thread: %w: %v", models.ErrTransient, err)
	}
	logger.Log.Info("group_thread_created",
		zap.String("thread", th.ID), zap.String("kind", string(kind)),
		zap.Int("participants", len(members)))
	return th, nil
}

// ListForUser returns the user's threads ordered by recent activity, each
// annotated with their unread count and a preview of the latest message.
func (s *Store) ListForUser(ctx context.Context, tenant, user string) ([]models.ThreadSummary, error) {
	if _, err := s.requireMembers(ctx, tenant, []string{user}); err != nil {
		return nil, err
	}
	var out []models.ThreadSummary
	err := store.ScanPrefix(store.UserThreadPrefix(tenant, user), func(key string, _ []byte) (bool, error) {
		threadID := key[len(store.UserThreadPrefix(tenant, user)):]
		th, terr := store.GetThreadRecord(threadID)
		if terr != nil {
			logger.Log.Warn("thread_index_dangling", zap.String("thread", threadID), zap.Error(terr))
			return true, nil
		}
		if th.Archived {
			return true, nil
		}
		sum := models.ThreadSummary{Thread: th}
		if n, uerr := delivery.UnreadCount(threadID, user); uerr == nil {
			sum.UnreadCount = n
		} else {
			logger.Log.Warn("unread_count_failed",
				zap.String("thread", threadID), zap.String("user", user), zap.Error(uerr))
		}
		if last, ok, lerr := store.LastMessage(threadID); lerr == nil && ok {
			m := last
			sum.LastMessage = &m
			if m.Deleted {
				sum.Preview = "[deleted]"
			} else {
				sum.Preview = m.Body.Excerpt(80)
			}
		}
		out = append(out, sum)
		return true, nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Thread.LastActivityTS > out[j].Thread.LastActivityTS
	})
	return out, nil
}

// Get returns a thread the user participates in.
func (s *Store) Get(threadID, user string) (models.Thread, error) {
	th, err := store.GetThreadRecord(threadID)
	if err != nil {
		return th, err
	}
	if _, ok, err := store.GetParticipant(threadID, user); err != nil {
		return th, err
	} else if !ok {
		return th, fmt.Errorf("user %s not in thread %s: %w", user, threadID, models.ErrPermissionDenied)
	}
	return th, nil
}

// scanDirect looks for existing direct threads shared by the pair, preferring
// the most recently active when historic duplicates exist.
func (s *Store) scanDirect(tenant, userA, userB string) (models.Thread, bool, error) {
	var best models.Thread
	found := false
	err := store.ScanPrefix(store.UserThreadPrefix(tenant, userA), func(key string, _ []byte) (bool, error) {
		threadID := key[len(store.UserThreadPrefix(tenant, userA)):]
		th, terr := store.GetThreadRecord(threadID)
		if terr != nil || th.Kind != models.KindDirect || th.Archived {
			return true, nil
		}
		if _, ok, perr := store.GetParticipant(threadID, userB); perr != nil || !ok {
			return true, nil
		}
		if !found || th.LastActivityTS > best.LastActivityTS {
			best = th
			found = true
		}
		return true, nil
	})
	return best, found, err
}

// requireMembers resolves ids through the directory and fails with
// PermissionDenied when any id is unknown to the tenant.
func (s *Store) requireMembers(ctx context.Context, tenant string, ids []string) (map[string]directory.Profile, error) {
	profiles, err := s.dir.Lookup(ctx, tenant, ids)
	if err != nil {
		return nil, fmt.Errorf("directory: %w: %v", models.ErrTransient, err)
	}
	byID := make(map[string]directory.Profile, len(profiles))
	for _, p := range profiles {
		byID[p.ID] = p
	}
	for _, id := range ids {
		if _, ok := byID[id]; !ok {
			return nil, fmt.Errorf("user %s outside tenant %s: %w", id, tenant, models.ErrPermissionDenied)
		}
	}
	return byID, nil
}

func roleOf(profiles map[string]directory.Profile, id string) string {
	if p, ok := profiles[id]; ok {
		return p.Role
	}
	return ""
}

func dedupe(ids []string) []string {
	seen := map[string]struct{}{}
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

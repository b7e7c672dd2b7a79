// Package reactions maintains the (message, user, emoji) multiset and its
// derived per-emoji summaries. Toggle is the only mutation, which makes
// duplicate-reaction states unrepresentable.
package reactions

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"msgsync/pkg/directory"
	"msgsync/pkg/fanout"
	"msgsync/pkg/logger"
	"msgsync/pkg/models"
	"msgsync/pkg/store"
)

// Index is the reaction service. The directory cache resolves reactor ids
// for "who reacted" disclosure without hammering the directory.
type Index struct {
	dir *directory.Cache
}

// NewIndex builds an Index.
func NewIndex(dir *directory.Cache) *Index {
	return &Index{dir: dir}
}

// ToggleResult reports the outcome of a toggle and the fresh summaries.
type ToggleResult struct {
	Added     bool                     `json:"added"`
	Summaries []models.ReactionSummary `json:"summaries"`
}

// Toggle adds the (message, user, emoji) tuple if absent and removes it if
// present. Toggling twice is its own inverse.
func (ix *Index) Toggle(ctx context.Context, msgID, user, emoji string) (ToggleResult, error) {
	if emoji == "" {
		return ToggleResult{}, fmt.Errorf("empty emoji: %w", models.ErrInvalidContent)
	}
	m, err := store.GetLatestMessage(msgID)
	if err != nil {
		return ToggleResult{}, err
	}
	if _, ok, perr := store.GetParticipant(m.Thread, user); perr != nil {
		return ToggleResult{}, fmt.Errorf("%w: %v", models.ErrTransient, perr)
	} else if !ok {
		return ToggleResult{}, fmt.Errorf("user %s not in thread %s: %w", user, m.Thread, models.ErrPermissionDenied)
	}

	unlock := store.LockThread(m.Thread)
	defer unlock()

	list, err := store.GetReactionList(msgID)
	if err != nil {
		return ToggleResult{}, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}

	now := time.Now().UTC().UnixNano()
	added := true
	next := list[:0]
	for _, r := range list {
		if r.User == user && r.Emoji == emoji {
			added = false
			continue
		}
		next = append(next, r)
	}
	if added {
		next = append(next, models.Reaction{Message: msgID, User: user, Emoji: emoji, CreatedTS: now})
	}

	wb := store.NewBatch()
	if err := store.PutReactionList(wb, msgID, next); err != nil {
		return ToggleResult{}, err
	}
	summaries := summarize(next)
	evt := models.Event{
		Kind:      models.EventReactionChanged,
		Thread:    m.Thread,
		Message:   msgID,
		Actor:     user,
		TS:        now,
		Reactions: summaries,
	}
	if err := store.AppendEvent(wb, &evt); err != nil {
		return ToggleResult{}, err
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		return ToggleResult{}, fmt.Errorf("toggle reaction: %w: %v", models.ErrTransient, err)
	}

	outcome := "removed"
	if added {
		outcome = "added"
	}
	store.ReactionTogglesTotal.WithLabelValues(outcome).Inc()
	fanout.Publish(evt)
	logger.Log.Debug("reaction_toggled",
		zap.String("msg", msgID), zap.String("user", user),
		zap.String("emoji", emoji), zap.String("outcome", outcome))
	return ToggleResult{Added: added, Summaries: summaries}, nil
}

// Summarize returns the per-emoji groups for a message, ordered by
// first-reaction time so the UI row order is stable as counts change.
func (ix *Index) Summarize(ctx context.Context, msgID string) ([]models.ReactionSummary, error) {
	if _, err := store.GetLatestMessage(msgID); err != nil {
		return nil, err
	}
	list, err := store.GetReactionList(msgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	return summarize(list), nil
}

// Who resolves the display profiles of everyone holding the given emoji on
// the message, in first-reaction order.
func (ix *Index) Who(ctx context.Context, msgID, emoji string) ([]directory.Profile, error) {
	m, err := store.GetLatestMessage(msgID)
	if err != nil {
		return nil, err
	}
	th, err := store.GetThreadRecord(m.Thread)
	if err != nil {
		return nil, err
	}
	list, err := store.GetReactionList(msgID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	var ids []string
	for _, r := range list {
		if r.Emoji == emoji {
			ids = append(ids, r.User)
		}
	}
	if len(ids) == 0 {
		return nil, nil
	}
	profiles, err := ix.dir.Lookup(ctx, th.Tenant, ids)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	return profiles, nil
}

func summarize(list []models.Reaction) []models.ReactionSummary {
	byEmoji := map[string]*models.ReactionSummary{}
	var order []string
	for _, r := range list {
		s, ok := byEmoji[r.Emoji]
		if !ok {
			s = &models.ReactionSummary{Emoji: r.Emoji, FirstTS: r.CreatedTS}
			byEmoji[r.Emoji] = s
			order = append(order, r.Emoji)
		}
		if r.CreatedTS < s.FirstTS {
			s.FirstTS = r.CreatedTS
		}
		s.Count++
		s.Users = append(s.Users, r.User)
	}
	out := make([]models.ReactionSummary, 0, len(order))
	for _, e := range order {
		out = append(out, *byEmoji[e])
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].FirstTS < out[j].FirstTS })
	return out
}

// Package delivery tracks the per-message, per-recipient state machine
// (pending → delivered → read) and the per-participant read watermark.
// Both legs are monotonic set unions, so concurrent marks from different
// recipients never conflict and repeating a mark is a no-op.
package delivery

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"msgsync/pkg/fanout"
	"msgsync/pkg/logger"
	"msgsync/pkg/models"
	"msgsync/pkg/store"
)

// Tracker is the delivery/read service.
type Tracker struct{}

// NewTracker builds a Tracker.
func NewTracker() *Tracker {
	return &Tracker{}
}

// MarkDelivered records delivery of all still-pending messages in the thread
// for recipient (their client became aware of the thread's content). The
// state write is authoritative; fanout trouble is retried by the fanout
// component and never surfaces here.
func (t *Tracker) MarkDelivered(ctx context.Context, threadID, recipient string) error {
	return t.mark(ctx, threadID, recipient, false)
}

// MarkRead records a read of the whole thread: every pending or delivered
// message from others becomes read, and the participant's last_read
// watermark advances. This is the only operation that changes unread counts.
func (t *Tracker) MarkRead(ctx context.Context, threadID, recipient string) error {
	return t.mark(ctx, threadID, recipient, true)
}

func (t *Tracker) mark(_ context.Context, threadID, recipient string, read bool) error {
	unlock := store.LockThread(threadID)
	defer unlock()

	if _, err := store.GetThreadRecord(threadID); err != nil {
		return err
	}
	p, ok, err := store.GetParticipant(threadID, recipient)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	if !ok {
		return fmt.Errorf("user %s not in thread %s: %w", recipient, threadID, models.ErrPermissionDenied)
	}

	now := time.Now().UTC().UnixNano()
	state := "delivered"
	watermark := p.DeliveredTS
	if read {
		state = "read"
		// a read sweep must also cover messages delivered earlier but not
		// yet read, so it walks from the read watermark
		watermark = p.LastReadTS
	}

	wb := store.NewBatch()
	var touched []string
	msgs, _, err := store.ListMessages(threadID, store.MsgCursorAfterTS(watermark), 0)
	if err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	for _, m := range msgs {
		if m.Sender == recipient {
			continue
		}
		d, derr := store.GetDelivery(threadID, m.ID)
		if derr != nil {
			return fmt.Errorf("%w: %v", models.ErrTransient, derr)
		}
		var changed bool
		if read {
			changed = d.MarkRead(recipient, now)
		} else {
			changed = d.MarkDelivered(recipient, now)
		}
		if !changed {
			continue
		}
		if err := store.PutDelivery(wb, d); err != nil {
			return err
		}
		touched = append(touched, m.ID)
	}

	if read {
		p.LastReadTS = now
	}
	p.DeliveredTS = now
	if err := store.PutParticipant(wb, p); err != nil {
		return err
	}

	var evt models.Event
	if len(touched) > 0 {
		evt = models.Event{
			Kind:       models.EventDeliveryChanged,
			Thread:     threadID,
			Actor:      recipient,
			Recipients: []string{recipient},
			State:      state,
			Messages:   touched,
			TS:         now,
		}
		if err := store.AppendEvent(wb, &evt); err != nil {
			return err
		}
	}

	if err := store.ApplyBatch(wb, true); err != nil {
		return fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	store.DeliveryMarksTotal.WithLabelValues(state).Add(float64(len(touched)))
	if len(touched) > 0 {
		fanout.Publish(evt)
	}
	logger.Log.Debug("delivery_marked",
		zap.String("thread", threadID), zap.String("recipient", recipient),
		zap.String("state", state), zap.Int("messages", len(touched)))
	return nil
}

// UnreadCount computes the unread badge for (thread, user): messages newer
// than the user's read watermark, excluding their own and soft-deleted rows.
// Always computed, never stored, so it cannot drift.
func UnreadCount(threadID, user string) (int, error) {
	p, ok, err := store.GetParticipant(threadID, user)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	if !ok {
		return 0, fmt.Errorf("user %s not in thread %s: %w", user, threadID, models.ErrPermissionDenied)
	}
	msgs, _, err := store.ListMessages(threadID, store.MsgCursorAfterTS(p.LastReadTS), 0)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	n := 0
	for _, m := range msgs {
		if m.Sender == user || m.Deleted {
			continue
		}
		n++
	}
	return n, nil
}

// State returns the delivery record for a message (pending recipients are
// simply absent from the maps).
func (t *Tracker) State(threadID, msgID string) (models.DeliveryState, error) {
	if _, err := store.GetLatestMessage(msgID); err != nil {
		return models.DeliveryState{}, err
	}
	return store.GetDelivery(threadID, msgID)
}

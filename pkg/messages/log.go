// Package messages owns the append-only ordered message log per thread:
// append, edit, soft delete, and cursor-based listing. Rows are totally
// ordered by (created_ts, insertion seq) so clients never render a thread
// out of order, even under clock skew between senders.
package messages

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"msgsync/pkg/fanout"
	"msgsync/pkg/logger"
	"msgsync/pkg/models"
	"msgsync/pkg/store"
	"msgsync/pkg/utils"
)

const replyExcerptRunes = 120

// Log is the message-log service.
type Log struct{}

// NewLog builds a Log.
func NewLog() *Log {
	return &Log{}
}

// Append validates posting rights and references, assigns the (ts, seq)
// position, and commits the row, the thread activity bump, the sender's own
// read watermark, and the fanout event in one batch. The sender has
// implicitly read their own message, so their watermark advances with it.
func (l *Log) Append(ctx context.Context, threadID, sender string, body models.Content, replyTo, forwardedFrom string) (models.Message, error) {
	if err := body.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", models.ErrInvalidContent, err)
	}

	unlock := store.LockThread(threadID)
	defer unlock()

	th, err := store.GetThreadRecord(threadID)
	if err != nil {
		return models.Message{}, err
	}
	p, ok, err := store.GetParticipant(threadID, sender)
	if err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", models.ErrTransient, err)
	}
	if !ok {
		return models.Message{}, fmt.Errorf("sender %s not in thread %s: %w", sender, threadID, models.ErrPermissionDenied)
	}
	if !p.CanPost(th) {
		return models.Message{}, fmt.Errorf("sender %s in thread %s: %w", sender, threadID, models.ErrThreadReadOnly)
	}

	var snapshot *models.ReplySnapshot
	if replyTo != "" {
		target, terr := store.GetLatestMessage(replyTo)
		if terr != nil || target.Thread != threadID {
			return models.Message{}, fmt.Errorf("reply_to %s: %w", replyTo, models.ErrInvalidReply)
		}
		excerpt := target.Body.Excerpt(replyExcerptRunes)
		if target.Deleted {
			excerpt = "[deleted]"
		}
		snapshot = &models.ReplySnapshot{Sender: target.Sender, Excerpt: excerpt}
	}
	if forwardedFrom != "" {
		src, serr := store.GetLatestMessage(forwardedFrom)
		if serr != nil {
			return models.Message{}, fmt.Errorf("forwarded_from %s: %w", forwardedFrom, models.ErrInvalidReference)
		}
		if _, member, merr := store.GetParticipant(src.Thread, sender); merr != nil || !member {
			return models.Message{}, fmt.Errorf("forward source %s: %w", forwardedFrom, models.ErrPermissionDenied)
		}
	}

	now := time.Now().UTC().UnixNano()
	m := models.Message{
		ID:            utils.GenID(),
		Thread:        threadID,
		Sender:        sender,
		Body:          body,
		CreatedTS:     now,
		Seq:           store.NextMsgSeq(),
		ReplyTo:       replyTo,
		ReplySnapshot: snapshot,
		ForwardedFrom: forwardedFrom,
	}

	wb := store.NewBatch()
	if err := store.PutMessage(wb, m, m.CreatedTS, m.Seq); err != nil {
		return models.Message{}, err
	}
	th.LastActivityTS = now
	if err := store.PutThreadRecord(wb, th); err != nil {
		return models.Message{}, err
	}
	p.LastReadTS = now
	p.DeliveredTS = now
	if err := store.PutParticipant(wb, p); err != nil {
		return models.Message{}, err
	}

	evt := models.Event{
		Kind:       models.EventMessageAppended,
		Thread:     threadID,
		Message:    m.ID,
		Actor:      sender,
		Recipients: l.otherParticipants(threadID, sender),
		TS:         now,
		Msg:        &m,
	}
	if err := store.AppendEvent(wb, &evt); err != nil {
		return models.Message{}, err
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		return models.Message{}, fmt.Errorf("append: %w: %v", models.ErrTransient, err)
	}

	store.AppendsTotal.Inc()
	fanout.Publish(evt)
	logger.Log.Info("message_appended",
		zap.String("thread", threadID), zap.String("msg", m.ID), zap.String("sender", sender))
	return m, nil
}

// Edit replaces the body of a message. Only the original sender may edit;
// the row keeps its (ts, seq) position and the previous body stays in the
// version history.
func (l *Log) Edit(ctx context.Context, msgID, editor string, body models.Content) (models.Message, error) {
	if err := body.Validate(); err != nil {
		return models.Message{}, fmt.Errorf("%w: %v", models.ErrInvalidContent, err)
	}
	probe, err := store.GetLatestMessage(msgID)
	if err != nil {
		return models.Message{}, err
	}

	unlock := store.LockThread(probe.Thread)
	defer unlock()

	m, err := store.GetLatestMessage(msgID)
	if err != nil {
		return models.Message{}, err
	}
	if m.Deleted {
		return models.Message{}, fmt.Errorf("message %s deleted: %w", msgID, models.ErrNotFound)
	}
	if m.Sender != editor {
		return models.Message{}, fmt.Errorf("edit %s by %s: %w", msgID, editor, models.ErrNotAuthor)
	}

	now := time.Now().UTC().UnixNano()
	m.Body = body
	m.EditedTS = now

	wb := store.NewBatch()
	if err := store.PutMessage(wb, m, now, store.NextMsgSeq()); err != nil {
		return models.Message{}, err
	}
	evt := models.Event{
		Kind:    models.EventMessageEdited,
		Thread:  m.Thread,
		Message: m.ID,
		Actor:   editor,
		TS:      now,
		Msg:     &m,
	}
	if err := store.AppendEvent(wb, &evt); err != nil {
		return models.Message{}, err
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		return models.Message{}, fmt.Errorf("edit: %w: %v", models.ErrTransient, err)
	}
	fanout.Publish(evt)
	logger.Log.Info("message_edited", zap.String("thread", m.Thread), zap.String("msg", m.ID))
	return m, nil
}

// SoftDelete clears a message's content while keeping the row for ordering
// and reply/forward integrity. The tombstone is what every read path serves
// from then on; the original body is not recoverable through the API.
// Allowed for the original sender or a thread admin.
func (l *Log) SoftDelete(ctx context.Context, msgID, requester string) error {
	probe, err := store.GetLatestMessage(msgID)
	if err != nil {
		return err
	}

	unlock := store.LockThread(probe.Thread)
	defer unlock()

	m, err := store.GetLatestMessage(msgID)
	if err != nil {
		return err
	}
	if m.Deleted {
		return nil
	}
	if m.Sender != requester {
		p, ok, perr := store.GetParticipant(m.Thread, requester)
		if perr != nil {
			return fmt.Errorf("%w: %v", models.ErrTransient, perr)
		}
		if !ok || !p.IsAdmin {
			return fmt.Errorf("delete %s by %s: %w", msgID, requester, models.ErrNotAuthor)
		}
	}

	now := time.Now().UTC().UnixNano()
	m.Deleted = true
	m.DeletedTS = now
	m.Body = models.Content{}
	m.ReplySnapshot = nil

	wb := store.NewBatch()
	if err := store.PutMessage(wb, m, now, store.NextMsgSeq()); err != nil {
		return err
	}
	evt := models.Event{
		Kind:    models.EventMessageDeleted,
		Thread:  m.Thread,
		Message: m.ID,
		Actor:   requester,
		TS:      now,
	}
	if err := store.AppendEvent(wb, &evt); err != nil {
		return err
	}
	if err := store.ApplyBatch(wb, true); err != nil {
		return fmt.Errorf("soft delete: %w: %v", models.ErrTransient, err)
	}
	fanout.Publish(evt)
	logger.Log.Info("message_soft_deleted",
		zap.String("thread", m.Thread), zap.String("msg", m.ID), zap.String("by", requester))
	return nil
}

// List returns messages for the thread strictly after the cursor, in
// (created_ts, seq) order, plus the cursor to resume from. The sequence is
// finite and restartable: callers page by feeding the cursor back in.
func (l *Log) List(ctx context.Context, threadID, requester, cursor string, limit int) ([]models.Message, string, error) {
	if _, err := store.GetThreadRecord(threadID); err != nil {
		return nil, "", err
	}
	if _, ok, err := store.GetParticipant(threadID, requester); err != nil {
		return nil, "", fmt.Errorf("%w: %v", models.ErrTransient, err)
	} else if !ok {
		return nil, "", fmt.Errorf("user %s not in thread %s: %w", requester, threadID, models.ErrPermissionDenied)
	}
	return store.ListMessages(threadID, cursor, limit)
}

// Get returns the current version of a message, checking the requester can
// read its thread.
func (l *Log) Get(ctx context.Context, msgID, requester string) (models.Message, error) {
	m, err := store.GetLatestMessage(msgID)
	if err != nil {
		return m, err
	}
	if _, ok, err := store.GetParticipant(m.Thread, requester); err != nil {
		return m, fmt.Errorf("%w: %v", models.ErrTransient, err)
	} else if !ok {
		return m, fmt.Errorf("user %s not in thread %s: %w", requester, m.Thread, models.ErrPermissionDenied)
	}
	return m, nil
}

// otherParticipants lists everyone in the thread except the actor; used for
// push-notification recipients on append.
func (l *Log) otherParticipants(threadID, actor string) []string {
	parts, err := store.ListParticipants(threadID)
	if err != nil {
		logger.Log.Warn("participants_list_failed", zap.String("thread", threadID), zap.Error(err))
		return nil
	}
	var out []string
	for _, p := range parts {
		if p.User != actor {
			out = append(out, p.User)
		}
	}
	return out
}

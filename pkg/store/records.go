package store

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cockroachdb/pebble"

	"msgsync/pkg/models"
)

// Typed accessors over the raw key/value layout. Read helpers map a missing
// key to models.ErrNotFound so services never see pebble errors.

// GetThreadRecord loads a thread by id.
func GetThreadRecord(threadID string) (models.Thread, error) {
	var th models.Thread
	v, err := Get(ThreadKey(threadID))
	if err != nil {
		if IsNotFound(err) {
			return th, fmt.Errorf("thread %s: %w", threadID, models.ErrNotFound)
		}
		return th, fmt.Errorf("load thread %s: %w", threadID, err)
	}
	if err := json.Unmarshal(v, &th); err != nil {
		return th, fmt.Errorf("decode thread %s: %w", threadID, err)
	}
	return th, nil
}

// PutThreadRecord stages a thread row in wb.
func PutThreadRecord(wb *pebble.Batch, th models.Thread) error {
	b, err := json.Marshal(th)
	if err != nil {
		return err
	}
	return wb.Set([]byte(ThreadKey(th.ID)), b, nil)
}

// ScanThreads walks every thread record. fn returns false to stop early.
// Used by the maintenance sweeper; request paths go through the per-user
// membership index instead.
func ScanThreads(fn func(models.Thread) (bool, error)) error {
	return ScanPrefix("thread:", func(key string, value []byte) (bool, error) {
		if !strings.HasSuffix(key, ":meta") {
			return true, nil
		}
		var th models.Thread
		if err := json.Unmarshal(value, &th); err != nil {
			return false, err
		}
		return fn(th)
	})
}

// GetParticipant loads a participant row; ok is false when the user is not a
// member of the thread.
func GetParticipant(threadID, user string) (models.Participant, bool, error) {
	var p models.Participant
	v, err := Get(ParticipantKey(threadID, user))
	if err != nil {
		if IsNotFound(err) {
			return p, false, nil
		}
		return p, false, fmt.Errorf("load participant: %w", err)
	}
	if err := json.Unmarshal(v, &p); err != nil {
		return p, false, fmt.Errorf("decode participant: %w", err)
	}
	return p, true, nil
}

// PutParticipant stages a participant row in wb.
func PutParticipant(wb *pebble.Batch, p models.Participant) error {
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	return wb.Set([]byte(ParticipantKey(p.Thread, p.User)), b, nil)
}

// ListParticipants returns all membership rows for a thread.
func ListParticipants(threadID string) ([]models.Participant, error) {
	var out []models.Participant
	err := ScanPrefix(ParticipantPrefix(threadID), func(key string, value []byte) (bool, error) {
		var p models.Participant
		if err := json.Unmarshal(value, &p); err != nil {
			return false, err
		}
		out = append(out, p)
		return true, nil
	})
	return out, err
}

// PutMessage stages the message row plus its by-id latest pointer and a
// version entry in wb. The row key is fixed by (CreatedTS, Seq) so edits
// overwrite in place and the message keeps its ordering position; verTS and
// verSeq key the version entry, distinct per write, preserving edit history.
func PutMessage(wb *pebble.Batch, m models.Message, verTS int64, verSeq uint64) error {
	b, err := json.Marshal(m)
	if err != nil {
		return err
	}
	if err := wb.Set([]byte(MsgKey(m.Thread, m.CreatedTS, m.Seq)), b, nil); err != nil {
		return err
	}
	if err := wb.Set([]byte(LatestMsgKey(m.ID)), b, nil); err != nil {
		return err
	}
	return wb.Set([]byte(VersionKey(m.ID, verTS, verSeq)), b, nil)
}

// ListMessageVersions returns all stored versions of a message in write
// order.
func ListMessageVersions(msgID string) ([]models.Message, error) {
	var out []models.Message
	err := ScanPrefix("version:msg:"+msgID+":", func(key string, value []byte) (bool, error) {
		var m models.Message
		if err := json.Unmarshal(value, &m); err != nil {
			return false, err
		}
		out = append(out, m)
		return true, nil
	})
	return out, err
}

// GetLatestMessage returns the current version of a message by id.
func GetLatestMessage(msgID string) (models.Message, error) {
	var m models.Message
	v, err := Get(LatestMsgKey(msgID))
	if err != nil {
		if IsNotFound(err) {
			return m, fmt.Errorf("message %s: %w", msgID, models.ErrNotFound)
		}
		return m, fmt.Errorf("load message %s: %w", msgID, err)
	}
	if err := json.Unmarshal(v, &m); err != nil {
		return m, fmt.Errorf("decode message %s: %w", msgID, err)
	}
	return m, nil
}

// ListMessages returns up to limit messages for a thread strictly after the
// cursor ("<ts>-<seq>"; empty starts at the beginning), in (ts, seq) order,
// plus the cursor of the last returned row. limit <= 0 means no limit.
func ListMessages(threadID, cursor string, limit int) ([]models.Message, string, error) {
	prefix := MsgPrefix(threadID)
	start := ""
	if cursor != "" {
		start = prefix + cursor
	}
	var out []models.Message
	next := cursor
	err := ScanRange(prefix, start, func(key string, value []byte) (bool, error) {
		if cursor != "" && strings.TrimPrefix(key, prefix) <= cursor {
			return true, nil
		}
		var m models.Message
		if err := json.Unmarshal(value, &m); err != nil {
			return false, err
		}
		out = append(out, m)
		next = strings.TrimPrefix(key, prefix)
		if limit > 0 && len(out) >= limit {
			return false, nil
		}
		return true, nil
	})
	return out, next, err
}

// LastMessage returns the newest message in a thread, or ok=false when the
// thread is empty.
func LastMessage(threadID string) (models.Message, bool, error) {
	var m models.Message
	_, v, err := LastKey(MsgPrefix(threadID))
	if err != nil || v == nil {
		return m, false, err
	}
	if err := json.Unmarshal(v, &m); err != nil {
		return m, false, err
	}
	return m, true, nil
}

// GetDelivery loads the delivery record for a message, returning a fresh
// empty record when none exists yet (pending is implicit).
func GetDelivery(threadID, msgID string) (models.DeliveryState, error) {
	d := models.DeliveryState{Message: msgID, Thread: threadID}
	v, err := Get(DeliveryKey(threadID, msgID))
	if err != nil {
		if IsNotFound(err) {
			return d, nil
		}
		return d, fmt.Errorf("load delivery: %w", err)
	}
	if err := json.Unmarshal(v, &d); err != nil {
		return d, fmt.Errorf("decode delivery: %w", err)
	}
	return d, nil
}

// PutDelivery stages the delivery record in wb.
func PutDelivery(wb *pebble.Batch, d models.DeliveryState) error {
	b, err := json.Marshal(d)
	if err != nil {
		return err
	}
	return wb.Set([]byte(DeliveryKey(d.Thread, d.Message)), b, nil)
}

// GetReactionList loads the reaction tuples for a message in creation order.
func GetReactionList(msgID string) ([]models.Reaction, error) {
	v, err := Get(ReactionKey(msgID))
	if err != nil {
		if IsNotFound(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("load reactions: %w", err)
	}
	var out []models.Reaction
	if err := json.Unmarshal(v, &out); err != nil {
		return nil, fmt.Errorf("decode reactions: %w", err)
	}
	return out, nil
}

// PutReactionList stages the reaction tuples for a message in wb.
func PutReactionList(wb *pebble.Batch, msgID string, list []models.Reaction) error {
	b, err := json.Marshal(list)
	if err != nil {
		return err
	}
	return wb.Set([]byte(ReactionKey(msgID)), b, nil)
}

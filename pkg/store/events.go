package store

import (
	"encoding/json"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"

	"msgsync/pkg/models"
)

// Per-thread event sequence allocation. Sequences are assigned while the
// caller holds the thread lock and are written in the same batch as the
// state change, so subscribers observe commit order. Gaps (from failed
// batches) are harmless; cursors only compare.
var (
	eventSeqMu sync.Mutex
	eventSeqs  map[string]uint64
)

func resetEventSeqs() {
	eventSeqMu.Lock()
	eventSeqs = map[string]uint64{}
	eventSeqMu.Unlock()
}

func nextEventSeq(threadID string) (uint64, error) {
	eventSeqMu.Lock()
	defer eventSeqMu.Unlock()
	if s, ok := eventSeqs[threadID]; ok {
		eventSeqs[threadID] = s + 1
		return s + 1, nil
	}
	// lazy init: find the last committed event for the thread
	var last uint64
	k, _, err := LastKey(EventPrefix(threadID))
	if err != nil {
		return 0, err
	}
	if k != "" {
		if seq, perr := ParseEventKey(k); perr == nil {
			last = seq
		}
	}
	eventSeqs[threadID] = last + 1
	return last + 1, nil
}

// ParseEventKey extracts the sequence number from an event key.
func ParseEventKey(key string) (uint64, error) {
	idx := strings.LastIndex(key, ":")
	if idx < 0 {
		return 0, strconv.ErrSyntax
	}
	return strconv.ParseUint(key[idx+1:], 10, 64)
}

// AppendEvent assigns the next per-thread sequence to evt and stages it in
// wb. The caller must hold the thread lock from allocation through batch
// apply so no later event can commit first.
func AppendEvent(wb *pebble.Batch, evt *models.Event) error {
	seq, err := nextEventSeq(evt.Thread)
	if err != nil {
		return err
	}
	evt.Seq = seq
	if evt.TS == 0 {
		evt.TS = time.Now().UTC().UnixNano()
	}
	b, err := json.Marshal(evt)
	if err != nil {
		return err
	}
	return wb.Set([]byte(EventKey(evt.Thread, seq)), b, nil)
}

// ListEvents returns up to limit committed events for a thread with
// Seq > since, in ascending order. limit <= 0 means no limit.
func ListEvents(threadID string, since uint64, limit int) ([]models.Event, error) {
	var out []models.Event
	start := ""
	if since > 0 {
		// first key strictly after the cursor
		start = EventKey(threadID, since+1)
	}
	err := ScanRange(EventPrefix(threadID), start, func(key string, value []byte) (bool, error) {
		var evt models.Event
		if err := json.Unmarshal(value, &evt); err != nil {
			return false, err
		}
		if evt.Seq <= since {
			return true, nil
		}
		out = append(out, evt)
		if limit > 0 && len(out) >= limit {
			return false, nil
		}
		return true, nil
	})
	return out, err
}

// PruneEvents deletes event-log entries for a thread older than cutoff (ns),
// up to batchSize per call. Returns the number pruned.
func PruneEvents(threadID string, cutoff int64, batchSize int) (int, error) {
	wb := NewBatch()
	n := 0
	err := ScanPrefix(EventPrefix(threadID), func(key string, value []byte) (bool, error) {
		var evt models.Event
		if err := json.Unmarshal(value, &evt); err != nil {
			return false, err
		}
		if evt.TS >= cutoff {
			return false, nil
		}
		if err := wb.Delete([]byte(key), nil); err != nil {
			return false, err
		}
		n++
		return batchSize <= 0 || n < batchSize, nil
	})
	if err != nil {
		return 0, err
	}
	if n == 0 {
		return 0, nil
	}
	if err := ApplyBatch(wb, true); err != nil {
		return 0, err
	}
	return n, nil
}

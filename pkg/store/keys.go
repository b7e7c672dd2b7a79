package store

import (
	"fmt"
	"strings"
)

// Key layout. Message keys embed a zero-padded (timestamp, sequence) pair so
// a prefix scan yields messages in total order; the same pair doubles as the
// listing cursor.
//
//	thread:<threadID>:meta                     thread record
//	thread:<threadID>:part:<user>              participant record
//	thread:<threadID>:msg:<ts>-<seq>           message row (append-only)
//	thread:<threadID>:dlv:<msgID>              delivery state record
//	thread:<threadID>:evt:<seq>                fanout event log
//	latest:msg:<msgID>                         latest message copy by id
//	version:msg:<msgID>:<ts>-<seq>             message edit history
//	react:msg:<msgID>                          reaction tuples for a message
//	dm:<tenant>:<userLo>|<userHi>              direct-pair uniqueness index
//	user:<tenant>:<user>:thread:<threadID>     per-user thread membership index

func ThreadKey(threadID string) string {
	return "thread:" + threadID + ":meta"
}

func ParticipantKey(threadID, user string) string {
	return "thread:" + threadID + ":part:" + user
}

func ParticipantPrefix(threadID string) string {
	return "thread:" + threadID + ":part:"
}

func MsgKey(threadID string, ts int64, seq uint64) string {
	return fmt.Sprintf("thread:%s:msg:%020d-%020d", threadID, ts, seq)
}

func MsgPrefix(threadID string) string {
	return "thread:" + threadID + ":msg:"
}

// MsgCursor renders the sortable (ts, seq) cursor component of a message key.
// Both fields are padded to 20 digits so lexical order matches numeric order
// across the full uint64 range.
func MsgCursor(ts int64, seq uint64) string {
	return fmt.Sprintf("%020d-%020d", ts, seq)
}

// MsgCursorAfterTS returns a cursor positioned after every message with
// CreatedTS <= ts, for strictly-greater watermark scans. Zero means "from
// the beginning". The all-nines seq sentinel sorts after any real seq.
func MsgCursorAfterTS(ts int64) string {
	if ts <= 0 {
		return ""
	}
	return fmt.Sprintf("%020d-", ts) + strings.Repeat("9", 20)
}

func LatestMsgKey(msgID string) string {
	return "latest:msg:" + msgID
}

func VersionKey(msgID string, ts int64, seq uint64) string {
	return fmt.Sprintf("version:msg:%s:%020d-%020d", msgID, ts, seq)
}

func DeliveryKey(threadID, msgID string) string {
	return "thread:" + threadID + ":dlv:" + msgID
}

func ReactionKey(msgID string) string {
	return "react:msg:" + msgID
}

func EventKey(threadID string, seq uint64) string {
	return fmt.Sprintf("thread:%s:evt:%020d", threadID, seq)
}

func EventPrefix(threadID string) string {
	return "thread:" + threadID + ":evt:"
}

// DirectPairKey builds the uniqueness-constraint key for a direct thread:
// the user pair is sorted so both creation orders map to the same key.
func DirectPairKey(tenant, userA, userB string) string {
	lo, hi := userA, userB
	if strings.Compare(lo, hi) > 0 {
		lo, hi = hi, lo
	}
	return "dm:" + tenant + ":" + lo + "|" + hi
}

func UserThreadKey(tenant, user, threadID string) string {
	return "user:" + tenant + ":" + user + ":thread:" + threadID
}

func UserThreadPrefix(tenant, user string) string {
	return "user:" + tenant + ":" + user + ":thread:"
}

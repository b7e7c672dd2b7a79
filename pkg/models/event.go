package models

// EventKind enumerates the fanout event types committed to a thread's event
// log.
type EventKind string

const (
	EventMessageAppended EventKind = "message_appended"
	EventMessageEdited   EventKind = "message_edited"
	EventMessageDeleted  EventKind = "message_deleted"
	EventDeliveryChanged EventKind = "delivery_changed"
	EventReactionChanged EventKind = "reaction_changed"
)

// Event is one committed change on a thread. Seq is the per-thread cursor:
// events for a thread are delivered to every subscriber in ascending Seq
// order, and a reconnecting subscriber resumes with "events since seq".
// Events carry enough for a subscriber to reconcile without a follow-up
// read; delivery is at-least-once, so consumers must tolerate duplicates.
type Event struct {
	Seq     uint64    `json:"seq"`
	Kind    EventKind `json:"kind"`
	Thread  string    `json:"thread"`
	Message string    `json:"message,omitempty"`
	Actor   string    `json:"actor,omitempty"`
	// Recipients lists the users whose delivery/read state the event touched.
	Recipients []string `json:"recipients,omitempty"`
	// State and Messages describe delivery events: which transition fired
	// ("delivered" or "read") and the message ids it covered.
	State    string   `json:"state,omitempty"`
	Messages []string `json:"messages,omitempty"`
	TS       int64    `json:"ts"`
	// Msg is populated for message events so subscribers can render without
	// a follow-up read.
	Msg *Message `json:"msg,omitempty"`
	// Reactions is populated for reaction events with the fresh summary.
	Reactions []ReactionSummary `json:"reactions,omitempty"`
}

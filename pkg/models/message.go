package models

// Message is one entry in a thread's append-only log. Messages are totally
// ordered by (CreatedTS, Seq); Seq breaks ties when two appends land on the
// same nanosecond.
type Message struct {
	ID     string  `json:"id"`
	Thread string  `json:"thread"`
	Sender string  `json:"sender"`
	Body   Content `json:"body"`
	// CreatedTS is the server-assigned append timestamp (ns); Seq is the
	// insertion sequence used as a stable tie-break.
	CreatedTS int64  `json:"created_ts"`
	Seq       uint64 `json:"seq"`
	// ReplyTo references a message in the same thread. ReplySnapshot captures
	// the quoted author and excerpt at append time so later edits of the
	// target do not rewrite the reply's rendered quote.
	ReplyTo       string         `json:"reply_to,omitempty"`
	ReplySnapshot *ReplySnapshot `json:"reply_snapshot,omitempty"`
	// ForwardedFrom references a message in any thread the forwarder can read.
	ForwardedFrom string `json:"forwarded_from,omitempty"`
	EditedTS      int64  `json:"edited_ts,omitempty"`
	// Deleted marks a soft delete: the stored body is cleared, the row keeps
	// its ordering position and stays a valid reply/forward target.
	Deleted   bool  `json:"deleted,omitempty"`
	DeletedTS int64 `json:"deleted_ts,omitempty"`
}

// ReplySnapshot is the frozen quote of a reply target.
type ReplySnapshot struct {
	Sender  string `json:"sender"`
	Excerpt string `json:"excerpt"`
}

// DeliveryState is the per-message record of which recipients have received
// and read it. Both maps are monotonic unions keyed by user id with ns
// timestamps: entries are only ever added, never removed or rewound, which
// is what makes concurrent markers from different recipients conflict-free.
type DeliveryState struct {
	Message   string           `json:"message"`
	Thread    string           `json:"thread"`
	Delivered map[string]int64 `json:"delivered,omitempty"`
	Read      map[string]int64 `json:"read,omitempty"`
}

// MarkDelivered records delivery for user at ts. Returns true if the state
// changed; repeated marks are no-ops.
func (d *DeliveryState) MarkDelivered(user string, ts int64) bool {
	if d.Delivered == nil {
		d.Delivered = map[string]int64{}
	}
	if _, ok := d.Delivered[user]; ok {
		return false
	}
	d.Delivered[user] = ts
	return true
}

// MarkRead records a read for user at ts. Reading implies delivery, so a
// direct pending→read mark sets both legs. Returns true if the state changed.
func (d *DeliveryState) MarkRead(user string, ts int64) bool {
	changed := d.MarkDelivered(user, ts)
	if d.Read == nil {
		d.Read = map[string]int64{}
	}
	if _, ok := d.Read[user]; ok {
		return changed
	}
	d.Read[user] = ts
	return true
}

// ReadBy reports whether user has read the message.
func (d *DeliveryState) ReadBy(user string) bool {
	_, ok := d.Read[user]
	return ok
}

// DeliveredTo reports whether the message was delivered to user.
func (d *DeliveryState) DeliveredTo(user string) bool {
	_, ok := d.Delivered[user]
	return ok
}

package models

// ThreadKind classifies a conversation container.
type ThreadKind string

const (
	KindDirect       ThreadKind = "direct"
	KindClassGroup   ThreadKind = "class_group"
	KindParentGroup  ThreadKind = "parent_group"
	KindTeacherGroup ThreadKind = "teacher_group"
	KindAnnouncement ThreadKind = "announcement"
	KindCustom       ThreadKind = "custom"
	KindAssistant    ThreadKind = "assistant"
)

// Broadcast reports whether the kind is a restricted-broadcast container
// where posting defaults to admins unless replies are explicitly allowed.
func (k ThreadKind) Broadcast() bool {
	return k == KindAnnouncement
}

// Valid reports whether k is one of the known kinds.
func (k ThreadKind) Valid() bool {
	switch k {
	case KindDirect, KindClassGroup, KindParentGroup, KindTeacherGroup,
		KindAnnouncement, KindCustom, KindAssistant:
		return true
	}
	return false
}

// Thread is a conversation container and the unit of participant membership.
// Threads are never hard-deleted; Archived hides them from listings.
type Thread struct {
	ID     string     `json:"id"`
	Tenant string     `json:"tenant"`
	Kind   ThreadKind `json:"kind"`
	// Subject is the optional human title (group name, announcement subject).
	Subject string `json:"subject,omitempty"`
	// AllowReplies governs posting in broadcast kinds; ignored elsewhere.
	AllowReplies bool `json:"allow_replies,omitempty"`
	// Created/LastActivity timestamps (ns). LastActivityTS is bumped on every
	// accepted message, never by typing signals.
	CreatedTS      int64 `json:"created_ts"`
	LastActivityTS int64 `json:"last_activity_ts"`
	Archived       bool  `json:"archived,omitempty"`
	ArchivedTS     int64 `json:"archived_ts,omitempty"`
}

// Participant is a user's membership record in a thread.
type Participant struct {
	Thread  string `json:"thread"`
	User    string `json:"user"`
	Role    string `json:"role,omitempty"`
	IsAdmin bool   `json:"is_admin,omitempty"`
	// CanSend overrides posting rights when non-nil.
	CanSend *bool `json:"can_send,omitempty"`
	// LastReadTS is the read watermark: messages at or below it count as read.
	LastReadTS int64 `json:"last_read_ts"`
	// DeliveredTS is the delivered watermark used to find still-pending
	// messages cheaply; per-message state lives in DeliveryState.
	DeliveredTS int64 `json:"delivered_ts"`
	JoinedTS    int64 `json:"joined_ts"`
}

// CanPost reports whether the participant may append messages to th.
func (p Participant) CanPost(th Thread) bool {
	if p.CanSend != nil && !*p.CanSend {
		return false
	}
	if th.Kind.Broadcast() && !th.AllowReplies && !p.IsAdmin {
		return false
	}
	return true
}

// ThreadSummary is a listing entry: the thread annotated with the caller's
// unread count and a preview of the latest message.
type ThreadSummary struct {
	Thread      Thread   `json:"thread"`
	UnreadCount int      `json:"unread_count"`
	LastMessage *Message `json:"last_message,omitempty"`
	Preview     string   `json:"preview,omitempty"`
}

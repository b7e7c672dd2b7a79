package models

// Reaction is a single (message, user, emoji) tuple. A user holds at most
// one reaction per emoji per message; toggling removes it.
type Reaction struct {
	Message   string `json:"message"`
	User      string `json:"user"`
	Emoji     string `json:"emoji"`
	CreatedTS int64  `json:"created_ts"`
}

// ReactionSummary is the grouped view for one emoji on a message: count plus
// reactor ids in first-reaction order. Summaries are ordered by FirstTS so
// the UI ordering is stable as counts change.
type ReactionSummary struct {
	Emoji   string   `json:"emoji"`
	Count   int      `json:"count"`
	Users   []string `json:"users"`
	FirstTS int64    `json:"first_ts"`
}

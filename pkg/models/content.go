package models

import (
	"fmt"
	"unicode/utf8"
)

// ContentKind tags the message payload variant. Payloads are resolved into a
// typed variant once at the boundary and carried typed through the engine.
type ContentKind string

const (
	ContentText      ContentKind = "text"
	ContentMedia     ContentKind = "media"
	ContentCallEvent ContentKind = "call_event"
)

// Content is the tagged variant for a message body: exactly one of Text,
// Media or Call is populated, matching Kind.
type Content struct {
	Kind  ContentKind `json:"kind"`
	Text  string      `json:"text,omitempty"`
	Media *Media      `json:"media,omitempty"`
	Call  *CallEvent  `json:"call,omitempty"`
}

// Media describes an attachment stored by the external attachment service.
type Media struct {
	URL        string `json:"url"`
	MimeType   string `json:"mime_type,omitempty"`
	SizeBytes  int64  `json:"size_bytes,omitempty"`
	DurationMs int64  `json:"duration_ms,omitempty"`
	Caption    string `json:"caption,omitempty"`
}

// CallEvent records a voice/video call lifecycle marker rendered inline in
// the conversation.
type CallEvent struct {
	Event      string `json:"event"` // started | missed | ended | rejected
	DurationMs int64  `json:"duration_ms,omitempty"`
}

// Validate checks that exactly the variant named by Kind is present.
func (c Content) Validate() error {
	switch c.Kind {
	case ContentText:
		if c.Text == "" || c.Media != nil || c.Call != nil {
			return fmt.Errorf("text content requires text and nothing else")
		}
	case ContentMedia:
		if c.Media == nil || c.Media.URL == "" || c.Call != nil {
			return fmt.Errorf("media content requires a media descriptor")
		}
	case ContentCallEvent:
		if c.Call == nil || c.Call.Event == "" || c.Media != nil {
			return fmt.Errorf("call content requires a call descriptor")
		}
	default:
		return fmt.Errorf("unknown content kind %q", c.Kind)
	}
	return nil
}

// Excerpt returns a short display string for previews and reply quotes,
// truncated to max runes.
func (c Content) Excerpt(max int) string {
	var s string
	switch c.Kind {
	case ContentText:
		s = c.Text
	case ContentMedia:
		if c.Media != nil && c.Media.Caption != "" {
			s = c.Media.Caption
		} else {
			s = "[media]"
		}
	case ContentCallEvent:
		if c.Call != nil {
			s = "[call " + c.Call.Event + "]"
		} else {
			s = "[call]"
		}
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max]) + "…"
}

// Package conversation merges a ticket's threads, conversations and comments
// into one chronological timeline.
package conversation

import (
	"sort"
	"strings"
	"time"

	"github.com/goatkit/deskpilot/internal/desk"
)

// Source records which endpoint a message came from. Lower values win ties.
type Source int

const (
	SourceThread Source = iota
	SourceConversation
	SourceComment
)

func (s Source) String() string {
	switch s {
	case SourceThread:
		return "thread"
	case SourceConversation:
		return "conversation"
	case SourceComment:
		return "comment"
	}
	return "unknown"
}

// MarshalText renders the source name in JSON.
func (s Source) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// AuthorType is Customer or Agent.
type AuthorType string

const (
	Customer AuthorType = "customer"
	Agent    AuthorType = "agent"
)

// Visibility is Public or Internal.
type Visibility string

const (
	Public   Visibility = "public"
	Internal Visibility = "internal"
)

// Message is one entry in the unified timeline.
type Message struct {
	Source     Source     `json:"source"`
	AuthorType AuthorType `json:"author_type"`
	AuthorName string     `json:"author_name"`
	Content    string     `json:"content"`
	CreatedAt  time.Time  `json:"created_at"`
	Visibility Visibility `json:"visibility"`
	// TimeKnown is false when no timestamp could be parsed; CreatedAt is then
	// the Unix epoch.
	TimeKnown bool `json:"time_known"`
}

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.000Z0700",
	"2006-01-02T15:04:05Z0700",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

var epoch = time.Unix(0, 0).UTC()

// ParseTime resolves the first candidate that parses; empty and malformed
// values fall through to the next one. With none left it yields the Unix epoch
// and false.
func ParseTime(candidates ...string) (time.Time, bool) {
	for _, c := range candidates {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		for _, layout := range timeLayouts {
			if t, err := time.Parse(layout, c); err == nil {
				return t.UTC(), true
			}
		}
	}
	return epoch, false
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}

func authorOf(a *desk.Author, fallbackType string) (AuthorType, string) {
	typ := fallbackType
	name := ""
	if a != nil {
		if a.Type != "" {
			typ = a.Type
		}
		name = firstNonEmpty(a.Name, a.Email)
	}
	if typ == "END_USER" {
		return Customer, name
	}
	return Agent, name
}

func visibilityOf(v string) Visibility {
	if strings.EqualFold(v, "private") {
		return Internal
	}
	return Public
}

func fromThread(th desk.Thread, src Source) Message {
	at, name := authorOf(th.Author, th.AuthorType)
	ts, ok := ParseTime(th.CreatedTime, th.PostedTime)
	return Message{
		Source:     src,
		AuthorType: at,
		AuthorName: name,
		Content:    firstNonEmpty(th.Content, th.PlainText, th.RichText, th.Summary),
		CreatedAt:  ts,
		TimeKnown:  ok,
		Visibility: visibilityOf(th.Visibility),
	}
}

func fromConversation(cv desk.Conversation) Message {
	at, name := authorOf(cv.Author, cv.AuthorType)
	ts, ok := ParseTime(cv.CreatedTime, cv.PostedTime)
	return Message{
		Source:     SourceConversation,
		AuthorType: at,
		AuthorName: name,
		Content:    firstNonEmpty(cv.Content, cv.PlainText, cv.Summary),
		CreatedAt:  ts,
		TimeKnown:  ok,
		Visibility: visibilityOf(cv.Visibility),
	}
}

func fromComment(cm desk.Comment) Message {
	at, name := authorOf(cm.Writer(), "")
	ts, ok := ParseTime(cm.CommentedTime, cm.CreatedTime)
	vis := Internal
	if cm.IsPublic {
		vis = Public
	}
	return Message{
		Source:     SourceComment,
		AuthorType: at,
		AuthorName: name,
		Content:    firstNonEmpty(cm.Content, cm.Comment),
		CreatedAt:  ts,
		TimeKnown:  ok,
		Visibility: vis,
	}
}

// Unify builds the timeline. Threads are the base when present, otherwise
// conversations (with their nested replies); comments are always appended.
// The result is sorted by time, then source priority, then fetch order. It
// never drops an entry and never fails.
func Unify(threads []desk.Thread, conversations []desk.Conversation, comments []desk.Comment) []Message {
	out := make([]Message, 0, len(threads)+len(conversations)+len(comments))

	switch {
	case len(threads) > 0:
		for _, th := range threads {
			out = append(out, fromThread(th, SourceThread))
		}
	case len(conversations) > 0:
		for _, cv := range conversations {
			out = append(out, fromConversation(cv))
			for _, reply := range cv.Threads {
				out = append(out, fromThread(reply, SourceConversation))
			}
		}
	}
	for _, cm := range comments {
		out = append(out, fromComment(cm))
	}

	sort.SliceStable(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.Before(out[j].CreatedAt)
		}
		return out[i].Source < out[j].Source
	})
	return out
}

package conversation

import (
	"fmt"
	"strings"

	"github.com/goatkit/deskpilot/internal/utils"
)

// Transcript renders messages as plain text, one block per message, oldest first.
func Transcript(messages []Message) string {
	var b strings.Builder
	for i, m := range messages {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(Header(m))
		b.WriteString("\n")
		b.WriteString(utils.HTMLToText(m.Content))
	}
	return b.String()
}

// Header is the one-line label for a message, e.g.
// "[2024-01-17 10:32] Customer (Jane Doe)".
func Header(m Message) string {
	when := "unknown time"
	if m.TimeKnown {
		when = m.CreatedAt.Format("2006-01-02 15:04")
	}
	who := "Agent"
	if m.AuthorType == Customer {
		who = "Customer"
	}
	if m.AuthorName != "" {
		who += " (" + m.AuthorName + ")"
	}
	label := fmt.Sprintf("[%s] %s", when, who)
	if m.Visibility == Internal {
		label += " [internal " + m.Source.String() + "]"
	}
	return label
}

// Stats counts messages per source and author type.
type Stats struct {
	Total         int `json:"total"`
	Threads       int `json:"threads"`
	Conversations int `json:"conversations"`
	Comments      int `json:"comments"`
	Customer      int `json:"customer"`
	Agent         int `json:"agent"`
	Internal      int `json:"internal"`
}

// Summarize counts the timeline.
func Summarize(messages []Message) Stats {
	s := Stats{Total: len(messages)}
	for _, m := range messages {
		switch m.Source {
		case SourceThread:
			s.Threads++
		case SourceConversation:
			s.Conversations++
		case SourceComment:
			s.Comments++
		}
		if m.AuthorType == Customer {
			s.Customer++
		} else {
			s.Agent++
		}
		if m.Visibility == Internal {
			s.Internal++
		}
	}
	return s
}

// CustomerText concatenates the text of public customer messages, used as
// classifier input.
func CustomerText(messages []Message) string {
	var parts []string
	for _, m := range messages {
		if m.AuthorType == Customer && m.Visibility == Public {
			parts = append(parts, utils.HTMLToText(m.Content))
		}
	}
	return strings.Join(parts, "\n")
}

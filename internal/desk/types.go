package desk

import (
	"strings"

	"github.com/goatkit/deskpilot/internal/convert"
)

// Contact is the requester embedded in a ticket.
type Contact struct {
	ID        string `json:"id,omitempty"`
	FirstName string `json:"firstName,omitempty"`
	LastName  string `json:"lastName,omitempty"`
	Email     string `json:"email,omitempty"`
}

// Name joins first and last name.
func (c *Contact) Name() string {
	if c == nil {
		return ""
	}
	return strings.TrimSpace(c.FirstName + " " + c.LastName)
}

// Ticket is the subset of a helpdesk ticket deskpilot reads.
type Ticket struct {
	ID           string             `json:"id"`
	TicketNumber convert.FlexString `json:"ticketNumber"`
	Subject      string             `json:"subject"`
	Description  string             `json:"description,omitempty"`
	Status       string             `json:"status"`
	StatusType   string             `json:"statusType,omitempty"`
	Email        string             `json:"email,omitempty"`
	Contact      *Contact           `json:"contact,omitempty"`
	Priority     string             `json:"priority,omitempty"`
	Channel      string             `json:"channel,omitempty"`
	Category     string             `json:"category,omitempty"`
	AssigneeID   string             `json:"assigneeId,omitempty"`
	CreatedTime  string             `json:"createdTime,omitempty"`
	ModifiedTime string             `json:"modifiedTime,omitempty"`
	DueDate      string             `json:"dueDate,omitempty"`
	WebURL       string             `json:"webUrl,omitempty"`
}

// CustomerEmail returns the ticket email, falling back to the contact email.
func (t Ticket) CustomerEmail() string {
	if t.Email != "" {
		return t.Email
	}
	if t.Contact != nil {
		return t.Contact.Email
	}
	return ""
}

// CustomerName returns the contact's display name, or the email when unnamed.
func (t Ticket) CustomerName() string {
	if name := t.Contact.Name(); name != "" {
		return name
	}
	return t.CustomerEmail()
}

// Author identifies who wrote a thread, conversation or comment. Type is
// END_USER for customers; anything else is staff.
type Author struct {
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
	Type  string `json:"type,omitempty"`
}

// Thread is one message from the tickets/{id}/threads endpoint. Content is
// resolved from Content, PlainText, RichText, Summary in that order.
type Thread struct {
	ID          string  `json:"id"`
	Content     string  `json:"content,omitempty"`
	PlainText   string  `json:"plainText,omitempty"`
	RichText    string  `json:"richText,omitempty"`
	Summary     string  `json:"summary,omitempty"`
	CreatedTime string  `json:"createdTime,omitempty"`
	PostedTime  string  `json:"postedTime,omitempty"`
	Direction   string  `json:"direction,omitempty"`
	Channel     string  `json:"channel,omitempty"`
	Visibility  string  `json:"visibility,omitempty"`
	AuthorType  string  `json:"authorType,omitempty"`
	Author      *Author `json:"author,omitempty"`
}

// Conversation is one entry from tickets/{id}/conversations. Replies may be
// nested under Threads.
type Conversation struct {
	ID          string   `json:"id"`
	Type        string   `json:"type,omitempty"`
	Content     string   `json:"content,omitempty"`
	PlainText   string   `json:"plainText,omitempty"`
	Summary     string   `json:"summary,omitempty"`
	CreatedTime string   `json:"createdTime,omitempty"`
	PostedTime  string   `json:"postedTime,omitempty"`
	Visibility  string   `json:"visibility,omitempty"`
	AuthorType  string   `json:"authorType,omitempty"`
	Author      *Author  `json:"author,omitempty"`
	Threads     []Thread `json:"threads,omitempty"`
}

// Comment is an internal note from tickets/{id}/comments.
type Comment struct {
	ID            string  `json:"id"`
	Content       string  `json:"content,omitempty"`
	Comment       string  `json:"comment,omitempty"`
	CommentedTime string  `json:"commentedTime,omitempty"`
	CreatedTime   string  `json:"createdTime,omitempty"`
	IsPublic      bool    `json:"isPublic"`
	Commenter     *Author `json:"commenter,omitempty"`
	Author        *Author `json:"author,omitempty"`
}

// Writer returns the commenter, falling back to Author.
func (c Comment) Writer() *Author {
	if c.Commenter != nil {
		return c.Commenter
	}
	return c.Author
}

// Filter selects tickets for ListTickets.
type Filter struct {
	Status string `json:"status,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	From   int    `json:"from,omitempty"`
	SortBy string `json:"sortBy,omitempty"`
	// Force bypasses the list cache.
	Force bool `json:"-"`
}

// TicketPage is one page of tickets.
type TicketPage struct {
	Tickets []Ticket `json:"tickets"`
	From    int      `json:"from"`
	Limit   int      `json:"limit"`
	Cached  bool     `json:"cached"`
}

// TagMode selects how TagTicket changes the tag set.
type TagMode string

const (
	TagAdd     TagMode = "add"
	TagReplace TagMode = "replace"
	TagRemove  TagMode = "remove"
)

// ParseTagMode accepts add, replace or remove; empty means add.
func ParseTagMode(s string) (TagMode, bool) {
	switch TagMode(strings.ToLower(strings.TrimSpace(s))) {
	case "", TagAdd:
		return TagAdd, true
	case TagReplace:
		return TagReplace, true
	case TagRemove:
		return TagRemove, true
	}
	return "", false
}

type listEnvelope[T any] struct {
	Data []T `json:"data"`
}

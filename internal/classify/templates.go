package classify

import (
	"sort"
	"strings"

	"github.com/goatkit/deskpilot/internal/conversation"
	"github.com/goatkit/deskpilot/internal/desk"
)

// Template is a canned reply that can be suggested for a ticket.
type Template struct {
	ID       string   `mapstructure:"id" json:"id"`
	Name     string   `mapstructure:"name" json:"name"`
	Tags     []string `mapstructure:"tags" json:"tags"`
	Category string   `mapstructure:"category" json:"category,omitempty"`
	Content  string   `mapstructure:"content" json:"content"`
}

// Suggestion is a template with its relevance score.
type Suggestion struct {
	Template Template `json:"template"`
	Score    int      `json:"score"`
	Matched  []string `json:"matched"`
}

// SuggestTemplates ranks templates by how many of the result's tags they carry,
// plus one when the template category is one of the result's issues. Templates
// without any overlap are left out. limit <= 0 returns every match.
func SuggestTemplates(r Result, templates []Template, limit int) []Suggestion {
	issues := make(map[string]struct{}, len(r.Issues))
	for _, is := range r.Issues {
		issues[is] = struct{}{}
	}

	var out []Suggestion
	for _, tpl := range templates {
		var matched []string
		seen := map[string]struct{}{}
		for _, tag := range tpl.Tags {
			tag = strings.ToLower(strings.TrimSpace(tag))
			if _, dup := seen[tag]; dup {
				continue
			}
			seen[tag] = struct{}{}
			if r.HasTag(tag) {
				matched = append(matched, tag)
			}
		}
		score := len(matched)
		if _, ok := issues[strings.ToLower(tpl.Category)]; ok && tpl.Category != "" {
			score++
			matched = append(matched, strings.ToLower(tpl.Category))
		}
		if score == 0 {
			continue
		}
		sort.Strings(matched)
		out = append(out, Suggestion{Template: tpl, Score: score, Matched: matched})
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].Template.Name < out[j].Template.Name
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Analysis is the classification of one ticket plus the templates it suggests.
type Analysis struct {
	TicketID    string       `json:"ticket_id"`
	Result      Result       `json:"classification"`
	Suggestions []Suggestion `json:"suggestions"`
}

// DefaultSuggestionLimit caps Analyze's suggestions.
const DefaultSuggestionLimit = 3

// Analyze classifies a ticket and its timeline and ranks templates against it.
func Analyze(t desk.Ticket, messages []conversation.Message, templates []Template) Analysis {
	r := ClassifyTicket(t.Subject, t.Description, messages)
	s := SuggestTemplates(r, templates, DefaultSuggestionLimit)
	if s == nil {
		s = []Suggestion{}
	}
	return Analysis{TicketID: t.ID, Result: r, Suggestions: s}
}

// Package classify tags ticket text with a sentiment, issue categories and
// slugs using fixed keyword tables.
//
// Matching is case-insensitive substring containment and nothing more. Each
// category contributes at most once no matter how many of its keywords hit.
package classify

import (
	"sort"
	"strings"

	"github.com/goatkit/deskpilot/internal/conversation"
)

// Sentiment is the coarse mood of a text.
type Sentiment string

const (
	Negative Sentiment = "negative"
	Neutral  Sentiment = "neutral"
	Positive Sentiment = "positive"
)

// Result is the classifier output. Issues and Tags are sorted and unique.
type Result struct {
	Sentiment Sentiment `json:"sentiment"`
	Issues    []string  `json:"issues"`
	Tags      []string  `json:"tags"`
}

// HasTag reports whether tag is in r.Tags.
func (r Result) HasTag(tag string) bool {
	i := sort.SearchStrings(r.Tags, tag)
	return i < len(r.Tags) && r.Tags[i] == tag
}

type category struct {
	name     string
	keywords []string
}

var negativeKeywords = []string{
	"frustrated", "frustrating", "angry", "terrible", "awful", "horrible",
	"disappointed", "unacceptable", "ridiculous", "worst", "furious",
	"annoyed", "upset", "useless", "hate", "waste of",
}

var positiveKeywords = []string{
	"thank", "great", "excellent", "awesome", "appreciate", "love",
	"perfect", "wonderful", "happy", "amazing", "helpful", "pleased",
}

var issueCategories = []category{
	{"error", []string{"error", "exception", "fatal", "crash", "warning"}},
	{"functionality issue", []string{"not working", "broken", "doesn't work", "does not work", "nothing works", "stopped working", "bug"}},
	{"billing", []string{"invoice", "payment", "charged", "refund", "billing", "subscription", "receipt"}},
	{"login issue", []string{"login", "log in", "password", "sign in", "locked out", "two-factor", "2fa"}},
	{"performance", []string{"slow", "timeout", "timed out", "lag", "takes forever", "performance"}},
	{"installation", []string{"install", "setup", "set up", "activate", "activation", "upgrade"}},
	{"feature request", []string{"feature request", "would be nice", "suggestion", "could you add", "please add", "wish"}},
}

var tagCategories = []category{
	{"urgent", []string{"urgent", "asap", "immediately", "emergency", "critical"}},
	{"bug", []string{"bug", "broken", "error", "crash", "not working"}},
	{"billing", []string{"invoice", "payment", "billing", "charged", "subscription"}},
	{"refund", []string{"refund", "money back", "chargeback"}},
	{"account", []string{"account", "login", "password", "sign in"}},
	{"feature-request", []string{"feature", "suggestion", "please add", "would be nice"}},
	{"how-to", []string{"how do i", "how to", "how can i", "where can i", "tutorial"}},
	{"shipping", []string{"shipping", "delivery", "tracking", "shipment"}},
}

func countHits(text string, keywords []string) int {
	n := 0
	for _, kw := range keywords {
		if strings.Contains(text, kw) {
			n++
		}
	}
	return n
}

func matchCategories(text string, cats []category) []string {
	out := []string{}
	for _, c := range cats {
		for _, kw := range c.keywords {
			if strings.Contains(text, kw) {
				out = append(out, c.name)
				break
			}
		}
	}
	sort.Strings(out)
	return out
}

// Classify is pure: the same text always yields the same Result.
func Classify(text string) Result {
	text = strings.ToLower(text)

	neg := countHits(text, negativeKeywords)
	pos := countHits(text, positiveKeywords)
	sentiment := Neutral
	switch {
	case neg > pos:
		sentiment = Negative
	case pos > neg:
		sentiment = Positive
	}

	return Result{
		Sentiment: sentiment,
		Issues:    matchCategories(text, issueCategories),
		Tags:      matchCategories(text, tagCategories),
	}
}

// ClassifyTicket classifies the subject, description and the public customer
// messages of a ticket together.
func ClassifyTicket(subject, description string, messages []conversation.Message) Result {
	parts := []string{subject, description}
	if ct := conversation.CustomerText(messages); ct != "" {
		parts = append(parts, ct)
	}
	return Classify(strings.Join(parts, "\n"))
}

// Categories lists every issue category and tag slug the classifier can emit.
func Categories() (issues, tags []string) {
	for _, c := range issueCategories {
		issues = append(issues, c.name)
	}
	for _, c := range tagCategories {
		tags = append(tags, c.name)
	}
	return issues, tags
}

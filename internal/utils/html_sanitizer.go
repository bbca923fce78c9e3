// Package utils holds HTML helpers shared by the transcript, draft and reply paths.
package utils

import (
	"bytes"
	"html"
	"regexp"
	"strings"

	"github.com/microcosm-cc/bluemonday"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// HTMLSanitizer cleans HTML before it is sent to the helpdesk as a reply body.
type HTMLSanitizer struct {
	policy *bluemonday.Policy
}

// NewHTMLSanitizer builds a user-generated-content policy that also keeps class
// attributes, which helpdesk reply templates use for styling.
func NewHTMLSanitizer() *HTMLSanitizer {
	p := bluemonday.UGCPolicy()
	p.AllowAttrs("class").Globally()
	return &HTMLSanitizer{policy: p}
}

// Sanitize strips disallowed elements and attributes.
func (s *HTMLSanitizer) Sanitize(input string) string {
	return s.policy.Sanitize(input)
}

var (
	defaultSanitizer = NewHTMLSanitizer()
	stripPolicy      = bluemonday.StrictPolicy()

	htmlTagPattern = regexp.MustCompile(`(?i)<(p|div|span|b|i|u|strong|em|br|hr|h[1-6]|ul|ol|li|table|tr|td|th|a|blockquote|img|pre|code)(\s[^>]*)?/?>`)
	blockBreaks    = regexp.MustCompile(`(?i)<br\s*/?>|</(p|div|li|h[1-6]|tr|blockquote|pre)>`)
	blankLines     = regexp.MustCompile(`\n{3,}`)

	markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))
)

// IsHTML reports whether s contains at least one common HTML element.
func IsHTML(s string) bool {
	return htmlTagPattern.MatchString(s)
}

// StripHTML removes every tag, leaving only text. Script and style content
// is dropped entirely.
func StripHTML(s string) string {
	if s == "" {
		return ""
	}
	return html.UnescapeString(stripPolicy.Sanitize(s))
}

// HTMLToText is StripHTML with line breaks kept at block boundaries and
// surrounding whitespace trimmed.
func HTMLToText(s string) string {
	if !IsHTML(s) {
		return strings.TrimSpace(html.UnescapeString(s))
	}
	s = blockBreaks.ReplaceAllStringFunc(s, func(m string) string { return m + "\n" })
	text := StripHTML(s)
	lines := strings.Split(text, "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	return strings.TrimSpace(blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n\n"))
}

// MarkdownToHTML renders GitHub-flavoured markdown and sanitizes the result.
// Rendering failures fall back to the escaped input in a paragraph.
func MarkdownToHTML(md string) string {
	var buf bytes.Buffer
	if err := markdown.Convert([]byte(md), &buf); err != nil {
		return "<p>" + html.EscapeString(md) + "</p>"
	}
	return defaultSanitizer.Sanitize(buf.String())
}

// ReplyHTML prepares draft text for the helpdesk: HTML is sanitized, anything
// else is treated as markdown.
func ReplyHTML(content string) string {
	if IsHTML(content) {
		return defaultSanitizer.Sanitize(content)
	}
	return MarkdownToHTML(content)
}

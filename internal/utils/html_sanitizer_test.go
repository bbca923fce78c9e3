package utils

import (
	"strings"
	"testing"
)

func TestNewHTMLSanitizer(t *testing.T) {
	s := NewHTMLSanitizer()
	if s == nil {
		t.Fatal("NewHTMLSanitizer returned nil")
	}
	if s.policy == nil {
		t.Fatal("policy should not be nil")
	}
}

func TestHTMLSanitizer_Sanitize(t *testing.T) {
	s := NewHTMLSanitizer()

	tests := []struct {
		name     string
		input    string
		contains []string
		excludes []string
	}{
		{
			name:     "allows basic formatting",
			input:    "<b>bold</b> <i>italic</i> <strong>strong</strong> <em>emphasis</em>",
			contains: []string{"<b>bold</b>", "<i>italic</i>", "<strong>strong</strong>", "<em>emphasis</em>"},
		},
		{
			name:     "allows paragraphs and lists",
			input:    "<p>Paragraph</p><ul><li>Item 1</li></ul>",
			contains: []string{"<p>Paragraph</p>", "<ul>", "<li>Item 1</li>"},
		},
		{
			name:     "allows safe links",
			input:    `<a href="https://example.com">Link</a>`,
			contains: []string{`href="https://example.com"`, ">Link</a>"},
		},
		{
			name:     "allows mailto links",
			input:    `<a href="mailto:test@example.com">Email</a>`,
			contains: []string{`href="mailto:test@example.com"`},
		},
		{
			name:     "strips script tags",
			input:    `<script>alert('xss')</script>`,
			excludes: []string{"<script>", "alert"},
		},
		{
			name:     "strips onclick handlers",
			input:    `<div onclick="alert('xss')">Click me</div>`,
			excludes: []string{"onclick", "alert"},
		},
		{
			name:     "strips javascript URLs",
			input:    `<a href="javascript:alert('xss')">Link</a>`,
			excludes: []string{"javascript:"},
		},
		{
			name:     "strips iframe tags",
			input:    `<iframe src="https://evil.com"></iframe>`,
			excludes: []string{"<iframe"},
		},
		{
			name:     "keeps class attributes",
			input:    `<div class="signature"><span class="muted">Support team</span></div>`,
			contains: []string{`class="signature"`, `class="muted"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := s.Sanitize(tt.input)

			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("Sanitize(%q) = %q, should contain %q", tt.input, result, want)
				}
			}
			for _, exclude := range tt.excludes {
				if strings.Contains(result, exclude) {
					t.Errorf("Sanitize(%q) = %q, should not contain %q", tt.input, result, exclude)
				}
			}
		})
	}
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantVal bool
	}{
		{"empty string", "", false},
		{"plain text", "Hello World", false},
		{"text with angle brackets", "5 < 10 and 10 > 5", false},
		{"markdown", "**bold** and `code`", false},
		{"paragraph tag", "<p>Hello</p>", true},
		{"div with attributes", `<div class="x">Content</div>`, true},
		{"br tag", "Line 1<br>Line 2", true},
		{"self closing br", "Line 1<br/>Line 2", true},
		{"heading tag", "<h1>Title</h1>", true},
		{"link tag", `<a href="url">Link</a>`, true},
		{"case insensitive", "<P>Paragraph</P>", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsHTML(tt.input); got != tt.wantVal {
				t.Errorf("IsHTML(%q) = %v, want %v", tt.input, got, tt.wantVal)
			}
		})
	}
}

func TestMarkdownToHTML(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		contains []string
	}{
		{"converts bold", "**bold text**", []string{"<strong>bold text</strong>"}},
		{"converts italic", "*italic text*", []string{"<em>italic text</em>"}},
		{"converts heading", "# Heading 1", []string{"<h1>Heading 1</h1>"}},
		{"converts code", "`inline code`", []string{"<code>inline code</code>"}},
		{"converts link", "[Link](https://example.com)", []string{`href="https://example.com"`, ">Link</a>"}},
		{"converts unordered list", "- Item 1\n- Item 2", []string{"<ul>", "<li>Item 1</li>", "<li>Item 2</li>", "</ul>"}},
		{"converts ordered list", "1. First\n2. Second", []string{"<ol>", "<li>First</li>", "<li>Second</li>", "</ol>"}},
		{"converts paragraph", "This is a paragraph.", []string{"<p>This is a paragraph.</p>"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := MarkdownToHTML(tt.input)
			for _, want := range tt.contains {
				if !strings.Contains(result, want) {
					t.Errorf("MarkdownToHTML(%q) = %q, should contain %q", tt.input, result, want)
				}
			}
		})
	}
}

func TestStripHTML(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		wantVal string
	}{
		{"empty string", "", ""},
		{"plain text", "Hello World", "Hello World"},
		{"simple tag", "<p>Paragraph</p>", "Paragraph"},
		{"nested tags", "<div><p>Text</p></div>", "Text"},
		{"multiple tags", "<b>Bold</b> and <i>italic</i>", "Bold and italic"},
		{"link tag", `<a href="url">Link</a>`, "Link"},
		{"script tag", `<script>alert('xss')</script>`, ""},
		{"entities decoded", "<p>Tom &amp; Jerry</p>", "Tom & Jerry"},
		{"preserves text between tags", "<p>First</p><p>Second</p>", "FirstSecond"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripHTML(tt.input); got != tt.wantVal {
				t.Errorf("StripHTML(%q) = %q, want %q", tt.input, got, tt.wantVal)
			}
		})
	}
}

func TestHTMLToText(t *testing.T) {
	got := HTMLToText("<div><p>Hello,</p><p>Thanks &amp; regards<br>Support</p></div>")
	want := "Hello,\nThanks & regards\nSupport"
	if got != want {
		t.Errorf("HTMLToText = %q, want %q", got, want)
	}
	if got := HTMLToText("  plain text  "); got != "plain text" {
		t.Errorf("HTMLToText(plain) = %q", got)
	}
}

func TestReplyHTML(t *testing.T) {
	if got := ReplyHTML("Hi **there**"); !strings.Contains(got, "<strong>there</strong>") {
		t.Errorf("markdown not rendered: %q", got)
	}
	got := ReplyHTML(`<p>Hi</p><script>x()</script>`)
	if !strings.Contains(got, "<p>Hi</p>") || strings.Contains(got, "script") {
		t.Errorf("html not sanitized: %q", got)
	}
}

func BenchmarkSanitize(b *testing.B) {
	s := NewHTMLSanitizer()
	input := `<div class="container"><h1>Title</h1><p>Paragraph with <b>bold</b> and <a href="https://example.com">link</a></p><script>alert('xss')</script></div>`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		s.Sanitize(input)
	}
}

func BenchmarkStripHTML(b *testing.B) {
	input := `<div class="container"><h1>Title</h1><p>Paragraph with <b>bold</b> and <a href="https://example.com">link</a></p></div>`

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		StripHTML(input)
	}
}

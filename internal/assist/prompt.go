package assist

import (
	"fmt"
	"strings"

	"github.com/flosch/pongo2/v6"

	"github.com/goatkit/deskpilot/internal/conversation"
	"github.com/goatkit/deskpilot/internal/utils"
)

// DefaultSystemPrompt frames every LLM call.
const DefaultSystemPrompt = "You are an experienced customer support agent. Write only the reply body, " +
	"ready to send to the customer. Do not invent order numbers, prices or policies that are not in the conversation."

// DefaultPromptTemplate is the pongo2 source used when none is configured.
const DefaultPromptTemplate = `Draft a {{ response_label }} for the support ticket below.
Tone: {{ tone }}. {{ tone_guidance }}
{{ type_guidance }}
{% if instructions %}Additional instructions from the agent: {{ instructions }}
{% endif %}
Ticket #{{ ticket.number }}: {{ ticket.subject }}
Status: {{ ticket.status }}{% if ticket.priority %} | Priority: {{ ticket.priority }}{% endif %}
Customer: {{ ticket.customer }}
{% if ticket.description %}
Original request:
{{ ticket.description }}
{% endif %}
Conversation so far ({{ message_count }} messages, oldest first):
{{ transcript }}
`

var typeGuidance = map[ResponseType]string{
	ResponseReply:      "Answer the customer's latest message directly and completely.",
	ResponseFollowUp:   "Check in on the customer's issue and ask for any information still needed.",
	ResponseResolution: "Confirm the issue is resolved, summarise what was done and invite them to reopen if needed.",
	ResponseEscalation: "Explain that the issue is being escalated to a specialist team and set expectations for next steps.",
}

var toneGuidance = map[Tone]string{
	ToneProfessional: "Be courteous, clear and precise.",
	ToneFriendly:     "Be warm and conversational while staying helpful.",
	ToneEmpathetic:   "Acknowledge the customer's frustration and show understanding before solving.",
	ToneConcise:      "Keep it short: a few sentences at most.",
}

// PromptBuilder renders the generation prompt from a pongo2 template.
type PromptBuilder struct {
	tpl *pongo2.Template
}

// NewPromptBuilder compiles src, or DefaultPromptTemplate when src is blank.
// Output is plain text, so autoescaping is disabled.
func NewPromptBuilder(src string) (*PromptBuilder, error) {
	if strings.TrimSpace(src) == "" {
		src = DefaultPromptTemplate
	}
	tpl, err := pongo2.FromString("{% autoescape off %}" + src + "{% endautoescape %}")
	if err != nil {
		return nil, fmt.Errorf("assist: parse prompt template: %w", err)
	}
	return &PromptBuilder{tpl: tpl}, nil
}

// MustDefaultPromptBuilder returns a builder for the built-in template.
func MustDefaultPromptBuilder() *PromptBuilder {
	b, err := NewPromptBuilder("")
	if err != nil {
		panic(err)
	}
	return b
}

// Build renders the prompt for req.
func (b *PromptBuilder) Build(req Request) (string, error) {
	opts := req.Options.withDefaults()
	t := req.Ticket
	out, err := b.tpl.Execute(pongo2.Context{
		"ticket": map[string]any{
			"id":          t.ID,
			"number":      t.TicketNumber.String(),
			"subject":     t.Subject,
			"status":      t.Status,
			"priority":    t.Priority,
			"customer":    t.CustomerName(),
			"email":       t.CustomerEmail(),
			"description": utils.HTMLToText(t.Description),
		},
		"response_type":  string(opts.ResponseType),
		"response_label": strings.ReplaceAll(string(opts.ResponseType), "_", "-") + " email",
		"tone":           string(opts.Tone),
		"type_guidance":  typeGuidance[opts.ResponseType],
		"tone_guidance":  toneGuidance[opts.Tone],
		"instructions":   strings.TrimSpace(opts.Instructions),
		"transcript":     conversation.Transcript(req.Messages),
		"message_count":  len(req.Messages),
	})
	if err != nil {
		return "", fmt.Errorf("assist: render prompt: %w", err)
	}
	return strings.TrimSpace(out), nil
}

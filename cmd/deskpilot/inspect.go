package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goatkit/deskpilot/internal/classify"
	"github.com/goatkit/deskpilot/internal/conversation"
)

func ticketArg(raw string) (string, error) {
	id := strings.TrimPrefix(strings.TrimSpace(raw), "#")
	if id == "" || strings.Trim(id, "0123456789") != "" {
		return "", usagef("ticket id must be numeric, got %q", raw)
	}
	return id, nil
}

func (c *cli) classifyCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "classify <ticket-id>",
		Short: "Show sentiment, issues, tags and suggested templates for a ticket",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			id, err := ticketArg(a[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			t, err := rt.Desk.GetTicket(ctx, id)
			if err != nil {
				return err
			}
			msgs, err := conversation.Fetch(ctx, rt.Desk, id, rt.Logger)
			if err != nil {
				return err
			}
			an := classify.Analyze(*t, msgs, rt.Config.Templates)
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(an)
			}

			fmt.Fprintf(c.out, "Ticket #%s: %s\n", id, t.Subject)
			fmt.Fprintf(c.out, "Sentiment: %s\n", an.Result.Sentiment)
			fmt.Fprintf(c.out, "Issues:    %s\n", listOrNone(an.Result.Issues))
			fmt.Fprintf(c.out, "Tags:      %s\n", listOrNone(an.Result.Tags))
			if len(an.Suggestions) > 0 {
				fmt.Fprintln(c.out, "Suggested templates:")
				for _, s := range an.Suggestions {
					fmt.Fprintf(c.out, "  %s (%s) score %d, matched %s\n", s.Template.Name, s.Template.ID, s.Score, strings.Join(s.Matched, ", "))
				}
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func (c *cli) conversationCmd() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "conversation <ticket-id>",
		Short: "Print a ticket's unified conversation, oldest first",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			id, err := ticketArg(a[0])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			rt, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			msgs, err := conversation.Fetch(ctx, rt.Desk, id, rt.Logger)
			if err != nil {
				return err
			}
			if asJSON {
				if msgs == nil {
					msgs = []conversation.Message{}
				}
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(msgs)
			}
			if len(msgs) == 0 {
				fmt.Fprintln(c.out, "No messages.")
				return nil
			}
			st := conversation.Summarize(msgs)
			fmt.Fprintln(c.out, conversation.Transcript(msgs))
			fmt.Fprintf(c.out, "\n%d message(s): %d customer, %d agent, %d internal\n", st.Total, st.Customer, st.Agent, st.Internal)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func listOrNone(items []string) string {
	if len(items) == 0 {
		return "none"
	}
	return strings.Join(items, ", ")
}

func (c *cli) serveCmd() *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the admin API and /metrics",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			if addr == "" {
				addr = a.Config.Server.Addr
			}
			stop, err := a.StartHousekeeping(ctx, 0)
			if err != nil {
				return err
			}
			defer stop()
			return a.Server().Run(ctx, addr)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	return cmd
}

package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/goatkit/deskpilot/internal/app"
	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/conversation"
	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/export"
)

type draftFlags struct {
	responseType string
	tone         string
	instructions string
}

func (f *draftFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.responseType, "type", "reply", "draft type: reply, follow_up, resolution, escalation")
	cmd.Flags().StringVar(&f.tone, "tone", "professional", "draft tone: professional, friendly, empathetic, concise")
	cmd.Flags().StringVar(&f.instructions, "instructions", "", "extra instructions for the draft")
}

func (f *draftFlags) options() (assist.Options, error) {
	rt, err := assist.ParseResponseType(f.responseType)
	if err != nil {
		return assist.Options{}, &usageError{err: err}
	}
	tone, err := assist.ParseTone(f.tone)
	if err != nil {
		return assist.Options{}, &usageError{err: err}
	}
	return assist.Options{ResponseType: rt, Tone: tone, Instructions: f.instructions}, nil
}

func (c *cli) processCmd() *cobra.Command {
	var (
		status      string
		limit       int
		interactive bool
		autoSave    bool
		force       bool
		df          draftFlags
	)
	cmd := &cobra.Command{
		Use:   "process",
		Short: "List tickets and draft replies for them",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if interactive && autoSave {
				return usagef("--interactive and --auto-save are mutually exclusive")
			}
			if limit < 1 || limit > desk.MaxListLimit {
				return usagef("--limit must be between 1 and %d", desk.MaxListLimit)
			}
			opts, err := df.options()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.runtime(ctx)
			if err != nil {
				return err
			}

			page, err := a.Desk.ListTickets(ctx, desk.Filter{Status: status, Limit: limit, Force: force})
			if err != nil {
				return err
			}
			if len(page.Tickets) == 0 {
				fmt.Fprintln(c.out, "No tickets found.")
				return nil
			}
			if err := (export.Writer{Now: c.now}).Write(c.out, export.FormatTable, page.Tickets); err != nil {
				return err
			}

			switch {
			case autoSave:
				return c.autoDraft(cmd, a, page.Tickets, opts)
			case interactive:
				return c.interactive(cmd, a, page.Tickets, opts)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&status, "status", "Open", "ticket status filter (empty for all)")
	cmd.Flags().IntVar(&limit, "limit", 10, "number of tickets")
	cmd.Flags().BoolVar(&interactive, "interactive", false, "walk through tickets one by one")
	cmd.Flags().BoolVar(&autoSave, "auto-save", false, "generate and save a draft for every ticket")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the ticket cache")
	df.register(cmd)
	return cmd
}

// autoDraft saves a draft for every ticket. Rate limiting stops the run; other
// failures are reported per ticket.
func (c *cli) autoDraft(cmd *cobra.Command, a *app.App, tickets []desk.Ticket, opts assist.Options) error {
	saved, failed := 0, 0
	for _, t := range tickets {
		d, err := a.Drafts.Generate(cmd.Context(), t.ID, opts)
		switch {
		case errors.Is(err, desk.ErrRateLimited), errors.Is(err, assist.ErrNoProviderConfigured):
			return err
		case err != nil:
			failed++
			fmt.Fprintf(c.out, "  #%s: draft failed: %v\n", t.ID, err)
		case d.PromptOnly:
			fmt.Fprintf(c.out, "  #%s: prompt ready (paste into your AI chat):\n%s\n", t.ID, d.Content)
		default:
			saved++
			fmt.Fprintf(c.out, "  #%s: draft saved (%s)\n", t.ID, d.Provider)
		}
	}
	fmt.Fprintf(c.out, "\n%d draft(s) saved, %d failed.\n", saved, failed)
	return nil
}

func (c *cli) interactive(cmd *cobra.Command, a *app.App, tickets []desk.Ticket, opts assist.Options) error {
	ctx := cmd.Context()
	for i, t := range tickets {
		fmt.Fprintf(c.out, "\n[%d/%d] #%s %s\n", i+1, len(tickets), t.ID, t.Subject)
		fmt.Fprintf(c.out, "  Status: %s  Customer: %s  Created: %s\n",
			export.StatusLabel(t.Status), t.CustomerName(), export.Ago(t.CreatedTime, c.now()))

		switch c.choose("  Action", "generate", "view", "skip", "quit") {
		case "quit":
			return nil
		case "skip":
			continue
		case "view":
			msgs, err := conversation.Fetch(ctx, a.Desk, t.ID, a.Logger)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, conversation.Transcript(msgs))
			if !c.confirm("  Generate a draft?") {
				continue
			}
		}

		d, err := a.Drafts.Generate(ctx, t.ID, opts)
		if err != nil {
			if errors.Is(err, desk.ErrRateLimited) {
				return err
			}
			fmt.Fprintf(c.out, "  Draft failed: %v\n", err)
			continue
		}
		fmt.Fprintf(c.out, "\n%s\n\n", d.Content)
		if d.PromptOnly {
			fmt.Fprintln(c.out, "  Prompt only; paste it into your AI chat and save the answer with send-draft --edit.")
			continue
		}
		if c.confirm("  Send this reply now?") {
			if _, err := a.Drafts.Send(ctx, t.ID, ""); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "  Sent.")
		} else {
			fmt.Fprintln(c.out, "  Draft saved.")
		}
	}
	return nil
}

func (c *cli) searchCmd() *cobra.Command {
	var (
		searchType string
		limit      int
		status     string
		format     string
		output     string
		force      bool
	)
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search tickets by number, email, subject or content",
		Args:  args(cobra.MinimumNArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			query := strings.TrimSpace(strings.Join(a, " "))
			if query == "" {
				return usagef("query must not be empty")
			}
			st, err := desk.ParseSearchType(searchType)
			if err != nil {
				return &usageError{err: err}
			}
			f, err := export.ParseFormat(format)
			if err != nil {
				return &usageError{err: err}
			}
			if f.Binary() && output == "" {
				return usagef("--format %s needs --output", f)
			}

			ctx := cmd.Context()
			rt, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			res, err := rt.Desk.Search(ctx, query, st, desk.SearchOptions{Limit: limit, Status: status, Force: force})
			if err != nil {
				return err
			}
			return c.writeTickets(f, output, res)
		},
	}
	cmd.Flags().StringVar(&searchType, "type", "auto", "search type: auto, ticket_number, email, subject, content")
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum results")
	cmd.Flags().StringVar(&status, "status", "", "only tickets in this status")
	cmd.Flags().StringVarP(&format, "format", "f", "table", "output format: table, json, yaml, csv, xlsx")
	cmd.Flags().StringVarP(&output, "output", "o", "", "write to file instead of stdout")
	cmd.Flags().BoolVar(&force, "force", false, "bypass the search cache")
	return cmd
}

func (c *cli) writeTickets(f export.Format, output string, res *desk.SearchResult) error {
	var w io.Writer = c.out
	if output != "" {
		file, err := os.Create(output)
		if err != nil {
			return err
		}
		defer file.Close()
		w = file
	}
	if f == export.FormatTable {
		fmt.Fprintf(w, "%d result(s) for %q (%s)\n", len(res.Tickets), res.Query, res.Type)
	}
	if err := (export.Writer{Now: c.now}).Write(w, f, res.Tickets); err != nil {
		return err
	}
	if output != "" {
		fmt.Fprintf(c.out, "Wrote %d ticket(s) to %s\n", len(res.Tickets), output)
	}
	return nil
}

func (c *cli) statsCmd() *cobra.Command {
	var force, asJSON bool
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show ticket counts by status, priority and channel",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			st, err := a.Desk.Stats(ctx, force)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(c.out)
				enc.SetIndent("", "  ")
				return enc.Encode(st)
			}
			printStats(c.out, st, c.now)
			return nil
		},
	}
	cmd.Flags().BoolVar(&force, "force", false, "bypass the dashboard cache")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/goatkit/deskpilot/internal/desk"
	"github.com/goatkit/deskpilot/internal/drafts"
	"github.com/goatkit/deskpilot/internal/export"
)

func (c *cli) draftsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "drafts",
		Short: "List saved drafts",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			list, err := a.Drafts.Store().List(cmd.Context())
			if err != nil {
				return err
			}
			printDrafts(c.out, list, c.now())
			return nil
		},
	}
}

func (c *cli) sendDraftCmd() *cobra.Command {
	var (
		edit    bool
		content string
		yes     bool
	)
	cmd := &cobra.Command{
		Use:   "send-draft <ticket-id>",
		Short: "Send a saved draft as the ticket reply",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			id := strings.TrimPrefix(strings.TrimSpace(a[0]), "#")
			ctx := cmd.Context()
			rt, err := c.runtime(ctx)
			if err != nil {
				return err
			}

			body := content
			if body == "" {
				d, err := rt.Drafts.Store().Load(ctx, id)
				switch {
				case err == nil:
					body = d.Content
				case errors.Is(err, drafts.ErrNotFound) && edit:
				case errors.Is(err, drafts.ErrNotFound):
					return fmt.Errorf("no draft saved for ticket %s", id)
				default:
					return err
				}
			}
			if edit {
				if body, err = editText(body); err != nil {
					return err
				}
			}
			if strings.TrimSpace(body) == "" {
				return drafts.ErrEmptyDraft
			}

			if !yes {
				fmt.Fprintf(c.out, "%s\n\n", body)
				if !c.confirm(fmt.Sprintf("Send this reply to ticket %s?", id)) {
					if edit {
						if _, err := rt.Drafts.Edit(ctx, id, body); err != nil {
							return err
						}
						fmt.Fprintln(c.out, "Not sent; edited draft saved.")
						return nil
					}
					fmt.Fprintln(c.out, "Not sent.")
					return nil
				}
			}
			if _, err := rt.Drafts.Send(ctx, id, body); err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Reply sent to ticket %s.\n", id)
			return nil
		},
	}
	cmd.Flags().BoolVar(&edit, "edit", false, "open the draft in $EDITOR before sending")
	cmd.Flags().StringVar(&content, "content", "", "send this text instead of the saved draft")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "send without confirmation")
	return cmd
}

func (c *cli) clearDraftsCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear-drafts",
		Short: "Delete every saved draft",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			if !yes && !c.confirm("Delete all saved drafts?") {
				fmt.Fprintln(c.out, "Cancelled.")
				return nil
			}
			n, err := a.Drafts.ClearAll(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.out, "Deleted %d draft(s).\n", n)
			return nil
		},
	}
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "skip confirmation")
	return cmd
}

// editText opens text in $VISUAL or $EDITOR (vi when unset) and returns the
// saved result.
func editText(text string) (string, error) {
	editor := os.Getenv("VISUAL")
	if editor == "" {
		editor = os.Getenv("EDITOR")
	}
	if editor == "" {
		editor = "vi"
	}

	f, err := os.CreateTemp("", "deskpilot-draft-*.md")
	if err != nil {
		return "", err
	}
	defer os.Remove(f.Name())
	if _, err := f.WriteString(text); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}

	parts := strings.Fields(editor)
	cmd := exec.Command(parts[0], append(parts[1:], f.Name())...)
	cmd.Stdin, cmd.Stdout, cmd.Stderr = os.Stdin, os.Stdout, os.Stderr
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("editor %s: %w", parts[0], err)
	}
	raw, err := os.ReadFile(f.Name())
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(string(raw)), nil
}

func printDrafts(w io.Writer, list []drafts.Draft, now time.Time) {
	if len(list) == 0 {
		fmt.Fprintln(w, "No saved drafts.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TICKET\tPROVIDER\tTYPE\tTONE\tSAVED\tPREVIEW")
	for _, d := range list {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			d.TicketID, d.Provider, d.ResponseType, d.Tone,
			export.Ago(d.GeneratedAt.UTC().Format(time.RFC3339), now), preview(d.Content, 50))
	}
	tw.Flush()
	fmt.Fprintf(w, "\n%d draft(s)\n", len(list))
}

func preview(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-3]) + "..."
}

func printStats(w io.Writer, st *desk.Stats, now func() time.Time) {
	fmt.Fprintf(w, "Tickets: %d (open %d)\n", st.Total, st.Open)
	if !st.GeneratedAt.IsZero() {
		fmt.Fprintf(w, "Computed %s\n", export.Ago(st.GeneratedAt.UTC().Format(time.RFC3339), now()))
	}

	section := func(title string, names []string, counts map[string]int) {
		fmt.Fprintf(w, "\n%s\n", title)
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		for _, n := range names {
			fmt.Fprintf(tw, "  %s\t%d\n", export.StatusLabel(n), counts[n])
		}
		tw.Flush()
	}
	section("By status", st.Statuses(), st.ByStatus)
	section("By priority", sortedKeys(st.ByPriority), st.ByPriority)
	section("By channel", sortedKeys(st.ByChannel), st.ByChannel)
}

func sortedKeys(m map[string]int) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

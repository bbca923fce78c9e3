package main

import (
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/goatkit/deskpilot/internal/assist"
	"github.com/goatkit/deskpilot/internal/config"
	"github.com/goatkit/deskpilot/internal/export"
	"github.com/goatkit/deskpilot/internal/watch"
)

type watchFlags struct {
	interval  time.Duration
	autoDraft bool
	status    string
	limit     int
}

// buildWatchOptions layers flags that were set on top of the watch config.
func buildWatchOptions(cfg config.WatchConfig, f watchFlags, changed func(string) bool, draft assist.Options) []watch.Option {
	interval := cfg.Interval
	if changed("interval") && f.interval > 0 {
		interval = f.interval
	}
	autoDraft := cfg.AutoDraft
	if changed("auto-draft") {
		autoDraft = f.autoDraft
	}
	status := cfg.Status
	if changed("status") {
		status = f.status
	}
	limit := cfg.Limit
	if changed("limit") && f.limit > 0 {
		limit = f.limit
	}

	opts := []watch.Option{
		watch.WithStatus(status),
		watch.WithAutoDraft(autoDraft, draft),
	}
	if interval > 0 {
		opts = append(opts, watch.WithInterval(interval))
	}
	if limit > 0 {
		opts = append(opts, watch.WithLimit(limit))
	}
	return opts
}

func printUpdate(w io.Writer, u watch.Update, now time.Time) {
	fmt.Fprintf(w, "[%s] %s #%s %s (%s)\n",
		now.Format("15:04:05"), u.Change, u.Ticket.ID, u.Ticket.Subject, export.StatusLabel(u.Ticket.Status))
	switch {
	case u.DraftErr != nil:
		fmt.Fprintf(w, "    draft failed: %v\n", u.DraftErr)
	case u.Draft != nil && u.Draft.PromptOnly:
		fmt.Fprintln(w, "    prompt generated (not saved)")
	case u.Draft != nil:
		fmt.Fprintf(w, "    draft saved (%s)\n", u.Draft.Provider)
	}
}

func (c *cli) watchCmd() *cobra.Command {
	var (
		f  watchFlags
		df draftFlags
	)
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Poll for new and updated tickets until interrupted",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Flags().Changed("interval") && f.interval < watch.MinInterval {
				return usagef("--interval must be at least %s", watch.MinInterval)
			}
			draft, err := df.options()
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := c.runtime(ctx)
			if err != nil {
				return err
			}

			opts := buildWatchOptions(a.Config.Watch, f, cmd.Flags().Changed, draft)
			opts = append(opts, watch.WithNotify(func(u watch.Update) { printUpdate(c.out, u, c.now()) }))
			w := a.Watcher(opts...)

			stop, err := a.StartHousekeeping(ctx, 0)
			if err != nil {
				return err
			}
			defer stop()

			fmt.Fprintf(c.out, "Watching every %s. Press Ctrl+C to stop.\n", w.Interval())
			return w.Run(ctx)
		},
	}
	cmd.Flags().DurationVar(&f.interval, "interval", time.Minute, "poll interval")
	cmd.Flags().BoolVar(&f.autoDraft, "auto-draft", false, "draft a reply for every new ticket")
	cmd.Flags().StringVar(&f.status, "status", "Open", "ticket status to watch")
	cmd.Flags().IntVar(&f.limit, "limit", 20, "tickets per poll")
	df.register(cmd)
	return cmd
}

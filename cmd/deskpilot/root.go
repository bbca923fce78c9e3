package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/goatkit/deskpilot/internal/app"
	"github.com/goatkit/deskpilot/internal/config"
)

// cli carries the persistent flags and the lazily built runtime.
type cli struct {
	configFile string
	debug      bool

	in     *bufio.Reader
	out    io.Writer
	errOut io.Writer
	now    func() time.Time

	// open builds the runtime; tests replace it.
	open func(ctx context.Context, cfg *config.Config, debug bool) (*app.App, error)
	app  *app.App
}

func newCLI(in io.Reader, out, errOut io.Writer) *cli {
	return &cli{
		in:     bufio.NewReader(in),
		out:    out,
		errOut: errOut,
		now:    time.Now,
		open: func(ctx context.Context, cfg *config.Config, debug bool) (*app.App, error) {
			return app.New(ctx, cfg, app.Options{Debug: debug, LogOutput: errOut})
		},
	}
}

// execute runs the command tree and returns the process exit code.
func execute(ctx context.Context, c *cli, args []string) int {
	root := c.rootCmd()
	root.SetArgs(args)
	err := root.ExecuteContext(ctx)
	if c.app != nil {
		_ = c.app.Close()
	}
	if err != nil {
		fmt.Fprintln(c.errOut, "Error:", errorText(err, c.debug))
	}
	return exitCode(err)
}

func (c *cli) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "deskpilot",
		Short:         "Helpdesk triage and AI-assisted reply drafting",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetIn(c.in)
	root.SetOut(c.out)
	root.SetErr(c.errOut)
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return &usageError{err: err}
	})

	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default ./deskpilot.yaml or ~/.config/deskpilot/deskpilot.yaml)")
	root.PersistentFlags().BoolVar(&c.debug, "debug", false, "debug logging and full backend errors")

	root.AddCommand(
		c.processCmd(),
		c.searchCmd(),
		c.statsCmd(),
		c.draftsCmd(),
		c.sendDraftCmd(),
		c.clearDraftsCmd(),
		c.watchCmd(),
		c.testConnectionCmd(),
		c.authCmd(),
		c.classifyCmd(),
		c.conversationCmd(),
		c.serveCmd(),
	)
	return root
}

// runtime loads and validates the configuration, then wires the app once.
func (c *cli) runtime(ctx context.Context) (*app.App, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load(config.LoadOptions{File: c.configFile})
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	a, err := c.open(ctx, cfg, c.debug)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

// args wraps a cobra positional-args validator so failures exit with the
// usage code.
func args(v cobra.PositionalArgs) cobra.PositionalArgs {
	return func(cmd *cobra.Command, a []string) error {
		if err := v(cmd, a); err != nil {
			return &usageError{err: err}
		}
		return nil
	}
}

// confirm asks a yes/no question; anything but y or yes is no.
func (c *cli) confirm(question string) bool {
	fmt.Fprintf(c.out, "%s [y/N]: ", question)
	answer, _ := c.in.ReadString('\n')
	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	}
	return false
}

// choose prompts until the answer starts with one of the allowed letters.
// EOF counts as the last option.
func (c *cli) choose(question string, options ...string) string {
	for {
		fmt.Fprintf(c.out, "%s [%s]: ", question, strings.Join(options, "/"))
		answer, err := c.in.ReadString('\n')
		answer = strings.ToLower(strings.TrimSpace(answer))
		for _, o := range options {
			if answer != "" && strings.HasPrefix(o, answer[:1]) {
				return o
			}
		}
		if err != nil {
			return options[len(options)-1]
		}
	}
}

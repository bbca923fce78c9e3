package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

func (c *cli) testConnectionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "test-connection",
		Short: "Verify credentials and API reachability",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			if err := a.Desk.TestConnection(ctx); err != nil {
				fmt.Fprintln(c.out, "Connection failed.")
				return err
			}
			rl := a.Limiter.Snapshot(ctx)
			tok := a.Tokens.Status(ctx)
			fmt.Fprintf(c.out, "Connected to org %s.\n", a.Tokens.OrgID())
			fmt.Fprintf(c.out, "Rate limit: %d/%d used this minute, resets in %ds.\n", rl.Used, rl.Limit, rl.ResetInSeconds)
			if !tok.ExpiresAt.IsZero() {
				fmt.Fprintf(c.out, "Access token expires %s.\n", tok.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	}
}

func (c *cli) authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Connect deskpilot to the helpdesk account",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "url",
		Short: "Print the consent URL to open in a browser",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := c.runtime(ctx)
			if err != nil {
				return err
			}
			state, err := a.Tokens.NewState(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintln(c.out, a.Tokens.AuthCodeURL(state))
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "exchange <code>",
		Short: "Exchange an authorization code for a token pair",
		Args:  args(cobra.ExactArgs(1)),
		RunE: func(cmd *cobra.Command, a []string) error {
			code := strings.TrimSpace(a[0])
			if code == "" {
				return usagef("code must not be empty")
			}
			rt, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			if err := rt.Tokens.ExchangeCode(cmd.Context(), code); err != nil {
				return err
			}
			fmt.Fprintln(c.out, "Connected. The refresh token is stored.")
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the stored token state",
		Args:  args(cobra.NoArgs),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := c.runtime(cmd.Context())
			if err != nil {
				return err
			}
			st := a.Tokens.Status(cmd.Context())
			fmt.Fprintf(c.out, "Client:        %s\n", st.ClientID)
			fmt.Fprintf(c.out, "Org:           %s\n", st.OrgID)
			fmt.Fprintf(c.out, "Refresh token: %s\n", yesNo(st.HasRefreshToken))
			fmt.Fprintf(c.out, "Access token:  %s\n", yesNo(st.HasAccessToken))
			if !st.ExpiresAt.IsZero() {
				fmt.Fprintf(c.out, "Expires:       %s\n", st.ExpiresAt.Local().Format(time.RFC1123))
			}
			return nil
		},
	})
	return cmd
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

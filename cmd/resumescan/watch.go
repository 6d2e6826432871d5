package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/session"
	"github.com/spf13/cobra"
)

func (c *cli) newWatchCmd() *cobra.Command {
	var expiryInterval time.Duration

	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow sign-ins and sign-outs made by other processes",
		Long: `Follow the shared session store and print every change of signed-in user
until interrupted. With enforceAuthExpiry set, expired sessions are also
cleared while watching.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if expiryInterval <= 0 {
				return fmt.Errorf("--expiry-interval must be positive, got %s", expiryInterval)
			}

			out := cmd.OutOrStdout()
			c.onUserChange = func(u *backend.User) {
				ts := time.Now().Format(time.RFC3339)
				if u == nil {
					fmt.Fprintf(out, "%s signed out\n", ts)
					return
				}
				fmt.Fprintf(out, "%s signed in as %s <%s>\n", ts, u.DisplayName(), u.Email)
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.initialize(cmd, a)
			if a.session.User() == nil {
				fmt.Fprintln(out, "Not signed in")
			}

			if a.cfg.EnforceAuthExpiry {
				w, err := authmethod.NewExpiryWatcher(a.tracker, expiryInterval, func() {
					a.metrics.RecordPurge("expired")
				})
				if err != nil {
					return err
				}
				w.Start(cmd.Context())
				defer w.Stop()
			}

			err = a.session.Watch(cmd.Context())
			if errors.Is(err, session.ErrWatchUnsupported) {
				return fmt.Errorf("storage %q cannot report changes", a.cfg.Storage)
			}
			return err
		},
	}

	cmd.Flags().DurationVar(&expiryInterval, "expiry-interval", time.Minute, "how often to check for expired sessions")
	return cmd
}

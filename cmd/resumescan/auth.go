package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dgellow/resumescan/internal/authmethod"
	"github.com/dgellow/resumescan/internal/idp"
	"github.com/spf13/cobra"
)

// passwordEnv is read before prompting on stdin
const passwordEnv = "RESUMESCAN_PASSWORD"

func (c *cli) newLoginCmd() *cobra.Command {
	var provider, email string

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in",
		Long: `Sign in with email and password, Google or LinkedIn.

The password is taken from $RESUMESCAN_PASSWORD or read from stdin. Google and
LinkedIn open the system browser and wait for it to return to redirectOrigin.

Examples:
  resumescan login --email you@example.com
  resumescan login --provider google
  resumescan login --provider linkedin`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			method, err := authmethod.ParseMethod(provider)
			if err != nil {
				return err
			}
			if method == authmethod.MethodEmail && email == "" {
				return fmt.Errorf("--email is required for email sign-in")
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.initialize(cmd, a)

			var res idp.Result
			switch method {
			case authmethod.MethodEmail:
				password, err := c.readSecret(cmd, "Password: ")
				if err != nil {
					return err
				}
				res = a.session.Login(cmd.Context(), email, password)
			case authmethod.MethodGoogle:
				fmt.Fprintln(cmd.ErrOrStderr(), "Opening Google sign-in in your browser...")
				res = a.session.GoogleLogin(cmd.Context())
			case authmethod.MethodLinkedIn:
				fmt.Fprintln(cmd.ErrOrStderr(), "Opening LinkedIn sign-in in your browser...")
				res = a.session.LinkedInLogin(cmd.Context())
			}
			return c.reportSignIn(cmd, res)
		},
	}

	cmd.Flags().StringVarP(&provider, "provider", "p", string(authmethod.MethodEmail), "email, google or linkedin")
	cmd.Flags().StringVar(&email, "email", "", "account email for email sign-in")
	return cmd
}

func (c *cli) newRegisterCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create an account and sign in",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			password, err := c.readSecret(cmd, "Choose a password: ")
			if err != nil {
				return err
			}
			return c.reportSignIn(cmd, a.session.Register(cmd.Context(), email, password))
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) reportSignIn(cmd *cobra.Command, res idp.Result) error {
	p := c.printer(cmd)
	switch {
	case res.Success && res.User != nil:
		p.success("Signed in as %s (%s)", res.User.DisplayName(), res.User.Email)
		return nil
	case res.Success:
		p.success("Signed in")
		return nil
	case res.Redirected:
		p.print("Finish signing in in your browser, then run 'resumescan whoami'")
		return nil
	default:
		return fmt.Errorf("sign-in failed: %s", res.Error)
	}
}

func (c *cli) newLogoutCmd() *cobra.Command {
	var noBrowser bool

	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Sign out and clear the stored session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}

			res := a.session.Logout(cmd.Context())
			p := c.printer(cmd)
			if !res.LocalCleared {
				p.fail("%s", res.Message)
				return fmt.Errorf("could not clear every stored key; check the store and retry")
			}
			if !res.RequiresUserAction {
				p.success("%s", res.Message)
				return nil
			}

			p.print("%s", res.Message)
			p.warn("sign out of LinkedIn at %s", res.ManualLogoutURL)
			if noBrowser {
				return nil
			}
			if err := a.logout.OpenManualLogout(a.nav); err != nil {
				p.warn("%v", err)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&noBrowser, "no-browser", false, "print the LinkedIn logout page instead of opening it")
	return cmd
}

func (c *cli) newWhoamiCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.initialize(cmd, a)

			u := a.session.User()
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), u)
			}
			if u == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "Not signed in")
				return nil
			}
			c.printer(cmd).user(u)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "output as JSON")
	return cmd
}

func (c *cli) newAuthMethodCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "auth-method",
		Short: "Show how the current session was established",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()

			rec := a.tracker.Get(cmd.Context())
			if rec == nil {
				fmt.Fprintf(out, "%s (detected, not recorded)\n", a.tracker.Detect(cmd.Context()))
				return nil
			}
			age := time.Since(rec.Time()).Round(time.Second)
			fmt.Fprintf(out, "%s (recorded %s ago)\n", rec.Type, age)
			if a.tracker.Expired(cmd.Context()) {
				fmt.Fprintf(out, "Older than %s", a.tracker.TTL())
				if a.cfg.EnforceAuthExpiry {
					fmt.Fprintln(out, "; it will be cleared on next use")
				} else {
					fmt.Fprintln(out, "; expiry is not enforced")
				}
			}
			return nil
		},
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// readSecret returns $RESUMESCAN_PASSWORD or one line from stdin
func (c *cli) readSecret(cmd *cobra.Command, prompt string) (string, error) {
	if v := os.Getenv(passwordEnv); v != "" {
		return v, nil
	}
	return c.readLine(cmd, prompt)
}

func (c *cli) readLine(cmd *cobra.Command, prompt string) (string, error) {
	if c.stdin == nil {
		c.stdin = bufio.NewReader(cmd.InOrStdin())
	}
	fmt.Fprint(cmd.ErrOrStderr(), prompt)
	line, err := c.stdin.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}

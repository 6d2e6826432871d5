package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"

	"github.com/dgellow/resumescan/internal/backend"
	"github.com/dgellow/resumescan/internal/config"
	"github.com/dgellow/resumescan/internal/log"
	"github.com/spf13/cobra"
)

// cli holds state shared by every command of one invocation
type cli struct {
	cfgFile   string
	verbose   bool
	colorMode string
	colors    bool
	stdin     *bufio.Reader

	app *app
	// onUserChange is passed to the session when the app is built
	onUserChange func(*backend.User)
}

func newRootCmd() (*cobra.Command, *cli) {
	c := &cli{}

	root := &cobra.Command{
		Use:   "resumescan",
		Short: "Resume Scanner account client",
		Long: `resumescan signs in to the Resume Scanner backend and keeps the session
on this machine.

Example usage:
  resumescan config init                       # Write a starter config
  resumescan login --email you@example.com     # Password is read from stdin
  resumescan login --provider linkedin         # Opens the browser
  resumescan whoami
  resumescan logout`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			colors, err := parseColorMode(c.colorMode)
			if err != nil {
				return err
			}
			c.colors = colors
			if c.verbose {
				return log.SetLogLevel("debug")
			}
			return nil
		},
	}

	root.PersistentFlags().StringVar(&c.cfgFile, "config", "", fmt.Sprintf("config file (default %s)", config.DefaultPath()))
	root.PersistentFlags().BoolVarP(&c.verbose, "verbose", "v", false, "debug logging")
	root.PersistentFlags().StringVar(&c.colorMode, "color", "auto", "colored output: auto, always or never")

	root.AddCommand(
		c.newLoginCmd(),
		c.newRegisterCmd(),
		c.newLogoutCmd(),
		c.newWhoamiCmd(),
		c.newAuthMethodCmd(),
		c.newForgotPasswordCmd(),
		c.newResetPasswordCmd(),
		c.newProfileCmd(),
		c.newWatchCmd(),
		c.newConfigCmd(),
		newVersionCmd(),
	)
	return root, c
}

func (c *cli) configPath() string {
	if c.cfgFile != "" {
		return c.cfgFile
	}
	return config.DefaultPath()
}

// open loads the config and wires the session on first use
func (c *cli) open(ctx context.Context) (*app, error) {
	if c.app != nil {
		return c.app, nil
	}
	cfg, err := config.Load(c.configPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w (run 'resumescan config init' to create one)", err)
	}
	a, err := buildApp(ctx, cfg, c.onUserChange)
	if err != nil {
		return nil, err
	}
	c.app = a
	return a, nil
}

func (c *cli) close() error {
	if c.app == nil {
		return nil
	}
	err := c.app.Close()
	c.app = nil
	return err
}

// initialize restores the stored session. Backend outages are reported but
// do not stop commands that can work from the cached user.
func (c *cli) initialize(cmd *cobra.Command, a *app) {
	if err := a.session.Initialize(cmd.Context()); err != nil {
		var apiErr *backend.APIError
		if errors.As(err, &apiErr) {
			c.printer(cmd).warn("could not confirm session: %s", apiErr.Message)
			return
		}
		c.printer(cmd).warn("could not confirm session: %v", err)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintln(cmd.OutOrStdout(), BuildVersion)
		},
	}
}

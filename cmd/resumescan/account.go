package main

import (
	"fmt"

	"github.com/dgellow/resumescan/internal/backend"
	"github.com/spf13/cobra"
)

func (c *cli) newForgotPasswordCmd() *cobra.Command {
	var email string

	cmd := &cobra.Command{
		Use:   "forgot-password",
		Short: "Email password reset instructions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			msg, err := a.session.RequestPasswordReset(cmd.Context(), email)
			if err != nil {
				return fmt.Errorf("password reset request failed: %s", backend.Message(err))
			}
			c.printer(cmd).success("%s", msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "account email")
	_ = cmd.MarkFlagRequired("email")
	return cmd
}

func (c *cli) newResetPasswordCmd() *cobra.Command {
	var token string

	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Set a new password with the token from the reset email",
		Long: `Set a new password with the token from the reset email.

The new password and its confirmation are read from stdin, one per line.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			password, err := c.readLine(cmd, "New password: ")
			if err != nil {
				return err
			}
			confirm, err := c.readLine(cmd, "Confirm password: ")
			if err != nil {
				return err
			}

			msg, err := a.session.ResetPassword(cmd.Context(), token, password, confirm)
			if err != nil {
				return fmt.Errorf("password reset failed: %s", backend.Message(err))
			}
			c.printer(cmd).success("%s", msg)
			return nil
		},
	}

	cmd.Flags().StringVar(&token, "token", "", "reset token from the email")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func (c *cli) newProfileCmd() *cobra.Command {
	fields := []struct {
		flag  string
		usage string
		set   func(u *backend.ProfileUpdate, v string)
	}{
		{"first-name", "first name", func(u *backend.ProfileUpdate, v string) { u.FirstName = &v }},
		{"last-name", "last name", func(u *backend.ProfileUpdate, v string) { u.LastName = &v }},
		{"mobile", "mobile number", func(u *backend.ProfileUpdate, v string) { u.MobileNumber = &v }},
		{"company", "company", func(u *backend.ProfileUpdate, v string) { u.Company = &v }},
		{"job-title", "job title", func(u *backend.ProfileUpdate, v string) { u.JobTitle = &v }},
		{"location", "location", func(u *backend.ProfileUpdate, v string) { u.Location = &v }},
		{"bio", "short bio", func(u *backend.ProfileUpdate, v string) { u.Bio = &v }},
	}

	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Update profile fields",
		Long: `Update profile fields. Only the flags given are changed; pass an empty
value to clear a field.

Example:
  resumescan profile --company Acme --job-title "Staff Engineer"`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var update backend.ProfileUpdate
			for _, f := range fields {
				if cmd.Flags().Changed(f.flag) {
					v, _ := cmd.Flags().GetString(f.flag)
					f.set(&update, v)
				}
			}
			if update.Empty() {
				return fmt.Errorf("nothing to update; pass at least one field flag")
			}

			a, err := c.open(cmd.Context())
			if err != nil {
				return err
			}
			c.initialize(cmd, a)

			u, err := a.session.SaveProfile(cmd.Context(), update)
			if err != nil {
				return fmt.Errorf("profile update failed: %s", backend.Message(err))
			}
			c.printer(cmd).user(u)
			return nil
		},
	}

	for _, f := range fields {
		cmd.Flags().String(f.flag, "", f.usage)
	}
	return cmd
}

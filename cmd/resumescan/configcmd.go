package main

import (
	"fmt"

	"github.com/dgellow/resumescan/internal/config"
	"github.com/spf13/cobra"
)

func (c *cli) newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Create or check the config file",
	}
	cmd.AddCommand(c.newConfigInitCmd(), c.newConfigValidateCmd())
	return cmd
}

func (c *cli) newConfigInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath()
			if err := config.WriteDefault(path, force); err != nil {
				return err
			}
			c.printer(cmd).success("Wrote %s", path)
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing file")
	return cmd
}

func (c *cli) newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check the config file without resolving environment references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			path := c.configPath()
			result, err := config.ValidateFile(path)
			if err != nil {
				return fmt.Errorf("error during validation: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Validating: %s\n", path)
			printIssues := func(title string, issues []config.ValidationError) {
				if len(issues) == 0 {
					return
				}
				fmt.Fprintf(out, "\n%s (%d):\n", title, len(issues))
				for _, issue := range issues {
					if issue.Path != "" {
						fmt.Fprintf(out, "  - %s: %s\n", issue.Path, issue.Message)
					} else {
						fmt.Fprintf(out, "  - %s\n", issue.Message)
					}
				}
			}
			printIssues("Errors", result.Errors)
			printIssues("Warnings", result.Warnings)

			fmt.Fprintln(out)
			p := c.printer(cmd)
			switch {
			case len(result.Errors) > 0:
				p.fail("Result: FAIL")
			case len(result.Warnings) > 0:
				p.success("Result: PASS (with warnings)")
			default:
				p.success("Result: PASS")
			}

			if !result.IsValid() {
				return fmt.Errorf("validation failed: %d error(s)", len(result.Errors))
			}
			return nil
		},
	}
}

package main

import (
	"fmt"
	"io"
	"os"

	"github.com/dgellow/resumescan/internal/backend"
	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
)

// printer writes command output, coloured when the terminal allows it
type printer struct {
	out    io.Writer
	err    io.Writer
	colors bool
}

func parseColorMode(s string) (bool, error) {
	switch s {
	case "always":
		return true, nil
	case "never":
		return false, nil
	case "auto":
		if _, ok := os.LookupEnv("NO_COLOR"); ok || os.Getenv("TERM") == "dumb" {
			return false, nil
		}
		return !color.NoColor, nil
	default:
		return false, fmt.Errorf("invalid color mode %q: must be auto, always or never", s)
	}
}

func (c *cli) printer(cmd *cobra.Command) *printer {
	return &printer{out: cmd.OutOrStdout(), err: cmd.ErrOrStderr(), colors: c.colors}
}

func (p *printer) success(format string, args ...any) {
	if p.colors {
		color.New(color.FgGreen).Fprintf(p.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) warn(format string, args ...any) {
	if p.colors {
		color.New(color.FgYellow).Fprintf(p.err, "Warning: "+format+"\n", args...)
		return
	}
	fmt.Fprintf(p.err, "Warning: "+format+"\n", args...)
}

func (p *printer) fail(format string, args ...any) {
	if p.colors {
		color.New(color.FgRed, color.Bold).Fprintf(p.out, format+"\n", args...)
		return
	}
	fmt.Fprintf(p.out, format+"\n", args...)
}

func (p *printer) print(format string, args ...any) {
	fmt.Fprintf(p.out, format+"\n", args...)
}

// user renders the profile as a two column table, skipping empty fields
func (p *printer) user(u *backend.User) {
	rows := [][]string{
		{"Name", u.DisplayName()},
		{"Email", u.Email},
	}
	optional := []struct {
		label string
		value *string
	}{
		{"Company", u.Company},
		{"Job title", u.JobTitle},
		{"Location", u.Location},
		{"Mobile", u.MobileNumber},
		{"LinkedIn", u.LinkedInURL},
		{"Website", u.WebsiteURL},
	}
	for _, f := range optional {
		if f.value != nil && *f.value != "" {
			rows = append(rows, []string{f.label, *f.value})
		}
	}

	table := tablewriter.NewTable(p.out,
		tablewriter.WithConfig(tablewriter.Config{
			Row: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoWrap: tw.WrapNone},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
			Header: tw.CellConfig{
				Formatting: tw.CellFormatting{AutoFormat: tw.On},
				Alignment:  tw.CellAlignment{Global: tw.AlignLeft},
			},
		}),
		tablewriter.WithRendition(tw.Rendition{
			Borders: tw.BorderNone,
			Settings: tw.Settings{
				Separators: tw.Separators{ShowHeader: tw.Off},
			},
		}),
	)
	table.Header([]string{"Field", "Value"})
	table.Bulk(rows)
	table.Render()
}

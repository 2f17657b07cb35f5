// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/jeranaias/pursuer/internal/telemetry"
	"github.com/jeranaias/pursuer/internal/util"
)

// statsReport is the --json shape of "pursuer stats".
type statsReport struct {
	Summary telemetry.Summary  `json:"summary"`
	Recent  []telemetry.Record `json:"recent"`
}

// RunStats handles "pursuer stats".
func RunStats(ctx context.Context, app *App) error {
	if app.Telemetry == nil {
		if !app.Config.Telemetry.Enabled {
			app.infof("Statistics are disabled. Enable them with: pursuer config set telemetry.enabled true\n")
			return nil
		}
		return &CommandError{Command: "stats", Err: fmt.Errorf("could not open %s", app.Config.Telemetry.Path)}
	}

	if app.Args.Subcommand == "purge" {
		cutoff := time.Now().Add(-time.Duration(app.Args.Days) * 24 * time.Hour)
		n, err := app.Telemetry.Purge(ctx, cutoff)
		if err != nil {
			return &CommandError{Command: "stats", Action: "purge", Err: err}
		}
		fmt.Fprintf(app.Out, "Deleted %d records older than %d days.\n", n, app.Args.Days)
		return nil
	}

	summary, err := app.Telemetry.Summary(ctx)
	if err != nil {
		return &CommandError{Command: "stats", Err: err}
	}
	recent, err := app.Telemetry.Recent(ctx, app.Args.Limit)
	if err != nil {
		return &CommandError{Command: "stats", Err: err}
	}

	if app.Args.JSON {
		return NewJSONResponse("stats", statsReport{Summary: summary, Recent: recent}).Print(app.Out)
	}
	printStats(app.Out, summary, recent, app.colorProfile() == termenv.Ascii)
	return nil
}

var (
	statsTitle  = lipgloss.NewStyle().Bold(true)
	statsHeader = lipgloss.NewStyle().Bold(true).Underline(true)
	statsError  = lipgloss.NewStyle().Foreground(lipgloss.Color("#F43F5E"))
)

var statsColumns = []struct {
	title string
	width int
}{
	{"TIME", 16}, {"MODEL", 28}, {"STATUS", 8}, {"FIRST", 7}, {"TOTAL", 7}, {"CHARS", 6}, {"TURNS", 5},
}

func printStats(w io.Writer, s telemetry.Summary, recent []telemetry.Record, plain bool) {
	style := func(st lipgloss.Style, text string) string {
		if plain {
			return text
		}
		return st.Render(text)
	}

	fmt.Fprintln(w, style(statsTitle, "Requests"))
	fmt.Fprintf(w, "  Total:      %d (%d ok, %d failed, %d canceled)\n", s.Requests, s.Succeeded, s.Failed, s.Canceled)
	fmt.Fprintf(w, "  Characters: %d\n", s.Chars)
	fmt.Fprintf(w, "  Avg first:  %s\n", formatDuration(s.AvgFirstFragment))
	fmt.Fprintf(w, "  Avg total:  %s\n", formatDuration(s.AvgDuration))

	if len(recent) == 0 {
		return
	}
	fmt.Fprintln(w)
	for i, c := range statsColumns {
		if i > 0 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprint(w, style(statsHeader, util.PadWidth(c.title, c.width)))
	}
	fmt.Fprintln(w)

	for _, r := range recent {
		cells := []string{
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Model,
			r.Status,
			formatDuration(r.FirstFragment),
			formatDuration(r.Duration),
			fmt.Sprint(r.Chars),
			fmt.Sprint(r.HistoryTurns),
		}
		for i, cell := range cells {
			if i > 0 {
				fmt.Fprint(w, " ")
			}
			cell = util.PadWidth(util.TruncateWidth(cell, statsColumns[i].width), statsColumns[i].width)
			if i == 2 && r.Status == telemetry.StatusError {
				cell = style(statsError, cell)
			}
			fmt.Fprint(w, cell)
		}
		fmt.Fprintln(w)
		if r.Error != "" && r.Status == telemetry.StatusError {
			fmt.Fprintf(w, "  %s\n", util.TruncateWidth(r.Error, 100))
		}
	}
}

// formatDuration formats a duration for the stats table.
func formatDuration(d time.Duration) string {
	switch {
	case d <= 0:
		return "-"
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < time.Minute:
		return fmt.Sprintf("%.1fs", d.Seconds())
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}

package main

import (
	"context"
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"driversync/internal/history"
)

const defaultHistoryLimit = 20

// runHistory prints the most recent recorded runs.
func runHistory(ctx context.Context, w io.Writer, path string, limit int, color bool) error {
	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer func() { _ = store.Close() }()

	entries, err := store.Recent(ctx, limit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		_, _ = fmt.Fprintf(w, "No runs recorded in %s\n", store.Path())
		return nil
	}
	renderHistory(w, entries, color)
	return nil
}

func renderHistory(w io.Writer, entries []history.Entry, color bool) {
	tw := table.NewWriter()
	tw.SetOutputMirror(w)
	tw.SetStyle(table.StyleRounded)
	if !color {
		tw.SetStyle(table.StyleLight)
	}
	tw.AppendHeader(table.Row{"When", "Mode", "Chrome", "Driver", "Result", "Took"})
	for _, e := range entries {
		result := e.Action
		if e.Reason != "" {
			result += " (" + e.Reason + ")"
		}
		if color {
			result = colorizeResult(e.Action).Sprint(result)
		}
		tw.AppendRow(table.Row{
			e.StartedAt.Local().Format("2006-01-02 15:04"),
			e.Mode,
			orDash(e.BrowserVersion),
			orDash(e.DriverVersion),
			result,
			formatDuration(e.Duration),
		})
	}
	tw.Render()
}

func colorizeResult(action string) text.Colors {
	switch action {
	case "up_to_date", "installed":
		return text.Colors{text.FgGreen}
	case "needs_install":
		return text.Colors{text.FgYellow}
	case "failed", "browser_missing":
		return text.Colors{text.FgRed}
	default:
		return text.Colors{}
	}
}

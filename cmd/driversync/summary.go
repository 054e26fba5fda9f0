package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/x/ansi"

	"driversync/internal/syncer"
)

// printSummary prints the closing block after a run: the versions involved
// and where the driver lives.
func printSummary(w io.Writer, p palette, report syncer.Report) {
	header := p.title.Render("driversync") + p.dim.Render(" "+currentBuild().label())
	header += p.dim.Render(fmt.Sprintf(" • %s %s", report.Mode, formatDuration(report.Duration)))

	rows := [][2]string{
		{"Chrome", orDash(report.BrowserVersion)},
		{"ChromeDriver", driverCell(report)},
	}
	if report.DriverPath != "" {
		rows = append(rows, [2]string{"Path", report.DriverPath})
	}
	if report.URL != "" {
		rows = append(rows, [2]string{"Source", report.URL})
	}
	rows = append(rows, [2]string{"Result", styleAction(p, report.Action)})

	labelWidth := 0
	for _, r := range rows {
		if n := ansi.StringWidth(r[0]); n > labelWidth {
			labelWidth = n
		}
	}

	_, _ = fmt.Fprintln(w, header)
	for _, r := range rows {
		pad := strings.Repeat(" ", labelWidth-ansi.StringWidth(r[0]))
		_, _ = fmt.Fprintf(w, "  %s%s  %s\n", p.dim.Render(r[0]), pad, r[1])
	}
}

func driverCell(report syncer.Report) string {
	switch {
	case report.Action == syncer.ActionInstalled:
		if report.DriverVersion != "" {
			return fmt.Sprintf("%s → %s", report.DriverVersion, report.BrowserVersion)
		}
		return report.BrowserVersion
	case report.DriverVersion == "":
		return "not installed"
	default:
		return report.DriverVersion
	}
}

func styleAction(p palette, a syncer.Action) string {
	label := strings.ReplaceAll(string(a), "_", " ")
	switch a {
	case syncer.ActionUpToDate, syncer.ActionInstalled:
		return p.success.Render(label)
	case syncer.ActionNeedsInstall:
		return p.warn.Render(label)
	case syncer.ActionFailed, syncer.ActionBrowserMissing:
		return p.err.Render(label)
	default:
		return label
	}
}

func orDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}

// formatDuration formats a duration into a human-readable string.
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	mins := int(d.Minutes())
	secs := int(d.Seconds()) % 60
	if secs == 0 {
		return fmt.Sprintf("%dm", mins)
	}
	return fmt.Sprintf("%dm %ds", mins, secs)
}

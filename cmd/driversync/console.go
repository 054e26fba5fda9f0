package main

import (
	"io"
	"os"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/x/ansi"
	"github.com/charmbracelet/x/cellbuf"
	"github.com/muesli/termenv"
	"golang.org/x/term"
)

// Colors - shared with the live display
var (
	primaryColor   = lipgloss.Color("#7D56F4")
	secondaryColor = lipgloss.Color("#FF79C6")
	dimColor       = lipgloss.Color("#6272A4")
	successColor   = lipgloss.Color("#50FA7B")
	warnColor      = lipgloss.Color("#F1FA8C")
	errorColor     = lipgloss.Color("#FF5555")
)

// palette holds the styles for one output stream.
type palette struct {
	title   lipgloss.Style
	dim     lipgloss.Style
	success lipgloss.Style
	warn    lipgloss.Style
	err     lipgloss.Style
	spinner lipgloss.Style
}

// newPalette builds styles bound to w. Without color every style renders
// plain text.
func newPalette(w io.Writer, color bool) palette {
	r := lipgloss.NewRenderer(w)
	if !color {
		r.SetColorProfile(termenv.Ascii)
	}
	return palette{
		title:   r.NewStyle().Bold(true).Foreground(primaryColor),
		dim:     r.NewStyle().Foreground(dimColor),
		success: r.NewStyle().Foreground(successColor),
		warn:    r.NewStyle().Foreground(warnColor),
		err:     r.NewStyle().Bold(true).Foreground(errorColor),
		spinner: r.NewStyle().Foreground(secondaryColor),
	}
}

// isTerminal reports whether w is an interactive terminal.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return term.IsTerminal(int(f.Fd()))
}

// terminalWidth returns the width of w, or 0 when unknown.
func terminalWidth(w io.Writer) int {
	f, ok := w.(*os.File)
	if !ok {
		return 0
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		return 0
	}
	return width
}

// colorEnabled decides whether styled output should be produced.
func colorEnabled(w io.Writer, noColorFlag bool) bool {
	if noColorFlag || termenv.EnvNoColor() {
		return false
	}
	return isTerminal(w)
}

// console writes status lines for a run. It implements syncer.Logger.
type console struct {
	display statusDisplay
	p       palette
	quiet   bool
	width   int
}

func newConsole(display statusDisplay, p palette, quiet bool, width int) *console {
	return &console{display: display, p: p, quiet: quiet, width: width}
}

func (c *console) Info(msg string) {
	if c.quiet {
		return
	}
	c.emit(c.p.success.Render("✓"), msg)
}

func (c *console) Warn(msg string) {
	if c.quiet {
		return
	}
	c.emit(c.p.warn.Render("!"), msg)
}

func (c *console) Error(msg string) {
	c.emit(c.p.err.Render("✗"), msg)
}

// Detail prints a dimmed, indented line below the last status line.
func (c *console) Detail(msg string) {
	if c.quiet || strings.TrimSpace(msg) == "" {
		return
	}
	c.emit(" ", c.p.dim.Render(msg))
}

func (c *console) emit(marker, msg string) {
	line := marker + " " + msg
	if c.width > 0 && ansi.StringWidth(line) > c.width {
		line = cellbuf.Wrap(line, c.width, "")
	}
	c.display.Println(line)
}

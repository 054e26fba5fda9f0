package main

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
)

// statusDisplay shows what a run is doing while it works. Status lines go
// through Println so they land above any live widget.
type statusDisplay interface {
	Stage(detail string)
	Progress(done, total int64)
	Println(line string)
	Stop()
}

// plainDisplay prints status lines and nothing else. Used for pipes, CI logs
// and --quiet.
type plainDisplay struct {
	w io.Writer
}

func (plainDisplay) Stage(string)          {}
func (plainDisplay) Progress(int64, int64) {}
func (d plainDisplay) Println(line string) { _, _ = fmt.Fprintln(d.w, line) }
func (plainDisplay) Stop()                 {}

// displayModel is the bubbletea model behind the live display.
type displayModel struct {
	spinner  spinner.Model
	progress progress.Model

	detail     string
	done       int64
	total      int64
	isProgress bool
	quitting   bool

	// Channel to receive updates from the run
	updates chan displayUpdate
}

type displayUpdate struct {
	detail     string
	done       int64
	total      int64
	isProgress bool
}

type updateMsg displayUpdate

type quitMsg struct{}

func newDisplayModel(p palette) *displayModel {
	s := spinner.New()
	s.Spinner = spinner.MiniDot
	s.Style = p.spinner

	bar := progress.New(
		progress.WithDefaultGradient(),
		progress.WithWidth(32),
		progress.WithoutPercentage(),
	)

	return &displayModel{
		spinner:  s,
		progress: bar,
		detail:   "Starting",
		updates:  make(chan displayUpdate, 16),
	}
}

func (m *displayModel) Init() tea.Cmd {
	return tea.Batch(
		m.spinner.Tick,
		m.waitForUpdate(),
	)
}

func (m *displayModel) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return updateMsg(<-m.updates)
	}
}

func (m *displayModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case updateMsg:
		if msg.detail != "" {
			m.detail = msg.detail
		}
		m.isProgress = msg.isProgress
		m.done = msg.done
		m.total = msg.total
		return m, m.waitForUpdate()

	case quitMsg:
		m.quitting = true
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func (m *displayModel) View() string {
	if m.quitting {
		return ""
	}
	if m.isProgress && m.total > 0 {
		pct := float64(m.done) / float64(m.total)
		if pct > 1 {
			pct = 1
		}
		return fmt.Sprintf("%s %s / %s",
			m.progress.ViewAs(pct),
			humanize.Bytes(uint64(m.done)),
			humanize.Bytes(uint64(m.total)),
		)
	}
	if m.isProgress {
		return fmt.Sprintf("%s %s %s", m.spinner.View(), m.detail, humanize.Bytes(uint64(m.done)))
	}
	return m.spinner.View() + " " + m.detail
}

func (m *displayModel) send(update displayUpdate) {
	select {
	case m.updates <- update:
	default:
		// Drop if channel is full; the next update supersedes it.
	}
}

// liveDisplay wraps the bubbletea program rendering the spinner and
// download bar inline.
type liveDisplay struct {
	program *tea.Program
	model   *displayModel
	out     io.Writer
	done    chan struct{}

	mu      sync.Mutex
	stopped bool
	stage   string
}

func newLiveDisplay(w io.Writer, p palette) *liveDisplay {
	model := newDisplayModel(p)
	program := tea.NewProgram(
		model,
		tea.WithOutput(w),
		tea.WithInput(nil),
		tea.WithoutSignalHandler(), // main owns SIGINT
	)

	d := &liveDisplay{
		program: program,
		model:   model,
		out:     w,
		done:    make(chan struct{}),
	}
	go func() {
		_, _ = program.Run()
		close(d.done)
	}()
	return d
}

func (d *liveDisplay) Stage(detail string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.stage = strings.TrimSpace(detail)
	d.model.send(displayUpdate{detail: d.stage})
}

func (d *liveDisplay) Progress(done, total int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.stopped {
		return
	}
	d.model.send(displayUpdate{detail: d.stage, done: done, total: total, isProgress: true})
}

func (d *liveDisplay) Println(line string) {
	d.mu.Lock()
	stopped := d.stopped
	d.mu.Unlock()
	if stopped || d.exited() {
		_, _ = fmt.Fprintln(d.out, line)
		return
	}
	d.program.Println(line)
}

// exited reports whether the program has returned on its own. Program.Println
// blocks forever once nothing reads its message channel.
func (d *liveDisplay) exited() bool {
	select {
	case <-d.done:
		return true
	default:
		return false
	}
}

func (d *liveDisplay) Stop() {
	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.stopped = true
	d.mu.Unlock()
	if d.exited() {
		return
	}

	// quitMsg blanks the view so no spinner is left behind.
	d.program.Send(quitMsg{})
	select {
	case <-d.done:
	case <-time.After(500 * time.Millisecond):
		d.program.Kill()
		<-d.done
	}
}

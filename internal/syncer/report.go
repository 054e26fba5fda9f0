package syncer

import "time"

// Mode distinguishes a real sync from a dry-run check.
type Mode string

const (
	ModeSync  Mode = "sync"
	ModeCheck Mode = "check"
)

// Action is what a run ended up doing.
type Action string

const (
	ActionNone           Action = "none"
	ActionBrowserMissing Action = "browser_missing"
	ActionUpToDate       Action = "up_to_date"
	ActionInstalled      Action = "installed"
	ActionNeedsInstall   Action = "needs_install"
	ActionFailed         Action = "failed"
)

// Reason explains why a download was (or would be) needed.
type Reason string

const (
	ReasonNone     Reason = ""
	ReasonMissing  Reason = "missing"
	ReasonMismatch Reason = "mismatch"
)

// Report summarizes a single Ensure or Check run.
type Report struct {
	Mode           Mode
	Action         Action
	Reason         Reason
	BrowserVersion string
	DriverVersion  string
	// DriverPath is the detected driver, or the installed one after a download.
	DriverPath string
	Platform   string
	URL        string
	Error      string
	Started    time.Time
	Duration   time.Duration
}

// NeedsDownload reports whether the driver was absent or mismatched.
func (r Report) NeedsDownload() bool {
	return r.Reason == ReasonMissing || r.Reason == ReasonMismatch
}

// OK reports whether the run ended with a usable driver in place.
func (r Report) OK() bool {
	return r.Action == ActionUpToDate || r.Action == ActionInstalled
}

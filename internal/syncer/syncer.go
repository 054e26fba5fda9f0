// Package syncer keeps the installed chromedriver in step with the installed
// browser.
//
// Ensure runs detection, compares major.minor.patch, and when the driver is
// absent or mismatched resolves and installs a matching one. Every step
// reports a status line through Logger. There are no retries and nothing is
// rolled back: a failing step logs, and Ensure returns.
package syncer

import (
	"context"
	"fmt"
	"time"

	"driversync/internal/debug"
	"driversync/internal/detect"
	appErrors "driversync/internal/errors"
	"driversync/internal/install"
	"driversync/internal/resolve"
)

// Logger receives human-readable status lines.
type Logger interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// DetectFunc reports the installed version of a browser or driver.
type DetectFunc func(ctx context.Context) (detect.Info, error)

// Installer fetches an archive URL and leaves the driver in place.
type Installer interface {
	Install(ctx context.Context, url string) (install.Result, error)
}

// Recorder persists finished runs.
type Recorder interface {
	Record(ctx context.Context, r Report) error
}

// Options wire the collaborators used by a Syncer.
type Options struct {
	DetectBrowser DetectFunc
	DetectDriver  DetectFunc
	Resolver      resolve.Resolver
	Installer     Installer
	Logger        Logger
	// Recorder is optional.
	Recorder Recorder
	// Platform overrides the detected platform tag.
	Platform string
	// DetectTimeout bounds each detector call. Zero means no limit.
	DetectTimeout time.Duration

	now func() time.Time
}

// Syncer sequences detection, comparison, resolution and installation.
type Syncer struct {
	opts Options
}

// New validates opts and returns a Syncer.
func New(opts Options) (*Syncer, error) {
	switch {
	case opts.DetectBrowser == nil:
		return nil, fmt.Errorf("syncer: browser detector is required")
	case opts.DetectDriver == nil:
		return nil, fmt.Errorf("syncer: driver detector is required")
	case opts.Resolver == nil:
		return nil, fmt.Errorf("syncer: resolver is required")
	case opts.Installer == nil:
		return nil, fmt.Errorf("syncer: installer is required")
	}
	if opts.Logger == nil {
		opts.Logger = nopLogger{}
	}
	if opts.now == nil {
		opts.now = time.Now
	}
	return &Syncer{opts: opts}, nil
}

// Ensure makes sure a driver matching the browser is installed.
//
// The returned error is informational: every failure has already been
// reported through the Logger, and callers only use it for the exit status.
func (s *Syncer) Ensure(ctx context.Context) (Report, error) {
	report := s.newReport(ModeSync)
	err := s.ensure(ctx, &report)
	return s.finish(ctx, report, err)
}

// Check runs detection and comparison without downloading anything.
func (s *Syncer) Check(ctx context.Context) (Report, error) {
	report := s.newReport(ModeCheck)
	err := s.check(ctx, &report)
	return s.finish(ctx, report, err)
}

func (s *Syncer) ensure(ctx context.Context, report *Report) error {
	if err := s.compare(ctx, report); err != nil {
		return err
	}

	switch report.Reason {
	case ReasonNone:
		s.opts.Logger.Info(msgUpToDate)
		report.Action = ActionUpToDate
		return nil
	case ReasonMissing:
		s.opts.Logger.Warn(msgDriverMissing + " Downloading...")
	case ReasonMismatch:
		s.opts.Logger.Warn(msgMismatch + " Updating ChromeDriver...")
	}

	return s.download(ctx, report)
}

func (s *Syncer) check(ctx context.Context, report *Report) error {
	if err := s.compare(ctx, report); err != nil {
		return err
	}

	switch report.Reason {
	case ReasonNone:
		s.opts.Logger.Info(msgUpToDate)
		report.Action = ActionUpToDate
	case ReasonMissing:
		s.opts.Logger.Warn(msgDriverMissing)
		report.Action = ActionNeedsInstall
	case ReasonMismatch:
		s.opts.Logger.Warn(fmt.Sprintf("%s Installed: %s", msgMismatch, report.DriverVersion))
		report.Action = ActionNeedsInstall
	}
	return nil
}

// compare fills in the browser and driver fields and decides whether a
// download is needed.
func (s *Syncer) compare(ctx context.Context, report *Report) error {
	browser, err := s.runDetector(ctx, s.opts.DetectBrowser)
	if err != nil {
		s.opts.Logger.Error(msgBrowserMissing)
		report.Action = ActionBrowserMissing
		code := appErrors.CodeBrowserNotFound
		if !detect.IsNotInstalled(err) {
			code = appErrors.CodeCommandFailed
			if detect.KindOf(err) == detect.KindParse {
				code = appErrors.CodeParseFailed
			}
		}
		return appErrors.New(code, msgBrowserMissing, err)
	}
	report.BrowserVersion = browser.Version.String()
	s.opts.Logger.Info(fmt.Sprintf("Chrome Version: %s", report.BrowserVersion))

	driver, err := s.runDetector(ctx, s.opts.DetectDriver)
	if err != nil {
		// A driver that cannot report a version is treated the same as a
		// missing one.
		if !detect.IsNotInstalled(err) {
			debug.Logf("driver detection failed, treating as absent: %v", err)
		}
		report.Reason = ReasonMissing
		return nil
	}
	report.DriverVersion = driver.Version.String()
	report.DriverPath = driver.Bin

	if browser.Version.Compatible(driver.Version) {
		report.Reason = ReasonNone
	} else {
		report.Reason = ReasonMismatch
	}
	debug.LogFields(debug.Fields{
		"browser": report.BrowserVersion,
		"driver":  report.DriverVersion,
		"reason":  string(report.Reason),
	}, "versions compared")
	return nil
}

func (s *Syncer) download(ctx context.Context, report *Report) error {
	fail := func(err error) error {
		s.opts.Logger.Error(fmt.Sprintf("Failed to download ChromeDriver for version %s.", report.BrowserVersion))
		report.Action = ActionFailed
		return err
	}

	platform := s.opts.Platform
	if platform == "" {
		p, err := resolve.CurrentPlatform()
		if err != nil {
			return fail(err)
		}
		platform = p
	}
	report.Platform = platform

	url, err := s.opts.Resolver.Resolve(ctx, report.BrowserVersion, platform)
	if err != nil {
		return fail(err)
	}
	report.URL = url

	res, err := s.opts.Installer.Install(ctx, url)
	if err != nil {
		return fail(err)
	}
	report.DriverPath = res.Path
	report.Action = ActionInstalled
	s.opts.Logger.Info(fmt.Sprintf("Downloaded and extracted ChromeDriver %s.", report.BrowserVersion))
	return nil
}

func (s *Syncer) runDetector(ctx context.Context, fn DetectFunc) (detect.Info, error) {
	if s.opts.DetectTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.opts.DetectTimeout)
		defer cancel()
	}
	return fn(ctx)
}

func (s *Syncer) newReport(mode Mode) Report {
	return Report{
		Mode:    mode,
		Action:  ActionNone,
		Reason:  ReasonNone,
		Started: s.opts.now(),
	}
}

func (s *Syncer) finish(ctx context.Context, report Report, err error) (Report, error) {
	report.Duration = s.opts.now().Sub(report.Started)
	if err != nil {
		report.Error = err.Error()
	}
	if s.opts.Recorder != nil {
		if rerr := s.opts.Recorder.Record(ctx, report); rerr != nil {
			debug.Logf("record run: %v", rerr)
		}
	}
	return report, err
}

const (
	msgBrowserMissing = "Chrome is not installed or not found."
	msgDriverMissing  = "ChromeDriver not found."
	msgMismatch       = "ChromeDriver version mismatch."
	msgUpToDate       = "ChromeDriver is up to date."
)

type nopLogger struct{}

func (nopLogger) Info(string)  {}
func (nopLogger) Warn(string)  {}
func (nopLogger) Error(string) {}

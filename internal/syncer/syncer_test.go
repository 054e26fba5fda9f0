package syncer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"driversync/internal/detect"
	appErrors "driversync/internal/errors"
	"driversync/internal/install"
	"driversync/internal/version"
)

type recordingLogger struct {
	lines []string
}

func (l *recordingLogger) Info(msg string)  { l.lines = append(l.lines, msg) }
func (l *recordingLogger) Warn(msg string)  { l.lines = append(l.lines, msg) }
func (l *recordingLogger) Error(msg string) { l.lines = append(l.lines, msg) }

type stubResolver struct {
	url   string
	err   error
	calls []string
}

func (r *stubResolver) Resolve(_ context.Context, v, platform string) (string, error) {
	r.calls = append(r.calls, v+"@"+platform)
	return r.url, r.err
}

type stubInstaller struct {
	path  string
	err   error
	calls []string
}

func (i *stubInstaller) Install(_ context.Context, url string) (install.Result, error) {
	i.calls = append(i.calls, url)
	if i.err != nil {
		return install.Result{}, i.err
	}
	return install.Result{Path: i.path, Bytes: 42}, nil
}

type memRecorder struct {
	reports []Report
	err     error
}

func (m *memRecorder) Record(_ context.Context, r Report) error {
	m.reports = append(m.reports, r)
	return m.err
}

func found(raw string) DetectFunc {
	return func(context.Context) (detect.Info, error) {
		v, err := version.Parse(raw)
		if err != nil {
			return detect.Info{}, err
		}
		return detect.Info{Bin: "/usr/bin/x", Source: detect.SourceCommand, Version: v}, nil
	}
}

func missing(target string) DetectFunc {
	return func(context.Context) (detect.Info, error) {
		return detect.Info{}, detect.DetectError{Kind: detect.KindNotInstalled, Target: target}
	}
}

type fixture struct {
	logger    *recordingLogger
	resolver  *stubResolver
	installer *stubInstaller
	recorder  *memRecorder
}

func newSyncer(t *testing.T, browser, driver DetectFunc) (*Syncer, *fixture) {
	t.Helper()
	f := &fixture{
		logger:    &recordingLogger{},
		resolver:  &stubResolver{url: "https://example.test/chromedriver-linux64.zip"},
		installer: &stubInstaller{path: "/opt/drivers/chromedriver"},
		recorder:  &memRecorder{},
	}
	clock := time.Date(2026, 10, 16, 9, 0, 0, 0, time.UTC)
	s, err := New(Options{
		DetectBrowser: browser,
		DetectDriver:  driver,
		Resolver:      f.resolver,
		Installer:     f.installer,
		Logger:        f.logger,
		Recorder:      f.recorder,
		Platform:      "linux64",
		now: func() time.Time {
			clock = clock.Add(time.Second)
			return clock
		},
	})
	require.NoError(t, err)
	return s, f
}

func TestEnsureUpToDateSkipsDownload(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), found("146.0.7680.31"))

	report, err := s.Ensure(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ActionUpToDate, report.Action)
	assert.False(t, report.NeedsDownload())
	assert.True(t, report.OK())
	assert.Empty(t, f.resolver.calls)
	assert.Empty(t, f.installer.calls)
	assert.Equal(t, []string{
		"Chrome Version: 146.0.7680.80",
		"ChromeDriver is up to date.",
	}, f.logger.lines)
}

func TestEnsureMissingDriverDownloads(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), missing("driver"))

	report, err := s.Ensure(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ActionInstalled, report.Action)
	assert.Equal(t, ReasonMissing, report.Reason)
	assert.Equal(t, []string{"146.0.7680.80@linux64"}, f.resolver.calls)
	assert.Equal(t, []string{"https://example.test/chromedriver-linux64.zip"}, f.installer.calls)
	assert.Equal(t, "/opt/drivers/chromedriver", report.DriverPath)
	assert.Equal(t, []string{
		"Chrome Version: 146.0.7680.80",
		"ChromeDriver not found. Downloading...",
		"Downloaded and extracted ChromeDriver 146.0.7680.80.",
	}, f.logger.lines)
}

func TestEnsureBrokenDriverCountsAsMissing(t *testing.T) {
	broken := func(context.Context) (detect.Info, error) {
		return detect.Info{}, detect.DetectError{Kind: detect.KindParse, Target: "driver"}
	}
	s, f := newSyncer(t, found("146.0.7680.80"), broken)

	report, err := s.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonMissing, report.Reason)
	assert.Len(t, f.installer.calls, 1)
}

func TestEnsureMismatchDownloads(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), found("145.0.7632.117"))

	report, err := s.Ensure(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ReasonMismatch, report.Reason)
	assert.Equal(t, ActionInstalled, report.Action)
	assert.Equal(t, "145.0.7632.117", report.DriverVersion)
	assert.Contains(t, f.logger.lines, "ChromeDriver version mismatch. Updating ChromeDriver...")
	assert.Len(t, f.installer.calls, 1)
}

func TestEnsureSameMajorDifferentBuildIsMismatch(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), found("146.0.7600.10"))

	report, err := s.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonMismatch, report.Reason)
	assert.Len(t, f.installer.calls, 1)
}

func TestEnsureBrowserMissingReturnsEarly(t *testing.T) {
	driverCalled := false
	driver := func(context.Context) (detect.Info, error) {
		driverCalled = true
		return detect.Info{}, nil
	}
	s, f := newSyncer(t, missing("browser"), driver)

	report, err := s.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeBrowserNotFound, appErrors.CodeOf(err))
	assert.Equal(t, ActionBrowserMissing, report.Action)
	assert.False(t, driverCalled)
	assert.Empty(t, f.resolver.calls)
	assert.Empty(t, f.installer.calls)
	assert.Equal(t, []string{"Chrome is not installed or not found."}, f.logger.lines)
}

func TestEnsureBrowserCommandFailureCode(t *testing.T) {
	failing := func(context.Context) (detect.Info, error) {
		return detect.Info{}, detect.DetectError{Kind: detect.KindCommandFailed, Target: "browser", Err: errors.New("boom")}
	}
	s, _ := newSyncer(t, failing, missing("driver"))

	_, err := s.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeCommandFailed, appErrors.CodeOf(err))
}

func TestEnsureResolveFailureLogsAndReturns(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), missing("driver"))
	f.resolver.err = appErrors.New(appErrors.CodeNoMatchingDownload, "no match", nil)

	report, err := s.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeNoMatchingDownload, appErrors.CodeOf(err))
	assert.Equal(t, ActionFailed, report.Action)
	assert.Empty(t, f.installer.calls)
	assert.Equal(t, "Failed to download ChromeDriver for version 146.0.7680.80.", f.logger.lines[len(f.logger.lines)-1])
}

func TestEnsureInstallFailureDoesNotRetry(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), found("120.0.6099.224"))
	f.installer.err = appErrors.New(appErrors.CodeNetworkFailure, "status 404", nil)

	report, err := s.Ensure(context.Background())
	require.Error(t, err)
	assert.Equal(t, ActionFailed, report.Action)
	assert.Len(t, f.installer.calls, 1)
	assert.Equal(t, "status 404", report.Error)
}

func TestCheckNeverDownloads(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), found("145.0.7632.117"))

	report, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ModeCheck, report.Mode)
	assert.Equal(t, ActionNeedsInstall, report.Action)
	assert.True(t, report.NeedsDownload())
	assert.Empty(t, f.resolver.calls)
	assert.Empty(t, f.installer.calls)
	assert.Contains(t, f.logger.lines, "ChromeDriver version mismatch. Installed: 145.0.7632.117")
}

func TestCheckMissingDriver(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), missing("driver"))

	report, err := s.Check(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReasonMissing, report.Reason)
	assert.Contains(t, f.logger.lines, "ChromeDriver not found.")
}

func TestRunsAreRecorded(t *testing.T) {
	s, f := newSyncer(t, found("146.0.7680.80"), missing("driver"))
	f.recorder.err = errors.New("disk full")

	_, err := s.Ensure(context.Background())
	require.NoError(t, err, "recorder failures must not fail the run")
	_, _ = s.Check(context.Background())

	require.Len(t, f.recorder.reports, 2)
	first := f.recorder.reports[0]
	assert.Equal(t, ModeSync, first.Mode)
	assert.Equal(t, ActionInstalled, first.Action)
	assert.Equal(t, "linux64", first.Platform)
	assert.Equal(t, time.Second, first.Duration)
	assert.Equal(t, ModeCheck, f.recorder.reports[1].Mode)
}

func TestDetectTimeoutApplied(t *testing.T) {
	var deadlineSet bool
	browser := func(ctx context.Context) (detect.Info, error) {
		_, deadlineSet = ctx.Deadline()
		return found("146.0.7680.80")(ctx)
	}
	s, _ := newSyncer(t, browser, found("146.0.7680.80"))
	s.opts.DetectTimeout = time.Minute

	_, err := s.Ensure(context.Background())
	require.NoError(t, err)
	assert.True(t, deadlineSet)
}

func TestNewRequiresCollaborators(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)
	_, err = New(Options{DetectBrowser: found("1.2.3.4"), DetectDriver: found("1.2.3.4")})
	assert.Error(t, err)
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"github.com/atotto/clipboard"
	"github.com/spf13/pflag"

	"driversync/internal/config"
	"driversync/internal/debug"
	"driversync/internal/detect"
	appErrors "driversync/internal/errors"
	"driversync/internal/history"
	"driversync/internal/install"
	"driversync/internal/resolve"
	"driversync/internal/syncer"
)

const (
	exitOK      = 0
	exitFailure = 1
	exitUsage   = 2
)

const (
	commandSync    = "sync"
	commandCheck   = "check"
	commandHistory = "history"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	code := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

type cliOptions struct {
	command     string
	dir         string
	source      string
	platform    string
	browsers    []string
	driverName  string
	timeout     time.Duration
	debug       bool
	history     bool
	historyPath string
	noColor     bool
	copyPath    bool
	quiet       bool
	limit       int
	showVersion bool
}

func newFlagSet(opts *cliOptions, stderr io.Writer) *pflag.FlagSet {
	fs := pflag.NewFlagSet("driversync", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, `Usage: driversync [sync|check|history] [flags]

Keeps chromedriver in step with the installed Chrome.

Commands:
  sync      download a matching chromedriver when missing or mismatched (default)
  check     report without downloading; exits 1 when a download is needed
  history   show recorded runs

Flags:
%s`, fs.FlagUsages())
	}

	fs.StringVar(&opts.dir, "dir", ".", "Directory chromedriver is installed into")
	fs.StringVar(&opts.source, "source", config.DefaultSource, "Where download URLs come from (manifest, static)")
	fs.StringVar(&opts.platform, "platform", "", "Platform tag to download (linux64, mac-x64, mac-arm64, win32, win64); detected when empty")
	fs.StringSliceVar(&opts.browsers, "browser", nil, "Browser binary to query; repeat or comma-separate to try several")
	fs.StringVar(&opts.driverName, "driver-name", "", "File name of the installed driver")
	fs.DurationVar(&opts.timeout, "timeout", 0, "HTTP timeout for manifest and archive downloads (0 = none)")
	fs.BoolVar(&opts.debug, "debug", false, "Write a debug log to ~/.driversync/debug.log")
	fs.BoolVar(&opts.history, "history", false, "Record this run in the history database")
	fs.StringVar(&opts.historyPath, "history-path", "", "History database path (default ~/.driversync/history.db)")
	fs.BoolVar(&opts.noColor, "no-color", false, "Disable colored output (or set NO_COLOR)")
	fs.BoolVar(&opts.copyPath, "copy-path", false, "Copy the driver path to the clipboard")
	fs.BoolVarP(&opts.quiet, "quiet", "q", false, "Only print errors")
	fs.IntVar(&opts.limit, "limit", defaultHistoryLimit, "Number of runs shown by history")
	fs.BoolVarP(&opts.showVersion, "version", "v", false, "Print version information and exit")
	return fs
}

// parseArgs parses flags and the optional leading command.
func parseArgs(args []string, stderr io.Writer) (cliOptions, *pflag.FlagSet, error) {
	var opts cliOptions
	fs := newFlagSet(&opts, stderr)
	if err := fs.Parse(args); err != nil {
		return opts, fs, err
	}

	rest := fs.Args()
	opts.command = commandSync
	if len(rest) > 0 {
		opts.command = strings.ToLower(rest[0])
	}
	if len(rest) > 1 {
		return opts, fs, fmt.Errorf("unexpected arguments: %s", strings.Join(rest[1:], " "))
	}
	switch opts.command {
	case commandSync, commandCheck, commandHistory:
	default:
		return opts, fs, fmt.Errorf("unknown command %q", opts.command)
	}
	return opts, fs, nil
}

// collectOverrides maps explicitly set flags onto config keys so they win
// over files and environment.
func collectOverrides(fs *pflag.FlagSet, opts cliOptions) map[string]any {
	overrides := map[string]any{}
	set := func(flag, key string, value any) {
		if fs.Changed(flag) {
			overrides[key] = value
		}
	}
	set("dir", config.KeyInstallDir, opts.dir)
	set("source", config.KeySource, opts.source)
	set("platform", config.KeyPlatform, opts.platform)
	set("browser", config.KeyBrowserBinary, opts.browsers)
	set("driver-name", config.KeyDriverName, opts.driverName)
	set("timeout", config.KeyTimeout, opts.timeout)
	set("history", config.KeyHistoryEnabled, opts.history)
	set("history-path", config.KeyHistoryPath, opts.historyPath)
	return overrides
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	opts, fs, err := parseArgs(args, stderr)
	if err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return exitOK
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		fs.Usage()
		return exitUsage
	}
	if opts.showVersion {
		printVersion(stdout, currentBuild())
		return exitOK
	}

	if err := config.Initialize(); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error initializing config: %v\n", err)
		return exitFailure
	}
	if err := config.ApplyOverrides(collectOverrides(fs, opts)); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error applying flags: %v\n", err)
		return exitFailure
	}

	color := colorEnabled(stdout, opts.noColor)
	hints := hintOptions{
		rich:     colorEnabled(stderr, opts.noColor),
		width:    terminalWidth(stderr),
		browsers: browserCandidates(),
	}
	if err := config.Validate(); err != nil {
		printHint(stderr, err, hints)
		return exitFailure
	}

	if err := debug.Init(opts.debug); err != nil {
		_, _ = fmt.Fprintf(stderr, "Warning: debug log unavailable: %v\n", err)
	} else if debug.Enabled() {
		if path, err := debug.GetLogPath(); err == nil {
			_, _ = fmt.Fprintf(stderr, "Debug log: %s\n", path)
		}
	}
	defer debug.Close()
	fields := currentBuild().fields()
	fields["command"] = opts.command
	fields["config"] = strings.Join(config.LoadedFiles(), ",")
	debug.LogFields(fields, "driversync starting")

	switch opts.command {
	case commandHistory:
		if err := runHistory(ctx, stdout, config.GetString(config.KeyHistoryPath), opts.limit, color); err != nil {
			_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
			return exitFailure
		}
		return exitOK
	default:
		return runSync(ctx, opts, stdout, stderr, color, hints)
	}
}

func runSync(ctx context.Context, opts cliOptions, stdout, stderr io.Writer, color bool, hints hintOptions) int {
	p := newPalette(stdout, color)
	var display statusDisplay = plainDisplay{w: stdout}
	if !opts.quiet && isTerminal(stdout) {
		display = newLiveDisplay(stdout, p)
	}
	con := newConsole(display, p, opts.quiet, terminalWidth(stdout))

	s, closeFn, err := buildSyncer(con, display)
	if err != nil {
		display.Stop()
		printHint(stderr, err, hints)
		return exitFailure
	}
	defer closeFn()

	var report syncer.Report
	if opts.command == commandCheck {
		report, err = s.Check(ctx)
	} else {
		report, err = s.Ensure(ctx)
	}
	display.Stop()

	if !opts.quiet {
		_, _ = fmt.Fprintln(stdout)
		printSummary(stdout, p, report)
	}
	if err != nil {
		_, _ = fmt.Fprintln(stderr)
		printHint(stderr, err, hints)
		return exitFailure
	}

	if opts.copyPath && report.DriverPath != "" {
		if err := copyPath(report.DriverPath); err != nil {
			_, _ = fmt.Fprintf(stderr, "Warning: could not copy path: %v\n", err)
		} else if !opts.quiet {
			_, _ = fmt.Fprintln(stdout, p.dim.Render("Driver path copied to clipboard."))
		}
	}

	if opts.command == commandCheck && report.NeedsDownload() {
		return exitFailure
	}
	return exitOK
}

// buildSyncer wires detectors, resolver, installer and optional history
// from the loaded configuration.
func buildSyncer(con *console, display statusDisplay) (*syncer.Syncer, func(), error) {
	platform := strings.TrimSpace(config.GetString(config.KeyPlatform))
	if platform != "" && !resolve.ValidPlatform(platform) {
		return nil, nil, appErrors.New(
			appErrors.CodeConfigurationError,
			fmt.Sprintf("unknown platform %q (want one of %s)", platform, strings.Join(resolve.Platforms, ", ")),
			nil,
		)
	}

	client := downloadClient()
	resolver, err := resolve.New(config.GetString(config.KeySource), resolverOptions(client))
	if err != nil {
		return nil, nil, err
	}

	installer := install.New(config.GetString(config.KeyInstallDir),
		install.WithDriverName(config.GetString(config.KeyDriverName)),
		install.WithHTTPClient(client),
		install.WithProgress(display.Progress),
	)

	browsers := browserCandidates()
	opts := syncer.Options{
		DetectBrowser: func(ctx context.Context) (detect.Info, error) {
			display.Stage("Detecting Chrome")
			return detect.Browser(ctx, detect.BrowserOptions{Binaries: browsers})
		},
		DetectDriver: func(ctx context.Context) (detect.Info, error) {
			display.Stage("Detecting ChromeDriver")
			return detect.Driver(ctx, detect.DriverOptions{
				Dir:  installer.Dir(),
				Name: filepath.Base(installer.Target()),
			})
		},
		Resolver:      stagedResolver{next: resolver, display: display, con: con},
		Installer:     stagedInstaller{next: installer, display: display},
		Logger:        con,
		Platform:      platform,
		DetectTimeout: config.GetDuration(config.KeyDetectTimeout),
	}

	closeFn := func() {}
	if config.GetBool(config.KeyHistoryEnabled) {
		store, err := history.Open(config.GetString(config.KeyHistoryPath))
		if err != nil {
			con.Warn("History disabled: " + err.Error())
		} else {
			opts.Recorder = store
			closeFn = func() { _ = store.Close() }
		}
	}

	s, err := syncer.New(opts)
	if err != nil {
		closeFn()
		return nil, nil, err
	}
	return s, closeFn, nil
}

func browserCandidates() []string {
	if bins := config.GetStringSlice(config.KeyBrowserBinary); len(bins) > 0 {
		return bins
	}
	return detect.DefaultBrowserBinaries(runtime.GOOS)
}

// downloadClient is shared by the manifest fetch and the archive download.
// download.timeout of 0 means neither has a time limit.
func downloadClient() *http.Client {
	return &http.Client{Timeout: config.GetDuration(config.KeyTimeout)}
}

func resolverOptions(client *http.Client) resolve.Options {
	return resolve.Options{
		BaseURL:     config.GetString(config.KeyBaseURL),
		ManifestURL: config.GetString(config.KeyManifestURL),
		HTTPClient:  client,
	}
}

// stagedResolver reports the resolve step to the display and prints the
// chosen URL under the status line.
type stagedResolver struct {
	next    resolve.Resolver
	display statusDisplay
	con     *console
}

func (r stagedResolver) Resolve(ctx context.Context, version, platform string) (string, error) {
	r.display.Stage(fmt.Sprintf("Finding ChromeDriver %s for %s", version, platform))
	url, err := r.next.Resolve(ctx, version, platform)
	if err == nil {
		r.con.Detail(url)
	}
	return url, err
}

// stagedInstaller reports the download step to the display.
type stagedInstaller struct {
	next    *install.Installer
	display statusDisplay
}

func (i stagedInstaller) Install(ctx context.Context, url string) (install.Result, error) {
	i.display.Stage(fmt.Sprintf("Downloading %s to %s", filepath.Base(url), i.next.Target()))
	return i.next.Install(ctx, url)
}

var writeClipboard = clipboard.WriteAll

func copyPath(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return writeClipboard(abs)
}

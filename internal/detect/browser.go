package detect

import (
	"context"
	"os/exec"
	"runtime"
	"strings"

	"driversync/internal/debug"
	"driversync/internal/version"
)

// BrowserOptions configure how Browser looks for the installed browser.
type BrowserOptions struct {
	// Binaries are tried in order; the first one that reports a version wins.
	// Defaults to DefaultBrowserBinaries for the running OS.
	Binaries []string
	Runner   CommandRunner
	LookPath LookPathFunc
	// ReadRegistry is consulted before any binary when non-nil.
	// Defaults to the platform registry reader (nil outside Windows).
	ReadRegistry RegistryReader
	// SkipRegistry disables the registry lookup even on Windows.
	SkipRegistry bool
}

// DefaultBrowserBinaries returns the browser candidates for goos.
func DefaultBrowserBinaries(goos string) []string {
	switch goos {
	case "darwin":
		return []string{
			"/Applications/Google Chrome.app/Contents/MacOS/Google Chrome",
			"/Applications/Chromium.app/Contents/MacOS/Chromium",
			"google-chrome",
			"chromium",
		}
	case "windows":
		return []string{
			`C:\Program Files\Google\Chrome\Application\chrome.exe`,
			`C:\Program Files (x86)\Google\Chrome\Application\chrome.exe`,
			"chrome",
		}
	default:
		return []string{
			"google-chrome",
			"google-chrome-stable",
			"chromium-browser",
			"chromium",
		}
	}
}

// Browser discovers the installed browser version.
//
// Every candidate is tried before giving up, so a broken google-chrome still
// falls through to chromium-browser. When no candidate resolves at all the
// error is KindNotInstalled; otherwise the last failure is returned.
func Browser(ctx context.Context, opts BrowserOptions) (Info, error) {
	readRegistry := opts.ReadRegistry
	if readRegistry == nil && !opts.SkipRegistry {
		readRegistry = platformRegistryReader
	}
	if readRegistry != nil && !opts.SkipRegistry {
		if info, ok := browserFromRegistry(readRegistry); ok {
			return info, nil
		}
	}

	binaries := opts.Binaries
	if len(binaries) == 0 {
		binaries = DefaultBrowserBinaries(runtime.GOOS)
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}
	runner := opts.Runner
	if runner == nil {
		runner = execCommandRunner{}
	}

	var lastErr error
	for _, candidate := range binaries {
		candidate = strings.TrimSpace(candidate)
		if candidate == "" {
			continue
		}
		resolved, err := lookPath(candidate)
		if err != nil {
			debug.Logf("browser candidate %s not found: %v", candidate, err)
			continue
		}

		info, err := runVersion(ctx, runner, "browser", resolved)
		if err != nil {
			debug.Logf("browser candidate %s failed: %v", resolved, err)
			lastErr = err
			continue
		}
		debug.LogFields(debug.Fields{"bin": resolved, "version": info.Version.String()}, "browser detected")
		return info, nil
	}

	if lastErr != nil {
		return Info{}, lastErr
	}
	return Info{}, DetectError{
		Kind:   KindNotInstalled,
		Target: "browser",
	}
}

func browserFromRegistry(read RegistryReader) (Info, bool) {
	raw, key, err := read()
	if err != nil {
		debug.Logf("registry lookup failed: %v", err)
		return Info{}, false
	}
	v, err := version.Parse(raw)
	if err != nil {
		debug.Logf("registry value %q at %s is not a version: %v", raw, key, err)
		return Info{}, false
	}
	debug.LogFields(debug.Fields{"key": key, "version": v.String()}, "browser detected from registry")
	return Info{Bin: key, Source: SourceRegistry, Version: v}, true
}

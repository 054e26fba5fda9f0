package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/muesli/reflow/wordwrap"

	appErrors "driversync/internal/errors"
	"driversync/internal/resolve"
)

const cftDashboardURL = "https://googlechromelabs.github.io/chrome-for-testing/"

type hintOptions struct {
	rich     bool
	width    int
	browsers []string
}

// printHint writes troubleshooting advice for err. Rich output renders the
// markdown through glamour; otherwise it is wrapped plain text.
func printHint(w io.Writer, err error, opts hintOptions) {
	if err == nil {
		return
	}
	md := formatHint(err, opts.browsers)
	width := opts.width
	if width <= 0 || width > 100 {
		width = 80
	}

	if opts.rich {
		r, rerr := glamour.NewTermRenderer(
			glamour.WithStandardStyle("dark"),
			glamour.WithWordWrap(width),
		)
		if rerr == nil {
			if out, rerr := r.Render(md); rerr == nil {
				_, _ = fmt.Fprint(w, out)
				return
			}
		}
	}
	_, _ = fmt.Fprintln(w, wordwrap.String(md, width))
}

func formatHint(err error, browsers []string) string {
	detail := errorDetail(err)

	switch appErrors.CodeOf(err) {
	case appErrors.CodeBrowserNotFound:
		return formatBrowserNotFoundHint(browsers)
	case appErrors.CodeCommandFailed, appErrors.CodeParseFailed:
		return fmt.Sprintf(`## Could not read the Chrome version

Error: %s

Troubleshooting:

- Run the browser by hand with `+"`--version`"+` and check it prints a version like 146.0.7680.80
- Point driversync at a different binary with `+"`--browser <path>`"+`
`, detail)
	case appErrors.CodeNetworkFailure:
		return fmt.Sprintf(`## Download failed

Error: %s

- Check your network connection and any HTTP(S)_PROXY settings
- The manifest lives at %s
- `+"`--source static`"+` builds the archive URL directly and skips the manifest
`, detail, resolve.DefaultManifestURL)
	case appErrors.CodeNoMatchingDownload, appErrors.CodeManifestMissingKey:
		return fmt.Sprintf(`## No matching ChromeDriver build

Error: %s

Chrome for Testing publishes drivers for Chrome 115 and later. Older or
very new builds may not have a driver yet.

- See available versions at %s
- Update Chrome, or retry later when the driver has been published
`, detail, cftDashboardURL)
	case appErrors.CodeExtractionFailed:
		return fmt.Sprintf(`## Could not unpack ChromeDriver

Error: %s

- Make sure the install directory is writable (`+"`--dir`"+`)
- Stop any running chromedriver that may be locking the file
`, detail)
	case appErrors.CodeUnsupportedOS:
		return fmt.Sprintf(`## Unsupported platform

Error: %s

Pick a platform explicitly with `+"`--platform`"+`, one of: %s
`, detail, strings.Join(resolve.Platforms, ", "))
	case appErrors.CodeConfigurationError:
		return fmt.Sprintf(`## Configuration error

Error: %s

Settings are read from `+"`~/.driversync/config.yaml`"+`, `+"`.driversync/config.yaml`"+`
in the project, `+"`DS_*`"+` environment variables and command-line flags.
`, detail)
	default:
		return fmt.Sprintf("Error: %s\n", detail)
	}
}

func formatBrowserNotFoundHint(browsers []string) string {
	var b strings.Builder
	b.WriteString("## Chrome is required but was not found\n\n")
	if len(browsers) > 0 {
		b.WriteString("Looked for:\n\n")
		for _, bin := range browsers {
			fmt.Fprintf(&b, "- `%s`\n", bin)
		}
		b.WriteString("\n")
	}
	b.WriteString("Install Google Chrome or Chromium, or tell driversync where it is:\n\n")
	b.WriteString("- `driversync --browser /path/to/chrome`\n")
	b.WriteString("- `browser.binaries` in `.driversync/config.yaml`\n")
	return b.String()
}

// errorDetail is err's message plus its underlying cause when the message
// does not already include it.
func errorDetail(err error) string {
	detail := strings.TrimSpace(err.Error())
	if cause := appErrors.Cause(err); cause != nil {
		if text := strings.TrimSpace(cause.Error()); text != "" && !strings.Contains(detail, text) {
			detail += " (" + text + ")"
		}
	}
	if detail == "" {
		detail = "unknown error"
	}
	return detail
}

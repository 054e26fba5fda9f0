// Package resolve turns a browser version and platform tag into the URL of
// the matching chromedriver archive.
//
// Two strategies exist. Static builds the URL from a template and never
// touches the network. Manifest downloads the Chrome for Testing
// known-good-versions feed and picks the first entry whose major.minor.patch
// matches the browser.
package resolve

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	appErrors "driversync/internal/errors"
)

// Default endpoints.
const (
	DefaultBaseURL     = "https://storage.googleapis.com/chrome-for-testing-public"
	DefaultManifestURL = "https://googlechromelabs.github.io/chrome-for-testing/known-good-versions-with-downloads.json"
	DefaultTimeout     = 30 * time.Second
)

// Source names a resolver strategy.
type Source string

const (
	SourceStatic   Source = "static"
	SourceManifest Source = "manifest"
)

// Resolver maps a browser version and platform tag to a download URL.
type Resolver interface {
	Resolve(ctx context.Context, version, platform string) (string, error)
}

// Options carries the endpoints and HTTP client shared by the strategies.
type Options struct {
	BaseURL     string
	ManifestURL string
	HTTPClient  *http.Client
}

// New returns the resolver named by source. An empty source selects the
// manifest resolver.
func New(source string, opts Options) (Resolver, error) {
	switch Source(strings.ToLower(strings.TrimSpace(source))) {
	case SourceStatic:
		return NewStatic(opts.BaseURL), nil
	case SourceManifest, "":
		var mOpts []ManifestOption
		if opts.HTTPClient != nil {
			mOpts = append(mOpts, WithHTTPClient(opts.HTTPClient))
		}
		return NewManifest(opts.ManifestURL, mOpts...), nil
	default:
		return nil, appErrors.New(
			appErrors.CodeConfigurationError,
			fmt.Sprintf("unknown download source %q (want %q or %q)", source, SourceStatic, SourceManifest),
			nil,
		)
	}
}

package resolve

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/tidwall/gjson"

	"driversync/internal/debug"
	appErrors "driversync/internal/errors"
	"driversync/internal/version"
)

// maxManifestBytes bounds the feed read; the real document is a few MB.
const maxManifestBytes = 64 << 20

// Manifest resolves URLs by scanning the known-good-versions feed.
type Manifest struct {
	url        string
	httpClient *http.Client
}

// ManifestOption configures a Manifest.
type ManifestOption func(*Manifest)

// WithHTTPClient sets a custom HTTP client for the manifest fetch.
func WithHTTPClient(client *http.Client) ManifestOption {
	return func(m *Manifest) {
		m.httpClient = client
	}
}

// NewManifest creates a Manifest resolver reading url, or DefaultManifestURL
// when url is empty.
func NewManifest(url string, opts ...ManifestOption) *Manifest {
	url = strings.TrimSpace(url)
	if url == "" {
		url = DefaultManifestURL
	}
	m := &Manifest{
		url: url,
		httpClient: &http.Client{
			Timeout: DefaultTimeout,
		},
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Resolve fetches the feed and returns the first chromedriver URL for
// platform whose version shares version's major.minor.patch.
func (m *Manifest) Resolve(ctx context.Context, version, platform string) (string, error) {
	body, err := m.fetch(ctx)
	if err != nil {
		return "", err
	}
	return MatchManifest(body, version, platform)
}

func (m *Manifest) fetch(ctx context.Context) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, m.url, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "driversync")

	resp, err := m.httpClient.Do(req)
	if err != nil {
		return nil, appErrors.New(appErrors.CodeNetworkFailure, "fetch manifest: "+err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, appErrors.New(
			appErrors.CodeNetworkFailure,
			fmt.Sprintf("fetch manifest: status %d", resp.StatusCode),
			nil,
		)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxManifestBytes))
	if err != nil {
		return nil, appErrors.New(appErrors.CodeNetworkFailure, "read manifest: "+err.Error(), err)
	}
	debug.LogFields(debug.Fields{"url": m.url, "bytes": len(body)}, "manifest fetched")
	return body, nil
}

// MatchManifest scans a known-good-versions document. Entries are visited in
// document order and the first match wins.
//
// A document without "versions", or whose matching entries all lack
// "downloads.chromedriver", yields CodeManifestMissingKey. A well-formed
// document with no matching entry yields CodeNoMatchingDownload.
func MatchManifest(body []byte, browserVersion, platform string) (string, error) {
	if !gjson.ValidBytes(body) {
		return "", appErrors.New(appErrors.CodeParseFailed, "manifest is not valid JSON", nil)
	}
	versions := gjson.GetBytes(body, "versions")
	if !versions.Exists() || !versions.IsArray() {
		return "", appErrors.New(appErrors.CodeManifestMissingKey, `manifest has no "versions" array`, nil)
	}

	prefix := version.PrefixOf(browserVersion)
	var (
		url            string
		matchedVersion string
		missingKey     bool
		sawDrivers     bool
	)
	versions.ForEach(func(_, entry gjson.Result) bool {
		v := entry.Get("version").String()
		if version.PrefixOf(v) != prefix {
			return true
		}
		drivers := entry.Get("downloads.chromedriver")
		if !drivers.Exists() {
			missingKey = true
			return true
		}
		sawDrivers = true
		for _, d := range drivers.Array() {
			if d.Get("platform").String() == platform {
				url = d.Get("url").String()
				matchedVersion = v
				return false
			}
		}
		return true
	})

	if url != "" {
		debug.LogFields(debug.Fields{"version": matchedVersion, "platform": platform, "url": url}, "manifest match")
		return url, nil
	}
	if missingKey && !sawDrivers {
		return "", appErrors.New(
			appErrors.CodeManifestMissingKey,
			fmt.Sprintf(`manifest entries for %s have no "downloads.chromedriver"`, prefix),
			nil,
		)
	}
	return "", appErrors.New(
		appErrors.CodeNoMatchingDownload,
		fmt.Sprintf("no chromedriver download for %s on %s", prefix, platform),
		nil,
	)
}

package resolve

import (
	"context"
	"fmt"
	"strings"
)

// Static builds archive URLs from a fixed template:
//
//	{base}/{version}/{platform}/chromedriver-{platform}.zip
type Static struct {
	baseURL string
}

// NewStatic returns a Static resolver rooted at baseURL, or DefaultBaseURL
// when baseURL is empty.
func NewStatic(baseURL string) *Static {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Static{baseURL: baseURL}
}

// Resolve returns the archive URL. The same inputs always yield the same URL.
func (s *Static) Resolve(_ context.Context, version, platform string) (string, error) {
	version = strings.TrimSpace(version)
	platform = strings.TrimSpace(platform)
	if version == "" {
		return "", fmt.Errorf("resolve: empty version")
	}
	if platform == "" {
		return "", fmt.Errorf("resolve: empty platform")
	}
	return fmt.Sprintf("%s/%s/%s/chromedriver-%s.zip", s.baseURL, version, platform, platform), nil
}

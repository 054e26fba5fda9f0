// Package version parses the four-part version numbers printed by Chrome and
// ChromeDriver and decides whether two of them are compatible.
package version

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// pattern matches the dotted four-part version inside arbitrary command output,
// e.g. "Google Chrome 146.0.7680.80 " or "ChromeDriver 146.0.7680.80 (abc-refs/...)".
var pattern = regexp.MustCompile(`(\d+\.\d+\.\d+\.\d+)`)

// Version is a parsed four-part version number.
type Version struct {
	Major int
	Minor int
	Build int
	Patch int
	Raw   string
}

// Parse extracts the first four-part version from s.
func Parse(s string) (Version, error) {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return Version{}, fmt.Errorf("empty version string")
	}
	match := pattern.FindString(trimmed)
	if match == "" {
		return Version{}, fmt.Errorf("no version found in %q", trimmed)
	}

	parts := strings.Split(match, ".")
	nums := make([]int, len(parts))
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return Version{}, fmt.Errorf("parse %q: %w", match, err)
		}
		nums[i] = n
	}

	return Version{
		Major: nums[0],
		Minor: nums[1],
		Build: nums[2],
		Patch: nums[3],
		Raw:   match,
	}, nil
}

// String returns the dotted four-part form.
func (v Version) String() string {
	if v.Raw != "" {
		return v.Raw
	}
	return fmt.Sprintf("%d.%d.%d.%d", v.Major, v.Minor, v.Build, v.Patch)
}

// Prefix returns the first three dot-separated fields ("146.0.7680").
func (v Version) Prefix() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Build)
}

// Compatible reports whether v and other share the same major.minor.patch
// prefix. The fourth field is ignored.
func (v Version) Compatible(other Version) bool {
	return v.Prefix() == other.Prefix()
}

// PrefixOf truncates a dotted version string to its first three fields.
// Strings with fewer fields are returned unchanged.
func PrefixOf(s string) string {
	parts := strings.SplitN(strings.TrimSpace(s), ".", 4)
	if len(parts) < 3 {
		return strings.TrimSpace(s)
	}
	return strings.Join(parts[:3], ".")
}

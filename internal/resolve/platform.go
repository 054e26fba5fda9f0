package resolve

import (
	"fmt"
	"runtime"

	appErrors "driversync/internal/errors"
)

// Chrome for Testing platform tags.
const (
	PlatformLinux64  = "linux64"
	PlatformMacX64   = "mac-x64"
	PlatformMacArm64 = "mac-arm64"
	PlatformWin32    = "win32"
	PlatformWin64    = "win64"
)

// Platforms lists every tag the distribution publishes.
var Platforms = []string{
	PlatformLinux64,
	PlatformMacX64,
	PlatformMacArm64,
	PlatformWin32,
	PlatformWin64,
}

// PlatformFor maps a GOOS/GOARCH pair to its distribution tag.
func PlatformFor(goos, goarch string) (string, error) {
	switch goos {
	case "linux":
		if goarch == "amd64" {
			return PlatformLinux64, nil
		}
	case "darwin":
		switch goarch {
		case "amd64":
			return PlatformMacX64, nil
		case "arm64":
			return PlatformMacArm64, nil
		}
	case "windows":
		switch goarch {
		case "386":
			return PlatformWin32, nil
		case "amd64", "arm64":
			return PlatformWin64, nil
		}
	}
	return "", appErrors.New(
		appErrors.CodeUnsupportedOS,
		fmt.Sprintf("no chromedriver build for %s/%s", goos, goarch),
		nil,
	)
}

// CurrentPlatform returns the tag for the running binary.
func CurrentPlatform() (string, error) {
	return PlatformFor(runtime.GOOS, runtime.GOARCH)
}

// ValidPlatform reports whether tag is a published platform tag.
func ValidPlatform(tag string) bool {
	for _, p := range Platforms {
		if p == tag {
			return true
		}
	}
	return false
}

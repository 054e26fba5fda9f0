package detect

import (
	"context"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"driversync/internal/debug"
)

// DriverOptions configure how Driver looks for an installed chromedriver.
type DriverOptions struct {
	// Dir is the install directory checked before PATH. Empty skips it.
	Dir string
	// Name is the driver file name. Defaults to DefaultDriverName.
	Name     string
	Runner   CommandRunner
	LookPath LookPathFunc
	// SkipPath restricts the search to Dir.
	SkipPath bool
}

// DefaultDriverName returns the chromedriver file name for goos.
func DefaultDriverName(goos string) string {
	if goos == "windows" {
		return "chromedriver.exe"
	}
	return "chromedriver"
}

// Driver discovers the installed driver version. A driver placed in the
// install directory shadows one on PATH.
func Driver(ctx context.Context, opts DriverOptions) (Info, error) {
	name := opts.Name
	if name == "" {
		name = DefaultDriverName(runtime.GOOS)
	}
	runner := opts.Runner
	if runner == nil {
		runner = execCommandRunner{}
	}
	lookPath := opts.LookPath
	if lookPath == nil {
		lookPath = exec.LookPath
	}

	bin := ""
	if opts.Dir != "" {
		local := filepath.Join(opts.Dir, name)
		if st, err := os.Stat(local); err == nil && !st.IsDir() {
			// exec treats a bare name as a PATH lookup.
			if abs, err := filepath.Abs(local); err == nil {
				local = abs
			}
			bin = local
		}
	}
	if bin == "" && !opts.SkipPath {
		resolved, err := lookPath(name)
		if err == nil {
			bin = resolved
		} else {
			debug.Logf("driver %s not on PATH: %v", name, err)
		}
	}
	if bin == "" {
		return Info{}, DetectError{
			Kind:   KindNotInstalled,
			Target: "driver",
		}
	}

	info, err := runVersion(ctx, runner, "driver", bin)
	if err != nil {
		return info, err
	}
	debug.LogFields(debug.Fields{"bin": bin, "version": info.Version.String()}, "driver detected")
	return info, nil
}

// Package detect discovers the installed browser and driver versions.
//
// Both detectors run a binary with --version and pull the four-part version
// out of its output. On Windows the browser is first looked up in the
// registry, because chrome.exe does not print its version to stdout there.
//
// A missing binary is reported as a DetectError of kind KindNotInstalled so
// callers can treat it as "absent" rather than a hard failure.
package detect

import (
	"context"
	"errors"
	"fmt"
	"os/exec"

	"driversync/internal/version"
)

// Source records where a version was read from.
type Source string

const (
	SourceCommand  Source = "command"
	SourceRegistry Source = "registry"
)

// Info captures what a detector discovered.
type Info struct {
	// Bin is the resolved binary path, or the registry key for registry reads.
	Bin     string
	Source  Source
	Version version.Version
}

// Kind categorizes detection failures.
type Kind string

const (
	KindUnknown       Kind = "unknown"
	KindNotInstalled  Kind = "not_installed"
	KindCommandFailed Kind = "command_failed"
	KindParse         Kind = "parse_failed"
)

// DetectError wraps failures with their category and optional inner error.
type DetectError struct {
	Kind   Kind
	Target string
	Info   Info
	Err    error
}

// Error implements the error interface.
func (e DetectError) Error() string {
	target := e.Target
	if target == "" {
		target = "binary"
	}
	switch {
	case e.Err != nil:
		return fmt.Sprintf("%s: %v", target, e.Err)
	case e.Kind == KindNotInstalled:
		return target + " not found"
	case e.Kind == KindParse:
		return "failed to parse " + target + " version"
	case e.Kind == KindCommandFailed:
		return "failed to run " + target
	default:
		return target + " detection failed"
	}
}

// Unwrap exposes the wrapped error.
func (e DetectError) Unwrap() error {
	return e.Err
}

// IsNotInstalled reports whether err says the binary is absent.
func IsNotInstalled(err error) bool {
	var dErr DetectError
	return errors.As(err, &dErr) && dErr.Kind == KindNotInstalled
}

// KindOf returns the detection kind of err, or KindUnknown.
func KindOf(err error) Kind {
	var dErr DetectError
	if errors.As(err, &dErr) {
		return dErr.Kind
	}
	return KindUnknown
}

// CommandRunner executes external commands, allowing tests to inject stubs.
type CommandRunner interface {
	Run(ctx context.Context, bin string, args ...string) ([]byte, error)
}

type execCommandRunner struct{}

func (execCommandRunner) Run(ctx context.Context, bin string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, bin, args...)
	return cmd.CombinedOutput()
}

// LookPathFunc resolves a binary reference to an executable path.
type LookPathFunc func(bin string) (string, error)

// RegistryReader returns the raw version string stored by the browser's
// installer, along with the key it was read from.
type RegistryReader func() (value string, key string, err error)

// runVersion runs bin --version and parses the result.
func runVersion(ctx context.Context, runner CommandRunner, target, bin string) (Info, error) {
	info := Info{Bin: bin, Source: SourceCommand}

	out, err := runner.Run(ctx, bin, "--version")
	if err != nil {
		return info, DetectError{
			Kind:   KindCommandFailed,
			Target: target,
			Info:   info,
			Err:    err,
		}
	}

	v, err := version.Parse(string(out))
	if err != nil {
		return info, DetectError{
			Kind:   KindParse,
			Target: target,
			Info:   info,
			Err:    err,
		}
	}
	info.Version = v
	return info, nil
}

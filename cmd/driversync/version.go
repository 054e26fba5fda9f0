package main

import (
	"fmt"
	"io"
	"runtime"
	rtdebug "runtime/debug"

	"driversync/internal/debug"
)

// Set with -ldflags "-X main.Version=... -X main.Build=... -X main.BuildTime=...".
var (
	Version   = "dev"
	Build     = ""
	BuildTime = ""
)

// buildInfo identifies the running binary in --version output, the run
// summary header and the debug log.
type buildInfo struct {
	version string
	commit  string
	built   string
	goos    string
	goarch  string
	goVer   string
}

func currentBuild() buildInfo {
	b := buildInfo{
		version: Version,
		commit:  Build,
		built:   BuildTime,
		goos:    runtime.GOOS,
		goarch:  runtime.GOARCH,
		goVer:   runtime.Version(),
	}
	if b.commit == "" {
		if info, ok := rtdebug.ReadBuildInfo(); ok {
			for _, s := range info.Settings {
				if s.Key == "vcs.revision" {
					b.commit = s.Value
				}
			}
		}
	}
	if len(b.commit) > 7 {
		b.commit = b.commit[:7]
	}
	return b
}

// label is the short form used in the summary header: "v1.4.0" or "dev@abc1234".
func (b buildInfo) label() string {
	if b.version == "dev" && b.commit != "" {
		return "dev@" + b.commit
	}
	return "v" + b.version
}

func (b buildInfo) fields() debug.Fields {
	return debug.Fields{
		"version":  b.version,
		"commit":   b.commit,
		"built":    b.built,
		"platform": b.goos + "/" + b.goarch,
		"go":       b.goVer,
	}
}

func printVersion(w io.Writer, b buildInfo) {
	_, _ = fmt.Fprintf(w, "driversync version %s", b.version)
	if b.commit != "" {
		_, _ = fmt.Fprintf(w, " (%s)", b.commit)
	}
	if b.built != "" {
		_, _ = fmt.Fprintf(w, " built %s", b.built)
	}
	_, _ = fmt.Fprintf(w, "\n%s %s/%s\n", b.goVer, b.goos, b.goarch)
}

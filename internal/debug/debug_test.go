package debug

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// useTempLog points the log at a temp dir and returns the file path.
func useTempLog(t *testing.T) string {
	t.Helper()
	Close()
	path := filepath.Join(t.TempDir(), LogDirName, LogFileName)
	orig := getLogPath
	getLogPath = func() (string, error) { return path, nil }
	t.Cleanup(func() {
		Close()
		getLogPath = orig
	})
	return path
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	return string(data)
}

func TestDisabledIsNoop(t *testing.T) {
	path := useTempLog(t)
	if err := Init(false); err != nil {
		t.Fatalf("Init(false): %v", err)
	}
	if Enabled() {
		t.Fatal("expected logging to be disabled")
	}
	Logf("ignored %d", 2)
	LogFields(Fields{"k": "v"}, "ignored")

	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatalf("expected no log file, stat err = %v", err)
	}
}

func TestEnabledWritesMessages(t *testing.T) {
	path := useTempLog(t)
	if err := Init(true); err != nil {
		t.Fatalf("Init(true): %v", err)
	}
	if !Enabled() {
		t.Fatal("expected logging to be enabled")
	}

	Logf("plain message")
	Logf("resolved %s for %s", "146.0.7680.80", "linux64")
	LogFields(Fields{"candidate": "google-chrome", "version": "146.0.7680.80"}, "browser detected")

	content := readLog(t, path)
	for _, want := range []string{
		"debug log started",
		"plain message",
		"resolved 146.0.7680.80 for linux64",
		"candidate=google-chrome",
		"version=146.0.7680.80",
	} {
		if !strings.Contains(content, want) {
			t.Errorf("log missing %q:\n%s", want, content)
		}
	}
}

func TestInitTruncates(t *testing.T) {
	path := useTempLog(t)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("stale line from a previous run\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	if err := Init(true); err != nil {
		t.Fatalf("Init(true): %v", err)
	}
	content := readLog(t, path)
	if strings.Contains(content, "stale line") {
		t.Fatalf("expected old content to be truncated:\n%s", content)
	}
}

func TestCloseIsIdempotent(t *testing.T) {
	useTempLog(t)
	if err := Init(true); err != nil {
		t.Fatalf("Init(true): %v", err)
	}
	Close()
	Close()
	if Enabled() {
		t.Fatal("expected logging off after Close")
	}
	Logf("after close")
}

func TestGetLogPath(t *testing.T) {
	path, err := GetLogPath()
	if err != nil {
		t.Fatalf("GetLogPath: %v", err)
	}
	if want := filepath.Join(LogDirName, LogFileName); !strings.HasSuffix(path, want) {
		t.Fatalf("GetLogPath() = %q, want suffix %q", path, want)
	}
}

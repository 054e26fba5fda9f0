// Package debug writes an opt-in diagnostic log for driversync runs.
// Nothing is written unless Init(true) was called (the --debug flag); the
// log lives at ~/.driversync/debug.log and starts empty on every run.
package debug

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const (
	LogDirName  = ".driversync"
	LogFileName = "debug.log"
)

// Fields is a set of structured key/value pairs attached to a log entry.
type Fields = logrus.Fields

var (
	mu     sync.RWMutex
	logger *logrus.Logger
	out    *os.File

	// getLogPath is swapped out by tests.
	getLogPath = defaultLogPath
)

// Init opens the log when enable is true. With enable false every logging
// call is a no-op.
func Init(enable bool) error {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		_ = out.Close()
		out = nil
	}
	logger = nil
	if !enable {
		return nil
	}

	path, err := getLogPath()
	if err != nil {
		return fmt.Errorf("determine log path: %w", err)
	}
	//nolint:gosec // G301: shared with the config directory
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create log directory: %w", err)
	}
	//nolint:gosec // G304: path derives from the user's home directory
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	l := logrus.New()
	l.SetOutput(f)
	l.SetLevel(logrus.DebugLevel)
	l.SetFormatter(&logrus.TextFormatter{
		DisableColors:   true,
		FullTimestamp:   true,
		TimestampFormat: "15:04:05.000000",
	})
	l.WithField("pid", os.Getpid()).Debugf("debug log started at %s", time.Now().Format(time.RFC3339))

	out = f
	logger = l
	return nil
}

// Close flushes and closes the log file. Calling it more than once, or
// without Init, is fine.
func Close() {
	mu.Lock()
	defer mu.Unlock()

	if out != nil {
		_ = out.Close()
		out = nil
	}
	logger = nil
}

// Logf writes a formatted line.
func Logf(format string, v ...any) {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		logger.Debugf(format, v...)
	}
}

// LogFields writes msg with structured key/value pairs.
func LogFields(fields Fields, msg string) {
	mu.RLock()
	defer mu.RUnlock()
	if logger != nil {
		logger.WithFields(fields).Debug(msg)
	}
}

// Enabled reports whether a log file is open.
func Enabled() bool {
	mu.RLock()
	defer mu.RUnlock()
	return logger != nil
}

// GetLogPath returns where the log is written.
func GetLogPath() (string, error) {
	return getLogPath()
}

func defaultLogPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("determine user home: %w", err)
	}
	return filepath.Join(home, LogDirName, LogFileName), nil
}

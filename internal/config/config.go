package config

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/spf13/viper"

	appErrors "driversync/internal/errors"
)

const (
	KeyInstallDir     = "install.dir"
	KeyDriverName     = "driver.name"
	KeyBrowserBinary  = "browser.binaries"
	KeySource         = "download.source"
	KeyBaseURL        = "download.base-url"
	KeyManifestURL    = "download.manifest-url"
	KeyTimeout        = "download.timeout"
	KeyPlatform       = "platform"
	KeyHistoryEnabled = "history.enabled"
	KeyHistoryPath    = "history.path"
	KeyDetectTimeout  = "detect.timeout"
)

const (
	// DirName is the per-user and per-project config directory.
	DirName = ".driversync"
	// FileName is the config file inside DirName.
	FileName = "config.yaml"

	// DefaultDetectTimeout bounds each --version call.
	DefaultDetectTimeout = 10 * time.Second
	envPrefix            = "DS"
)

// Defaults mirrored by the CLI help text.
const (
	DefaultBaseURL     = "https://storage.googleapis.com/chrome-for-testing-public"
	DefaultManifestURL = "https://googlechromelabs.github.io/chrome-for-testing/known-good-versions-with-downloads.json"
	DefaultSource      = "manifest"
)

type settings struct {
	workingDir  string
	projectFile string
	userFile    string
}

// Option adjusts where Initialize looks for config files.
type Option func(*settings)

// WithWorkingDir sets the directory project config discovery starts from.
func WithWorkingDir(dir string) Option {
	return func(s *settings) { s.workingDir = dir }
}

// WithProjectConfig uses path as the project config and skips discovery.
func WithProjectConfig(path string) Option {
	return func(s *settings) { s.projectFile = path }
}

// WithUserConfig replaces ~/.driversync/config.yaml.
func WithUserConfig(path string) Option {
	return func(s *settings) { s.userFile = path }
}

var state struct {
	once  sync.Once
	mu    sync.RWMutex
	v     *viper.Viper
	err   error
	files []string
}

// Initialize builds the configuration once. Later layers win:
// defaults, user file, project file, DS_* environment, then ApplyOverrides.
func Initialize(opts ...Option) error {
	state.once.Do(func() {
		var s settings
		for _, opt := range opts {
			opt(&s)
		}
		v, files, err := load(s)
		state.mu.Lock()
		state.v, state.files, state.err = v, files, err
		state.mu.Unlock()
	})
	state.mu.RLock()
	defer state.mu.RUnlock()
	return state.err
}

// ApplyOverrides sets values from command-line flags on top of every other
// layer.
func ApplyOverrides(overrides map[string]any) error {
	if len(overrides) == 0 {
		return nil
	}
	v, err := instance()
	if err != nil {
		return err
	}
	state.mu.Lock()
	defer state.mu.Unlock()
	for key, value := range overrides {
		v.Set(key, value)
	}
	return nil
}

func lookup[T any](key string, get func(*viper.Viper, string) T) T {
	var zero T
	v, err := instance()
	if err != nil {
		return zero
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	return get(v, key)
}

// GetString returns a string value.
func GetString(key string) string {
	return lookup(key, (*viper.Viper).GetString)
}

// GetBool returns a bool value.
func GetBool(key string) bool {
	return lookup(key, (*viper.Viper).GetBool)
}

// GetDuration returns a duration value ("45s", "2m").
func GetDuration(key string) time.Duration {
	return lookup(key, (*viper.Viper).GetDuration)
}

// GetStringSlice returns a list value. Comma-separated strings, as set
// through the environment, are split and trimmed.
func GetStringSlice(key string) []string {
	var out []string
	for _, item := range lookup(key, (*viper.Viper).GetStringSlice) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LoadedFiles lists the config files that were merged, user file first.
func LoadedFiles() []string {
	state.mu.RLock()
	defer state.mu.RUnlock()
	return append([]string(nil), state.files...)
}

// Validate checks values that would otherwise fail deep inside a run.
func Validate() error {
	invalid := func(msg string) error {
		return appErrors.New(appErrors.CodeConfigurationError, msg, nil)
	}
	switch source := strings.ToLower(strings.TrimSpace(GetString(KeySource))); source {
	case "static", "manifest":
	default:
		return invalid(fmt.Sprintf("%s must be static or manifest, got %q", KeySource, source))
	}
	for _, key := range []string{KeyTimeout, KeyDetectTimeout} {
		if GetDuration(key) < 0 {
			return invalid(key + " must not be negative")
		}
	}
	if strings.TrimSpace(GetString(KeyDriverName)) == "" {
		return invalid(KeyDriverName + " must not be empty")
	}
	return nil
}

func load(s settings) (*viper.Viper, []string, error) {
	dir := strings.TrimSpace(s.workingDir)
	if dir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, nil, fmt.Errorf("determine working directory: %w", err)
		}
		dir = wd
	}

	userFile := strings.TrimSpace(s.userFile)
	if userFile == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, nil, fmt.Errorf("determine user home: %w", err)
		}
		userFile = filepath.Join(home, DirName, FileName)
	}

	projectFile := strings.TrimSpace(s.projectFile)
	if projectFile == "" {
		found, err := discoverProjectFile(dir)
		if err != nil {
			return nil, nil, err
		}
		projectFile = found
	}

	v := viper.New()
	v.SetConfigType("yaml")
	setDefaults(v)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	var files []string
	for _, layer := range []struct{ name, path string }{
		{"user", userFile},
		{"project", projectFile},
	} {
		merged, err := mergeFile(v, layer.path)
		if err != nil {
			return nil, nil, fmt.Errorf("load %s config: %w", layer.name, err)
		}
		if merged {
			files = append(files, layer.path)
		}
	}
	return v, files, nil
}

// mergeFile merges a YAML file into v. Missing and empty files are skipped.
func mergeFile(v *viper.Viper, path string) (bool, error) {
	if path == "" {
		return false, nil
	}
	//nolint:gosec // G304: reading the user's own config files
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("read %s: %w", path, err)
	case len(bytes.TrimSpace(data)) == 0:
		return false, nil
	}
	if err := v.MergeConfig(bytes.NewReader(data)); err != nil {
		return false, fmt.Errorf("parse %s: %w", path, err)
	}
	return true, nil
}

// discoverProjectFile walks from dir towards the root and returns the first
// .driversync/config.yaml, or "" when there is none.
func discoverProjectFile(dir string) (string, error) {
	for {
		candidate := filepath.Join(dir, DirName, FileName)
		info, err := os.Stat(candidate)
		switch {
		case err == nil && info.IsDir():
			return "", fmt.Errorf("config path %s is a directory", candidate)
		case err == nil:
			return candidate, nil
		case !errors.Is(err, fs.ErrNotExist):
			return "", fmt.Errorf("stat %s: %w", candidate, err)
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", nil
		}
		dir = parent
	}
}

func setDefaults(v *viper.Viper) {
	defaults := map[string]any{
		KeyInstallDir:     ".",
		KeyDriverName:     defaultDriverName(runtime.GOOS),
		KeyBrowserBinary:  []string{},
		KeySource:         DefaultSource,
		KeyBaseURL:        DefaultBaseURL,
		KeyManifestURL:    DefaultManifestURL,
		KeyTimeout:        time.Duration(0),
		KeyPlatform:       "",
		KeyHistoryEnabled: false,
		KeyHistoryPath:    "",
		KeyDetectTimeout:  DefaultDetectTimeout,
	}
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
}

func defaultDriverName(goos string) string {
	if goos == "windows" {
		return "chromedriver.exe"
	}
	return "chromedriver"
}

func instance() (*viper.Viper, error) {
	if err := Initialize(); err != nil {
		return nil, err
	}
	state.mu.RLock()
	defer state.mu.RUnlock()
	if state.v == nil {
		return nil, fmt.Errorf("configuration not initialized")
	}
	return state.v, nil
}

// reset clears package state for tests.
func reset() {
	state.mu.Lock()
	defer state.mu.Unlock()
	state.once = sync.Once{}
	state.v = nil
	state.err = nil
	state.files = nil
}

// ResetForTesting gives tests in other packages a fresh configuration rooted
// in a temp dir. The returned func restores a blank state.
func ResetForTesting(t interface{ TempDir() string }) func() {
	reset()
	tmp := t.TempDir()
	_ = Initialize(WithWorkingDir(tmp), WithUserConfig(filepath.Join(tmp, "user.yaml")))
	return reset
}

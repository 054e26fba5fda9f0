// Package install downloads a chromedriver archive into a directory and leaves
// a single executable at a fixed path.
//
// Archives from the current distribution nest the binary under a folder named
// after the platform (chromedriver-linux64/chromedriver); older ones put it at
// the root. Either way the binary ends up at <dir>/<name>, and the archive and
// any extraction folder are removed afterwards.
package install

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/klauspost/compress/zip"

	"driversync/internal/debug"
	appErrors "driversync/internal/errors"
)

// ArchiveName is the temporary file the download is written to.
const ArchiveName = "chromedriver.zip"

// ProgressFunc receives the bytes written so far and the expected total.
// total is -1 when the server did not send a length.
type ProgressFunc func(done, total int64)

// Result describes a finished install.
type Result struct {
	Path  string
	Bytes int64
}

// Installer fetches and unpacks driver archives.
type Installer struct {
	dir        string
	name       string
	httpClient *http.Client
	progress   ProgressFunc
}

// Option configures an Installer.
type Option func(*Installer)

// WithHTTPClient sets a custom HTTP client for the download.
func WithHTTPClient(client *http.Client) Option {
	return func(i *Installer) {
		i.httpClient = client
	}
}

// WithDriverName overrides the final binary name.
func WithDriverName(name string) Option {
	return func(i *Installer) {
		if strings.TrimSpace(name) != "" {
			i.name = name
		}
	}
}

// WithProgress registers a download progress callback.
func WithProgress(fn ProgressFunc) Option {
	return func(i *Installer) {
		i.progress = fn
	}
}

// New creates an Installer writing into dir.
func New(dir string, opts ...Option) *Installer {
	if strings.TrimSpace(dir) == "" {
		dir = "."
	}
	i := &Installer{
		dir:  dir,
		name: defaultName(),
		httpClient: &http.Client{
			Timeout: 0, // No timeout for downloads
		},
	}
	for _, opt := range opts {
		opt(i)
	}
	return i
}

func defaultName() string {
	if runtime.GOOS == "windows" {
		return "chromedriver.exe"
	}
	return "chromedriver"
}

// Dir returns the install directory.
func (i *Installer) Dir() string { return i.dir }

// Target returns the path the binary is installed to.
func (i *Installer) Target() string { return filepath.Join(i.dir, i.name) }

// Install downloads url and unpacks the driver into the install directory.
// Nothing is rolled back on failure; the archive is removed either way.
func (i *Installer) Install(ctx context.Context, url string) (Result, error) {
	//nolint:gosec // G301: install directory holds an executable
	if err := os.MkdirAll(i.dir, 0755); err != nil {
		return Result{}, fmt.Errorf("create install directory: %w", err)
	}

	archive := filepath.Join(i.dir, ArchiveName)
	defer func() { _ = os.Remove(archive) }()

	n, err := i.download(ctx, url, archive)
	if err != nil {
		return Result{}, err
	}
	debug.LogFields(debug.Fields{"url": url, "bytes": n, "archive": archive}, "archive downloaded")

	path, err := i.unpack(archive)
	if err != nil {
		return Result{}, appErrors.New(appErrors.CodeExtractionFailed, "extract driver: "+err.Error(), err)
	}
	return Result{Path: path, Bytes: n}, nil
}

func (i *Installer) download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/octet-stream")
	req.Header.Set("User-Agent", "driversync")

	resp, err := i.httpClient.Do(req)
	if err != nil {
		return 0, appErrors.New(appErrors.CodeNetworkFailure, "download: "+err.Error(), err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return 0, appErrors.New(
			appErrors.CodeNetworkFailure,
			fmt.Sprintf("download: status %d", resp.StatusCode),
			nil,
		)
	}

	//nolint:gosec // G304: archive path is inside the install directory
	f, err := os.Create(dest)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}

	var w io.Writer = f
	if i.progress != nil {
		w = &progressWriter{w: f, total: resp.ContentLength, fn: i.progress}
	}
	n, err := io.Copy(w, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return n, appErrors.New(appErrors.CodeNetworkFailure, "download: "+err.Error(), err)
	}
	return n, nil
}

// unpack extracts archive into a staging folder inside the install
// directory, moves the driver to its fixed path and drops the rest.
func (i *Installer) unpack(archive string) (string, error) {
	r, err := zip.OpenReader(archive)
	if err != nil {
		return "", fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = r.Close() }()

	root, err := filepath.Abs(i.dir)
	if err != nil {
		return "", fmt.Errorf("resolve install directory: %w", err)
	}
	// Staging on the same filesystem keeps the final rename atomic.
	stage, err := os.MkdirTemp(root, ".driversync-*")
	if err != nil {
		return "", fmt.Errorf("create staging folder: %w", err)
	}
	defer func() {
		if err := os.RemoveAll(stage); err != nil {
			debug.Logf("remove staging folder %s: %v", stage, err)
		}
	}()

	var binary string
	for _, f := range r.File {
		dest, err := safeJoin(stage, f.Name)
		if err != nil {
			return "", err
		}
		if f.FileInfo().IsDir() {
			//nolint:gosec // G301: staging folder is removed afterwards
			if err := os.MkdirAll(dest, 0755); err != nil {
				return "", fmt.Errorf("create %s: %w", f.Name, err)
			}
			continue
		}
		if err := extractFile(f, dest); err != nil {
			return "", err
		}
		if binary == "" && i.isDriver(filepath.Base(dest)) {
			binary = dest
		}
	}
	if binary == "" {
		return "", fmt.Errorf("%s not found in archive", i.name)
	}

	target := filepath.Join(root, i.name)
	if st, err := os.Lstat(target); err == nil {
		if st.IsDir() {
			return "", fmt.Errorf("%s is a directory", target)
		}
		// Windows refuses to rename over an existing file.
		if err := os.Remove(target); err != nil {
			return "", fmt.Errorf("remove old driver: %w", err)
		}
	}
	if err := os.Rename(binary, target); err != nil {
		return "", fmt.Errorf("move driver into place: %w", err)
	}
	//nolint:gosec // G302: driver needs to be executable
	if err := os.Chmod(target, 0755); err != nil {
		return "", fmt.Errorf("set executable permission: %w", err)
	}
	debug.LogFields(debug.Fields{"path": target}, "driver installed")
	return target, nil
}

func (i *Installer) isDriver(base string) bool {
	if base == i.name {
		return true
	}
	return base == "chromedriver" || base == "chromedriver.exe"
}

func extractFile(f *zip.File, dest string) error {
	//nolint:gosec // G301: extracted folders are removed afterwards
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(dest), err)
	}
	rc, err := f.Open()
	if err != nil {
		return fmt.Errorf("open %s: %w", f.Name, err)
	}
	defer func() { _ = rc.Close() }()

	//nolint:gosec // G304: dest was checked by safeJoin
	out, err := os.OpenFile(dest, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return fmt.Errorf("create %s: %w", dest, err)
	}
	//nolint:gosec // G110: archive comes from the vendor's distribution
	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return fmt.Errorf("extract %s: %w", f.Name, err)
	}
	return out.Close()
}

// safeJoin resolves name under root and rejects entries that would escape it.
func safeJoin(root, name string) (string, error) {
	if name == "" || filepath.IsAbs(name) || strings.HasPrefix(name, "/") || strings.HasPrefix(name, `\`) {
		return "", fmt.Errorf("illegal archive entry %q", name)
	}
	dest := filepath.Join(root, name)
	if dest != root && !strings.HasPrefix(dest, root+string(os.PathSeparator)) {
		return "", fmt.Errorf("illegal archive entry %q", name)
	}
	return dest, nil
}

type progressWriter struct {
	w     io.Writer
	done  int64
	total int64
	fn    ProgressFunc
}

func (p *progressWriter) Write(b []byte) (int, error) {
	n, err := p.w.Write(b)
	p.done += int64(n)
	p.fn(p.done, p.total)
	return n, err
}

package install

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appErrors "driversync/internal/errors"
)

type zipEntry struct {
	name string
	body string
}

func buildZip(t *testing.T, entries ...zipEntry) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for _, e := range entries {
		w, err := zw.Create(e.name)
		require.NoError(t, err)
		_, err = w.Write([]byte(e.body))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func serveBytes(t *testing.T, data []byte) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/zip")
		_, _ = w.Write(data)
	}))
	t.Cleanup(server.Close)
	return server
}

func TestInstallRelocatesNestedBinary(t *testing.T) {
	for _, folder := range []string{"chromedriver-linux64", "chromedriver-mac-arm64", "some-other-name", "chromedriver"} {
		t.Run(folder, func(t *testing.T) {
			data := buildZip(t,
				zipEntry{name: folder + "/", body: ""},
				zipEntry{name: folder + "/LICENSE.chromedriver", body: "license"},
				zipEntry{name: folder + "/chromedriver", body: "driver-binary"},
			)
			server := serveBytes(t, data)
			dir := t.TempDir()

			inst := New(dir, WithDriverName("chromedriver"))
			res, err := inst.Install(context.Background(), server.URL+"/chromedriver.zip")
			require.NoError(t, err)

			want := filepath.Join(dir, "chromedriver")
			assert.Equal(t, want, res.Path)
			assert.Equal(t, int64(len(data)), res.Bytes)

			got, err := os.ReadFile(want)
			require.NoError(t, err)
			assert.Equal(t, "driver-binary", string(got))

			assert.NoDirExists(t, filepath.Join(dir, folder))
			assert.NoFileExists(t, filepath.Join(dir, ArchiveName))
			entries, err := os.ReadDir(dir)
			require.NoError(t, err)
			require.Len(t, entries, 1, "only the driver should remain")
			assert.Equal(t, "chromedriver", entries[0].Name())
			assert.False(t, entries[0].IsDir())
			if runtime.GOOS != "windows" {
				st, err := os.Stat(want)
				require.NoError(t, err)
				assert.NotZero(t, st.Mode()&0o111, "driver should be executable")
			}
		})
	}
}

func TestInstallFlatArchive(t *testing.T) {
	data := buildZip(t, zipEntry{name: "chromedriver", body: "flat"})
	server := serveBytes(t, data)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chromedriver"), []byte("old"), 0o755))

	res, err := New(dir, WithDriverName("chromedriver")).Install(context.Background(), server.URL)
	require.NoError(t, err)

	got, err := os.ReadFile(res.Path)
	require.NoError(t, err)
	assert.Equal(t, "flat", string(got))
	assert.NoFileExists(t, filepath.Join(dir, ArchiveName))
}

func TestInstallReplacesExistingDriver(t *testing.T) {
	data := buildZip(t, zipEntry{name: "chromedriver-linux64/chromedriver", body: "new"})
	server := serveBytes(t, data)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "chromedriver"), []byte("old"), 0o755))

	_, err := New(dir, WithDriverName("chromedriver")).Install(context.Background(), server.URL)
	require.NoError(t, err)

	got, err := os.ReadFile(filepath.Join(dir, "chromedriver"))
	require.NoError(t, err)
	assert.Equal(t, "new", string(got))
}

func TestInstallKeepsPreexistingFolders(t *testing.T) {
	data := buildZip(t, zipEntry{name: "shared/chromedriver", body: "bin"})
	server := serveBytes(t, data)
	dir := t.TempDir()
	keep := filepath.Join(dir, "shared", "keep.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(keep), 0o755))
	require.NoError(t, os.WriteFile(keep, []byte("mine"), 0o644))

	_, err := New(dir, WithDriverName("chromedriver")).Install(context.Background(), server.URL)
	require.NoError(t, err)
	assert.FileExists(t, keep)
}

func TestInstallRejectsPathTraversal(t *testing.T) {
	data := buildZip(t, zipEntry{name: "../escape/chromedriver", body: "evil"})
	server := serveBytes(t, data)
	parent := t.TempDir()
	dir := filepath.Join(parent, "install")

	_, err := New(dir, WithDriverName("chromedriver")).Install(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeExtractionFailed, appErrors.CodeOf(err))
	assert.NoFileExists(t, filepath.Join(parent, "escape", "chromedriver"))
}

func TestInstallMissingBinary(t *testing.T) {
	data := buildZip(t, zipEntry{name: "chromedriver-linux64/README", body: "nothing"})
	server := serveBytes(t, data)

	_, err := New(t.TempDir(), WithDriverName("chromedriver")).Install(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeExtractionFailed, appErrors.CodeOf(err))
}

func TestInstallCorruptArchive(t *testing.T) {
	server := serveBytes(t, []byte("this is not a zip"))
	dir := t.TempDir()

	_, err := New(dir).Install(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeExtractionFailed, appErrors.CodeOf(err))
	assert.NoFileExists(t, filepath.Join(dir, ArchiveName))
}

func TestInstallHTTPFailure(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	_, err := New(t.TempDir()).Install(context.Background(), server.URL+"/missing.zip")
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeNetworkFailure, appErrors.CodeOf(err))
}

func TestInstallReportsProgress(t *testing.T) {
	data := buildZip(t, zipEntry{name: "chromedriver-win64/chromedriver.exe", body: "exe"})
	server := serveBytes(t, data)

	var last, total int64
	calls := 0
	inst := New(t.TempDir(), WithDriverName("chromedriver.exe"), WithProgress(func(done, tot int64) {
		calls++
		last, total = done, tot
	}))
	_, err := inst.Install(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Positive(t, calls)
	assert.Equal(t, int64(len(data)), last)
	assert.Equal(t, int64(len(data)), total)
}

func TestNewDefaults(t *testing.T) {
	inst := New("")
	assert.Equal(t, ".", inst.Dir())
	assert.Equal(t, filepath.Join(".", defaultName()), inst.Target())
	assert.NotNil(t, inst.httpClient)
}

func TestInstallRefusesDirectoryAtTarget(t *testing.T) {
	data := buildZip(t, zipEntry{name: "chromedriver-linux64/chromedriver", body: "bin"})
	server := serveBytes(t, data)
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "chromedriver", "keep"), 0o755))

	_, err := New(dir, WithDriverName("chromedriver")).Install(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, appErrors.CodeExtractionFailed, appErrors.CodeOf(err))
	assert.DirExists(t, filepath.Join(dir, "chromedriver", "keep"))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "staging folder and archive should be gone")
}

func TestSafeJoin(t *testing.T) {
	root := filepath.Join(string(os.PathSeparator), "tmp", "install")
	_, err := safeJoin(root, "../x")
	assert.Error(t, err)
	_, err = safeJoin(root, "/etc/passwd")
	assert.Error(t, err)
	got, err := safeJoin(root, "chromedriver-linux64/chromedriver")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "chromedriver-linux64", "chromedriver"), got)
}

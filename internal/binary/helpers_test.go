package binary

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"compress/gzip"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/platform"
)

var linuxAMD64 = &platform.Info{OS: "linux", Arch: "amd64", Machine: "x86_64"}

// tarGzBytes builds a tar.gz archive. Files are added in sorted order.
func tarGzBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		content := files[name]
		header := &tar.Header{
			Name:     name,
			Mode:     0644,
			Size:     int64(len(content)),
			Typeflag: tar.TypeReg,
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write header for %s: %v", name, err)
		}
		if _, err := tarWriter.Write([]byte(content)); err != nil {
			t.Fatalf("failed to write content for %s: %v", name, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gzipWriter.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// tarEntry is one member of an archive built by tarGzEntries. A non-empty
// link makes it a symlink; a name ending in "/" makes it a directory.
type tarEntry struct {
	name string
	link string
	body string
}

// tarGzEntries builds a tar.gz archive with entries in the given order.
func tarGzEntries(t *testing.T, entries ...tarEntry) []byte {
	t.Helper()

	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	for _, e := range entries {
		header := &tar.Header{Name: e.name, Mode: 0644, Typeflag: tar.TypeReg, Size: int64(len(e.body))}
		switch {
		case e.link != "":
			header = &tar.Header{Name: e.name, Mode: 0777, Typeflag: tar.TypeSymlink, Linkname: e.link}
		case strings.HasSuffix(e.name, "/"):
			header = &tar.Header{Name: e.name, Mode: 0755, Typeflag: tar.TypeDir}
		}
		if err := tarWriter.WriteHeader(header); err != nil {
			t.Fatalf("failed to write header for %s: %v", e.name, err)
		}
		if header.Typeflag == tar.TypeReg {
			if _, err := tarWriter.Write([]byte(e.body)); err != nil {
				t.Fatalf("failed to write content for %s: %v", e.name, err)
			}
		}
	}

	if err := tarWriter.Close(); err != nil {
		t.Fatalf("failed to close tar writer: %v", err)
	}
	if err := gzipWriter.Close(); err != nil {
		t.Fatalf("failed to close gzip writer: %v", err)
	}
	return buf.Bytes()
}

// zipBytes builds a zip archive. Files are added in sorted order.
func zipBytes(t *testing.T, files map[string]string) []byte {
	t.Helper()

	var buf bytes.Buffer
	zipWriter := zip.NewWriter(&buf)

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		w, err := zipWriter.Create(name)
		if err != nil {
			t.Fatalf("failed to create %s: %v", name, err)
		}
		if _, err := w.Write([]byte(files[name])); err != nil {
			t.Fatalf("failed to write %s: %v", name, err)
		}
	}
	if err := zipWriter.Close(); err != nil {
		t.Fatalf("failed to close zip writer: %v", err)
	}
	return buf.Bytes()
}

func writeTempFile(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}

// releaseServer serves a GitHub-style release list at /releases and asset
// bodies at /download/<name>.
type releaseServer struct {
	*httptest.Server

	mu       sync.Mutex
	releases []model.Release
	status   int
	files    map[string][]byte
	hits     map[string]int
}

func newReleaseServer(t *testing.T) *releaseServer {
	rs := &releaseServer{files: map[string][]byte{}, hits: map[string]int{}, status: http.StatusOK}
	rs.Server = httptest.NewServer(http.HandlerFunc(rs.handle))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) handle(w http.ResponseWriter, r *http.Request) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	path := r.URL.Path
	if strings.HasSuffix(path, "/releases") {
		path = "/releases"
	}
	if i := strings.Index(path, "/download/"); i >= 0 {
		path = path[i:]
	}
	rs.hits[path]++

	switch {
	case path == "/releases":
		if rs.status != http.StatusOK {
			w.WriteHeader(rs.status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rs.releases)
	case strings.HasPrefix(path, "/download/"):
		data, ok := rs.files[strings.TrimPrefix(path, "/download/")]
		if !ok {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	default:
		http.NotFound(w, r)
	}
}

// addRelease appends a release whose assets are served with the given
// bodies. A nil body publishes the asset without serving it.
func (rs *releaseServer) addRelease(tag string, assets map[string][]byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	names := make([]string, 0, len(assets))
	for name := range assets {
		names = append(names, name)
	}
	sort.Strings(names)

	release := model.Release{Tag: tag}
	for _, name := range names {
		release.Assets = append(release.Assets, model.Asset{
			Name:        name,
			DownloadURL: rs.URL + "/download/" + name,
		})
		if assets[name] != nil {
			rs.files[name] = assets[name]
		}
	}
	rs.releases = append(rs.releases, release)
}

func (rs *releaseServer) setStatus(status int) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.status = status
}

func (rs *releaseServer) hitCount(path string) int {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return rs.hits[path]
}

func (rs *releaseServer) releasesURL() string {
	return rs.URL + "/releases"
}

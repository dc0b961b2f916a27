package main

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/platform"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/testutil"
)

const testAsset = "dnscrypt-proxy-linux_x86_64-2.1.5.tar.gz"

// upstream fakes the probe target, the resolver mirror and the release
// host.
type upstream struct {
	*httptest.Server

	mu          sync.Mutex
	probeStatus int
	resolvers   string
	hits        map[string]int
}

func newUpstream(t *testing.T) *upstream {
	u := &upstream{
		probeStatus: http.StatusOK,
		resolvers:   `{"resolvers": [{"name": "alpha", "address": "alpha.example:443", "region": "eu"}, {"name": "beta", "address": "beta.example:443"}]}`,
		hits:        map[string]int{},
	}
	archive := tarGz(t, map[string]string{"linux-x86_64/dnscrypt-proxy": "#!/bin/sh\n"})

	u.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u.mu.Lock()
		defer u.mu.Unlock()
		u.hits[r.URL.Path]++

		switch r.URL.Path {
		case "/probe":
			w.WriteHeader(u.probeStatus)
		case "/resolvers.json":
			fmt.Fprint(w, u.resolvers)
		case "/releases":
			json.NewEncoder(w).Encode([]model.Release{{
				Tag:    "2.1.5",
				Assets: []model.Asset{{Name: testAsset, DownloadURL: u.URL + "/download/" + testAsset}},
			}})
		case "/download/" + testAsset:
			w.Write(archive)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(u.Close)
	return u
}

func (u *upstream) setProbeStatus(status int) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.probeStatus = status
}

func (u *upstream) setResolvers(body string) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.resolvers = body
}

func (u *upstream) hitCount(path string) int {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.hits[path]
}

func tarGz(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	gw := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gw)
	for name, content := range files {
		if err := tw.WriteHeader(&tar.Header{Name: name, Mode: 0644, Size: int64(len(content)), Typeflag: tar.TypeReg}); err != nil {
			t.Fatal(err)
		}
		if _, err := tw.Write([]byte(content)); err != nil {
			t.Fatal(err)
		}
	}
	if err := tw.Close(); err != nil {
		t.Fatal(err)
	}
	if err := gw.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

// cliFixture is an isolated home with settings pointing at an upstream.
type cliFixture struct {
	*testutil.Env
	upstream   *upstream
	daemonConf string
	stdout     bytes.Buffer
	stderr     bytes.Buffer
}

func newCLIFixture(t *testing.T, extraSettings string) *cliFixture {
	f := &cliFixture{
		Env:      testutil.SetupTestEnv(t),
		upstream: newUpstream(t),
	}
	f.daemonConf = filepath.Join(f.Home, "etc", "dnscrypt-proxy.toml")
	testutil.WriteFile(t, f.daemonConf, "listen_addresses = ['127.0.0.1:53']\nserver_names = ['old']\n")

	settings := fmt.Sprintf(`dnscryptctl = {
  fronts = { { name = "origin", prefix = "" } },
  probe_url = %q,
  mirrors = { %q },
  releases_url = %q,
  cache_dir = %q,
  install_dir = %q,
  daemon_configs = { %q },
%s
}
`, f.upstream.URL+"/probe", f.upstream.URL+"/resolvers.json", f.upstream.URL+"/releases",
		f.CacheDir, f.InstallDir, f.daemonConf, extraSettings)
	testutil.WriteFile(t, filepath.Join(f.ConfigDir, "settings.lua"), settings)
	return f
}

func (f *cliFixture) run(args ...string) int {
	f.stdout.Reset()
	f.stderr.Reset()
	env := &environment{
		stdin:    strings.NewReader(""),
		stdout:   &f.stdout,
		stderr:   &f.stderr,
		home:     f.Home,
		detector: &platform.StaticDetector{Info: &platform.Info{OS: "linux", Arch: "amd64", Machine: "x86_64"}},
	}
	return execute(context.Background(), env, args)
}

func TestVersion(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("version"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	if !strings.Contains(f.stdout.String(), Version) {
		t.Errorf("stdout = %q, want version", f.stdout.String())
	}
}

func TestProbe(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("probe"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	// The only front has an empty prefix.
	if got := f.stdout.String(); got != "direct\n" {
		t.Errorf("stdout = %q", got)
	}
	if f.upstream.hitCount("/probe") != 1 {
		t.Errorf("probe hits = %d, want 1", f.upstream.hitCount("/probe"))
	}
}

func TestProbe_NoFrontReachableGoesDirect(t *testing.T) {
	f := newCLIFixture(t, "")
	f.upstream.setProbeStatus(http.StatusServiceUnavailable)

	if code := f.run("probe"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	if got := f.stdout.String(); got != "direct\n" {
		t.Errorf("stdout = %q", got)
	}
	if !strings.Contains(f.stderr.String(), "origin") {
		t.Errorf("probe failure not reported: %s", f.stderr.String())
	}
}

func TestProbe_FrontFlagSkipsProbing(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("--front", "https://mirror.example/", "probe"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	if got := f.stdout.String(); got != "manual\thttps://mirror.example/\n" {
		t.Errorf("stdout = %q", got)
	}
	if f.upstream.hitCount("/probe") != 0 {
		t.Error("probe URL contacted despite --front")
	}
}

func TestFrontAndDirectAreExclusive(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("--front", "https://m.example/", "--direct", "probe"); code == 0 {
		t.Error("expected failure for --front with --direct")
	}
}

func TestServers(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("--direct", "servers"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	lines := strings.Split(strings.TrimSpace(f.stdout.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("got %d lines: %q", len(lines), f.stdout.String())
	}
	if fields := strings.Fields(lines[0]); !cmp.Equal(fields, []string{"alpha", "alpha.example:443", "eu"}) {
		t.Errorf("first row = %q", fields)
	}
	if fields := strings.Fields(lines[1]); !cmp.Equal(fields, []string{"beta", "beta.example:443", "-"}) {
		t.Errorf("second row = %q", fields)
	}
}

func TestServers_FallbackList(t *testing.T) {
	f := newCLIFixture(t, "")
	f.upstream.setResolvers(`{"resolvers": []}`)

	if code := f.run("--direct", "servers", "--names"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	want := "cloudflare\ndnscrypt.eu-nl\nquad9\n"
	if diff := cmp.Diff(want, f.stdout.String()); diff != "" {
		t.Errorf("stdout mismatch (-want +got):\n%s", diff)
	}
}

func TestInstall(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("--direct", "install"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}

	binPath := filepath.Join(f.InstallDir, "linux-x86_64", "dnscrypt-proxy")
	if want := "2.1.5\t" + binPath + "\n"; f.stdout.String() != want {
		t.Errorf("stdout = %q, want %q", f.stdout.String(), want)
	}
	if _, err := os.Stat(binPath); err != nil {
		t.Errorf("binary not installed: %v", err)
	}
	if !strings.Contains(f.stderr.String(), "Installed 2.1.5") {
		t.Errorf("stderr lacks install notice: %s", f.stderr.String())
	}
}

func TestApply(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("apply", "s1", "s2"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}

	content, _ := os.ReadFile(f.daemonConf)
	want := "listen_addresses = ['127.0.0.1:53']\nserver_names = [\"s1\",\"s2\"]\n"
	if diff := cmp.Diff(want, string(content)); diff != "" {
		t.Errorf("config mismatch (-want +got):\n%s", diff)
	}

	backups, _ := filepath.Glob(f.daemonConf + ".bak.*")
	if len(backups) != 1 {
		t.Fatalf("got %d backups, want 1", len(backups))
	}
	if f.upstream.hitCount("/resolvers.json") != 0 {
		t.Error("resolver list fetched although names were given")
	}
}

func TestApply_AllFetchedServers(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("--direct", "apply"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	content, _ := os.ReadFile(f.daemonConf)
	if !strings.Contains(string(content), `server_names = ["alpha","beta"]`) {
		t.Errorf("config = %q", content)
	}
}

func TestApply_Manual(t *testing.T) {
	f := newCLIFixture(t, "")

	if code := f.run("apply", "--manual", "dns.example.org:443"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	content, _ := os.ReadFile(f.daemonConf)
	if !strings.Contains(string(content), `server_names = ["dns.example.org:443"]`) {
		t.Errorf("config = %q", content)
	}

	if code := f.run("apply", "--manual", "not an address"); code == 0 {
		t.Error("invalid manual address accepted")
	}
}

func TestApply_ConfigFileFlag(t *testing.T) {
	f := newCLIFixture(t, "")
	other := filepath.Join(f.Home, "other.toml")
	testutil.WriteFile(t, other, "max_clients = 250")

	if code := f.run("--config-file", other, "apply", "x"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	content, _ := os.ReadFile(other)
	if string(content) != "max_clients = 250\nserver_names = [\"x\"]\n" {
		t.Errorf("config = %q", content)
	}
}

func TestApply_MissingConfig(t *testing.T) {
	f := newCLIFixture(t, "")
	missing := filepath.Join(f.Home, "absent.toml")

	if code := f.run("--config-file", missing, "apply", "x"); code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if _, err := os.Stat(missing); !os.IsNotExist(err) {
		t.Error("apply created the missing config file")
	}
}

func TestValidate(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("validate"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}

	noField := filepath.Join(f.Home, "nofield.toml")
	testutil.WriteFile(t, noField, "max_clients = 250\n")
	if code := f.run("--config-file", noField, "validate"); code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(f.stderr.String(), "config file has no server_names field") {
		t.Errorf("stderr = %q", f.stderr.String())
	}

	if code := f.run("--config-file", filepath.Join(f.Home, "absent.toml"), "validate"); code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(f.stderr.String(), "config file does not exist") {
		t.Errorf("stderr = %q", f.stderr.String())
	}
}

func TestShow(t *testing.T) {
	f := newCLIFixture(t, "")
	if code := f.run("show"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	out := f.stdout.String()
	for _, want := range []string{f.daemonConf, "servers:  old", "listen:   127.0.0.1:53"} {
		if !strings.Contains(out, want) {
			t.Errorf("stdout lacks %q:\n%s", want, out)
		}
	}
}

func TestService(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses a POSIX shell script")
	}
	home := t.TempDir()
	script := filepath.Join(home, "svc")
	record := filepath.Join(home, "verbs")
	testutil.WriteFile(t, script, fmt.Sprintf("#!/bin/sh\necho \"$1\" >> %q\necho \"did $1\"\n", record))
	if err := os.Chmod(script, 0755); err != nil {
		t.Fatal(err)
	}

	f := newCLIFixture(t, fmt.Sprintf("  service_command = %q,", script+" {verb}"))
	if code := f.run("service", "restart"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	if !strings.Contains(f.stdout.String(), "did restart") {
		t.Errorf("stdout = %q", f.stdout.String())
	}
	got, _ := os.ReadFile(record)
	if string(got) != "restart\n" {
		t.Errorf("recorded verbs = %q", got)
	}
}

func TestConfigInit(t *testing.T) {
	f := newCLIFixture(t, "")

	if code := f.run("config", "init"); code != 1 {
		t.Fatalf("exit code %d, want 1 for existing settings", code)
	}

	if code := f.run("config", "init", "--force"); code != 0 {
		t.Fatalf("exit code %d, stderr: %s", code, f.stderr.String())
	}
	path := filepath.Join(f.ConfigDir, "settings.lua")
	if strings.TrimSpace(f.stdout.String()) != path {
		t.Errorf("stdout = %q, want %s", f.stdout.String(), path)
	}

	// The regenerated file still drives the CLI.
	if code := f.run("show"); code != 0 {
		t.Fatalf("regenerated settings unusable: %s", f.stderr.String())
	}
}

func TestBadSettings(t *testing.T) {
	f := newCLIFixture(t, "")
	testutil.WriteFile(t, filepath.Join(f.ConfigDir, "settings.lua"), "dnscryptctl = {")

	if code := f.run("show"); code != 1 {
		t.Fatalf("exit code %d, want 1", code)
	}
	if !strings.Contains(f.stderr.String(), "Lua syntax error") {
		t.Errorf("stderr = %q", f.stderr.String())
	}
}

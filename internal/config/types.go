package config

import (
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"time"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/source"
)

// Settings holds every tunable of the acquisition pipeline.
type Settings struct {
	// Fronts are tried in order; an empty prefix means direct access.
	Fronts []model.Front

	// ProbeURL is fetched through each front to test reachability.
	ProbeURL string

	// MirrorURLs are the resolver list locations, in preference order.
	MirrorURLs []string

	// ListField names the JSON array holding the resolver entries.
	ListField string

	// FallbackServers is used when no mirror yields a usable list.
	FallbackServers []model.ServerEntry

	// ReleasesURL lists daemon releases, newest first.
	ReleasesURL string

	CacheDir   string
	InstallDir string

	// DaemonConfigCandidates are checked in order by config detection.
	DaemonConfigCandidates []string

	// ServiceCommand is a command template containing {verb}. Empty means
	// run the installed binary with -service.
	ServiceCommand string

	// Keyring is an optional armored OpenPGP public keyring used to
	// verify release signatures.
	Keyring string

	UserAgent string

	Timeouts Timeouts
}

// Timeouts bounds each network or process step.
type Timeouts struct {
	Probe    time.Duration
	Fetch    time.Duration
	Releases time.Duration
	Download time.Duration
	Service  time.Duration
}

// DefaultFronts returns the built-in ranked front list.
func DefaultFronts() []model.Front {
	return []model.Front{
		{Name: "GitHubProxy", Prefix: "https://gh-proxy.com/"},
		{Name: "FastGit", Prefix: "https://gh.jasonzeng.dev/"},
		{Name: "pipers", Prefix: "https://proxy.pipers.cn/"},
		{Name: "gitmirror", Prefix: "https://hub.gitmirror.com/"},
		{Name: "dgithub", Prefix: "https://dgithub.xyz/"},
	}
}

// DefaultFallbackServers returns the list used when every mirror fails.
func DefaultFallbackServers() []model.ServerEntry {
	return source.DefaultFallback()
}

// DefaultTimeouts returns the built-in per-step timeouts.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Probe:    7 * time.Second,
		Fetch:    10 * time.Second,
		Releases: 15 * time.Second,
		Download: 60 * time.Second,
		Service:  20 * time.Second,
	}
}

// Defaults returns the built-in settings for goos with per-user
// directories rooted at home.
func Defaults(goos, home string) *Settings {
	s := &Settings{
		Fronts:   DefaultFronts(),
		ProbeURL: "https://api.github.com/repos/DNSCrypt/dnscrypt-proxy/releases/latest",
		MirrorURLs: []string{
			"https://download.dnscrypt.info/resolvers-list/v3/public-resolvers.md",
			"https://raw.githubusercontent.com/DNSCrypt/dnscrypt-resolvers/master/v3/public-resolvers.md",
			"https://dnscrypt.info/resolvers-list/v3/public-resolvers.md",
		},
		ListField:       "resolvers",
		FallbackServers: DefaultFallbackServers(),
		ReleasesURL:     "https://api.github.com/repos/DNSCrypt/dnscrypt-proxy/releases",
		CacheDir:        filepath.Join(home, ".dnscrypt_proxy_tmp"),
		InstallDir:      filepath.Join(home, "dnscrypt-proxy"),
		DaemonConfigCandidates: []string{
			"/etc/dnscrypt-proxy/dnscrypt-proxy.toml",
			"/usr/local/etc/dnscrypt-proxy/dnscrypt-proxy.toml",
			"/etc/dnscrypt-proxy.toml",
			"/usr/local/dnscrypt-proxy/dnscrypt-proxy.toml",
			"/opt/dnscrypt-proxy/dnscrypt-proxy.toml",
		},
		UserAgent: "dnscryptctl/1.0",
		Timeouts:  DefaultTimeouts(),
	}
	if goos == "linux" {
		s.ServiceCommand = "sudo systemctl {verb} dnscrypt-proxy"
	}
	return s
}

// Clone returns a deep copy of s.
func (s *Settings) Clone() *Settings {
	c := *s
	c.Fronts = append([]model.Front(nil), s.Fronts...)
	c.MirrorURLs = append([]string(nil), s.MirrorURLs...)
	c.FallbackServers = append([]model.ServerEntry(nil), s.FallbackServers...)
	c.DaemonConfigCandidates = append([]string(nil), s.DaemonConfigCandidates...)
	return &c
}

// Validate checks that s can drive the pipeline.
func (s *Settings) Validate() error {
	if len(s.Fronts) > MaxListLength {
		return &ValidationError{Field: luaFieldFronts, Message: fmt.Sprintf("too many fronts (%d), maximum is %d", len(s.Fronts), MaxListLength)}
	}
	for i, f := range s.Fronts {
		if f.Name == "" {
			return &ValidationError{Field: fmt.Sprintf("fronts[%d].name", i), Message: "name cannot be empty"}
		}
		if f.Prefix == "" {
			continue
		}
		if err := validateHTTPURL(f.Prefix); err != nil {
			return &ValidationError{Field: fmt.Sprintf("fronts[%d].prefix", i), Message: err.Error()}
		}
	}

	if err := validateHTTPURL(s.ProbeURL); err != nil {
		return &ValidationError{Field: luaFieldProbeURL, Message: err.Error()}
	}

	if len(s.MirrorURLs) == 0 {
		return &ValidationError{Field: luaFieldMirrors, Message: "at least one mirror is required"}
	}
	if len(s.MirrorURLs) > MaxListLength {
		return &ValidationError{Field: luaFieldMirrors, Message: fmt.Sprintf("too many mirrors (%d), maximum is %d", len(s.MirrorURLs), MaxListLength)}
	}
	for i, u := range s.MirrorURLs {
		if err := validateHTTPURL(u); err != nil {
			return &ValidationError{Field: fmt.Sprintf("mirrors[%d]", i), Message: err.Error()}
		}
	}

	if strings.TrimSpace(s.ListField) == "" {
		return &ValidationError{Field: luaFieldListField, Message: "list field cannot be empty"}
	}

	for i, e := range s.FallbackServers {
		if e.Name == "" || e.Address == "" {
			return &ValidationError{Field: fmt.Sprintf("fallback_servers[%d]", i), Message: "name and address are required"}
		}
	}

	if err := validateHTTPURL(s.ReleasesURL); err != nil {
		return &ValidationError{Field: luaFieldReleasesURL, Message: err.Error()}
	}

	if s.CacheDir == "" {
		return &ValidationError{Field: luaFieldCacheDir, Message: "path cannot be empty"}
	}
	if s.InstallDir == "" {
		return &ValidationError{Field: luaFieldInstallDir, Message: "path cannot be empty"}
	}
	if filepath.Clean(s.CacheDir) == filepath.Clean(s.InstallDir) {
		return &ValidationError{Field: luaFieldInstallDir, Message: "install dir must differ from cache dir"}
	}

	if s.ServiceCommand != "" && !strings.Contains(s.ServiceCommand, "{verb}") {
		return &ValidationError{Field: luaFieldServiceCmd, Message: "command must contain {verb}"}
	}

	timeouts := []struct {
		name string
		d    time.Duration
	}{
		{luaFieldProbe, s.Timeouts.Probe},
		{luaFieldFetch, s.Timeouts.Fetch},
		{luaFieldReleases, s.Timeouts.Releases},
		{luaFieldDownload, s.Timeouts.Download},
		{luaFieldService, s.Timeouts.Service},
	}
	for _, t := range timeouts {
		if t.d <= 0 {
			return &ValidationError{Field: "timeouts." + t.name, Message: "timeout must be positive"}
		}
	}

	return nil
}

// ValidationError represents a settings validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field != "" {
		return "settings validation failed for " + e.Field + ": " + e.Message
	}
	return "settings validation failed: " + e.Message
}

func validateHTTPURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("URL cannot be empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return fmt.Errorf("URL must use https:// or http:// scheme (got: %q)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL has no host: %s", raw)
	}
	return nil
}

// ExpandHome replaces a leading "~/" in path with home.
func ExpandHome(path, home string) string {
	if path == "~" {
		return home
	}
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

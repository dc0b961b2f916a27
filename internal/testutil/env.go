// Package testutil provides utilities for testing dnscryptctl in isolation.
package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// Env describes an isolated test environment.
type Env struct {
	Home       string
	ConfigDir  string
	CacheDir   string
	InstallDir string
}

// SetupTestEnv creates isolated directories for a test and points HOME and
// DNSCRYPTCTL_CONFIG_DIR at them, so tests never read the user's settings
// or touch a real dnscrypt-proxy install.
//
// Cleanup is handled by t.TempDir and t.Setenv.
func SetupTestEnv(t *testing.T) *Env {
	t.Helper()

	home := t.TempDir()
	env := &Env{
		Home:       home,
		ConfigDir:  filepath.Join(home, ".config", "dnscryptctl"),
		CacheDir:   filepath.Join(home, ".dnscrypt_proxy_tmp"),
		InstallDir: filepath.Join(home, "dnscrypt-proxy"),
	}

	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	t.Setenv("DNSCRYPTCTL_CONFIG_DIR", env.ConfigDir)

	if err := os.MkdirAll(env.ConfigDir, 0o750); err != nil {
		t.Fatalf("failed to create test directory %s: %v", env.ConfigDir, err)
	}
	return env
}

// WriteFile writes content to path, creating parent directories.
func WriteFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("failed to create directory for %s: %v", path, err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
}

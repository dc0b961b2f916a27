// Package platform detects the host operating system and CPU, maps them to
// the release asset key used to pick a download, and exposes the result to
// Lua settings as a read-only table.
//
// CPU detection prefers the kernel's machine string (uname -m) reported by
// gopsutil, so a 32-bit ARM userland on a 64-bit kernel is still told apart
// from a plain GOARCH build. Detection failures degrade to runtime values.
package platform

import "context"

// Linux distribution family constants.
const (
	FamilyDebian  = "debian"  // Debian, Ubuntu, Linux Mint
	FamilyRHEL    = "rhel"    // RHEL, CentOS, Rocky Linux, AlmaLinux
	FamilyFedora  = "fedora"  // Fedora
	FamilySUSE    = "suse"    // openSUSE, SLES
	FamilyArch    = "arch"    // Arch Linux, Manjaro
	FamilyAlpine  = "alpine"  // Alpine Linux
	FamilyGentoo  = "gentoo"  // Gentoo
	FamilyUnknown = "unknown" // Unrecognized distributions
)

// Info contains platform detection information.
type Info struct {
	OS       string // "linux", "darwin", "windows"
	Arch     string // normalized architecture ("amd64", "arm64", "arm"), empty if unknown
	Machine  string // raw machine string (e.g. "x86_64", "armv7l")
	Platform string // distro ID (Linux only, e.g. "ubuntu")
	Family   string // canonical family (e.g. "debian")
	Version  string // distro version (Linux only)
}

// IsLinux returns true if the platform is Linux.
func (i *Info) IsLinux() bool {
	return i.OS == "linux"
}

// IsMacOS returns true if the platform is macOS.
func (i *Info) IsMacOS() bool {
	return i.OS == "darwin"
}

// IsWindows returns true if the platform is Windows.
func (i *Info) IsWindows() bool {
	return i.OS == "windows"
}

// Key returns the release asset key for this platform.
func (i *Info) Key() (Key, error) {
	return KeyFor(i.OS, i.Machine)
}

// Detector is the interface for platform detection.
type Detector interface {
	Detect(ctx context.Context) (*Info, error)
}

// StaticDetector returns a fixed Info. It is useful when the platform is
// forced from the command line and in tests.
type StaticDetector struct {
	Info *Info
	Err  error
}

// Detect returns the configured info and error.
func (d *StaticDetector) Detect(ctx context.Context) (*Info, error) {
	return d.Info, d.Err
}

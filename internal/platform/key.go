package platform

import (
	"errors"
	"fmt"
)

// ErrUnsupportedPlatform indicates that no release asset exists for the
// host (OS, CPU) pair.
var ErrUnsupportedPlatform = errors.New("unsupported platform")

// Key is the canonical (OS, architecture) identifier used to pick assets.
type Key string

const (
	KeyWindowsAMD64 Key = "windows_amd64"
	KeyLinuxAMD64   Key = "linux_amd64"
	KeyLinuxARM64   Key = "linux_arm64"
	KeyLinuxARM     Key = "linux_arm"
	KeyDarwinAMD64  Key = "darwin_amd64"
)

// keyAliases lists the extra substrings upstream uses in asset names for
// each key.
var keyAliases = map[Key][]string{
	KeyWindowsAMD64: {"win64"},
	KeyLinuxAMD64:   {"linux_x86_64"},
	KeyLinuxARM64:   {"linux_aarch64"},
	KeyLinuxARM:     {"linux_armv7"},
	KeyDarwinAMD64:  {"macos_x86_64"},
}

// String returns the string representation of the key.
func (k Key) String() string {
	return string(k)
}

// Tokens returns the substrings that identify k in an asset file name, the
// key itself first.
func (k Key) Tokens() []string {
	return append([]string{string(k)}, keyAliases[k]...)
}

// ArchiveExt returns the archive extension of assets built for goos.
func ArchiveExt(goos string) string {
	if goos == "windows" {
		return ".zip"
	}
	return ".tar.gz"
}

// KeyFor maps an OS family and machine string to a Key.
//
// Windows and macOS map to their amd64 key regardless of CPU, which relies
// on the OS emulation layer on ARM hardware. Linux is keyed by machine.
func KeyFor(goos, machine string) (Key, error) {
	switch goos {
	case "windows":
		return KeyWindowsAMD64, nil
	case "darwin":
		return KeyDarwinAMD64, nil
	case "linux":
		switch normalizeMachine(machine) {
		case "amd64":
			return KeyLinuxAMD64, nil
		case "arm64":
			return KeyLinuxARM64, nil
		case "arm":
			return KeyLinuxARM, nil
		}
	}
	return "", fmt.Errorf("%w: %s/%s", ErrUnsupportedPlatform, goos, machine)
}

package binary

import (
	"errors"
	"fmt"
	"time"
)

// BinaryName is the daemon executable name without extension.
const BinaryName = "dnscrypt-proxy"

// Default timeouts.
const (
	DefaultReleasesTimeout = 15 * time.Second
	DefaultDownloadTimeout = 60 * time.Second
)

var (
	// ErrNoReleasesFound indicates the release list could not be fetched or
	// was empty.
	ErrNoReleasesFound = errors.New("no releases found")

	// ErrAllReleasesFailed indicates every release was tried and none
	// installed.
	ErrAllReleasesFailed = errors.New("all releases failed")

	// ErrNoMatchingAsset indicates a release carries no asset for the
	// host platform.
	ErrNoMatchingAsset = errors.New("no matching asset")

	// ErrBinaryNotFound indicates an extracted archive contains no daemon
	// executable.
	ErrBinaryNotFound = errors.New("daemon binary not found in archive")

	// ErrUnsupportedArchive indicates an asset with an unknown archive
	// extension.
	ErrUnsupportedArchive = errors.New("unsupported archive format")
)

// VerificationMethod indicates how an archive was verified
type VerificationMethod int

const (
	// VerificationNone indicates the archive was not verified
	VerificationNone VerificationMethod = iota
	// VerificationGPG indicates an OpenPGP signature was checked
	VerificationGPG
)

// String returns the string representation of the verification method
func (v VerificationMethod) String() string {
	switch v {
	case VerificationGPG:
		return "GPG"
	case VerificationNone:
		return "None"
	default:
		return "Unknown"
	}
}

// ReleaseError records why a single release did not install.
type ReleaseError struct {
	Tag string
	Err error
}

func (e *ReleaseError) Error() string {
	return fmt.Sprintf("release %s: %v", e.Tag, e.Err)
}

func (e *ReleaseError) Unwrap() error {
	return e.Err
}

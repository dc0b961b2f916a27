// Package binary installs the dnscrypt-proxy daemon from its GitHub
// releases.
//
// # Release walk
//
// Releases are tried newest first. The retry unit is the release: when a
// release has no asset for the host platform, or its download, signature
// check or extraction fails, the installer moves on to the next older
// release. The first release that installs successfully ends the walk.
//
// # Download cache
//
// Archives are cached in a per-user directory under their asset name and
// reused on later runs. Transfers are written to "<name>.part" and renamed
// on completion, so a file under the final name is always complete. A
// cached archive that cannot be extracted is deleted.
//
// # Verification
//
// When a keyring is configured and the release publishes a detached
// OpenPGP signature for the chosen asset ("<asset>.asc" or "<asset>.sig"),
// the archive must verify before it is extracted. Releases without a
// signature install unverified.
//
// # Installation
//
// The archive is extracted into a staging directory next to the install
// directory. Only once the daemon binary has been found and made executable
// is the previous install directory removed and the staging tree renamed
// into place.
//
// # Architecture
//
//   - Installer: release walk and install orchestration
//   - Downloader: streamed, cached, front-routed downloads with progress events
//   - Verifier: OpenPGP detached signature checks
//   - Extractor: zip and tar.gz extraction with path traversal guards
package binary

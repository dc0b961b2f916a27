package binary

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/fallback"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/lock"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/platform"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
)

// maxReleasesSize caps the release list download.
const maxReleasesSize = 32 << 20

// Config configures an Installer.
type Config struct {
	// ReleasesURL lists releases newest first.
	ReleasesURL string

	// CacheDir holds downloaded archives and the install lock.
	CacheDir string

	// InstallDir receives the extracted release. Its previous contents are
	// replaced on success.
	InstallDir string

	// Platform describes the host. Its key selects assets.
	Platform *platform.Info

	// Verifier is OPTIONAL. When set, releases that publish a signature
	// for the chosen asset must verify.
	Verifier *Verifier

	// ReleasesTimeout and DownloadTimeout are OPTIONAL.
	ReleasesTimeout time.Duration
	DownloadTimeout time.Duration
}

// Installer walks releases newest to oldest and installs the first one that
// works on this platform.
type Installer struct {
	sess       *session.Session
	config     Config
	downloader *Downloader
	extractor  *Extractor
}

// NewInstaller creates an installer bound to sess.
func NewInstaller(sess *session.Session, config Config) *Installer {
	if config.ReleasesTimeout <= 0 {
		config.ReleasesTimeout = DefaultReleasesTimeout
	}
	return &Installer{
		sess:       sess,
		config:     config,
		downloader: NewDownloader(sess, config.CacheDir, config.DownloadTimeout),
		extractor:  NewExtractor(),
	}
}

// Install fetches the release list and installs the newest release that
// has an asset for the host and installs cleanly. It returns
// ErrNoReleasesFound, platform.ErrUnsupportedPlatform or
// ErrAllReleasesFailed (wrapping one ReleaseError per release).
func (i *Installer) Install(ctx context.Context) (*model.InstallResult, error) {
	logger := i.sess.Logger()

	if i.config.Platform == nil {
		return nil, fmt.Errorf("platform info is required")
	}

	releases, err := i.FetchReleases(ctx)
	if err != nil {
		logger.Errorf("install: %s", err.Error())
		return nil, err
	}

	key, err := i.config.Platform.Key()
	if err != nil {
		return nil, err
	}
	logger.Infof("install: %d releases, platform %s", len(releases), key)

	l, err := lock.Acquire(ctx, i.config.CacheDir, lock.InstallLockName)
	if err != nil {
		return nil, fmt.Errorf("acquire install lock: %w", err)
	}
	defer func() {
		if err := l.Release(); err != nil {
			logger.Warnf("install: %s", err.Error())
		}
	}()

	result, _, err := fallback.First(ctx, releases, func(ctx context.Context, idx int, r model.Release) (*model.InstallResult, error) {
		result, err := i.installRelease(ctx, r, key)
		if err != nil {
			return nil, &ReleaseError{Tag: r.Tag, Err: err}
		}
		return result, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrAllReleasesFailed, err)
	}

	logger.Infof("install: %s installed at %s", result.Tag, result.BinaryPath)
	i.sess.Emit(ctx, model.Event{
		Kind:    model.EventInstalled,
		Tag:     result.Tag,
		Message: result.BinaryPath,
	})
	return result, nil
}

// FetchReleases downloads the release list through the active front. A
// failed request or an empty list yields ErrNoReleasesFound.
func (i *Installer) FetchReleases(ctx context.Context) ([]model.Release, error) {
	target := i.sess.URL(i.config.ReleasesURL)
	i.sess.Logger().Debugf("install: GET %s", target)

	resp, cancel, err := i.sess.Get(ctx, target, i.config.ReleasesTimeout)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrNoReleasesFound, err)
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status code: %d", ErrNoReleasesFound, resp.StatusCode)
	}

	var releases []model.Release
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxReleasesSize)).Decode(&releases); err != nil {
		return nil, fmt.Errorf("%w: decode release list: %w", ErrNoReleasesFound, err)
	}
	if len(releases) == 0 {
		return nil, ErrNoReleasesFound
	}
	return releases, nil
}

func (i *Installer) installRelease(ctx context.Context, release model.Release, key platform.Key) (*model.InstallResult, error) {
	logger := i.sess.Logger()
	goos := i.config.Platform.OS

	logger.Infof("install: trying %s", release.Tag)
	i.sess.Emit(ctx, model.Event{Kind: model.EventReleaseAttempt, Tag: release.Tag})

	asset, ok := MatchAsset(release, key, goos)
	if !ok {
		logger.Infof("install: %s has no %s asset, skipping", release.Tag, key)
		i.sess.Emit(ctx, model.Event{Kind: model.EventReleaseSkipped, Tag: release.Tag, Message: "no matching asset"})
		return nil, fmt.Errorf("%w for %s", ErrNoMatchingAsset, key)
	}

	result, err := i.installAsset(ctx, release, *asset)
	if err != nil {
		logger.Warnf("install: %s failed: %s", release.Tag, err.Error())
		i.sess.Emit(ctx, model.Event{Kind: model.EventReleaseFailed, Tag: release.Tag, Err: err})
		return nil, err
	}
	return result, nil
}

func (i *Installer) installAsset(ctx context.Context, release model.Release, asset model.Asset) (*model.InstallResult, error) {
	archivePath, err := i.downloader.Download(ctx, asset)
	if err != nil {
		return nil, err
	}

	if err := i.verify(ctx, release, asset, archivePath); err != nil {
		os.Remove(archivePath)
		return nil, err
	}

	installDir := filepath.Clean(i.config.InstallDir)
	stagingDir := filepath.Join(filepath.Dir(installDir), fmt.Sprintf(".%s-%s", filepath.Base(installDir), uuid.New().String()))
	defer os.RemoveAll(stagingDir)

	if err := i.extractor.Extract(archivePath, stagingDir); err != nil {
		// Drop the cached archive so the next run downloads it again.
		os.Remove(archivePath)
		return nil, fmt.Errorf("extract %s: %w", asset.Name, err)
	}

	binPath, err := FindBinary(stagingDir, i.config.Platform.OS)
	if err != nil {
		return nil, err
	}
	if i.config.Platform.OS != "windows" {
		if err := SetExecutable(binPath); err != nil {
			return nil, err
		}
	}
	rel, err := filepath.Rel(stagingDir, binPath)
	if err != nil {
		return nil, fmt.Errorf("locate binary: %w", err)
	}

	if err := os.RemoveAll(installDir); err != nil {
		return nil, fmt.Errorf("remove previous install: %w", err)
	}
	if err := os.Rename(stagingDir, installDir); err != nil {
		return nil, fmt.Errorf("move install into place: %w", err)
	}

	return &model.InstallResult{
		Tag:        release.Tag,
		BinaryPath: filepath.Join(installDir, rel),
	}, nil
}

// verify checks the release's detached signature for asset when a
// verifier is configured and the release publishes one.
func (i *Installer) verify(ctx context.Context, release model.Release, asset model.Asset, archivePath string) error {
	if i.config.Verifier == nil {
		return nil
	}
	logger := i.sess.Logger()

	sigAsset, ok := SignatureAsset(release, asset.Name)
	if !ok {
		logger.Warnf("install: %s publishes no signature for %s, skipping verification", release.Tag, asset.Name)
		return nil
	}

	sigPath, err := i.downloader.Download(ctx, *sigAsset)
	if err != nil {
		return fmt.Errorf("download signature: %w", err)
	}

	method, err := i.config.Verifier.VerifyFile(archivePath, sigPath)
	if err != nil {
		os.Remove(sigPath)
		return err
	}
	logger.Infof("install: %s verified (%s)", asset.Name, method)
	return nil
}

package binary

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/model"
	"github.com/ZebulonRouseFrantzich/dnscryptctl/internal/session"
)

// partSuffix marks an in-progress transfer.
const partSuffix = ".part"

// progressInterval throttles download-progress events.
const progressInterval = 200 * time.Millisecond

// Downloader fetches release assets into the cache directory through the
// session's active front.
type Downloader struct {
	sess     *session.Session
	cacheDir string
	timeout  time.Duration
}

// NewDownloader creates a new downloader
func NewDownloader(sess *session.Session, cacheDir string, timeout time.Duration) *Downloader {
	if timeout <= 0 {
		timeout = DefaultDownloadTimeout
	}
	return &Downloader{
		sess:     sess,
		cacheDir: cacheDir,
		timeout:  timeout,
	}
}

// CachePath returns where asset is stored in the cache.
func (d *Downloader) CachePath(asset model.Asset) (string, error) {
	name := filepath.Base(asset.Name)
	if name == "." || name == ".." || name == string(filepath.Separator) || name == "" {
		return "", fmt.Errorf("invalid asset name %q", asset.Name)
	}
	return filepath.Join(d.cacheDir, name), nil
}

// Download stores asset in the cache and returns its path. A complete
// cached copy is reused without contacting the network.
func (d *Downloader) Download(ctx context.Context, asset model.Asset) (string, error) {
	cachePath, err := d.CachePath(asset)
	if err != nil {
		return "", err
	}

	if fileExists(cachePath) {
		d.sess.Logger().Infof("download: using cached %s", cachePath)
		return cachePath, nil
	}

	if err := d.DownloadToFile(ctx, asset.DownloadURL, cachePath); err != nil {
		return "", fmt.Errorf("download %s: %w", asset.Name, err)
	}
	return cachePath, nil
}

// DownloadToFile streams url, routed through the active front, to destPath.
// The data lands in destPath+".part" first and is renamed on success. The
// downloader's timeout bounds each stalled phase, not the whole transfer.
func (d *Downloader) DownloadToFile(ctx context.Context, url, destPath string) error {
	target := d.sess.URL(url)
	d.sess.Logger().Infof("download: GET %s", target)

	resp, cancel, err := d.sess.Stream(ctx, target, d.timeout)
	if err != nil {
		return err
	}
	defer cancel()
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destPath), 0755); err != nil {
		return fmt.Errorf("create dest dir: %w", err)
	}

	tmpPath := destPath + partSuffix
	tmpFile, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}

	cleanupNeeded := true
	defer func() {
		tmpFile.Close()
		if cleanupNeeded {
			os.Remove(tmpPath)
		}
	}()

	d.sess.Emit(ctx, model.Event{Kind: model.EventDownloadStart, URL: url, Total: resp.ContentLength})
	progress := &progressWriter{ctx: ctx, sess: d.sess, url: url, total: resp.ContentLength}

	written, err := io.Copy(io.MultiWriter(tmpFile, progress), resp.Body)
	if err != nil {
		return fmt.Errorf("copy response body: %w", err)
	}
	if resp.ContentLength >= 0 && written != resp.ContentLength {
		return fmt.Errorf("short download: got %d of %d bytes", written, resp.ContentLength)
	}

	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}

	if err := os.Rename(tmpPath, destPath); err != nil {
		return fmt.Errorf("rename temp file: %w", err)
	}
	cleanupNeeded = false

	d.sess.Emit(ctx, model.Event{Kind: model.EventDownloadDone, URL: url, Bytes: written, Total: resp.ContentLength})
	return nil
}

// progressWriter emits throttled download-progress events.
type progressWriter struct {
	ctx     context.Context
	sess    *session.Session
	url     string
	total   int64
	written int64
	last    time.Time
}

func (p *progressWriter) Write(b []byte) (int, error) {
	p.written += int64(len(b))
	if now := time.Now(); now.Sub(p.last) >= progressInterval {
		p.last = now
		p.sess.Emit(p.ctx, model.Event{
			Kind:  model.EventDownloadProgress,
			URL:   p.url,
			Bytes: p.written,
			Total: p.total,
		})
	}
	return len(b), nil
}

// fileExists checks if a file exists and is not empty
func fileExists(path string) bool {
	info, err := os.Stat(path)
	if err != nil {
		return false
	}
	return !info.IsDir() && info.Size() > 0
}

// Package lock provides a cross-process exclusive lock backed by a lock
// file created with O_EXCL.
package lock

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	// StaleLockThreshold is the maximum age of a lock before it's considered stale.
	StaleLockThreshold = 10 * time.Minute

	// InstallLockName is the lock file guarding daemon installs.
	InstallLockName = "install.lock"
)

var (
	ErrLockExists = errors.New("lock exists: another install may be in progress")
)

// refreshInterval is how often a held lock's modification time is bumped.
var refreshInterval = StaleLockThreshold / 4

// Lock represents a held lock file.
type Lock struct {
	path string
	file *os.File
	stop chan struct{}
	done chan struct{}
}

// Acquire creates dir/name exclusively. A lock file older than
// StaleLockThreshold is assumed abandoned and replaced once. While held,
// the lock file's modification time is refreshed in the background, so a
// long install is never mistaken for an abandoned one.
func Acquire(ctx context.Context, dir, name string) (*Lock, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create lock directory: %w", err)
	}

	lockPath := filepath.Join(dir, name)

	file, err := os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return nil, fmt.Errorf("create lock file: %w", err)
		}
		if stale, _ := isLockStale(lockPath); !stale {
			return nil, ErrLockExists
		}
		os.Remove(lockPath)
		file, err = os.OpenFile(lockPath, os.O_CREATE|os.O_EXCL|os.O_RDWR, 0600)
		if err != nil {
			return nil, ErrLockExists
		}
	}

	lockData := fmt.Sprintf("pid=%d\ntimestamp=%s\n", os.Getpid(), time.Now().UTC().Format(time.RFC3339))
	if _, err := file.WriteString(lockData); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("write lock data: %w", err)
	}

	if err := file.Sync(); err != nil {
		file.Close()
		os.Remove(lockPath)
		return nil, fmt.Errorf("sync lock file: %w", err)
	}

	l := &Lock{
		path: lockPath,
		file: file,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
	go l.refresh(lockPath, refreshInterval)
	return l, nil
}

func (l *Lock) refresh(path string, interval time.Duration) {
	defer close(l.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-l.stop:
			return
		case <-ticker.C:
			now := time.Now()
			_ = os.Chtimes(path, now, now)
		}
	}
}

// Path returns the lock file path.
func (l *Lock) Path() string {
	return l.path
}

// Release removes the lock file. It is safe to call more than once.
func (l *Lock) Release() error {
	if l.stop != nil {
		close(l.stop)
		<-l.done
		l.stop = nil
	}

	if l.file != nil {
		l.file.Close()
		l.file = nil
	}

	if l.path != "" {
		path := l.path
		l.path = ""
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("remove lock file: %w", err)
		}
	}

	return nil
}

// isLockStale checks if a lock file is older than the stale lock threshold.
func isLockStale(lockPath string) (bool, error) {
	info, err := os.Stat(lockPath)
	if err != nil {
		return false, err
	}

	age := time.Since(info.ModTime())
	return age > StaleLockThreshold, nil
}

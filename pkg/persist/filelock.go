package persist

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"syscall"
	"time"
)

// staleLockAge is how old a lock file must be before its owner is checked.
const staleLockAge = 5 * time.Minute

// FileLock is an exclusive lock on a state file, held through a sibling
// .lock file plus flock so separate foliochat processes never interleave
// a read-modify-write of the same state.
type FileLock struct {
	path     string
	lockPath string
	file     *os.File
}

// LockConfig holds configuration for file locking behavior
type LockConfig struct {
	Timeout    time.Duration
	RetryDelay time.Duration
}

// DefaultLockConfig returns the lock settings used by FileStorage
func DefaultLockConfig() LockConfig {
	return LockConfig{
		Timeout:    5 * time.Second,
		RetryDelay: 25 * time.Millisecond,
	}
}

func NewFileLock(path string) *FileLock {
	return &FileLock{
		path:     path,
		lockPath: path + ".lock",
	}
}

// Lock blocks until the lock is acquired, cfg.Timeout passes or ctx ends.
func (fl *FileLock) Lock(ctx context.Context, cfg LockConfig) error {
	if fl.file != nil {
		return errors.New("file is already locked")
	}
	if err := os.MkdirAll(filepath.Dir(fl.lockPath), 0700); err != nil {
		return fmt.Errorf("failed to create lock directory: %w", err)
	}

	deadline := time.Now().Add(cfg.Timeout)
	for {
		err := fl.tryLock()
		if err == nil {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("timeout acquiring lock on %s after %v: %w", fl.path, cfg.Timeout, err)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.RetryDelay):
		}
	}
}

func (fl *FileLock) tryLock() error {
	file, err := os.OpenFile(fl.lockPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0600)
	if err != nil {
		if !os.IsExist(err) {
			return fmt.Errorf("failed to create lock file: %w", err)
		}
		if !fl.isLockStale() {
			return errors.New("lock already exists")
		}
		if err := os.Remove(fl.lockPath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove stale lock: %w", err)
		}
		return fl.tryLock()
	}

	if err := syscall.Flock(int(file.Fd()), syscall.LOCK_EX|syscall.LOCK_NB); err != nil {
		file.Close()
		os.Remove(fl.lockPath)
		return fmt.Errorf("file is locked by another process: %w", err)
	}

	if _, err := fmt.Fprintf(file, "pid:%d\ntime:%s\n", os.Getpid(), time.Now().Format(time.RFC3339)); err != nil {
		file.Close()
		os.Remove(fl.lockPath)
		return fmt.Errorf("failed to write lock info: %w", err)
	}

	fl.file = file
	return nil
}

// isLockStale reports whether an old lock file belongs to a dead process.
func (fl *FileLock) isLockStale() bool {
	info, err := os.Stat(fl.lockPath)
	if err != nil {
		return true
	}
	if time.Since(info.ModTime()) <= staleLockAge {
		return false
	}

	data, err := os.ReadFile(fl.lockPath)
	if err != nil {
		return true
	}
	var pid int
	if _, err := fmt.Sscanf(string(data), "pid:%d", &pid); err != nil {
		return true
	}
	return !isProcessRunning(pid)
}

func isProcessRunning(pid int) bool {
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	return process.Signal(syscall.Signal(0)) == nil
}

// Unlock releases the lock. Unlocking an unlocked FileLock is a no-op.
func (fl *FileLock) Unlock() error {
	if fl.file == nil {
		return nil
	}

	var errs []error
	if err := syscall.Flock(int(fl.file.Fd()), syscall.LOCK_UN); err != nil {
		errs = append(errs, fmt.Errorf("failed to release system lock: %w", err))
	}
	if err := fl.file.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close lock file: %w", err))
	}
	fl.file = nil
	if err := os.Remove(fl.lockPath); err != nil {
		errs = append(errs, fmt.Errorf("failed to remove lock file: %w", err))
	}
	return errors.Join(errs...)
}

func (fl *FileLock) IsLocked() bool {
	return fl.file != nil
}

// WithLock executes fn while holding the lock for path
func WithLock(ctx context.Context, path string, cfg LockConfig, fn func() error) (err error) {
	lock := NewFileLock(path)
	if err := lock.Lock(ctx, cfg); err != nil {
		return fmt.Errorf("failed to acquire lock: %w", err)
	}
	defer func() {
		if unlockErr := lock.Unlock(); unlockErr != nil && err == nil {
			err = unlockErr
		}
	}()
	return fn()
}

// writeAtomic replaces path with data through a temp file and rename,
// keeping the previous contents in path.backup. The caller holds the lock.
func writeAtomic(path string, data []byte, perm os.FileMode) error {
	if previous, err := os.ReadFile(path); err == nil {
		if err := os.WriteFile(path+".backup", previous, perm); err != nil {
			return fmt.Errorf("failed to create backup: %w", err)
		}
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}
	return nil
}

// readBackup returns the contents saved by the last writeAtomic.
func readBackup(path string) ([]byte, error) {
	data, err := os.ReadFile(path + ".backup")
	if err != nil {
		return nil, fmt.Errorf("no usable backup for %s: %w", path, err)
	}
	return data, nil
}

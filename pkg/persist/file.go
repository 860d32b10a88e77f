package persist

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/killallgit/foliochat/pkg/logger"
)

// FileStorage keeps every namespace in one JSON object on disk. Writes
// hold a FileLock and replace the file atomically.
type FileStorage struct {
	path string
	lock LockConfig
	log  *logger.Logger
}

func NewFileStorage(path string) *FileStorage {
	return &FileStorage{
		path: path,
		lock: DefaultLockConfig(),
		log:  logger.WithComponent("file_storage"),
	}
}

func (f *FileStorage) Path() string { return f.path }

func (f *FileStorage) Load(ctx context.Context, namespace string) ([]byte, error) {
	var raw json.RawMessage
	err := WithLock(ctx, f.path, f.lock, func() error {
		entries, err := f.readEntries()
		if err != nil {
			return err
		}
		var ok bool
		raw, ok = entries[namespace]
		if !ok {
			return ErrNotFound
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return raw, nil
}

func (f *FileStorage) Save(ctx context.Context, namespace string, data []byte) error {
	if !json.Valid(data) {
		return fmt.Errorf("refusing to store invalid JSON under %s", namespace)
	}
	return f.update(ctx, func(entries map[string]json.RawMessage) {
		entries[namespace] = append(json.RawMessage(nil), data...)
	})
}

func (f *FileStorage) Delete(ctx context.Context, namespace string) error {
	return f.update(ctx, func(entries map[string]json.RawMessage) {
		delete(entries, namespace)
	})
}

func (f *FileStorage) Close() error { return nil }

func (f *FileStorage) update(ctx context.Context, mutate func(map[string]json.RawMessage)) error {
	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return fmt.Errorf("failed to create storage directory: %w", err)
	}
	return WithLock(ctx, f.path, f.lock, func() error {
		entries, err := f.readEntries()
		if err != nil {
			return err
		}
		mutate(entries)

		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to encode storage file: %w", err)
		}
		return writeAtomic(f.path, data, 0600)
	})
}

// readEntries falls back to the backup when the main file is corrupt.
func (f *FileStorage) readEntries() (map[string]json.RawMessage, error) {
	entries := make(map[string]json.RawMessage)

	data, err := os.ReadFile(f.path)
	if os.IsNotExist(err) {
		return entries, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", f.path, err)
	}
	if len(data) == 0 {
		return entries, nil
	}

	decodeErr := json.Unmarshal(data, &entries)
	if decodeErr == nil {
		return entries, nil
	}
	f.log.Warn("Storage file is corrupt, trying backup", "path", f.path, "error", decodeErr)

	backup, err := readBackup(f.path)
	if err != nil {
		return nil, fmt.Errorf("storage file %s is corrupt: %w", f.path, err)
	}
	entries = make(map[string]json.RawMessage)
	if err := json.Unmarshal(backup, &entries); err != nil {
		return nil, fmt.Errorf("storage file %s and its backup are corrupt: %w", f.path, err)
	}
	return entries, nil
}

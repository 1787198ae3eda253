package store

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/nerrad567/scanctl/internal/registry"
)

const (
	dirPermissions  = 0750
	filePermissions = 0600

	// BackupSuffix is appended to the path of the previous document.
	BackupSuffix = ".backup"
)

// JSONFile persists registry snapshots to a JSON document on disk.
type JSONFile struct {
	mu   sync.Mutex
	path string
	now  func() time.Time
}

// NewJSONFile creates a store for the document at path.
func NewJSONFile(path string) *JSONFile {
	return &JSONFile{
		path: path,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Path returns the document path.
func (s *JSONFile) Path() string {
	return s.path
}

// Load reads the document. A missing file yields an empty snapshot.
func (s *JSONFile) Load(_ context.Context) (*registry.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return registry.NewSnapshot(), nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", s.path, err)
	}
	snap, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", s.path, err)
	}
	return snap, nil
}

// Save writes snap atomically, keeping the previous document as a backup.
func (s *JSONFile) Save(ctx context.Context, snap *registry.Snapshot) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := encode(snap, s.now())
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, dirPermissions); err != nil {
		return fmt.Errorf("creating %s: %w", dir, err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) //nolint:errcheck // No-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		return fmt.Errorf("setting permissions: %w", err)
	}

	if err := s.backupLocked(); err != nil {
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replacing %s: %w", s.path, err)
	}
	return nil
}

// Backup copies the current document to path+BackupSuffix.
func (s *JSONFile) Backup() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.backupLocked()
}

func (s *JSONFile) backupLocked() error {
	src, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("opening %s for backup: %w", s.path, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(s.path+BackupSuffix, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, filePermissions)
	if err != nil {
		return fmt.Errorf("creating backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		dst.Close() //nolint:errcheck // Already failing
		return fmt.Errorf("writing backup: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing backup: %w", err)
	}
	return nil
}

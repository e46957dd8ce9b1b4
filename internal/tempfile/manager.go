// Package tempfile owns the on-disk buffers that hold multipart file parts
// between receipt and blob upload.
package tempfile

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Manager creates uuid-named temporary files under one base directory and
// tracks them so each is removed at most once.
type Manager struct {
	baseDir string
	active  map[string]bool
	mu      sync.Mutex
}

// NewManager creates the base directory if needed and returns a Manager.
func NewManager(baseDir string) (*Manager, error) {
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("create temp base dir: %w", err)
	}
	return &Manager{
		baseDir: baseDir,
		active:  make(map[string]bool),
	}, nil
}

// Create opens a new temporary file whose base name is a fresh uuid followed by ext.
func (m *Manager) Create(ext string) (*os.File, error) {
	path := filepath.Join(m.baseDir, uuid.NewString()+ext)
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0o600)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}

	m.mu.Lock()
	m.active[path] = true
	m.mu.Unlock()

	return f, nil
}

// Remove deletes a managed file. Removing an unmanaged or already removed path
// is an error and never touches the filesystem.
func (m *Manager) Remove(path string) error {
	m.mu.Lock()
	if !m.active[path] {
		m.mu.Unlock()
		return fmt.Errorf("not a managed temporary file: %s", path)
	}
	delete(m.active, path)
	m.mu.Unlock()

	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove temp file: %w", err)
	}
	return nil
}

// Release removes whichever of paths are still managed, logging failures.
// It is used to drop buffers of requests that never reached a blob write.
func (m *Manager) Release(paths ...string) {
	for _, p := range paths {
		if p == "" || !m.IsManaged(p) {
			continue
		}
		if err := m.Remove(p); err != nil {
			log.Warn().Err(err).Str("path", p).Msg("release temp file")
		}
	}
}

// IsManaged reports whether path is a live file created by this Manager.
func (m *Manager) IsManaged(path string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.active[path]
}

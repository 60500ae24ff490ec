// Package workspace manages the per-request directories that hold generated
// tool configuration and the tool's own state artifacts.
package workspace

import (
	"fmt"
	"os"
	"path/filepath"
)

// Manager creates and removes request workspaces under a fixed root.
// The path for a request id is deterministic and never reused across ids.
type Manager struct {
	root string
}

func NewManager(root string) *Manager {
	return &Manager{root: root}
}

// Path returns the workspace directory for a request without touching disk.
func (m *Manager) Path(requestID int64) string {
	return filepath.Join(m.root, fmt.Sprintf("request-%d", requestID))
}

// Ensure creates the workspace directory if absent and returns its path.
// Calling it again for the same id is a no-op returning the same path.
func (m *Manager) Ensure(requestID int64) (string, error) {
	dir := m.Path(requestID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return dir, nil
}

// Exists reports whether the workspace directory is present on disk.
func (m *Manager) Exists(requestID int64) bool {
	info, err := os.Stat(m.Path(requestID))
	return err == nil && info.IsDir()
}

// Remove deletes the workspace directory and everything under it,
// including the tool state. Absent directories are not an error.
func (m *Manager) Remove(requestID int64) error {
	if err := os.RemoveAll(m.Path(requestID)); err != nil {
		return fmt.Errorf("remove workspace: %w", err)
	}
	return nil
}

package workspace

import (
	"os"
	"path/filepath"
	"testing"
)

func TestEnsureIdempotent(t *testing.T) {
	m := NewManager(t.TempDir())

	p1, err := m.Ensure(42)
	if err != nil {
		t.Fatalf("first ensure failed: %s", err)
	}
	p2, err := m.Ensure(42)
	if err != nil {
		t.Fatalf("second ensure failed: %s", err)
	}
	if p1 != p2 {
		t.Errorf("ensure returned different paths: %s vs %s", p1, p2)
	}
	if !m.Exists(42) {
		t.Error("expected workspace to exist after ensure")
	}
}

func TestPathUniquePerRequest(t *testing.T) {
	m := NewManager("/var/lib/irp/workspaces")
	if m.Path(1) == m.Path(2) {
		t.Error("expected distinct paths for distinct request ids")
	}
	if got, want := m.Path(7), filepath.Join("/var/lib/irp/workspaces", "request-7"); got != want {
		t.Errorf("expected %s, got %s", want, got)
	}
}

func TestRemove(t *testing.T) {
	m := NewManager(t.TempDir())

	dir, err := m.Ensure(9)
	if err != nil {
		t.Fatalf("ensure failed: %s", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "terraform.tfstate"), []byte("{}"), 0o644); err != nil {
		t.Fatalf("write state: %s", err)
	}

	if err := m.Remove(9); err != nil {
		t.Fatalf("remove failed: %s", err)
	}
	if m.Exists(9) {
		t.Error("expected workspace to be gone after remove")
	}

	// Removing an absent workspace is not an error.
	if err := m.Remove(9); err != nil {
		t.Errorf("second remove returned error: %s", err)
	}
}

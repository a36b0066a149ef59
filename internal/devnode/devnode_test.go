package devnode

import (
	"os"
	"path/filepath"
	"testing"

	"golang.org/x/sys/unix"
)

func TestOpenGuarded_SavesAndStripsMode(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node")
	if err := os.WriteFile(path, []byte("x"), 0640); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}

	fd, g, err := OpenGuarded(path, unix.O_RDONLY, 0o440, 0o444)
	if err != nil {
		t.Fatalf("OpenGuarded() error = %v", err)
	}
	defer unix.Close(fd)

	if g.OrigMode != 0o640 {
		t.Errorf("saved mode = %o, want 640", g.OrigMode)
	}

	// Read bits must be stripped while the node is held open.
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm()&0o444 != 0 {
		t.Errorf("read bits not stripped: mode = %o", info.Mode().Perm())
	}
}

func TestGuard_RestorePutsOriginalBitsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "node")
	if err := os.WriteFile(path, []byte("x"), 0664); err != nil {
		t.Fatalf("writing fixture: %v", err)
	}
	// WriteFile's mode is subject to the process umask; pin the fixture's
	// actual bits so the restore check is umask-independent.
	if err := os.Chmod(path, 0664); err != nil {
		t.Fatalf("chmod fixture: %v", err)
	}

	fd, g, err := OpenGuarded(path, unix.O_RDWR, 0o660, 0o666)
	if err != nil {
		t.Fatalf("OpenGuarded() error = %v", err)
	}
	unix.Close(fd)

	if err := g.Restore(); err != nil {
		t.Fatalf("Restore() error = %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0o664 {
		t.Errorf("restored mode = %o, want 664", info.Mode().Perm())
	}
}

func TestGuard_RestoreMissingNodeIsNoOp(t *testing.T) {
	g := Guard{Path: filepath.Join(t.TempDir(), "gone"), OrigMode: 0o644}
	if err := g.Restore(); err != nil {
		t.Errorf("Restore() on missing node = %v, want nil", err)
	}
}

func TestOpenGuarded_MissingNode(t *testing.T) {
	_, _, err := OpenGuarded(filepath.Join(t.TempDir(), "gone"), unix.O_RDONLY, 0o440, 0o444)
	if err == nil {
		t.Fatal("OpenGuarded() expected error for missing node")
	}
}

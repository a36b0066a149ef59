// Package devnode opens restricted device nodes by temporarily widening
// their access mode.
//
// Input nodes under /dev/input are frequently unreadable to the daemon's
// user. The historical workaround is to add read (or read/write) bits just
// long enough to open the node, then strip them again so other processes do
// not pick up both the physical device and its mirror. The original bits are
// saved and restored when the device is torn down.
package devnode

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Guard records the pre-open access mode of a node so it can be restored.
type Guard struct {
	// Path is the device node the guard belongs to.
	Path string

	// OrigMode holds the node's permission bits (lower 12) as found before
	// the open.
	OrigMode os.FileMode
}

// OpenGuarded opens path with the given unix open flags, widening the node's
// permission bits by add for the duration of the open and leaving the node
// with its original bits minus strip afterwards.
//
// chmod failures around the open are tolerated: the open itself decides
// whether the node is usable. The returned Guard restores the original bits
// on teardown.
func OpenGuarded(path string, flags int, add, strip os.FileMode) (int, Guard, error) {
	var st unix.Stat_t
	if err := unix.Stat(path, &st); err != nil {
		return -1, Guard{}, fmt.Errorf("stat %s: %w", path, err)
	}

	orig := os.FileMode(st.Mode & 0o7777)
	g := Guard{Path: path, OrigMode: orig}

	// Best effort: a failed chmod still leaves the open to decide.
	_ = unix.Chmod(path, uint32(orig|add))

	fd, err := unix.Open(path, flags|unix.O_NONBLOCK, 0)

	_ = unix.Chmod(path, uint32(orig&^strip))

	if err != nil {
		return -1, g, fmt.Errorf("open %s: %w", path, err)
	}
	return fd, g, nil
}

// Restore puts the node's original permission bits back. Called once per
// guard during teardown; a missing node (already unplugged) is not an error.
func (g Guard) Restore() error {
	if g.Path == "" {
		return nil
	}
	if err := unix.Chmod(g.Path, uint32(g.OrigMode)); err != nil {
		if os.IsNotExist(err) || err == unix.ENOENT {
			return nil
		}
		return fmt.Errorf("restore mode on %s: %w", g.Path, err)
	}
	return nil
}

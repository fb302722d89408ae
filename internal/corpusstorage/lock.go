package corpusstorage

import (
	"os"
	"path/filepath"

	"golang.org/x/sys/unix"

	goerrors "github.com/graphannis-go/graphannis-core/pkg/errors"
)

// fileLock is the process-wide advisory lock of spec §4.7 step 1 and §5
// "process boundary": a second process opening the same corpus directory
// must fail with AlreadyLocked rather than silently interleave writes
// with the first.
//
// Grounded on the teacher's per-aggregate optimistic lock
// (internal/repository/optimistic_lock.go), but this lock is pessimistic
// and OS-level rather than a version-compare-and-swap, per spec §5's
// "file lock prevents a second process from opening the same corpus
// directory".
type fileLock struct {
	path string
	fd   int
}

// acquireFileLock creates (if necessary) and exclusively locks
// dir/corpus-storage.lock. Returns AlreadyLocked if another process
// already holds it.
func acquireFileLock(dir string) (*fileLock, error) {
	path := filepath.Join(dir, "corpus-storage.lock")
	fd, err := unix.Open(path, unix.O_CREAT|unix.O_RDWR, 0o600)
	if err != nil {
		return nil, goerrors.NewStorageIO("opening lock file", err)
	}
	if err := unix.Flock(fd, unix.LOCK_EX|unix.LOCK_NB); err != nil {
		unix.Close(fd)
		if err == unix.EWOULDBLOCK {
			return nil, goerrors.NewAlreadyLocked(path)
		}
		return nil, goerrors.NewStorageIO("flock", err)
	}
	return &fileLock{path: path, fd: fd}, nil
}

// release unlocks and removes the lock file (spec §5: "removal of the
// lock file on clean shutdown is required").
func (l *fileLock) release() error {
	if l == nil {
		return nil
	}
	if err := unix.Flock(l.fd, unix.LOCK_UN); err != nil {
		unix.Close(l.fd)
		return goerrors.NewStorageIO("unflock", err)
	}
	if err := unix.Close(l.fd); err != nil {
		return goerrors.NewStorageIO("closing lock file", err)
	}
	if err := os.Remove(l.path); err != nil && !os.IsNotExist(err) {
		return goerrors.NewStorageIO("removing lock file", err)
	}
	return nil
}

//go:build unix

package shm

import (
	"os"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

var flockFunc = unix.Flock

// lockPath returns the sidecar file writers lock.
func lockPath(path string) string {
	return path + ".lock"
}

// flockExclusive acquires a non-blocking exclusive lock on f.
// Returns ErrLocked if the lock is already held.
func flockExclusive(f *os.File) error {
	err := flockFunc(int(f.Fd()), unix.LOCK_EX|unix.LOCK_NB)
	if err != nil {
		if errors.Is(err, unix.EWOULDBLOCK) {
			return errors.Wrapf(ErrLocked, "shm: flock %s", f.Name())
		}
		return errors.Wrap(err, "shm: flock exclusive")
	}
	return nil
}

// flockWait blocks until it holds an exclusive lock on f.
func flockWait(f *os.File) error {
	for {
		err := flockFunc(int(f.Fd()), unix.LOCK_EX)
		if err == nil {
			return nil
		}
		if !errors.Is(err, unix.EINTR) {
			return errors.Wrap(err, "shm: flock wait")
		}
	}
}

// funlock releases the flock on f.
func funlock(f *os.File) error {
	if err := flockFunc(int(f.Fd()), unix.LOCK_UN); err != nil {
		return errors.Wrap(err, "shm: funlock")
	}
	return nil
}

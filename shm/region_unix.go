//go:build unix

package shm

import (
	"os"
	"runtime"

	"github.com/cockroachdb/errors"
	"golang.org/x/sys/unix"
)

// functions can be overridden for testing
var (
	mmapFunc   = unix.Mmap
	munmapFunc = unix.Munmap
	msyncFunc  = unix.Msync
)

// region is a shared mapping of a whole file. Writes through a writable
// region are visible to every process mapping the same file.
//
// Owns the underlying *os.File.
type region struct {
	file     *os.File
	data     []byte
	writable bool
}

// mapFile maps the first size bytes of f. A writable mapping extends the file
// to size first so that touching the tail never faults past EOF.
func mapFile(f *os.File, size int, writable bool) (*region, error) {
	if size <= 0 {
		return nil, errors.Newf("shm: map: invalid size %d", size)
	}

	prot := unix.PROT_READ
	if writable {
		prot |= unix.PROT_WRITE

		info, err := f.Stat()
		if err != nil {
			return nil, errors.Wrap(err, "shm: stat")
		}
		if info.Size() < int64(size) {
			if err := f.Truncate(int64(size)); err != nil {
				return nil, errors.Wrap(err, "shm: truncate")
			}
		}
	}

	data, err := mmapFunc(int(f.Fd()), 0, size, prot, unix.MAP_SHARED)
	if err != nil {
		return nil, errors.Wrap(err, "shm: mmap")
	}

	r := &region{file: f, data: data, writable: writable}
	runtime.SetFinalizer(r, (*region).close)
	return r, nil
}

// slice returns the mapped bytes [off, off+n). Out-of-range panics.
func (r *region) slice(off, n int) []byte {
	return r.data[off : off+n : off+n]
}

// sync flushes dirty pages to the file and waits for the write to finish.
func (r *region) sync() error {
	if r.data == nil {
		return errors.Wrap(ErrClosed, "shm: sync")
	}
	if err := msyncFunc(r.data, unix.MS_SYNC); err != nil {
		return errors.Wrap(err, "shm: msync")
	}
	return nil
}

// close unmaps the region and closes the file. Idempotent.
func (r *region) close() error {
	runtime.SetFinalizer(r, nil)
	if r.data == nil {
		return nil
	}
	unmapErr := munmapFunc(r.data)
	r.data = nil
	closeErr := r.file.Close()
	if unmapErr != nil {
		unmapErr = errors.Wrap(unmapErr, "shm: munmap")
	}
	if closeErr != nil {
		closeErr = errors.Wrap(closeErr, "shm: close file")
	}
	return errors.CombineErrors(unmapErr, closeErr)
}

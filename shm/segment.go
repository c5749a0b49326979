//go:build unix

package shm

import (
	"os"
	"sync"
	"sync/atomic"
	"unsafe"

	"github.com/cockroachdb/errors"

	"github.com/CreditWorthy/seqlock/internal/arch"
)

var statFileFunc = func(f *os.File) (os.FileInfo, error) { return f.Stat() }
var encodeHeaderFunc = EncodeHeader

// Segment is a fixed-size payload in a memory-mapped file, guarded by a
// sequence counter stored in the same file. Any number of processes may map
// the segment and read it without locking. Writers are serialized by a mutex
// within the process and by a flock on a sidecar file across processes.
type Segment struct {
	region    *region
	seq       *atomic.Uint64
	payload   []byte
	lockFile  *os.File
	path      string
	writeMu   sync.Mutex
	closed    atomic.Bool
	writable  bool
	oneWriter bool
}

// Create creates a new segment file at path with a zeroed payload of size
// bytes. The file must not already exist.
func Create(path string, size int, opts ...Option) (*Segment, error) {
	cfg := applyOptions(opts)
	if cfg.readOnly {
		return nil, errors.Wrapf(ErrReadOnly, "shm: create %s", path)
	}
	if size <= 0 || size > MaxSize {
		return nil, errors.Wrapf(ErrSize, "shm: create %s: size %d", path, size)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_EXCL, 0644)
	if err != nil {
		return nil, errors.Wrapf(err, "shm: create %s", path)
	}

	r, err := mapFile(f, PayloadOffset+size, true)
	if err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "shm: map %s", path),
			errors.CombineErrors(f.Close(), removeFile(path)),
		)
	}

	h := &Header{Magic: Magic, FormatVersion: Version, PayloadSize: uint32(size)}
	if err := encodeHeaderFunc(r.slice(0, HeaderSize), h); err != nil {
		return nil, errors.CombineErrors(
			errors.Wrap(err, "shm: encode header"),
			errors.CombineErrors(r.close(), removeFile(path)),
		)
	}

	s, err := newSegment(path, r, size, cfg)
	if err != nil {
		return nil, errors.CombineErrors(err, removeFile(path))
	}
	return s, nil
}

// removeFile deletes a segment file that Create made but could not finish,
// so the path can be created again.
func removeFile(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errors.Wrapf(err, "shm: remove %s", path)
	}
	return nil
}

// Open maps an existing segment file.
func Open(path string, opts ...Option) (*Segment, error) {
	cfg := applyOptions(opts)

	flag := os.O_RDWR
	if cfg.readOnly {
		flag = os.O_RDONLY
	}
	f, err := os.OpenFile(path, flag, 0)
	if err != nil {
		return nil, errors.Wrapf(err, "shm: open %s", path)
	}

	info, err := statFileFunc(f)
	if err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "shm: stat %s", path),
			f.Close(),
		)
	}

	fileSize := info.Size()
	if fileSize < PayloadOffset {
		return nil, errors.CombineErrors(
			errors.Wrapf(ErrCorrupted, "shm: file %s is too small (%d bytes)", path, fileSize),
			f.Close(),
		)
	}

	var hdr [HeaderSize]byte
	if _, err := f.ReadAt(hdr[:], 0); err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "shm: read header %s", path),
			f.Close(),
		)
	}
	h, err := DecodeHeader(hdr[:])
	if err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "shm: open %s", path),
			f.Close(),
		)
	}

	size := int(h.PayloadSize)
	if fileSize < int64(PayloadOffset+size) {
		return nil, errors.CombineErrors(
			errors.Wrapf(ErrCorrupted, "shm: file %s truncated: %d bytes, payload needs %d", path, fileSize, PayloadOffset+size),
			f.Close(),
		)
	}

	r, err := mapFile(f, PayloadOffset+size, !cfg.readOnly)
	if err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "shm: map %s", path),
			f.Close(),
		)
	}

	return newSegment(path, r, size, cfg)
}

func newSegment(path string, r *region, size int, cfg config) (*Segment, error) {
	s := &Segment{
		region:    r,
		payload:   r.slice(PayloadOffset, size),
		path:      path,
		writable:  !cfg.readOnly,
		oneWriter: cfg.oneWriter,
	}
	// unsafe.Pointer: the counter lives in the mapping, 8-byte aligned
	// because the mapping is page aligned and seqOffset is a multiple of 8.
	s.seq = (*atomic.Uint64)(unsafe.Pointer(&r.slice(seqOffset, 8)[0]))

	if !s.writable {
		return s, nil
	}

	lf, err := os.OpenFile(lockPath(path), os.O_RDWR|os.O_CREATE, 0644)
	if err != nil {
		return nil, errors.CombineErrors(
			errors.Wrapf(err, "shm: open lock file for %s", path),
			r.close(),
		)
	}
	s.lockFile = lf

	if s.oneWriter {
		if err := flockExclusive(lf); err != nil {
			return nil, errors.CombineErrors(err, errors.CombineErrors(lf.Close(), r.close()))
		}
		// Holding the writer lock, an odd counter can only be left over from
		// a writer that died inside its critical section. Readers would spin
		// on it forever.
		if s.seq.Load()&1 == 1 {
			s.seq.Add(1)
		}
	}
	return s, nil
}

// Path returns the file backing the segment.
func (s *Segment) Path() string {
	return s.path
}

// Size returns the payload size in bytes.
func (s *Segment) Size() int {
	return len(s.payload)
}

// Sequence returns the current value of the sequence counter. Even values
// mean no write is in progress; Sequence()/2 writes have completed.
func (s *Segment) Sequence() uint64 {
	return s.seq.Load()
}

// Read calls fn on the payload, retrying until fn ran without overlapping a
// write from any process. fn may run several times and must not retain the
// slice.
func (s *Segment) Read(fn func(payload []byte)) error {
	if s.closed.Load() {
		return errors.Wrapf(ErrClosed, "shm: read %s", s.path)
	}
	for {
		start := s.seq.Load()
		spins := 0
		for start&1 == 1 {
			arch.Relax(&spins)
			start = s.seq.Load()
		}
		arch.ReadFence()

		fn(s.payload)

		arch.ReadFence()
		if s.seq.Load() == start {
			return nil
		}
	}
}

// TryRead makes a single attempt at Read and reports whether fn saw a
// consistent payload. fn is not called if a write is in progress.
func (s *Segment) TryRead(fn func(payload []byte)) (bool, error) {
	if s.closed.Load() {
		return false, errors.Wrapf(ErrClosed, "shm: read %s", s.path)
	}
	start := s.seq.Load()
	if start&1 == 1 {
		return false, nil
	}
	arch.ReadFence()

	fn(s.payload)

	arch.ReadFence()
	return s.seq.Load() == start, nil
}

// Load copies a consistent snapshot of the payload into dst and returns the
// number of bytes copied.
func (s *Segment) Load(dst []byte) (int, error) {
	var n int
	err := s.Read(func(p []byte) {
		n = copy(dst, p)
	})
	return n, err
}

// Write blocks until this goroutine is the only writer of the segment in any
// process and returns the Writer that must be released to publish the write.
func (s *Segment) Write() (*Writer, error) {
	if s.closed.Load() {
		return nil, errors.Wrapf(ErrClosed, "shm: write %s", s.path)
	}
	if !s.writable {
		return nil, errors.Wrapf(ErrReadOnly, "shm: write %s", s.path)
	}

	s.writeMu.Lock()
	if !s.oneWriter {
		if err := flockWait(s.lockFile); err != nil {
			s.writeMu.Unlock()
			return nil, errors.Wrapf(err, "shm: write %s", s.path)
		}
	}

	s.seq.Add(1)
	arch.WriteFence()
	return &Writer{s: s}, nil
}

// Update runs fn with exclusive access to the payload. The write is published
// when fn returns, even if it returns an error or panics.
func (s *Segment) Update(fn func(payload []byte) error) (err error) {
	w, err := s.Write()
	if err != nil {
		return err
	}
	defer func() {
		err = errors.CombineErrors(err, w.Release())
	}()
	return fn(w.Bytes())
}

// Store replaces the payload with src, zero-filling whatever src does not
// cover.
func (s *Segment) Store(src []byte) error {
	if len(src) > len(s.payload) {
		return errors.Wrapf(ErrSize, "shm: store %s: %d bytes exceeds payload of %d", s.path, len(src), len(s.payload))
	}
	return s.Update(func(p []byte) error {
		n := copy(p, src)
		clear(p[n:])
		return nil
	})
}

// Sync flushes the mapping to the backing file.
func (s *Segment) Sync() error {
	if s.closed.Load() {
		return errors.Wrapf(ErrClosed, "shm: sync %s", s.path)
	}
	return s.region.sync()
}

// Close flushes a writable segment, releases the writer lock and unmaps the
// file. The segment must not be in use by readers or writers.
func (s *Segment) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return errors.Wrapf(ErrClosed, "shm: close %s", s.path)
	}

	var err error
	if s.writable {
		// stores made through this handle must reach the mapping before the flush
		arch.FullFence()
		err = errors.CombineErrors(err, s.region.sync())
		if s.oneWriter {
			err = errors.CombineErrors(err, funlock(s.lockFile))
		}
		if closeErr := s.lockFile.Close(); closeErr != nil {
			err = errors.CombineErrors(err, errors.Wrap(closeErr, "shm: close lock file"))
		}
	}
	err = errors.CombineErrors(err, s.region.close())
	s.payload = nil
	return err
}

// Writer is exclusive write access to a Segment's payload.
type Writer struct {
	s *Segment
}

// Bytes returns the payload for mutation. It must not be used after Release.
func (w *Writer) Bytes() []byte {
	if w.s == nil {
		return nil
	}
	return w.s.payload
}

// Release publishes the write and admits the next writer. A second Release
// returns ErrReleased.
func (w *Writer) Release() error {
	s := w.s
	if s == nil {
		return ErrReleased
	}
	w.s = nil

	arch.WriteFence()
	s.seq.Add(1)

	var err error
	if !s.oneWriter {
		err = funlock(s.lockFile)
	}
	s.writeMu.Unlock()
	return err
}

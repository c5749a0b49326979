package stress

import (
	"encoding/binary"

	"github.com/cockroachdb/errors"

	"github.com/CreditWorthy/seqlock"
	"github.com/CreditWorthy/seqlock/shm"
)

// target is a lock under test holding a row of generation words. A writer
// bumps every word to the same next generation inside one critical section.
type target interface {
	// bump advances the generation by one and returns the new value.
	bump() (uint64, error)
	// read fills dst with a validated snapshot and returns how many times the
	// snapshot had to be retried.
	read(dst []uint64) (retries int, err error)
	// tryRead makes one attempt; ok is false if a writer got in the way.
	tryRead(dst []uint64) (ok bool, err error)
	sequence() uint64
	close() error
}

type memTarget struct {
	l *seqlock.SeqLock[[]uint64]
}

func newMemTarget(words int) *memTarget {
	// writers only ever store into the elements, never replace the slice, so
	// the slice header readers copy is stable even on torn reads
	return &memTarget{l: seqlock.New(make([]uint64, words))}
}

func (m *memTarget) bump() (uint64, error) {
	var next uint64
	m.l.Update(func(row *[]uint64) {
		next = (*row)[0] + 1
		for i := range *row {
			(*row)[i] = next
		}
	})
	return next, nil
}

func (m *memTarget) read(dst []uint64) (int, error) {
	attempts := 0
	seqlock.Read(m.l, func(row *[]uint64) struct{} {
		attempts++
		copy(dst, *row)
		return struct{}{}
	})
	return attempts - 1, nil
}

func (m *memTarget) tryRead(dst []uint64) (bool, error) {
	_, ok := seqlock.TryRead(m.l, func(row *[]uint64) int {
		return copy(dst, *row)
	})
	return ok, nil
}

func (m *memTarget) sequence() uint64 { return m.l.Sequence() }

func (m *memTarget) close() error { return nil }

type shmTarget struct {
	seg *shm.Segment
}

func newShmTarget(path string, words int) (*shmTarget, error) {
	seg, err := shm.Create(path, words*8)
	if err != nil {
		return nil, errors.Wrap(err, "stress: create segment")
	}
	return &shmTarget{seg: seg}, nil
}

func (s *shmTarget) bump() (uint64, error) {
	var next uint64
	err := s.seg.Update(func(p []byte) error {
		next = binary.LittleEndian.Uint64(p) + 1
		for off := 0; off+8 <= len(p); off += 8 {
			binary.LittleEndian.PutUint64(p[off:], next)
		}
		return nil
	})
	return next, err
}

func (s *shmTarget) read(dst []uint64) (int, error) {
	attempts := 0
	err := s.seg.Read(func(p []byte) {
		attempts++
		decodeWords(dst, p)
	})
	return attempts - 1, err
}

func (s *shmTarget) tryRead(dst []uint64) (bool, error) {
	return s.seg.TryRead(func(p []byte) {
		decodeWords(dst, p)
	})
}

func (s *shmTarget) sequence() uint64 { return s.seg.Sequence() }

func (s *shmTarget) close() error { return s.seg.Close() }

func decodeWords(dst []uint64, p []byte) {
	for i := range dst {
		dst[i] = binary.LittleEndian.Uint64(p[i*8:])
	}
}

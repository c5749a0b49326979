package shm

import "github.com/cockroachdb/errors"

var (
	ErrBadMagic  = errors.New("shm: invalid magic bytes")
	ErrVersion   = errors.New("shm: unsupported format version")
	ErrCorrupted = errors.New("shm: segment corrupted")
	ErrSize      = errors.New("shm: invalid payload size")
	ErrReadOnly  = errors.New("shm: segment is read-only")
	ErrClosed    = errors.New("shm: segment is closed")
	ErrLocked    = errors.New("shm: segment is locked by another writer")
	ErrReleased  = errors.New("shm: writer already released")
)

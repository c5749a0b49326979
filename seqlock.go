package seqlock

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/CreditWorthy/seqlock/internal/arch"
	"github.com/CreditWorthy/seqlock/internal/spinlock"
)

// SeqLock protects a value of type T that is read far more often than it is
// written. Writers never wait for readers: a writer takes the internal spin
// lock, makes the sequence counter odd, mutates the value and makes the
// counter even again. Readers never write shared memory; they read the value
// between two loads of the counter and retry when the counter moved or was
// odd.
//
// The zero value is an unlocked SeqLock holding the zero T.
//
// Readers may observe a value that a writer is halfway through changing. The
// result of such a read is discarded, but the read closure itself still runs
// on the torn value, so it must not follow pointers, index slices or
// dereference strings taken from the value: a writer may have swapped the
// pointer and the length independently. Keep T to plain data, or to pointers
// whose targets writers never free or replace.
//
// A SeqLock must not be copied after first use.
type SeqLock[T any] struct {
	// seq is even while no writer holds the lock and odd while one does. It
	// grows by one when a writer enters and by one when it leaves, so seq/2 is
	// the number of completed writes.
	seq  atomic.Uint64
	_    cpu.CacheLinePad
	lock spinlock.SpinLock[T]
	race raceGuard
}

// New returns a SeqLock wrapping data.
func New[T any](data T) *SeqLock[T] {
	l := &SeqLock[T]{}
	// not shared yet
	*l.lock.Unsync() = data
	return l
}

// From is New under the name conversion call sites read best with.
func From[T any](data T) *SeqLock[T] {
	return New(data)
}

// Zero returns a SeqLock wrapping the zero value of T.
func Zero[T any]() *SeqLock[T] {
	return &SeqLock[T]{}
}

// IntoInner returns the protected value without going through the lock. The
// caller must own the SeqLock outright: no goroutine may hold a guard or be
// reading, and the SeqLock must not be used again afterwards.
func (l *SeqLock[T]) IntoInner() T {
	return l.lock.IntoInner()
}

// Sequence returns the current value of the sequence counter.
func (l *SeqLock[T]) Sequence() uint64 {
	return l.seq.Load()
}

// Read calls f on the protected value and returns its result, retrying until
// f ran without overlapping a write. Read waits while a writer is inside its
// critical section and never blocks on other readers. Under sustained write
// load a reader can retry indefinitely.
//
// f may run several times and may see torn values on all but the last run.
func Read[T, R any](l *SeqLock[T], f func(*T) R) R {
	for {
		l.race.rlock()
		start := l.seq.Load()
		spins := 0
		for start&1 == 1 {
			arch.Relax(&spins)
			start = l.seq.Load()
		}
		arch.ReadFence()

		r := f(l.racyView())

		arch.ReadFence()
		stable := l.seq.Load() == start
		l.race.runlock()
		if stable {
			return r
		}
	}
}

// TryRead makes a single attempt at Read. It reports false when a writer was
// active when the attempt started or finished during it; f is not called at
// all in the first case. Unlike Read it never waits for a writer to leave.
func TryRead[T, R any](l *SeqLock[T], f func(*T) R) (R, bool) {
	var zero R
	if !l.race.tryRLock() {
		return zero, false
	}
	defer l.race.runlock()

	start := l.seq.Load()
	if start&1 == 1 {
		return zero, false
	}
	arch.ReadFence()

	r := f(l.racyView())

	arch.ReadFence()
	if l.seq.Load() != start {
		return zero, false
	}
	return r, true
}

// Load returns a consistent copy of the protected value.
func (l *SeqLock[T]) Load() T {
	return Read(l, copyOut[T])
}

// TryLoad returns a copy of the protected value if a single read attempt
// succeeds.
func (l *SeqLock[T]) TryLoad() (T, bool) {
	return TryRead(l, copyOut[T])
}

// Write blocks until no other writer holds the lock and returns a guard
// granting exclusive mutable access. The guard must be released exactly once,
// normally with a deferred Release; readers spin for as long as it is held.
func (l *SeqLock[T]) Write() *Guard[T] {
	return l.begin(l.lock.Lock())
}

// TryWrite is Write without the wait: it reports false if another writer
// holds the lock.
func (l *SeqLock[T]) TryWrite() (*Guard[T], bool) {
	inner, ok := l.lock.TryLock()
	if !ok {
		return nil, false
	}
	return l.begin(inner), true
}

// begin makes the counter odd under the held spin lock.
func (l *SeqLock[T]) begin(inner *spinlock.Guard[T]) *Guard[T] {
	l.race.lock()

	l.seq.Add(1)
	arch.WriteFence()

	return &Guard[T]{seq: &l.seq, race: &l.race, inner: inner}
}

// Update runs fn with exclusive access to the protected value. The write is
// published when fn returns, including when it panics.
func (l *SeqLock[T]) Update(fn func(*T)) {
	g := l.Write()
	defer g.Release()
	fn(g.Ptr())
}

// Store replaces the protected value.
func (l *SeqLock[T]) Store(v T) {
	g := l.Write()
	*g.Ptr() = v
	g.Release()
}

func copyOut[T any](p *T) T {
	return *p
}

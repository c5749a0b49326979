// Package spinlock provides the busy-waiting mutual exclusion lock that
// serializes seqlock writers.
package spinlock

import (
	"sync/atomic"

	"golang.org/x/sys/cpu"

	"github.com/CreditWorthy/seqlock/internal/arch"
)

const (
	unlocked uint32 = iota
	locked
)

// SpinLock protects a value of type T. Goroutines trying to acquire a held
// lock busy-wait, backing off to the scheduler when the wait gets long.
// Acquisition order is unspecified; there is no fairness between waiters.
//
// A SpinLock must not be copied after first use.
type SpinLock[T any] struct {
	state atomic.Uint32
	_     cpu.CacheLinePad
	data  T
}

// Guard is held exclusive access to the data of a SpinLock.
type Guard[T any] struct {
	lock    *SpinLock[T]
	intrWas bool
}

// New returns a SpinLock wrapping data.
func New[T any](data T) *SpinLock[T] {
	return &SpinLock[T]{data: data}
}

// Lock blocks until the lock is acquired and returns the guard that releases
// it. Interrupts are disabled for as long as the guard is held.
func (l *SpinLock[T]) Lock() *Guard[T] {
	intrWas := arch.IntrEnabled()
	arch.IntrOff()

	spins := 0
	for {
		if l.state.Load() == unlocked && l.state.CompareAndSwap(unlocked, locked) {
			return &Guard[T]{lock: l, intrWas: intrWas}
		}
		arch.Relax(&spins)
	}
}

// TryLock acquires the lock if it is free and reports whether it did.
func (l *SpinLock[T]) TryLock() (*Guard[T], bool) {
	intrWas := arch.IntrEnabled()
	arch.IntrOff()
	if l.state.CompareAndSwap(unlocked, locked) {
		return &Guard[T]{lock: l, intrWas: intrWas}, true
	}
	if intrWas {
		arch.IntrOn()
	}
	return nil, false
}

// IntoInner returns the protected value without locking. The caller must
// guarantee that nothing else references the lock.
func (l *SpinLock[T]) IntoInner() T {
	return l.data
}

// Unsync returns a pointer to the protected value that bypasses the lock.
// Accesses through it race with the lock holder; callers need their own
// protocol to detect that.
func (l *SpinLock[T]) Unsync() *T {
	return &l.data
}

// Ptr returns the protected value.
func (g *Guard[T]) Ptr() *T {
	if g.lock == nil {
		panic("spinlock: use of released guard")
	}
	return &g.lock.data
}

// Unlock releases the lock. Unlocking a guard twice panics.
func (g *Guard[T]) Unlock() {
	l := g.lock
	if l == nil {
		panic("spinlock: unlock of released guard")
	}
	g.lock = nil
	l.state.Store(unlocked)
	if g.intrWas {
		arch.IntrOn()
	}
}

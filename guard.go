package seqlock

import (
	"fmt"
	"sync/atomic"

	"github.com/CreditWorthy/seqlock/internal/arch"
	"github.com/CreditWorthy/seqlock/internal/spinlock"
)

// Guard is exclusive write access to the value of a SeqLock, obtained from
// SeqLock.Write. While a Guard is held the sequence counter is odd.
type Guard[T any] struct {
	seq   *atomic.Uint64
	race  *raceGuard
	inner *spinlock.Guard[T]
}

// Ptr returns the protected value for reading and mutation. The pointer must
// not be used after Release.
func (g *Guard[T]) Ptr() *T {
	if g.inner == nil {
		panic("seqlock: use of released guard")
	}
	return g.inner.Ptr()
}

// Load returns a copy of the protected value.
func (g *Guard[T]) Load() T {
	return *g.Ptr()
}

// Store replaces the protected value.
func (g *Guard[T]) Store(v T) {
	*g.Ptr() = v
}

// Release publishes the write and lets the next writer in. The counter is
// made even before the spin lock is released, so a following writer always
// starts from an even value. Releasing twice panics.
func (g *Guard[T]) Release() {
	inner := g.inner
	if inner == nil {
		panic("seqlock: guard released twice")
	}
	g.inner = nil

	arch.WriteFence()
	g.seq.Add(1)
	g.race.unlock()
	inner.Unlock()
}

// Format formats the protected value with the same verb and flags, so a
// guard prints exactly like the value it guards.
func (g *Guard[T]) Format(f fmt.State, verb rune) {
	fmt.Fprintf(f, fmt.FormatString(f, verb), *g.Ptr())
}

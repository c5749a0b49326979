//go:build !uniprocessor

package arch

import "sync/atomic"

// Name identifies the fence implementation compiled into this binary.
const Name = "smp"

// ReadFence keeps loads that precede it in program order from being satisfied
// after loads that follow it.
//
// The Go compiler will happily move a plain struct copy past an atomic load,
// so the fence is an atomic store to a private word: no memory access is
// reordered across it by the compiler, and on every supported CPU it is at
// least a release store, which orders the preceding loads before any later
// acquire load of the sequence counter.
func ReadFence() {
	var barrier atomic.Uint32
	barrier.Store(1)
}

// WriteFence keeps stores that precede it in program order from becoming
// visible after stores that follow it.
func WriteFence() {
	var barrier atomic.Uint32
	barrier.Store(1)
}

// FullFence orders every memory access before it against every memory access
// after it.
func FullFence() {
	var barrier atomic.Uint32
	barrier.Add(1)
}

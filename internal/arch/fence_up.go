//go:build uniprocessor

package arch

import "sync/atomic"

// Name identifies the fence implementation compiled into this binary.
const Name = "uniprocessor"

// ReadFence only constrains the compiler. With a single processor the
// hardware never reorders loads as seen by the code running on it.
func ReadFence() {
	compilerBarrier()
}

// WriteFence only constrains the compiler.
func WriteFence() {
	compilerBarrier()
}

// FullFence issues a real atomic operation so that memory shared with devices
// or other address spaces is still ordered.
func FullFence() {
	var barrier atomic.Uint32
	barrier.Add(1)
}

// compilerBarrier is an opaque call; the compiler cannot carry loads or
// stores across a call it has not inlined.
//
//go:noinline
func compilerBarrier() {}

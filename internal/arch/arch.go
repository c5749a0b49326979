// Package arch supplies the memory fences and processor facilities the lock
// primitives are written against. Exactly one implementation is compiled in,
// chosen by build tags:
//
//   - default: fences are sync/atomic operations, which are sequentially
//     consistent and therefore a superset of the acquire/release ordering
//     ReadFence and WriteFence promise.
//   - uniprocessor: fences only stop the compiler from moving memory
//     accesses across them; FullFence still issues one atomic operation.
//
// Hosted Go targets have no interrupt control, so the interrupt helpers are
// no-ops that report interrupts as disabled.
package arch

import "runtime"

// spinsBeforeYield is how many busy iterations Relax performs before handing
// the processor back to the scheduler.
const spinsBeforeYield = 64

// Relax is the CPU yield hint used inside spin loops. spins carries the
// caller's iteration count across calls; pass a pointer to a zeroed int at the
// start of each wait.
func Relax(spins *int) {
	if *spins < spinsBeforeYield {
		*spins++
		for i := 0; i < *spins; i++ {
			spinHint()
		}
		return
	}
	runtime.Gosched()
}

// CPUID returns the identity of the current processor. Go does not pin
// goroutines to processors, so hosted builds always report processor 0.
func CPUID() int {
	return 0
}

// IntrOn enables interrupts on the current processor.
func IntrOn() {}

// IntrOff disables interrupts on the current processor.
func IntrOff() {}

// IntrEnabled reports whether interrupts are enabled on the current processor.
func IntrEnabled() bool {
	return false
}

//go:noinline
func spinHint() {}

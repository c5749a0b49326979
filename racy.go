package seqlock

// racyView returns the protected value without taking the spin lock.
//
// This is the only place the package reads the value outside the writer's
// critical section. Nothing here prevents a writer from mutating the value
// while the caller reads it; Read and TryRead bracket every use with two loads
// of the sequence counter and throw the result away unless both loads agree
// on the same even value. That comparison is the whole correctness argument
// for readers.
func (l *SeqLock[T]) racyView() *T {
	return l.lock.Unsync()
}

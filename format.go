package seqlock

import "fmt"

// Uncertain is printed in place of the value when formatting a SeqLock
// overlaps a write.
const Uncertain = "<uncertain>"

// String formats the protected value if a single read attempt succeeds and
// prints Uncertain otherwise. It never waits for a writer.
func (l *SeqLock[T]) String() string {
	v, ok := l.TryLoad()
	if !ok {
		return "SeqLock{" + Uncertain + "}"
	}
	return fmt.Sprintf("SeqLock{%v}", v)
}

// GoString is String for the %#v verb.
func (l *SeqLock[T]) GoString() string {
	v, ok := l.TryLoad()
	if !ok {
		return "seqlock.SeqLock{data: " + Uncertain + "}"
	}
	return fmt.Sprintf("seqlock.SeqLock{data: %#v}", v)
}

// Package idalloc hands out small integer ids and reuses released ones.
package idalloc

import "math"

// Allocator issues ids counting up from a start value, preferring the most
// recently released id when one is available. It is not safe for concurrent
// use.
type Allocator struct {
	current  uint64
	recycled []uint64
	live     int
}

// New returns an Allocator whose first fresh id is start.
func New(start uint64) *Allocator {
	return &Allocator{current: start}
}

// Alloc returns an unused id.
func (a *Allocator) Alloc() uint64 {
	a.live++
	if n := len(a.recycled); n > 0 {
		id := a.recycled[n-1]
		a.recycled = a.recycled[:n-1]
		return id
	}
	if a.current == math.MaxUint64-1 {
		panic("idalloc: id space exhausted")
	}
	id := a.current
	a.current++
	return id
}

// Dealloc makes id available to a later Alloc. Releasing an id that was not
// allocated corrupts the allocator.
func (a *Allocator) Dealloc(id uint64) {
	a.live--
	a.recycled = append(a.recycled, id)
}

// Len returns the number of ids currently allocated.
func (a *Allocator) Len() int {
	return a.live
}

// Package seqlock implements a sequence lock: a lock for data that is read
// much more often than it is written, in which writers never wait for readers.
//
// Writers serialize on a spin lock and bump a sequence counter on the way in
// and on the way out. Readers take no lock at all; they read the data between
// two loads of the counter and retry if a write overlapped:
//
//	l := seqlock.New(Point{})
//
//	l.Update(func(p *Point) { p.X, p.Y = 3, 4 })
//
//	dist := seqlock.Read(l, func(p *Point) float64 {
//		return math.Hypot(p.X, p.Y)
//	})
//
// Readers can starve under continuous writes. There is no blocking read and
// no fairness between writers.
package seqlock

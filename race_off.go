//go:build !race

package seqlock

// RaceEnabled is true if the package was built with the race build tag.
const RaceEnabled = false

// raceGuard is empty outside race builds; readers rely on the sequence
// counter alone.
type raceGuard struct{}

func (*raceGuard) rlock() {}
func (*raceGuard) runlock() {}
func (*raceGuard) tryRLock() bool { return true }
func (*raceGuard) lock() {}
func (*raceGuard) unlock() {}

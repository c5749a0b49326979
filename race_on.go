//go:build race

package seqlock

import "sync"

// RaceEnabled is true if the package was built with the race build tag.
const RaceEnabled = true

// raceGuard makes race builds exclude readers from the writer's critical
// section. The race detector cannot see the sequence counter validation and
// would report every overlapping read, so readers hold mu shared and writers
// hold it exclusively while the counter is odd. The counter itself advances
// exactly as in regular builds.
type raceGuard struct {
	mu sync.RWMutex
}

func (g *raceGuard) rlock() { g.mu.RLock() }
func (g *raceGuard) runlock() { g.mu.RUnlock() }
func (g *raceGuard) tryRLock() bool { return g.mu.TryRLock() }
func (g *raceGuard) lock() { g.mu.Lock() }
func (g *raceGuard) unlock() { g.mu.Unlock() }

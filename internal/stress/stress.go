// Package stress hammers a lock with concurrent writers and readers and checks
// that every validated read saw exactly one write.
package stress

import (
	"context"
	"io"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"golang.org/x/sync/errgroup"

	"github.com/CreditWorthy/seqlock/internal/arch"
	"github.com/CreditWorthy/seqlock/internal/idalloc"
)

// Target selects the lock implementation under test.
type Target string

const (
	// TargetMem is an in-process seqlock.SeqLock.
	TargetMem Target = "mem"
	// TargetShm is a shm.Segment backed by a file.
	TargetShm Target = "shm"
)

// tryEvery makes every n-th read a single-attempt read.
const tryEvery = 4

var (
	ErrConfig    = errors.New("stress: invalid config")
	ErrViolation = errors.New("stress: consistency violation")
)

// Config describes one stress run.
type Config struct {
	Writers  int
	Readers  int
	Duration time.Duration
	Target   Target
	// Path is the segment file for TargetShm. It must not exist.
	Path string
	// Words is the payload size in 64-bit words.
	Words int
}

// Validate reports the first problem with c.
func (c Config) Validate() error {
	switch {
	case c.Writers < 1:
		return errors.Wrapf(ErrConfig, "writers must be positive, got %d", c.Writers)
	case c.Readers < 0:
		return errors.Wrapf(ErrConfig, "readers must not be negative, got %d", c.Readers)
	case c.Duration <= 0:
		return errors.Wrapf(ErrConfig, "duration must be positive, got %s", c.Duration)
	case c.Words < 1:
		return errors.Wrapf(ErrConfig, "words must be positive, got %d", c.Words)
	}
	switch c.Target {
	case TargetMem:
	case TargetShm:
		if c.Path == "" {
			return errors.Wrap(ErrConfig, "shm target needs a path")
		}
	default:
		return errors.Wrapf(ErrConfig, "unknown target %q", c.Target)
	}
	return nil
}

// Report summarizes a run.
type Report struct {
	Writes     uint64
	Reads      uint64
	Retries    uint64
	TryMisses  uint64
	Violations uint64
	Generation uint64
	Sequence   uint64
	Elapsed    time.Duration
}

type counters struct {
	writes, reads, retries, tryMisses, violations atomic.Uint64
}

// Run drives cfg.Writers writers and cfg.Readers readers against a fresh lock
// until cfg.Duration elapses or ctx is cancelled. It returns ErrViolation if
// any validated read was torn, a generation went backwards, or the final
// counter does not account for every write.
func Run(ctx context.Context, cfg Config, logger *log.Logger) (Report, error) {
	if err := cfg.Validate(); err != nil {
		return Report{}, err
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}

	tgt, err := openTarget(cfg)
	if err != nil {
		return Report{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, cfg.Duration)
	defer cancel()

	ids := idalloc.New(1)
	var c counters
	start := time.Now()

	eg, ctx := errgroup.WithContext(ctx)
	workers := make([]uint64, 0, cfg.Writers+cfg.Readers)
	for i := 0; i < cfg.Writers; i++ {
		id := ids.Alloc()
		workers = append(workers, id)
		eg.Go(func() error { return writer(ctx, id, tgt, &c, logger) })
	}
	for i := 0; i < cfg.Readers; i++ {
		id := ids.Alloc()
		workers = append(workers, id)
		eg.Go(func() error { return reader(ctx, id, cfg.Words, tgt, &c, logger) })
	}
	logger.Info("stress started", "target", cfg.Target, "fences", arch.Name,
		"writers", cfg.Writers, "readers", cfg.Readers, "words", cfg.Words)

	runErr := eg.Wait()
	for _, id := range workers {
		ids.Dealloc(id)
	}

	rep := Report{
		Writes:    c.writes.Load(),
		Reads:     c.reads.Load(),
		Retries:   c.retries.Load(),
		TryMisses: c.tryMisses.Load(),
		Sequence:  tgt.sequence(),
		Elapsed:   time.Since(start),
	}

	final := make([]uint64, cfg.Words)
	if _, err := tgt.read(final); err != nil {
		runErr = errors.CombineErrors(runErr, err)
	}
	rep.Generation = final[0]
	if !uniform(final) {
		c.violations.Add(1)
		logger.Error("final payload torn", "head", final[0])
	}
	if rep.Sequence&1 == 1 || rep.Sequence != 2*rep.Writes {
		c.violations.Add(1)
		logger.Error("sequence does not match writes", "sequence", rep.Sequence, "writes", rep.Writes)
	}
	if rep.Generation != rep.Writes {
		c.violations.Add(1)
		logger.Error("writes lost or duplicated", "generation", rep.Generation, "writes", rep.Writes)
	}
	rep.Violations = c.violations.Load()

	runErr = errors.CombineErrors(runErr, tgt.close())
	if runErr != nil {
		return rep, runErr
	}
	if rep.Violations > 0 {
		return rep, errors.Wrapf(ErrViolation, "%d violations", rep.Violations)
	}
	logger.Info("stress finished",
		"writes", rep.Writes, "reads", rep.Reads, "retries", rep.Retries,
		"try_misses", rep.TryMisses, "sequence", rep.Sequence, "elapsed", rep.Elapsed)
	return rep, nil
}

func openTarget(cfg Config) (target, error) {
	if cfg.Target == TargetShm {
		return newShmTarget(cfg.Path, cfg.Words)
	}
	return newMemTarget(cfg.Words), nil
}

func writer(ctx context.Context, id uint64, tgt target, c *counters, logger *log.Logger) error {
	for ctx.Err() == nil {
		if _, err := tgt.bump(); err != nil {
			return errors.Wrapf(err, "writer %d", id)
		}
		c.writes.Add(1)
	}
	logger.Debug("writer done", "worker", id, "cpu", arch.CPUID())
	return nil
}

func reader(ctx context.Context, id uint64, words int, tgt target, c *counters, logger *log.Logger) error {
	row := make([]uint64, words)
	var last uint64
	for n := 1; ctx.Err() == nil; n++ {
		if n%tryEvery == 0 {
			ok, err := tgt.tryRead(row)
			if err != nil {
				return errors.Wrapf(err, "reader %d", id)
			}
			if !ok {
				c.tryMisses.Add(1)
				continue
			}
		} else {
			retries, err := tgt.read(row)
			if err != nil {
				return errors.Wrapf(err, "reader %d", id)
			}
			c.retries.Add(uint64(retries))
		}
		c.reads.Add(1)

		if !uniform(row) {
			c.violations.Add(1)
			logger.Error("torn read validated", "worker", id, "head", row[0])
			continue
		}
		if row[0] < last {
			c.violations.Add(1)
			logger.Error("generation went backwards", "worker", id, "was", last, "now", row[0])
		}
		last = row[0]
	}
	logger.Debug("reader done", "worker", id, "cpu", arch.CPUID())
	return nil
}

func uniform(row []uint64) bool {
	for _, v := range row {
		if v != row[0] {
			return false
		}
	}
	return true
}

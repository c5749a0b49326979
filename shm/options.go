package shm

// Option changes how Create and Open set up a Segment.
type Option func(*config)

// config is the resolved set of options. The zero value opens the segment
// read-write and takes the sidecar flock around each write.
type config struct {
	readOnly  bool
	oneWriter bool
}

// WithReadOnly opens the segment for reading only. The file is mapped
// PROT_READ, the sidecar lock file is never opened, and Write, Update and
// Store fail with ErrReadOnly. Create rejects it.
func WithReadOnly() Option {
	return func(c *config) { c.readOnly = true }
}

// WithOneWriter makes this handle the segment's only writer until Close.
// The sidecar flock is taken once, without waiting, when the segment is
// opened, instead of around every write; if another handle holds it the
// open fails with ErrLocked. An odd sequence left by a writer that died
// mid-write is made even again at open.
func WithOneWriter() Option {
	return func(c *config) { c.oneWriter = true }
}

func applyOptions(opts []Option) (cfg config) {
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

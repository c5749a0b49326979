package stress

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CreditWorthy/seqlock/internal/arch"
)

func TestValidate(t *testing.T) {
	good := Config{Writers: 1, Readers: 1, Duration: time.Millisecond, Target: TargetMem, Words: 1}
	require.NoError(t, good.Validate())

	cases := map[string]func(*Config){
		"no writers":     func(c *Config) { c.Writers = 0 },
		"negative reads": func(c *Config) { c.Readers = -1 },
		"no duration":    func(c *Config) { c.Duration = 0 },
		"no words":       func(c *Config) { c.Words = 0 },
		"bad target":     func(c *Config) { c.Target = "disk" },
		"shm no path":    func(c *Config) { c.Target = TargetShm },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := good
			mutate(&c)
			assert.True(t, errors.Is(c.Validate(), ErrConfig))
		})
	}
}

func TestRun_Mem(t *testing.T) {
	var buf bytes.Buffer
	logger := log.New(&buf)

	rep, err := Run(context.Background(), Config{
		Writers:  3,
		Readers:  4,
		Duration: 100 * time.Millisecond,
		Target:   TargetMem,
		Words:    16,
	}, logger)
	require.NoError(t, err)

	assert.Positive(t, rep.Writes)
	assert.Positive(t, rep.Reads)
	assert.Zero(t, rep.Violations)
	assert.Equal(t, 2*rep.Writes, rep.Sequence)
	assert.Equal(t, rep.Writes, rep.Generation)
	assert.Contains(t, buf.String(), "fences="+arch.Name)
	assert.Contains(t, buf.String(), "stress finished")
}

func TestRun_Shm(t *testing.T) {
	rep, err := Run(context.Background(), Config{
		Writers:  2,
		Readers:  2,
		Duration: 100 * time.Millisecond,
		Target:   TargetShm,
		Path:     filepath.Join(t.TempDir(), "stress.seg"),
		Words:    32,
	}, nil)
	require.NoError(t, err)
	assert.Zero(t, rep.Violations)
	assert.Equal(t, 2*rep.Writes, rep.Sequence)
}

func TestRun_ShmPathExists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stress.seg")
	cfg := Config{Writers: 1, Duration: 10 * time.Millisecond, Target: TargetShm, Path: path, Words: 1}
	_, err := Run(context.Background(), cfg, nil)
	require.NoError(t, err)

	_, err = Run(context.Background(), cfg, nil)
	assert.ErrorContains(t, err, "create segment")
}

func TestRun_InvalidConfig(t *testing.T) {
	_, err := Run(context.Background(), Config{}, nil)
	assert.True(t, errors.Is(err, ErrConfig))
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rep, err := Run(ctx, Config{Writers: 1, Readers: 1, Duration: time.Hour, Target: TargetMem, Words: 4}, nil)
	require.NoError(t, err)
	assert.Zero(t, rep.Writes)
	assert.Zero(t, rep.Sequence)
}

func TestUniform(t *testing.T) {
	assert.True(t, uniform([]uint64{3, 3, 3}))
	assert.False(t, uniform([]uint64{3, 4, 3}))
}

func TestMemTarget_ReadCountsRetries(t *testing.T) {
	m := newMemTarget(2)
	n, err := m.bump()
	require.NoError(t, err)
	assert.Equal(t, uint64(1), n)

	row := make([]uint64, 2)
	retries, err := m.read(row)
	require.NoError(t, err)
	assert.Zero(t, retries)
	assert.Equal(t, []uint64{1, 1}, row)

	ok, err := m.tryRead(row)
	require.NoError(t, err)
	assert.True(t, ok)
}

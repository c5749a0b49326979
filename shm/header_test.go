package shm

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	buf := make([]byte, HeaderSize)
	for i := range buf {
		buf[i] = 0xff
	}
	require.NoError(t, EncodeHeader(buf, &Header{FormatVersion: Version, PayloadSize: 512}))

	assert.Equal(t, "SQLK", string(buf[0:4]))
	assert.Equal(t, make([]byte, HeaderSize-12), buf[12:], "reserved bytes are zeroed")

	h, err := DecodeHeader(buf)
	require.NoError(t, err)
	assert.Equal(t, Magic, h.Magic)
	assert.Equal(t, Version, h.FormatVersion)
	assert.Equal(t, uint32(512), h.PayloadSize)
}

func TestEncodeHeader_ShortBuffer(t *testing.T) {
	err := EncodeHeader(make([]byte, HeaderSize-1), &Header{})
	assert.ErrorContains(t, err, "buffer too small")
}

func TestDecodeHeader_Errors(t *testing.T) {
	valid := func() []byte {
		b := make([]byte, HeaderSize)
		require.NoError(t, EncodeHeader(b, &Header{FormatVersion: Version, PayloadSize: 8}))
		return b
	}

	t.Run("short", func(t *testing.T) {
		_, err := DecodeHeader(make([]byte, 10))
		assert.ErrorContains(t, err, "buffer too small")
	})
	t.Run("magic", func(t *testing.T) {
		b := valid()
		copy(b, "NOPE")
		_, err := DecodeHeader(b)
		assert.True(t, errors.Is(err, ErrBadMagic), "got %v", err)
	})
	t.Run("version", func(t *testing.T) {
		b := valid()
		b[4] = 9
		_, err := DecodeHeader(b)
		assert.True(t, errors.Is(err, ErrVersion), "got %v", err)
	})
	t.Run("zero size", func(t *testing.T) {
		b := valid()
		b[8] = 0
		_, err := DecodeHeader(b)
		assert.True(t, errors.Is(err, ErrSize), "got %v", err)
	})
}

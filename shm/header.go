package shm

import (
	"bytes"
	"encoding/binary"

	"github.com/cockroachdb/errors"
)

// Header is the fixed preamble of a segment file.
type Header struct {
	Magic         [4]byte
	FormatVersion uint32
	PayloadSize   uint32
}

// EncodeHeader writes h into the first HeaderSize bytes of dst. The reserved
// tail of the header is zeroed.
func EncodeHeader(dst []byte, h *Header) error {
	if len(dst) < HeaderSize {
		return errors.Newf("shm: header encode: buffer too small (%d < %d)", len(dst), HeaderSize)
	}
	copy(dst[0:4], Magic[:])
	binary.LittleEndian.PutUint32(dst[4:8], h.FormatVersion)
	binary.LittleEndian.PutUint32(dst[8:12], h.PayloadSize)
	clear(dst[12:HeaderSize])
	return nil
}

// DecodeHeader reads a Header from the first HeaderSize bytes of src.
func DecodeHeader(src []byte) (*Header, error) {
	if len(src) < HeaderSize {
		return nil, errors.Newf("shm: header decode: buffer too small (%d < %d)", len(src), HeaderSize)
	}
	if !bytes.Equal(src[0:4], Magic[:]) {
		return nil, errors.Wrapf(ErrBadMagic, "shm: header decode: got %q", src[0:4])
	}
	h := &Header{Magic: Magic}
	h.FormatVersion = binary.LittleEndian.Uint32(src[4:8])
	if h.FormatVersion != Version {
		return nil, errors.Wrapf(ErrVersion, "shm: header decode: version %d", h.FormatVersion)
	}
	h.PayloadSize = binary.LittleEndian.Uint32(src[8:12])
	if h.PayloadSize == 0 || h.PayloadSize > MaxSize {
		return nil, errors.Wrapf(ErrSize, "shm: header decode: payload size %d", h.PayloadSize)
	}
	return h, nil
}

package shm

// Magic identifies a segment file.
var Magic = [4]byte{'S', 'Q', 'L', 'K'}

// Version is the on-disk format version written by this package.
const Version uint32 = 1

// HeaderSize is the size of the encoded Header at the start of the file.
const HeaderSize = 64

// The sequence counter sits alone on the cache line after the header so
// that readers polling it do not share a line with the payload.
const (
	seqOffset     = HeaderSize
	PayloadOffset = 128
)

// MaxSize bounds the payload of a single segment.
const MaxSize = 1 << 30

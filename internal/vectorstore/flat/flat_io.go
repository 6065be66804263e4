package flat

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var flatMagic = [4]byte{'F', 'L', 'A', 'T'}

const flatVersion uint32 = 1

// ErrBadFormat is returned when serialized index bytes cannot be decoded.
var ErrBadFormat = errors.New("flat: bad index format")

// MarshalBinary serializes the index.
//
// Format (little-endian):
//
//	[4B magic "FLAT"] [4B version] [4B metric=0 (L2)]
//	[4B dim] [8B count]
//	[count × dim × 4B float32]
func (x *Index) MarshalBinary() ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(24 + 4*len(x.data))
	buf.Write(flatMagic[:])
	le := binary.LittleEndian
	var hdr [20]byte
	le.PutUint32(hdr[0:], flatVersion)
	le.PutUint32(hdr[4:], 0)
	le.PutUint32(hdr[8:], uint32(x.dim))
	le.PutUint64(hdr[12:], uint64(x.n))
	buf.Write(hdr[:])
	var word [4]byte
	for _, v := range x.data {
		le.PutUint32(word[:], math.Float32bits(v))
		buf.Write(word[:])
	}
	return buf.Bytes(), nil
}

// UnmarshalBinary replaces the index with the decoded contents of data.
func (x *Index) UnmarshalBinary(data []byte) error {
	r := bytes.NewReader(data)
	var magic [4]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil || magic != flatMagic {
		return fmt.Errorf("%w: missing magic", ErrBadFormat)
	}
	var hdr [20]byte
	if _, err := io.ReadFull(r, hdr[:]); err != nil {
		return fmt.Errorf("%w: short header", ErrBadFormat)
	}
	le := binary.LittleEndian
	if v := le.Uint32(hdr[0:]); v != flatVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrBadFormat, v)
	}
	if metric := le.Uint32(hdr[4:]); metric != 0 {
		return fmt.Errorf("%w: unsupported metric %d", ErrBadFormat, metric)
	}
	dim := int(le.Uint32(hdr[8:]))
	n := le.Uint64(hdr[12:])
	if dim <= 0 {
		return fmt.Errorf("%w: dimension %d", ErrBadFormat, dim)
	}
	want := uint64(r.Len())
	// compare by division first so a forged count cannot overflow
	if n > want/4/uint64(dim) || n*uint64(dim)*4 != want {
		return fmt.Errorf("%w: %d vectors of %d dims do not fit %d bytes", ErrBadFormat, n, dim, want)
	}
	vals := make([]float32, int(n)*dim)
	rest := data[len(data)-int(want):]
	for i := range vals {
		vals[i] = math.Float32frombits(le.Uint32(rest[i*4:]))
	}
	x.dim = dim
	x.n = int(n)
	x.data = vals
	return nil
}

// Decode is a convenience wrapper around UnmarshalBinary.
func Decode(data []byte) (*Index, error) {
	x := &Index{}
	if err := x.UnmarshalBinary(data); err != nil {
		return nil, err
	}
	return x, nil
}

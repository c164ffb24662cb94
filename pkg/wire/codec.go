// Package wire implements the length-prefixed binary codec the client and
// server sessions use to exchange packets over UDP. Every multi-byte
// field is big-endian regardless of host byte order, and every
// variable-length field is bounded by an explicit length ceiling.
package wire

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/ancillary-agi-foundry/netcode/pkg/netmath"
)

// MaxStringLength is the hard ceiling on any length-prefixed byte payload.
// Decoding rejects a declared length above this before allocating.
const MaxStringLength = 4096

// DecodeError reports a malformed datagram: short buffer, oversize length,
// or any other condition that means the caller must discard the packet
// without panicking or over-reading.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("wire: decode error: %s", e.Reason)
}

func decodeErrorf(format string, args ...any) error {
	return &DecodeError{Reason: fmt.Sprintf(format, args...)}
}

// Writer appends fixed-width fields in network byte order to an internal
// buffer. It never fails for conformant inputs.
type Writer struct {
	buf []byte
}

// NewWriter returns a Writer with capacity preallocated for size bytes.
func NewWriter(size int) *Writer {
	return &Writer{buf: make([]byte, 0, size)}
}

// Bytes returns the accumulated buffer.
func (w *Writer) Bytes() []byte { return w.buf }

// PutUint8 appends a single byte.
func (w *Writer) PutUint8(v uint8) {
	w.buf = append(w.buf, v)
}

// PutUint32 appends a 32-bit unsigned integer, big-endian.
func (w *Writer) PutUint32(v uint32) {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutUint64 appends a 64-bit unsigned integer, big-endian. On a
// little-endian host this still produces big-endian wire bytes: the
// conversion is a pure byte-order swap, never a host-arithmetic one.
func (w *Writer) PutUint64(v uint64) {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	w.buf = append(w.buf, tmp[:]...)
}

// PutFloat32 appends an IEEE-754 single-precision float via its bit
// pattern, encoded as a big-endian u32.
func (w *Writer) PutFloat32(v float32) {
	w.PutUint32(math.Float32bits(v))
}

// PutInt64 appends a signed 64-bit integer (used for monotonic timestamps)
// via its bit pattern, big-endian.
func (w *Writer) PutInt64(v int64) {
	w.PutUint64(uint64(v))
}

// PutBool appends a boolean as a single byte, 1 for true and 0 for false.
func (w *Writer) PutBool(v bool) {
	if v {
		w.PutUint8(1)
	} else {
		w.PutUint8(0)
	}
}

// PutVector3 appends the three float32 components of v in X, Y, Z order.
func (w *Writer) PutVector3(v netmath.Vector3) {
	w.PutFloat32(v.X)
	w.PutFloat32(v.Y)
	w.PutFloat32(v.Z)
}

// PutBytes appends a u32 length prefix followed by data. Encoding never
// validates length against MaxStringLength: the ceiling is a decode-side
// defense against a hostile or corrupt remote peer, not an encode-side
// limit on the local caller.
func (w *Writer) PutBytes(data []byte) {
	w.PutUint32(uint32(len(data)))
	w.buf = append(w.buf, data...)
}

// PutString appends s as a length-prefixed UTF-8 byte sequence.
func (w *Writer) PutString(s string) {
	w.PutBytes([]byte(s))
}

// Reader reads fixed-width fields from a cursor over a received datagram.
// Every read either succeeds or returns a *DecodeError; it never panics or
// reads past the end of buf.
type Reader struct {
	buf []byte
	pos int
}

// NewReader wraps buf for sequential decoding.
func NewReader(buf []byte) *Reader {
	return &Reader{buf: buf}
}

// Remaining reports how many unread bytes are left in the cursor.
func (r *Reader) Remaining() int {
	return len(r.buf) - r.pos
}

func (r *Reader) take(n int) ([]byte, error) {
	if n < 0 || r.Remaining() < n {
		return nil, decodeErrorf("underflow: need %d bytes, have %d", n, r.Remaining())
	}
	b := r.buf[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Uint8 reads a single byte.
func (r *Reader) Uint8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint32 reads a 32-bit unsigned integer, big-endian.
func (r *Reader) Uint32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

// Uint64 reads a 64-bit unsigned integer, big-endian.
func (r *Reader) Uint64() (uint64, error) {
	b, err := r.take(8)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint64(b), nil
}

// Float32 reads an IEEE-754 single-precision float from its big-endian u32
// bit pattern.
func (r *Reader) Float32() (float32, error) {
	bits, err := r.Uint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(bits), nil
}

// Int64 reads a signed 64-bit integer (a monotonic timestamp) from its
// big-endian bit pattern.
func (r *Reader) Int64() (int64, error) {
	bits, err := r.Uint64()
	if err != nil {
		return 0, err
	}
	return int64(bits), nil
}

// Bool reads a single byte as a boolean; any non-zero byte is true.
func (r *Reader) Bool() (bool, error) {
	b, err := r.Uint8()
	if err != nil {
		return false, err
	}
	return b != 0, nil
}

// Vector3 reads three float32 components in X, Y, Z order.
func (r *Reader) Vector3() (netmath.Vector3, error) {
	x, err := r.Float32()
	if err != nil {
		return netmath.Vector3{}, err
	}
	y, err := r.Float32()
	if err != nil {
		return netmath.Vector3{}, err
	}
	z, err := r.Float32()
	if err != nil {
		return netmath.Vector3{}, err
	}
	return netmath.Vector3{X: x, Y: y, Z: z}, nil
}

// Bytes reads a u32 length prefix followed by that many bytes. A declared
// length above MaxStringLength fails before any allocation.
func (r *Reader) Bytes() ([]byte, error) {
	n, err := r.Uint32()
	if err != nil {
		return nil, err
	}
	if n > MaxStringLength {
		return nil, decodeErrorf("length %d exceeds MaxStringLength %d", n, MaxStringLength)
	}
	return r.take(int(n))
}

// String reads a length-prefixed UTF-8 byte sequence as a string.
func (r *Reader) String() (string, error) {
	b, err := r.Bytes()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

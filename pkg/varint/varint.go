// Package varint implements Bitmessage's variable-length unsigned
// integer encoding: minimal-width, big-endian, with a single prefix
// octet that signals the width of the value that follows.
//
// Layout (value v, prefix octet p):
//
//	v <= 252                      : p            (1 byte total)
//	252 < v <= 0xFFFF              : 0xFD, v(u16) (3 bytes total)
//	0xFFFF < v <= 0xFFFFFFFF       : 0xFE, v(u32) (5 bytes total)
//	v > 0xFFFFFFFF                 : 0xFF, v(u64) (9 bytes total)
//
// Encoders always choose the narrowest form; decoders reject
// non-minimal encodings.
package varint

import (
	"encoding/binary"
	"errors"
	"io"
)

// Prefix octets that select the width of the encoded value.
const (
	prefix3 = 0xFD
	prefix5 = 0xFE
	prefix9 = 0xFF

	// threshold is the largest value encodable in the single prefix
	// octet itself.
	threshold = 0xFC
)

var (
	// ErrTruncated is returned when the input ends before a complete
	// VarInt could be read.
	ErrTruncated = errors.New("varint: truncated input")

	// ErrNonMinimal is returned when a multi-byte form encodes a value
	// that should have used a narrower form.
	ErrNonMinimal = errors.New("varint: non-minimal encoding")
)

// Encode returns the minimal big-endian VarInt encoding of v.
func Encode(v uint64) []byte {
	switch {
	case v <= threshold:
		return []byte{byte(v)}
	case v <= 0xFFFF:
		buf := make([]byte, 3)
		buf[0] = prefix3
		binary.BigEndian.PutUint16(buf[1:], uint16(v))
		return buf
	case v <= 0xFFFFFFFF:
		buf := make([]byte, 5)
		buf[0] = prefix5
		binary.BigEndian.PutUint32(buf[1:], uint32(v))
		return buf
	default:
		buf := make([]byte, 9)
		buf[0] = prefix9
		binary.BigEndian.PutUint64(buf[1:], v)
		return buf
	}
}

// Size returns the number of bytes Encode(v) would produce.
func Size(v uint64) int {
	switch {
	case v <= threshold:
		return 1
	case v <= 0xFFFF:
		return 3
	case v <= 0xFFFFFFFF:
		return 5
	default:
		return 9
	}
}

// Decode reads a VarInt from the front of b, returning the value, the
// number of bytes consumed, and the remainder of b.
func Decode(b []byte) (value uint64, length int, rest []byte, err error) {
	if len(b) == 0 {
		return 0, 0, nil, ErrTruncated
	}

	switch b[0] {
	case prefix3:
		if len(b) < 3 {
			return 0, 0, nil, ErrTruncated
		}
		v := uint64(binary.BigEndian.Uint16(b[1:3]))
		if v <= threshold {
			return 0, 0, nil, ErrNonMinimal
		}
		return v, 3, b[3:], nil
	case prefix5:
		if len(b) < 5 {
			return 0, 0, nil, ErrTruncated
		}
		v := uint64(binary.BigEndian.Uint32(b[1:5]))
		if v <= 0xFFFF {
			return 0, 0, nil, ErrNonMinimal
		}
		return v, 5, b[5:], nil
	case prefix9:
		if len(b) < 9 {
			return 0, 0, nil, ErrTruncated
		}
		v := binary.BigEndian.Uint64(b[1:9])
		if v <= 0xFFFFFFFF {
			return 0, 0, nil, ErrNonMinimal
		}
		return v, 9, b[9:], nil
	default:
		return uint64(b[0]), 1, b[1:], nil
	}
}

// Reader reads a sequence of VarInt values from an io.Reader; Writer
// is its counterpart.
type Reader struct {
	r io.Reader
}

// NewReader creates a Reader that reads VarInts from r.
func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// ReadVarInt reads and returns the next VarInt.
func (vr *Reader) ReadVarInt() (uint64, error) {
	var head [1]byte
	if _, err := io.ReadFull(vr.r, head[:]); err != nil {
		return 0, ErrTruncated
	}

	var width int
	switch head[0] {
	case prefix3:
		width = 2
	case prefix5:
		width = 4
	case prefix9:
		width = 8
	default:
		return uint64(head[0]), nil
	}

	buf := make([]byte, width)
	if _, err := io.ReadFull(vr.r, buf); err != nil {
		return 0, ErrTruncated
	}

	full := append(head[:1], buf...)
	v, _, _, err := Decode(full)
	return v, err
}

// Writer writes a sequence of VarInt values to an io.Writer.
type Writer struct {
	w io.Writer
}

// NewWriter creates a Writer that writes VarInts to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// WriteVarInt writes v in minimal encoding.
func (vw *Writer) WriteVarInt(v uint64) error {
	_, err := vw.w.Write(Encode(v))
	return err
}

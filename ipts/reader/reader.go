// Package reader provides a bounds-checked cursor over a byte span, the
// primitive every frame decoder in package ipts is built on.
package reader

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// ErrEndOfData is returned when a read, skip, or sub-span carve would
// consume more bytes than remain in the span.
var ErrEndOfData = errors.New("ipts: end of data")

// Reader is a cursor over a byte slice. It never mutates or copies the
// underlying slice; all reads return views or copies out of it.
type Reader struct {
	data []byte
	pos  int
}

// New wraps data in a Reader starting at offset 0.
func New(data []byte) *Reader {
	return &Reader{data: data}
}

// Size returns the number of unread bytes remaining.
func (r *Reader) Size() int {
	return len(r.data) - r.pos
}

func (r *Reader) require(n int) error {
	if n < 0 || n > r.Size() {
		return fmt.Errorf("%w: need %d, have %d", ErrEndOfData, n, r.Size())
	}
	return nil
}

// Read copies the next len(dst) bytes into dst.
func (r *Reader) Read(dst []byte) error {
	if err := r.require(len(dst)); err != nil {
		return err
	}
	copy(dst, r.data[r.pos:])
	r.pos += len(dst)
	return nil
}

// Skip advances the cursor by n bytes without copying them out.
func (r *Reader) Skip(n int) error {
	if err := r.require(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Peek returns a view of the next n bytes without advancing the cursor.
func (r *Reader) Peek(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	return r.data[r.pos : r.pos+n], nil
}

// Sub carves off the next n bytes as a new, independent Reader and advances
// the parent past them.
func (r *Reader) Sub(n int) (*Reader, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	child := &Reader{data: r.data[r.pos : r.pos+n]}
	r.pos += n
	return child, nil
}

// Subspan returns a view of the next n bytes and advances the cursor past
// them, without allocating a new Reader.
func (r *Reader) Subspan(n int) ([]byte, error) {
	if err := r.require(n); err != nil {
		return nil, err
	}
	out := r.data[r.pos : r.pos+n]
	r.pos += n
	return out, nil
}

// ReadUint8 reads a single unsigned byte.
func (r *Reader) ReadUint8() (uint8, error) {
	b, err := r.Subspan(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// ReadInt8 reads a single signed byte.
func (r *Reader) ReadInt8() (int8, error) {
	v, err := r.ReadUint8()
	return int8(v), err
}

// ReadUint16 reads a little-endian u16.
func (r *Reader) ReadUint16() (uint16, error) {
	b, err := r.Subspan(2)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b), nil
}

// ReadInt16 reads a little-endian i16.
func (r *Reader) ReadInt16() (int16, error) {
	v, err := r.ReadUint16()
	return int16(v), err
}

// ReadUint32 reads a little-endian u32.
func (r *Reader) ReadUint32() (uint32, error) {
	b, err := r.Subspan(4)
	if err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b), nil
}

// ReadFloat32 reads a little-endian IEEE-754 f32.
func (r *Reader) ReadFloat32() (float32, error) {
	v, err := r.ReadUint32()
	if err != nil {
		return 0, err
	}
	return math.Float32frombits(v), nil
}

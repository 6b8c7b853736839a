// Package raster implements the binary zone mask, its wire codec, and the
// raster-to-polygon conversion pipeline (contour tracing plus coordinate
// scaling to the simulation grid).
package raster

import (
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
)

// Mask is a dense H×W bitmap with one flag per simulation grid cell,
// row-major. The zero value is unusable; construct with NewMask or Decode.
type Mask struct {
	rows, cols int
	bits       []byte // packed, rows*cols bits
}

// NewMask returns an all-zero mask of the given dimensions.
func NewMask(rows, cols int) *Mask {
	if rows <= 0 || cols <= 0 {
		panic(fmt.Sprintf("raster: invalid mask dimensions %dx%d", rows, cols))
	}
	return &Mask{rows: rows, cols: cols, bits: make([]byte, (rows*cols+7)/8)}
}

// Rows returns the mask height.
func (m *Mask) Rows() int { return m.rows }

// Cols returns the mask width.
func (m *Mask) Cols() int { return m.cols }

// At reports the flag at (row, col). Out-of-bounds cells read as unset.
func (m *Mask) At(row, col int) bool {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		return false
	}
	i := row*m.cols + col
	return m.bits[i/8]&(1<<(i%8)) != 0
}

// Set assigns the flag at (row, col).
func (m *Mask) Set(row, col int, on bool) {
	if row < 0 || row >= m.rows || col < 0 || col >= m.cols {
		panic(fmt.Sprintf("raster: cell (%d,%d) outside %dx%d mask", row, col, m.rows, m.cols))
	}
	i := row*m.cols + col
	if on {
		m.bits[i/8] |= 1 << (i % 8)
	} else {
		m.bits[i/8] &^= 1 << (i % 8)
	}
}

// CountSet returns the number of set cells.
func (m *Mask) CountSet() int {
	n := 0
	for r := 0; r < m.rows; r++ {
		for c := 0; c < m.cols; c++ {
			if m.At(r, c) {
				n++
			}
		}
	}
	return n
}

// Equal reports whether both masks have identical dimensions and bits.
func (m *Mask) Equal(o *Mask) bool {
	if m.rows != o.rows || m.cols != o.cols {
		return false
	}
	for i := range m.bits {
		if m.bits[i] != o.bits[i] {
			return false
		}
	}
	return true
}

// Wire format: magic "HMSK", uint32 rows, uint32 cols (big endian), then the
// packed bit payload. Round trips are bit-identical.
var maskMagic = [4]byte{'H', 'M', 'S', 'K'}

// ErrBadMaskFormat indicates a blob that is not a serialized mask.
var ErrBadMaskFormat = errors.New("raster: malformed mask blob")

// Encode writes the mask in wire format.
func (m *Mask) Encode(w io.Writer) error {
	var header [12]byte
	copy(header[:4], maskMagic[:])
	binary.BigEndian.PutUint32(header[4:8], uint32(m.rows))
	binary.BigEndian.PutUint32(header[8:12], uint32(m.cols))
	if _, err := w.Write(header[:]); err != nil {
		return err
	}
	_, err := w.Write(m.bits)
	return err
}

// EncodeBytes returns the wire-format serialization.
func (m *Mask) EncodeBytes() []byte {
	buf := make([]byte, 0, 12+len(m.bits))
	buf = append(buf, maskMagic[:]...)
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.rows))
	buf = binary.BigEndian.AppendUint32(buf, uint32(m.cols))
	return append(buf, m.bits...)
}

// Decode reads a mask in wire format.
func Decode(r io.Reader) (*Mask, error) {
	var header [12]byte
	if _, err := io.ReadFull(r, header[:]); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadMaskFormat, err)
	}
	if [4]byte(header[:4]) != maskMagic {
		return nil, fmt.Errorf("%w: bad magic", ErrBadMaskFormat)
	}
	rows := int(binary.BigEndian.Uint32(header[4:8]))
	cols := int(binary.BigEndian.Uint32(header[8:12]))
	if rows <= 0 || cols <= 0 || rows*cols > 1<<28 {
		return nil, fmt.Errorf("%w: dimensions %dx%d", ErrBadMaskFormat, rows, cols)
	}
	m := NewMask(rows, cols)
	if _, err := io.ReadFull(r, m.bits); err != nil {
		return nil, fmt.Errorf("%w: truncated payload: %w", ErrBadMaskFormat, err)
	}
	return m, nil
}

// DecodeBytes reads a mask from a wire-format buffer.
func DecodeBytes(b []byte) (*Mask, error) {
	return Decode(bytes.NewReader(b))
}

package knx

import (
	"encoding/binary"
	"fmt"
)

// Cursor consumes slices from an owned byte buffer.
//
// Every KNXnet/IP decoder reads through a Cursor so that truncated or
// malformed datagrams produce ErrTruncated instead of an index panic.
// A Cursor is not safe for concurrent use.
type Cursor struct {
	buf []byte
	off int
}

// NewCursor returns a cursor over a private copy of b.
func NewCursor(b []byte) *Cursor {
	buf := make([]byte, len(b))
	copy(buf, b)
	return &Cursor{buf: buf}
}

// Len returns the number of unread bytes.
func (c *Cursor) Len() int {
	return len(c.buf) - c.off
}

// Offset returns the number of bytes consumed so far.
func (c *Cursor) Offset() int {
	return c.off
}

// Take returns the next n bytes and advances past them.
//
// Returns ErrTruncated when the buffer is empty or fewer than n bytes
// remain. The returned slice aliases the cursor's buffer.
func (c *Cursor) Take(n int) ([]byte, error) {
	if n < 0 {
		return nil, fmt.Errorf("%w: negative length %d", ErrTruncated, n)
	}
	if c.Len() == 0 && n > 0 {
		return nil, fmt.Errorf("%w: no data", ErrTruncated)
	}
	if n > c.Len() {
		return nil, fmt.Errorf("%w: need %d bytes, have %d", ErrTruncated, n, c.Len())
	}
	out := c.buf[c.off : c.off+n]
	c.off += n
	return out, nil
}

// TakeLengthPrefixed reads a length byte L and returns the L bytes that
// follow it. The cursor advances by L+1. L may be zero.
func (c *Cursor) TakeLengthPrefixed() ([]byte, error) {
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: no data", ErrTruncated)
	}
	n := int(c.buf[c.off])
	if n+1 > c.Len() {
		return nil, fmt.Errorf("%w: length prefix %d exceeds remaining %d", ErrTruncated, n, c.Len()-1)
	}
	c.off++
	return c.Take(n)
}

// TakeStructure reads a KNXnet/IP structure whose first byte is its own
// total length (length byte included) and returns the whole structure.
// HPAI, CRI, CRD and DIB blocks use this layout.
func (c *Cursor) TakeStructure() ([]byte, error) {
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: no data", ErrTruncated)
	}
	n := int(c.buf[c.off])
	if n == 0 {
		return nil, fmt.Errorf("%w: zero-length structure at offset %d", ErrTruncated, c.off)
	}
	return c.Take(n)
}

// Byte consumes one byte.
func (c *Cursor) Byte() (byte, error) {
	b, err := c.Take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

// Uint16 consumes a big-endian 16-bit value.
func (c *Cursor) Uint16() (uint16, error) {
	b, err := c.Take(2) //nolint:mnd // uint16 width
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

// Rest consumes and returns all unread bytes.
func (c *Cursor) Rest() []byte {
	out := c.buf[c.off:]
	c.off = len(c.buf)
	return out
}

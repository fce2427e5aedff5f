package knx

import (
	"bytes"
	"errors"
	"testing"
)

// ─── Cursor ─────────────────────────────────────────────────────────

func TestCursorTake(t *testing.T) {
	c := NewCursor([]byte{0x01, 0x02, 0x03})

	got, err := c.Take(2)
	if err != nil {
		t.Fatalf("Take(2) error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x01, 0x02}) {
		t.Errorf("Take(2) = %X, want 0102", got)
	}
	if c.Len() != 1 {
		t.Errorf("Len() = %d, want 1", c.Len())
	}

	if _, err := c.Take(2); !errors.Is(err, ErrTruncated) {
		t.Errorf("Take(2) past end error = %v, want ErrTruncated", err)
	}
	if c.Len() != 1 {
		t.Errorf("Len() after failed Take = %d, want 1", c.Len())
	}
}

func TestCursorTakeEmpty(t *testing.T) {
	c := NewCursor(nil)
	if _, err := c.Take(1); !errors.Is(err, ErrTruncated) {
		t.Errorf("Take(1) on empty error = %v, want ErrTruncated", err)
	}
	if _, err := c.TakeLengthPrefixed(); !errors.Is(err, ErrTruncated) {
		t.Errorf("TakeLengthPrefixed() on empty error = %v, want ErrTruncated", err)
	}
	if _, err := c.Take(-1); !errors.Is(err, ErrTruncated) {
		t.Errorf("Take(-1) error = %v, want ErrTruncated", err)
	}
}

func TestCursorTakeLengthPrefixed(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		want    []byte
		wantLen int
		wantErr bool
	}{
		{"two byte block", []byte{0x02, 0xAA, 0xBB, 0xCC}, []byte{0xAA, 0xBB}, 1, false},
		{"zero length block", []byte{0x00, 0xCC}, []byte{}, 1, false},
		{"exact fit", []byte{0x01, 0xAA}, []byte{0xAA}, 0, false},
		{"prefix exceeds data", []byte{0x05, 0x01}, nil, 2, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewCursor(tt.data)
			got, err := c.TakeLengthPrefixed()
			if (err != nil) != tt.wantErr {
				t.Fatalf("TakeLengthPrefixed() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !bytes.Equal(got, tt.want) {
				t.Errorf("TakeLengthPrefixed() = %X, want %X", got, tt.want)
			}
			if c.Len() != tt.wantLen {
				t.Errorf("Len() = %d, want %d", c.Len(), tt.wantLen)
			}
		})
	}
}

func TestCursorTakeStructure(t *testing.T) {
	c := NewCursor([]byte{0x03, 0x01, 0x02, 0x09})
	got, err := c.TakeStructure()
	if err != nil {
		t.Fatalf("TakeStructure() error = %v", err)
	}
	if !bytes.Equal(got, []byte{0x03, 0x01, 0x02}) {
		t.Errorf("TakeStructure() = %X, want 030102", got)
	}

	if _, err := NewCursor([]byte{0x00, 0x01}).TakeStructure(); !errors.Is(err, ErrTruncated) {
		t.Errorf("TakeStructure() zero length error = %v, want ErrTruncated", err)
	}
	if _, err := NewCursor([]byte{0x08, 0x01}).TakeStructure(); !errors.Is(err, ErrTruncated) {
		t.Errorf("TakeStructure() short error = %v, want ErrTruncated", err)
	}
}

func TestCursorOwnsBuffer(t *testing.T) {
	src := []byte{0x01, 0x02}
	c := NewCursor(src)
	src[0] = 0xFF

	b, err := c.Byte()
	if err != nil {
		t.Fatalf("Byte() error = %v", err)
	}
	if b != 0x01 {
		t.Errorf("Byte() = %02X, want 01 (cursor must copy its input)", b)
	}
}

func TestCursorUint16AndRest(t *testing.T) {
	c := NewCursor([]byte{0x0E, 0x57, 0xAA, 0xBB})
	v, err := c.Uint16()
	if err != nil {
		t.Fatalf("Uint16() error = %v", err)
	}
	if v != 3671 {
		t.Errorf("Uint16() = %d, want 3671", v)
	}
	if rest := c.Rest(); !bytes.Equal(rest, []byte{0xAA, 0xBB}) {
		t.Errorf("Rest() = %X, want AABB", rest)
	}
	if c.Len() != 0 || c.Offset() != 4 {
		t.Errorf("after Rest() Len=%d Offset=%d, want 0 and 4", c.Len(), c.Offset())
	}
}

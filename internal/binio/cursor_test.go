package binio

import (
	"errors"
	"testing"
)

func TestCursorReadsPrimitives(t *testing.T) {
	buf := []byte{
		'M', 'C', 'o', 'm', 0, 0,
		0x78, 0x56, 0x34, 0x12,
		0x12, 0x34, 0x56, 0x78,
		0x01, 0, 0, 0, 0, 0, 0, 0x80,
	}
	c := NewCursor(buf)
	s, err := c.FixedString(6)
	if err != nil || s != "MCom" {
		t.Fatalf("FixedString = %q, %v", s, err)
	}
	le, err := c.Uint32LE()
	if err != nil || le != 0x12345678 {
		t.Fatalf("Uint32LE = %#x, %v", le, err)
	}
	be, err := c.Uint32BE()
	if err != nil || be != 0x12345678 {
		t.Fatalf("Uint32BE = %#x, %v", be, err)
	}
	u64, err := c.Uint64LE()
	if err != nil || u64 != 0x8000000000000001 {
		t.Fatalf("Uint64LE = %#x, %v", u64, err)
	}
	if c.Len() != 0 {
		t.Fatalf("expected cursor at end, %d bytes left", c.Len())
	}
}

func TestCursorShortBuffer(t *testing.T) {
	c := NewCursor([]byte{1, 2, 3})
	if _, err := c.Uint32LE(); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	if c.Offset() != 0 {
		t.Fatalf("failed read must not advance, offset %d", c.Offset())
	}
	if err := c.Seek(4); !errors.Is(err, ErrShortBuffer) {
		t.Fatalf("expected seek past end to fail, got %v", err)
	}
	if err := c.Seek(3); err != nil {
		t.Fatalf("seek to end should succeed: %v", err)
	}
}

package binary_test

import (
	"bytes"
	"errors"
	"testing"

	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

func TestReadUintBigEndian(t *testing.T) {
	r := binary.NewReader([]byte{0x12, 0x34, 0x56, 0x78})
	v, err := r.ReadUint(4, false)
	if err != nil {
		t.Fatalf("ReadUint: %v", err)
	}
	if v != 0x12345678 {
		t.Errorf("v = %#x", v)
	}
	if r.Position() != 4 {
		t.Errorf("position = %d", r.Position())
	}
}

func TestReadUintLittleEndian(t *testing.T) {
	r := binary.NewReader([]byte{0x78, 0x56, 0x34, 0x12})
	v, err := r.ReadUint(4, true)
	if err != nil {
		t.Fatalf("ReadUint: %v", err)
	}
	if v != 0x12345678 {
		t.Errorf("v = %#x", v)
	}
}

func TestWindowLimit(t *testing.T) {
	r := binary.NewReader([]byte{1, 2, 3, 4, 5, 6})
	r.SetLimit(3)
	if r.Remaining() != 3 {
		t.Fatalf("remaining = %d", r.Remaining())
	}
	if _, err := r.ReadBytes(4); !errors.Is(err, binary.ErrShortBuffer) {
		t.Fatalf("expected ErrShortBuffer, got %v", err)
	}
	b, err := r.ReadBytes(3)
	if err != nil {
		t.Fatalf("ReadBytes: %v", err)
	}
	if !bytes.Equal(b, []byte{1, 2, 3}) {
		t.Errorf("b = %v", b)
	}
	r.SetLimit(6)
	rest := r.ReadRemaining()
	if !bytes.Equal(rest, []byte{4, 5, 6}) {
		t.Errorf("rest = %v", rest)
	}
}

func TestSkipTo(t *testing.T) {
	r := binary.NewReader(make([]byte, 10))
	if err := r.SkipTo(7); err != nil {
		t.Fatalf("SkipTo: %v", err)
	}
	if err := r.SkipTo(3); err == nil {
		t.Error("expected error skipping backwards")
	}
}

func TestWriterRoundTrip(t *testing.T) {
	w := binary.NewWriter()
	w.WriteUint(0xBEEF, 2, false)
	w.WriteUint(0xBEEF, 2, true)
	w.Pad(2)
	want := []byte{0xBE, 0xEF, 0xEF, 0xBE, 0, 0}
	if !bytes.Equal(w.Bytes(), want) {
		t.Errorf("bytes = %x, want %x", w.Bytes(), want)
	}
}

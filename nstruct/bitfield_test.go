package nstruct_test

import (
	"bytes"
	"errors"
	"testing"

	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct"
)

func newColorBitfield(t *testing.T) *nstruct.Bitfield {
	t.Helper()
	bf, err := nstruct.NewBitfield(nstruct.BitfieldDef{
		Name:    "color",
		Backing: nstruct.Uint32,
		Fields: []nstruct.BitField{
			nstruct.Bits(1, "a"),
			nstruct.Bits(9, "r"),
			nstruct.Bits(11, "g"),
			nstruct.Bits(11, "b"),
		},
		Init: nstruct.PackValue(1, "a"),
	})
	if err != nil {
		t.Fatalf("NewBitfield: %v", err)
	}
	return bf
}

func newWideBitfield(t *testing.T) *nstruct.Bitfield {
	t.Helper()
	bf, err := nstruct.NewBitfield(nstruct.BitfieldDef{
		Name:    "wide",
		Backing: nstruct.Uint64,
		Fields: []nstruct.BitField{
			nstruct.Bits(3, "pre"),
			nstruct.BitsArray(1, "bits", 50),
			nstruct.BitPad(4),
			nstruct.Bits(7, "post"),
		},
	})
	if err != nil {
		t.Fatalf("NewBitfield: %v", err)
	}
	return bf
}

func TestBitfieldPack(t *testing.T) {
	bf := newColorBitfield(t)
	v, err := bf.New(map[string]any{"a": 0, "r": 0x77, "g": 0x312, "b": 0x57a})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{0x1d, 0xd8, 0x95, 0x7a}
	if !bytes.Equal(data, want) {
		t.Fatalf("packed = % x, want % x", data, want)
	}

	parsed, n, err := bf.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 4 {
		t.Errorf("consumed = %d", n)
	}
	if !parsed.Equal(v) {
		t.Error("round trip mismatch")
	}
	created, err := bf.Create(data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.Equal(v) {
		t.Error("create mismatch")
	}
}

func TestBitfieldInitDefault(t *testing.T) {
	bf := newColorBitfield(t)
	v, err := bf.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !bytes.Equal(data, []byte{0x80, 0x00, 0x00, 0x00}) {
		t.Errorf("packed = % x", data)
	}
}

func TestBitfieldArray(t *testing.T) {
	bf := newWideBitfield(t)
	bits := make([]any, 50)
	for i := range bits {
		bits[i] = uint64(i & 1)
	}
	v, err := bf.New(map[string]any{"pre": 2, "bits": bits, "post": 0x3f})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{0x4a, 0xaa, 0xaa, 0xaa, 0xaa, 0xaa, 0xa8, 0x3f}
	if !bytes.Equal(data, want) {
		t.Fatalf("packed = % x, want % x", data, want)
	}

	parsed, _, err := bf.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !parsed.Equal(v) {
		t.Error("round trip mismatch")
	}
	got := parsed.Slice("bits")
	if got[1].(uint64) != 1 || got[2].(uint64) != 0 {
		t.Errorf("bits = %v", got[:4])
	}
}

// The scenario from the docs: sub-fields may claim fewer bits than the
// backing integer provides; the low bits are padding.
func TestBitfieldLowPadding(t *testing.T) {
	bf, err := nstruct.NewBitfield(nstruct.BitfieldDef{
		Name:    "docbits",
		Backing: nstruct.Uint64,
		Fields: []nstruct.BitField{
			nstruct.Bits(4, "first"),
			nstruct.Bits(5, "second"),
			nstruct.BitPad(2),
			nstruct.Bits(19, "third"),
			nstruct.BitsArray(1, "array", 20),
		},
		Init: nstruct.PackValue(2, "second"),
	})
	if err != nil {
		t.Fatalf("NewBitfield: %v", err)
	}
	v, err := bf.New(map[string]any{"first": 5, "third": 7})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{0x51, 0x00, 0x00, 0x1C, 0x00, 0x00, 0x00, 0x00}
	if !bytes.Equal(data, want) {
		t.Fatalf("packed = % x, want % x", data, want)
	}
}

func TestBitfieldWidthMismatch(t *testing.T) {
	_, err := nstruct.NewBitfield(nstruct.BitfieldDef{
		Name:    "toowide",
		Backing: nstruct.Uint8,
		Fields: []nstruct.BitField{
			nstruct.Bits(5, "x"),
			nstruct.Bits(5, "y"),
		},
	})
	if !errors.Is(err, &binerr.Error{Phase: binerr.PhaseDeclare, Kind: binerr.KindBitfieldWidthMismatch}) {
		t.Fatalf("expected BitfieldWidthMismatch, got %v", err)
	}
}

func TestBitfieldValueOverflow(t *testing.T) {
	bf := newColorBitfield(t)
	v, err := bf.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.Set("r", 0x200); err != nil { // 9-bit field
		t.Fatalf("Set: %v", err)
	}
	_, err = v.ToBytes()
	if !errors.Is(err, &binerr.Error{Phase: binerr.PhasePack, Kind: binerr.KindFieldWidthOverflow}) {
		t.Fatalf("expected FieldWidthOverflow, got %v", err)
	}
}

// bitfields nested in a struct, with the struct window driven by a field
// inside a nested bitfield
func TestBitfieldInStruct(t *testing.T) {
	wide := newWideBitfield(t)
	color := newColorBitfield(t)
	td := nstruct.MustNew(nstruct.StructDef{
		Name: "bitstruct",
		Fields: []nstruct.Field{
			nstruct.F(wide, "s1"),
			nstruct.F(nstruct.Array(color, 2), "colors"),
			nstruct.F(nstruct.Array(wide, 0), "extras"),
		},
		Size:    nstruct.SizeFromField(128, "s1", "post"),
		Prepack: nstruct.PackLength("s1", "post"),
	})

	v, err := td.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	s1 := v.Field("s1")
	if err := s1.Set("pre", 2); err != nil {
		t.Fatalf("Set pre: %v", err)
	}
	if err := s1.SetIndex("bits", 17, 1); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	if err := s1.SetIndex("bits", 29, 1); err != nil {
		t.Fatalf("SetIndex: %v", err)
	}
	colors := v.Slice("colors")
	if err := colors[0].(*nstruct.Value).Set("r", 10); err != nil {
		t.Fatalf("Set r: %v", err)
	}
	if err := colors[0].(*nstruct.Value).Set("b", 12); err != nil {
		t.Fatalf("Set b: %v", err)
	}
	if err := colors[1].(*nstruct.Value).Set("a", 0); err != nil {
		t.Fatalf("Set a: %v", err)
	}
	if err := colors[1].(*nstruct.Value).Set("g", 9); err != nil {
		t.Fatalf("Set g: %v", err)
	}
	e1, err := wide.New(map[string]any{"pre": 1, "post": 0x1f})
	if err != nil {
		t.Fatalf("New extra: %v", err)
	}
	ones := make([]any, 50)
	for i := range ones {
		ones[i] = uint64(1)
	}
	e2, err := wide.New(map[string]any{"pre": 2, "bits": ones, "post": 0x17})
	if err != nil {
		t.Fatalf("New extra: %v", err)
	}
	if err := v.Append("extras", e1); err != nil {
		t.Fatalf("Append: %v", err)
	}
	if err := v.Append("extras", e2); err != nil {
		t.Fatalf("Append: %v", err)
	}

	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{
		0x40, 0x00, 0x08, 0x00, 0x80, 0x00, 0x00, 0x20,
		0x82, 0x80, 0x00, 0x0c, 0x00, 0x00, 0x48, 0x00,
		0x20, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x1f,
		0x5f, 0xff, 0xff, 0xff, 0xff, 0xff, 0xf8, 0x17,
	}
	if !bytes.Equal(data, want) {
		t.Fatalf("packed =\n% x\nwant\n% x", data, want)
	}

	parsed, n, err := td.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != len(want) {
		t.Errorf("consumed = %d", n)
	}
	if !parsed.Equal(v) {
		t.Error("round trip mismatch")
	}
	created, err := td.Create(data)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !created.Equal(v) {
		t.Error("create mismatch")
	}
}

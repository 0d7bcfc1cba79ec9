package nstruct_test

import (
	"bytes"
	"errors"
	"testing"

	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct"
)

func TestIntEndianness(t *testing.T) {
	tests := []struct {
		typ  nstruct.Type
		val  any
		wire []byte
	}{
		{nstruct.Uint8, uint64(0xAB), []byte{0xAB}},
		{nstruct.Uint16, uint64(0x1234), []byte{0x12, 0x34}},
		{nstruct.Uint16LE, uint64(0x1234), []byte{0x34, 0x12}},
		{nstruct.Uint32, uint64(0xDEADBEEF), []byte{0xDE, 0xAD, 0xBE, 0xEF}},
		{nstruct.Uint32LE, uint64(0xDEADBEEF), []byte{0xEF, 0xBE, 0xAD, 0xDE}},
		{nstruct.Uint64, uint64(1), []byte{0, 0, 0, 0, 0, 0, 0, 1}},
		{nstruct.Int8, int64(-1), []byte{0xFF}},
		{nstruct.Int16, int64(-2), []byte{0xFF, 0xFE}},
		{nstruct.Int32LE, int64(-2), []byte{0xFE, 0xFF, 0xFF, 0xFF}},
	}
	for _, tt := range tests {
		data, err := nstruct.Pack(tt.typ, tt.val)
		if err != nil {
			t.Errorf("%v: Pack: %v", tt.typ, err)
			continue
		}
		if !bytes.Equal(data, tt.wire) {
			t.Errorf("%v: packed = % x, want % x", tt.typ, data, tt.wire)
			continue
		}
		back, n, err := nstruct.Parse(tt.typ, tt.wire)
		if err != nil {
			t.Errorf("%v: Parse: %v", tt.typ, err)
			continue
		}
		if n != len(tt.wire) || back != tt.val {
			t.Errorf("%v: parsed %v (%d bytes), want %v", tt.typ, back, n, tt.val)
		}
	}
}

func TestIntWidthOverflow(t *testing.T) {
	_, err := nstruct.Pack(nstruct.Uint8, 256)
	if !errors.Is(err, &binerr.Error{Phase: binerr.PhasePack, Kind: binerr.KindFieldWidthOverflow}) {
		t.Fatalf("expected FieldWidthOverflow, got %v", err)
	}
	_, err = nstruct.Pack(nstruct.Int8, 128)
	if !errors.Is(err, &binerr.Error{Phase: binerr.PhasePack, Kind: binerr.KindFieldWidthOverflow}) {
		t.Fatalf("expected FieldWidthOverflow for signed, got %v", err)
	}
	if _, err := nstruct.Pack(nstruct.Int8, -128); err != nil {
		t.Fatalf("-128 fits int8: %v", err)
	}
}

func TestIntShortRead(t *testing.T) {
	_, _, err := nstruct.Parse(nstruct.Uint32, []byte{1, 2, 3})
	if err == nil {
		t.Fatal("expected error on short read")
	}
}

func TestCharArrayStripsZeros(t *testing.T) {
	typ := nstruct.Array(nstruct.Char, 5)
	data, err := nstruct.Pack(typ, "ab")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(data, []byte{'a', 'b', 0, 0, 0}) {
		t.Errorf("packed = % x", data)
	}
	v, n, err := nstruct.Parse(typ, data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 5 || !bytes.Equal(v.([]byte), []byte("ab")) {
		t.Errorf("parsed = %q (%d)", v, n)
	}
}

func TestCharOpenArrayIsRaw(t *testing.T) {
	if nstruct.Array(nstruct.Char, 0) != nstruct.Type(nstruct.Raw) {
		t.Error("Array(Char, 0) should collapse to Raw")
	}
}

func TestCStr(t *testing.T) {
	data, err := nstruct.Pack(nstruct.CStr, "hello")
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(data, []byte("hello\x00")) {
		t.Errorf("packed = % x", data)
	}
	v, n, err := nstruct.Parse(nstruct.CStr, append(data, 0xAA, 0xBB))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 6 || !bytes.Equal(v.([]byte), []byte("hello")) {
		t.Errorf("parsed = %q (%d)", v, n)
	}
	if _, _, err := nstruct.Parse(nstruct.CStr, []byte("unterminated")); err == nil {
		t.Error("expected error on missing terminator")
	}
}

func TestCStrField(t *testing.T) {
	td := nstruct.MustNew(nstruct.StructDef{
		Name: "named",
		Fields: []nstruct.Field{
			nstruct.F(nstruct.CStr, "name"),
			nstruct.F(nstruct.Uint8, "age"),
		},
		Padding: 1,
	})
	wire := []byte{'b', 'o', 'b', 0, 42}
	v, n, err := td.Parse(wire)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != 5 || string(v.Bytes("name")) != "bob" || v.Uint("age") != 42 {
		t.Errorf("parsed %q age %d consumed %d", v.Bytes("name"), v.Uint("age"), n)
	}
	out, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	if !bytes.Equal(out, wire) {
		t.Errorf("repacked = % x", out)
	}
}

func TestVarCharStripsZeros(t *testing.T) {
	v, err := nstruct.Create(nstruct.VarChar, []byte{'h', 'i', 0, 0})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if !bytes.Equal(v.([]byte), []byte("hi")) {
		t.Errorf("parsed = %q", v)
	}
}

func TestFixedArrayDefaultsMissingElements(t *testing.T) {
	typ := nstruct.Array(nstruct.Uint16, 3)
	data, err := nstruct.Pack(typ, []any{uint64(7)})
	if err != nil {
		t.Fatalf("Pack: %v", err)
	}
	if !bytes.Equal(data, []byte{0, 7, 0, 0, 0, 0}) {
		t.Errorf("packed = % x", data)
	}
	if nstruct.Size(typ, []any{uint64(7)}) != 6 {
		t.Errorf("size = %d", nstruct.Size(typ, []any{uint64(7)}))
	}
}

func TestOpenArrayCreate(t *testing.T) {
	typ := nstruct.Array(nstruct.Uint16, 0)
	v, err := nstruct.Create(typ, []byte{0, 1, 0, 2, 0, 3})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	list := v.([]any)
	if len(list) != 3 || list[2].(uint64) != 3 {
		t.Errorf("parsed = %v", list)
	}
	// a trailing fragment too short for another element is ignored
	v, err = nstruct.Create(typ, []byte{0, 1, 0, 2, 0xFF})
	if err != nil {
		t.Fatalf("Create with fragment: %v", err)
	}
	if len(v.([]any)) != 2 {
		t.Errorf("parsed = %v", v)
	}
}

func TestDefaults(t *testing.T) {
	if nstruct.Default(nstruct.Uint32) != uint64(0) {
		t.Error("uint default")
	}
	if nstruct.Default(nstruct.Int16) != int64(0) {
		t.Error("int default")
	}
	if b := nstruct.Default(nstruct.Raw).([]byte); len(b) != 0 {
		t.Error("raw default")
	}
	if l := nstruct.Default(nstruct.Array(nstruct.Uint8, 4)).([]any); len(l) != 4 {
		t.Error("array default")
	}
}

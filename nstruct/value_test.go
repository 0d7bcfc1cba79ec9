package nstruct_test

import (
	"bytes"
	"errors"
	"testing"

	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct"
)

func newNestedStruct(t *testing.T) *nstruct.StructType {
	t.Helper()
	inner := nstruct.MustNew(nstruct.StructDef{
		Name: "header",
		Fields: []nstruct.Field{
			nstruct.F(nstruct.Uint8, "version"),
			nstruct.F(nstruct.Uint16, "length"),
		},
		Padding: 1,
	})
	return nstruct.MustNew(nstruct.StructDef{
		Name: "packet",
		Fields: []nstruct.Field{
			nstruct.F(inner, "header"),
			nstruct.F(nstruct.Uint8, "body"),
		},
		Padding: 1,
	})
}

func TestNestedFieldAccess(t *testing.T) {
	td := newNestedStruct(t)
	v, err := td.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.SetPath(3, "header", "version"); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	got, err := v.GetPath("header", "version")
	if err != nil {
		t.Fatalf("GetPath: %v", err)
	}
	if got != uint64(3) {
		t.Errorf("version = %v", got)
	}
	if v.Field("header").Uint("version") != 3 {
		t.Errorf("Field access = %d", v.Field("header").Uint("version"))
	}
}

func TestSetUnknownField(t *testing.T) {
	td := newNestedStruct(t)
	v, err := td.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	err = v.Set("bogus", 1)
	if !errors.Is(err, &binerr.Error{Phase: binerr.PhasePack, Kind: binerr.KindUnknownField}) {
		t.Fatalf("expected UnknownField, got %v", err)
	}
	if _, err := v.Get("bogus"); err == nil {
		t.Error("expected error reading unknown field")
	}
}

func TestSetCoercesToDeclaredType(t *testing.T) {
	td := newNestedStruct(t)
	v, err := td.New(nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.Set("body", int32(9)); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := v.Get("body")
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, ok := got.(uint64); !ok {
		t.Errorf("body stored as %T, want uint64", got)
	}
	if err := v.Set("body", "not a number"); err == nil {
		t.Error("expected type mismatch")
	}
}

func TestClone(t *testing.T) {
	td := newNestedStruct(t)
	v, err := td.New(map[string]any{"body": 5})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := v.SetPath(1, "header", "version"); err != nil {
		t.Fatalf("SetPath: %v", err)
	}
	c, err := v.Clone()
	if err != nil {
		t.Fatalf("Clone: %v", err)
	}
	if !c.Equal(v) {
		t.Error("clone differs")
	}
	if err := c.Set("body", 9); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if v.Uint("body") != 5 {
		t.Error("clone shares state with the original")
	}
}

func TestExtraRoundTrip(t *testing.T) {
	td := nstruct.MustNew(nstruct.StructDef{
		Name: "extframe",
		Fields: []nstruct.Field{
			nstruct.F(nstruct.Uint16, "length"),
			nstruct.F(nstruct.Uint8, "kind"),
		},
		Padding: 1,
		Size:    nstruct.SizeFromField(65535, "length"),
		Prepack: nstruct.PackRealSize("length"),
	})
	v, err := td.New(map[string]any{"kind": 1})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	v.SetExtra([]byte{0xCA, 0xFE})
	data, err := v.ToBytes()
	if err != nil {
		t.Fatalf("ToBytes: %v", err)
	}
	want := []byte{0x00, 0x05, 0x01, 0xCA, 0xFE}
	if !bytes.Equal(data, want) {
		t.Fatalf("packed = % x, want % x", data, want)
	}
	parsed, _, err := td.Parse(data)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !bytes.Equal(parsed.Extra(), []byte{0xCA, 0xFE}) {
		t.Errorf("extra = % x", parsed.Extra())
	}
}

func TestVariantsReported(t *testing.T) {
	fx := newExtFixture(t)
	v, _, err := fx.base.Parse([]byte{0x00, 0x07, 0x01, 0x01, 0x00, 0x02, 0x03, 0x00})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	vars := v.Variants()
	if len(vars) != 2 || vars[0] != fx.base || vars[1] != fx.a {
		t.Errorf("variants = %v", vars)
	}
	if v.BaseType() != fx.base {
		t.Errorf("base type = %v", v.BaseType())
	}
}

package nstruct

import (
	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

// ToBytes serializes the value: prepack hooks run first (embedded
// sub-structs before their enclosing struct, derived before base), then
// fields are emitted in wire order and the result is padded with zero
// bytes to the alignment boundary.
func (v *Value) ToBytes() ([]byte, error) {
	if err := v.runPrepack(); err != nil {
		return nil, err
	}
	return v.packNoPrepack()
}

// ToBytes packs a value of this descriptor. Equivalent to v.ToBytes.
func (t *StructType) ToBytes(v *Value) ([]byte, error) {
	return v.ToBytes()
}

// Length returns the padded on-wire length of a value of this descriptor.
func (t *StructType) Length(v *Value) int { return v.Length() }

// RealSize returns the unpadded byte length of a value of this descriptor.
func (t *StructType) RealSize(v *Value) int { return v.RealSize() }

func (v *Value) runPrepack() error {
	switch ct := v.ct.(type) {
	case *Bitfield:
		if ct.prepackFn != nil {
			if err := ct.prepackFn(v); err != nil {
				return binerr.Callback(binerr.PhasePack, "prepack", nil, err)
			}
		}
	case *StructType:
		for i := len(v.variants) - 1; i >= 0; i-- {
			if err := v.variants[i].prepackOwn(v); err != nil {
				return err
			}
		}
	}
	return nil
}

func (t *StructType) prepackOwn(v *Value) error {
	for _, e := range t.entries {
		if e.embed != nil {
			if err := e.embed.embedPrepack(v); err != nil {
				return err
			}
		}
	}
	if t.prepackFn != nil {
		if err := t.prepackFn(v); err != nil {
			if isStructured(err) {
				return err
			}
			return binerr.Callback(binerr.PhasePack, "prepack", nil, err)
		}
	}
	return nil
}

func (t *StructType) embedPrepack(v *Value) error { return t.prepackOwn(v) }

func (v *Value) packNoPrepack() ([]byte, error) {
	w := binary.NewWriter()
	switch ct := v.ct.(type) {
	case *Bitfield:
		if err := ct.packBits(w, v, nil); err != nil {
			return nil, err
		}
		return w.Bytes(), nil
	case *StructType:
		for _, vt := range v.variants {
			if err := vt.packBody(w, v); err != nil {
				return nil, err
			}
		}
		w.WriteBytes(v.extra)
		w.Pad(align(w.Len(), v.variants[0].padding) - w.Len())
		return w.Bytes(), nil
	}
	return nil, binerr.New(binerr.PhasePack, binerr.KindTypeMismatch).Detail("unsupported composite").Build()
}

// packBody emits t's own entries in declaration order.
func (t *StructType) packBody(w *binary.Writer, v *Value) error {
	for _, e := range t.entries {
		switch {
		case e.embed != nil:
			if err := e.embed.embedPack(w, v); err != nil {
				return err
			}
		case e.name == "":
			w.Pad(e.typ.fixedWidth())
		default:
			val, ok := v.fields[e.name]
			if !ok {
				val = e.typ.newAny()
			}
			if err := e.typ.packAny(w, val, []string{e.name}); err != nil {
				return err
			}
		}
	}
	return nil
}

// embedPack emits an embedded struct segment: fields from the parent's
// namespace, the segment's extension bytes, then its own padding.
func (t *StructType) embedPack(w *binary.Writer, v *Value) error {
	start := w.Len()
	if err := t.packBody(w, v); err != nil {
		return err
	}
	if b := v.embedExtra[t.name]; len(b) > 0 {
		w.WriteBytes(b)
	}
	w.Pad(align(w.Len()-start, t.padding) - (w.Len() - start))
	return nil
}

// packAny lets a struct serve as a named field or array element type: the
// nested value packs with its own prepack hooks and padding.
func (t *StructType) packAny(w *binary.Writer, val any, path []string) error {
	nv, ok := val.(*Value)
	if !ok {
		return binerr.TypeMismatch(binerr.PhasePack, path, val, t.name)
	}
	b, err := nv.ToBytes()
	if err != nil {
		return err
	}
	w.WriteBytes(b)
	return nil
}

// RealSize returns the byte count before padding, computed by a dry run of
// pack arithmetic without materializing bytes.
func (v *Value) RealSize() int {
	switch ct := v.ct.(type) {
	case *Bitfield:
		return ct.backing.width
	case *StructType:
		size := 0
		for _, vt := range v.variants {
			size += vt.bodySize(v)
		}
		return size + len(v.extra)
	}
	return 0
}

// Length returns the padded on-wire length.
func (v *Value) Length() int {
	switch v.ct.(type) {
	case *Bitfield:
		return v.RealSize()
	case *StructType:
		return align(v.RealSize(), v.variants[0].padding)
	}
	return 0
}

func (t *StructType) bodySize(v *Value) int {
	size := 0
	for _, e := range t.entries {
		switch {
		case e.embed != nil:
			size += e.embed.embedSize(v)
		case e.name == "":
			size += e.typ.fixedWidth()
		default:
			val, ok := v.fields[e.name]
			if !ok {
				val = e.typ.newAny()
			}
			size += e.typ.sizeAny(val)
		}
	}
	return size
}

func (t *StructType) embedSize(v *Value) int {
	return align(t.bodySize(v)+len(v.embedExtra[t.name]), t.padding)
}

// sizeAny reports the padded length of a nested struct value.
func (t *StructType) sizeAny(val any) int {
	nv, ok := val.(*Value)
	if !ok {
		return 0
	}
	return nv.Length()
}

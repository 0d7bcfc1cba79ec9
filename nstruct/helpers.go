package nstruct

import (
	"strconv"

	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

// OptionalType is a conditional field occupying an anonymous position in a
// struct: it parses only when the predicate over the already-parsed
// surrounding fields holds, and packs only when the field is present.
type OptionalType struct {
	typ        Type
	name       string
	criteriaFn CriteriaFunc
	prepackFn  HookFunc
}

// Optional declares a conditional field of the given type. The predicate
// may only read fields declared before the optional position. The field is
// absent on a new value; assign it to make it present.
func Optional(t Type, name string, criteria CriteriaFunc) *OptionalType {
	return &OptionalType{typ: t, name: name, criteriaFn: criteria}
}

// WithPrepack attaches a prepack hook, typically recording the field's
// presence in a sibling flag.
func (o *OptionalType) WithPrepack(fn HookFunc) *OptionalType {
	o.prepackFn = fn
	return o
}

func (o *OptionalType) fieldNames() []string          { return []string{o.name} }
func (o *OptionalType) fieldTypesOf() map[string]Type { return map[string]Type{o.name: o.typ} }
func (o *OptionalType) embedFixedWidth() int          { return -1 }
func (o *OptionalType) embedGreedy() bool             { return o.typ.isGreedy() }

func (o *OptionalType) embedNew(v *Value) error { return nil }

func (o *OptionalType) embedParse(r *binary.Reader, v *Value, greedy bool) error {
	ok, err := o.criteriaFn(v)
	if err != nil {
		return binerr.Callback(binerr.PhaseParse, "criteria", []string{o.name}, err)
	}
	if !ok {
		return nil
	}
	val, err := o.typ.parseAny(r, greedy)
	if err != nil {
		return err
	}
	v.fields[o.name] = val
	return nil
}

func (o *OptionalType) embedPack(w *binary.Writer, v *Value) error {
	val, ok := v.fields[o.name]
	if !ok {
		return nil
	}
	return o.typ.packAny(w, val, []string{o.name})
}

func (o *OptionalType) embedSize(v *Value) int {
	val, ok := v.fields[o.name]
	if !ok {
		return 0
	}
	return o.typ.sizeAny(val)
}

func (o *OptionalType) embedPrepack(v *Value) error {
	if o.prepackFn == nil {
		return nil
	}
	if err := o.prepackFn(v); err != nil {
		return binerr.Callback(binerr.PhasePack, "prepack", []string{o.name}, err)
	}
	return nil
}

// DArrayType is a count-driven array occupying an anonymous position in a
// struct: exactly count(parent) elements parse, and the on-wire length is
// the sum of element sizes.
type DArrayType struct {
	elem      Type
	name      string
	countFn   SizeFunc
	padding   int
	prepackFn HookFunc
}

// DArray declares a dynamic array whose element count is computed from
// sibling fields, typically a length field populated by a prepack hook.
func DArray(elem Type, name string, count SizeFunc) *DArrayType {
	return &DArrayType{elem: elem, name: name, countFn: count, padding: 1}
}

// WithPadding aligns the whole array region to a byte boundary.
func (d *DArrayType) WithPadding(p int) *DArrayType {
	d.padding = p
	return d
}

// WithPrepack attaches a prepack hook, typically writing the element count
// into a sibling field.
func (d *DArrayType) WithPrepack(fn HookFunc) *DArrayType {
	d.prepackFn = fn
	return d
}

func (d *DArrayType) fieldNames() []string { return []string{d.name} }

func (d *DArrayType) fieldTypesOf() map[string]Type {
	return map[string]Type{d.name: &ArrayType{elem: d.elem}}
}

func (d *DArrayType) embedFixedWidth() int { return -1 }
func (d *DArrayType) embedGreedy() bool    { return false }

func (d *DArrayType) embedNew(v *Value) error {
	v.fields[d.name] = []any{}
	return nil
}

func (d *DArrayType) embedParse(r *binary.Reader, v *Value, greedy bool) error {
	n, err := d.countFn(v)
	if err != nil {
		return binerr.Callback(binerr.PhaseParse, "count", []string{d.name}, err)
	}
	start := r.Position()
	out := make([]any, 0, n)
	for i := 0; i < n; i++ {
		elem, err := d.elem.parseAny(r, false)
		if err != nil {
			return err
		}
		out = append(out, elem)
	}
	v.fields[d.name] = out
	padded := align(r.Position()-start, d.padding)
	if err := r.SkipTo(start + padded); err != nil {
		return binerr.InsufficientBytes(d.name, nil, padded, r.Limit()-start)
	}
	return nil
}

func (d *DArrayType) embedPack(w *binary.Writer, v *Value) error {
	start := w.Len()
	list, _ := v.fields[d.name].([]any)
	for i, elem := range list {
		if err := d.elem.packAny(w, elem, []string{d.name, "[" + strconv.Itoa(i) + "]"}); err != nil {
			return err
		}
	}
	w.Pad(align(w.Len()-start, d.padding) - (w.Len() - start))
	return nil
}

func (d *DArrayType) embedSize(v *Value) int {
	list, _ := v.fields[d.name].([]any)
	size := 0
	for _, elem := range list {
		size += d.elem.sizeAny(elem)
	}
	return align(size, d.padding)
}

func (d *DArrayType) embedPrepack(v *Value) error {
	if d.prepackFn == nil {
		return nil
	}
	if err := d.prepackFn(v); err != nil {
		return binerr.Callback(binerr.PhasePack, "prepack", []string{d.name}, err)
	}
	return nil
}

// Hook factories. Each takes a dotted property path, so a size or length
// field inside a nested value can be addressed as PackRealSize("hdr", "length").

// SizeFromField builds a size callback reading the struct window from the
// given field path, guarded by a maximum to protect against corrupted
// or hostile length fields.
func SizeFromField(limit int, path ...string) SizeFunc {
	return func(v *Value) (int, error) {
		raw, err := v.GetPath(path...)
		if err != nil {
			return 0, err
		}
		u, ok := coerceUint(raw)
		if !ok {
			return 0, binerr.TypeMismatch(binerr.PhaseParse, path, raw, "integer")
		}
		if limit > 0 && u > uint64(limit) {
			return 0, binerr.SizeLimitExceeded(path[len(path)-1], int(u), limit)
		}
		return int(u), nil
	}
}

// PackRealSize builds a prepack hook writing the value's unpadded byte
// length into the given field. The canonical inverse of SizeFromField.
func PackRealSize(path ...string) HookFunc {
	return func(v *Value) error {
		return v.SetPath(uint64(v.RealSize()), path...)
	}
}

// PackLength builds a prepack hook writing the value's padded on-wire
// length into the given field.
func PackLength(path ...string) HookFunc {
	return func(v *Value) error {
		return v.SetPath(uint64(v.Length()), path...)
	}
}

// PackValue builds a hook writing a constant into the given field, usually
// an init hook setting the tag a derived type is classified by.
func PackValue(value uint64, path ...string) HookFunc {
	return func(v *Value) error {
		return v.SetPath(value, path...)
	}
}

// PackExpr builds a prepack hook writing fn(value) into the given field.
func PackExpr(fn func(*Value) uint64, path ...string) HookFunc {
	return func(v *Value) error {
		return v.SetPath(fn(v), path...)
	}
}

// Package-level operations for working with any type descriptor, including
// primitives that have no methods of their own.

// Parse decodes one value of t from the start of data, returning the value
// and the consumed byte count.
func Parse(t Type, data []byte) (any, int, error) {
	r := binary.NewReader(data)
	v, err := t.parseAny(r, false)
	if err != nil {
		return nil, 0, err
	}
	return v, r.Position(), nil
}

// Create decodes one value of t from the start of data in greedy mode: a
// variable-length type, or a composite's final variable-length field, takes
// the rest of data. Fixed-width types read only their width, and an open
// array ignores a trailing fragment too short for another element.
func Create(t Type, data []byte) (any, error) {
	r := binary.NewReader(data)
	v, err := t.parseAny(r, true)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// Pack serializes a value of t.
func Pack(t Type, v any) ([]byte, error) {
	w := binary.NewWriter()
	if err := t.packAny(w, v, nil); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Size returns the on-wire byte length of a value of t.
func Size(t Type, v any) int {
	return t.sizeAny(v)
}

// Default returns the zero value of t: 0 for scalars, empty for byte
// strings and open arrays, default-instantiated for composites.
func Default(t Type) any {
	return t.newAny()
}

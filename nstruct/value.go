package nstruct

import (
	"reflect"

	binerr "github.com/wippyai/binstruct/errors"
)

// Value is a mutable node of a parsed or constructed struct or bitfield.
// Field access is by flattened name: base fields, own fields, and fields
// promoted from embedded structs share one namespace. Values are
// tree-shaped; there is no sharing between trees.
type Value struct {
	ct         Composite
	variants   []*StructType
	fields     map[string]any
	extra      []byte
	embedExtra map[string][]byte
}

// Type returns the effective descriptor: for a struct value that parse-time
// dispatch specialized, the most derived descriptor in the chain.
func (v *Value) Type() Composite {
	if n := len(v.variants); n > 0 {
		return v.variants[n-1]
	}
	return v.ct
}

// BaseType returns the descriptor the value was created or parsed through.
func (v *Value) BaseType() Composite {
	if len(v.variants) > 0 {
		return v.variants[0]
	}
	return v.ct
}

// Variants returns the base-to-derived descriptor chain selected for this
// value, nil for bitfield values.
func (v *Value) Variants() []*StructType {
	return append([]*StructType(nil), v.variants...)
}

// Has reports whether the named field is present. Optional fields are
// absent until assigned.
func (v *Value) Has(name string) bool {
	_, ok := v.fields[name]
	return ok
}

// Get returns the named field's value.
func (v *Value) Get(name string) (any, error) {
	val, ok := v.fields[name]
	if !ok {
		if _, known := v.fieldType(name); !known {
			return nil, binerr.UnknownField(binerr.PhaseParse, v.Type().Name(), name)
		}
		return nil, nil
	}
	return val, nil
}

// Set assigns the named field, coercing the value to the field's declared
// representation. Unknown names fail.
func (v *Value) Set(name string, val any) error {
	ft, ok := v.fieldType(name)
	if !ok {
		return binerr.UnknownField(binerr.PhasePack, v.Type().Name(), name)
	}
	norm, err := normalize(ft, val, []string{name})
	if err != nil {
		return err
	}
	v.fields[name] = norm
	return nil
}

// Unset removes an optional field so it is skipped on pack.
func (v *Value) Unset(name string) {
	delete(v.fields, name)
}

// GetPath resolves a dotted property path across nested values.
func (v *Value) GetPath(path ...string) (any, error) {
	cur := v
	for i, p := range path {
		if i == len(path)-1 {
			return cur.Get(p)
		}
		next, err := cur.Get(p)
		if err != nil {
			return nil, err
		}
		nv, ok := next.(*Value)
		if !ok {
			return nil, binerr.New(binerr.PhaseParse, binerr.KindTypeMismatch).
				Path(path[:i+1]...).
				Detail("%q is not a nested value", p).
				Build()
		}
		cur = nv
	}
	return cur, nil
}

// SetPath assigns through a dotted property path across nested values.
func (v *Value) SetPath(val any, path ...string) error {
	if len(path) == 0 {
		return binerr.New(binerr.PhasePack, binerr.KindUnknownField).Detail("empty path").Build()
	}
	cur := v
	for _, p := range path[:len(path)-1] {
		next, err := cur.Get(p)
		if err != nil {
			return err
		}
		nv, ok := next.(*Value)
		if !ok {
			return binerr.New(binerr.PhasePack, binerr.KindTypeMismatch).
				Path(path...).
				Detail("%q is not a nested value", p).
				Build()
		}
		cur = nv
	}
	return cur.Set(path[len(path)-1], val)
}

// Uint returns the named field as an unsigned integer, 0 when absent or
// not numeric. Intended for use inside size/criteria/classifier callbacks
// where the field is known to be parsed.
func (v *Value) Uint(name string) uint64 {
	u, _ := coerceUint(v.fields[name])
	return u
}

// Int returns the named field as a signed integer, 0 when absent.
func (v *Value) Int(name string) int64 {
	i, _ := coerceInt(v.fields[name])
	return i
}

// Bytes returns the named field as a byte string, nil when absent.
func (v *Value) Bytes(name string) []byte {
	b, _ := coerceBytes(v.fields[name])
	return b
}

// Slice returns the named array field, nil when absent.
func (v *Value) Slice(name string) []any {
	s, _ := v.fields[name].([]any)
	return s
}

// Field returns the named nested value, nil when absent.
func (v *Value) Field(name string) *Value {
	nv, _ := v.fields[name].(*Value)
	return nv
}

// Append appends an element to the named array field.
func (v *Value) Append(name string, elem any) error {
	list, _ := v.fields[name].([]any)
	return v.Set(name, append(list, elem))
}

// SetIndex assigns one element of the named array field.
func (v *Value) SetIndex(name string, i int, elem any) error {
	list, ok := v.fields[name].([]any)
	if !ok || i < 0 || i >= len(list) {
		return binerr.New(binerr.PhasePack, binerr.KindUnknownField).
			Path(name).
			Detail("index %d out of range", i).
			Build()
	}
	list[i] = elem
	return v.Set(name, list)
}

// Extra returns the extension bytes beyond the known fields, held for
// derived types that were not recognized at parse time.
func (v *Value) Extra() []byte {
	return v.extra
}

// SetExtra replaces the extension bytes.
func (v *Value) SetExtra(b []byte) {
	v.extra = b
}

// Equal reports structural equality over fields, effective types and
// extension bytes.
func (v *Value) Equal(o *Value) bool {
	if v == nil || o == nil {
		return v == o
	}
	a, err1 := DumpWith(v, DumpOptions{IncludeType: true, DumpExtra: true})
	b, err2 := DumpWith(o, DumpOptions{IncludeType: true, DumpExtra: true})
	if err1 != nil || err2 != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

// fieldType resolves the declared type of a flattened field name across the
// variant chain (or the bitfield descriptor).
func (v *Value) fieldType(name string) (Type, bool) {
	if bt, ok := v.ct.(*Bitfield); ok {
		t, ok := bt.fieldTypes[name]
		return t, ok
	}
	for _, vt := range v.variants {
		if t, ok := vt.fieldTypes[name]; ok {
			return t, true
		}
	}
	return nil, false
}

// fieldOrder returns the flattened field names in wire order.
func (v *Value) fieldOrder() []string {
	if bt, ok := v.ct.(*Bitfield); ok {
		return bt.order
	}
	var names []string
	for _, vt := range v.variants {
		names = append(names, vt.ownNames...)
	}
	return names
}

func newStructValue(root *StructType) *Value {
	return &Value{
		ct:       root,
		variants: []*StructType{root},
		fields:   make(map[string]any),
	}
}

// coerceUint converts any integer-shaped value to uint64.
func coerceUint(v any) (uint64, bool) {
	switch x := v.(type) {
	case uint64:
		return x, true
	case int:
		return uint64(x), true
	case int64:
		return uint64(x), true
	case uint:
		return uint64(x), true
	case uint32:
		return uint64(x), true
	case int32:
		return uint64(x), true
	case uint16:
		return uint64(x), true
	case int16:
		return uint64(x), true
	case uint8:
		return uint64(x), true
	case int8:
		return uint64(x), true
	}
	return 0, false
}

// coerceInt converts any integer-shaped value to int64.
func coerceInt(v any) (int64, bool) {
	u, ok := coerceUint(v)
	return int64(u), ok
}

// coerceBytes converts byte strings and strings to []byte.
func coerceBytes(v any) ([]byte, bool) {
	switch x := v.(type) {
	case []byte:
		return x, true
	case string:
		return []byte(x), true
	case nil:
		return nil, true
	}
	return nil, false
}

// normalize coerces a user-supplied value to the canonical slot
// representation for its declared type, so that values set by hand compare
// equal to the same values produced by parse.
func normalize(t Type, val any, path []string) (any, error) {
	switch ft := t.(type) {
	case *formattedType:
		return normalize(ft.Type, val, path)
	case *IntType:
		if ft.signed {
			if i, ok := coerceInt(val); ok {
				return i, nil
			}
		} else if u, ok := coerceUint(val); ok {
			return u, nil
		}
		return nil, binerr.TypeMismatch(binerr.PhasePack, path, val, ft.name)
	case *Enum:
		return normalize(ft.backing, val, path)
	case *CharType, *BytesType, *RawType, *CStrType:
		if b, ok := coerceBytes(val); ok {
			if b == nil {
				b = []byte{}
			}
			return b, nil
		}
		return nil, binerr.TypeMismatch(binerr.PhasePack, path, val, t.String())
	case *ArrayType:
		list, err := toAnySlice(val, path, t.String())
		if err != nil {
			return nil, err
		}
		out := make([]any, len(list))
		for i, e := range list {
			ne, err := normalize(ft.elem, e, path)
			if err != nil {
				return nil, err
			}
			out[i] = ne
		}
		return out, nil
	default:
		// composite types hold *Value nodes as-is
		return val, nil
	}
}

func toAnySlice(val any, path []string, typeName string) ([]any, error) {
	if list, ok := val.([]any); ok {
		return list, nil
	}
	rv := reflect.ValueOf(val)
	if !rv.IsValid() || (rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array) {
		return nil, binerr.TypeMismatch(binerr.PhasePack, path, val, typeName)
	}
	out := make([]any, rv.Len())
	for i := range out {
		out[i] = rv.Index(i).Interface()
	}
	return out, nil
}

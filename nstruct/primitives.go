package nstruct

import (
	"bytes"
	"strconv"

	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

// IntType is a fixed-width integer descriptor. The exported package
// variables cover the full width/sign/endian matrix; big endian (network
// order) is the default. The little-endian variants are strict: they keep
// their byte order even inside a struct declared little-endian.
type IntType struct {
	name   string
	width  int
	signed bool
	little bool
	strict bool
}

// Fixed-width integer descriptors.
var (
	Uint8  = &IntType{name: "uint8", width: 1}
	Uint16 = &IntType{name: "uint16", width: 2}
	Uint32 = &IntType{name: "uint32", width: 4}
	Uint64 = &IntType{name: "uint64", width: 8}

	Int8  = &IntType{name: "int8", width: 1, signed: true}
	Int16 = &IntType{name: "int16", width: 2, signed: true}
	Int32 = &IntType{name: "int32", width: 4, signed: true}
	Int64 = &IntType{name: "int64", width: 8, signed: true}

	Uint16LE = &IntType{name: "uint16_le", width: 2, little: true, strict: true}
	Uint32LE = &IntType{name: "uint32_le", width: 4, little: true, strict: true}
	Uint64LE = &IntType{name: "uint64_le", width: 8, little: true, strict: true}

	Int16LE = &IntType{name: "int16_le", width: 2, signed: true, little: true, strict: true}
	Int32LE = &IntType{name: "int32_le", width: 4, signed: true, little: true, strict: true}
	Int64LE = &IntType{name: "int64_le", width: 8, signed: true, little: true, strict: true}
)

func (t *IntType) String() string { return t.name }

// Width returns the on-wire width in bytes.
func (t *IntType) Width() int { return t.width }

// Signed reports whether values are interpreted as two's complement.
func (t *IntType) Signed() bool { return t.signed }

func (t *IntType) fixedWidth() int { return t.width }
func (t *IntType) isGreedy() bool  { return false }

// withEndian returns a copy of t with the given byte order. Strict types
// are returned unchanged; they resist struct-wide endian reinterpretation.
func (t *IntType) withEndian(little bool) *IntType {
	if t.strict || t.little == little {
		return t
	}
	c := *t
	c.little = little
	return &c
}

func (t *IntType) parseAny(r *binary.Reader, greedy bool) (any, error) {
	u, err := r.ReadUint(t.width, t.little)
	if err != nil {
		return nil, err
	}
	if t.signed {
		bits := uint(t.width * 8)
		if bits < 64 && u&(uint64(1)<<(bits-1)) != 0 {
			u |= ^mask(t.width * 8)
		}
		return int64(u), nil
	}
	return u, nil
}

func (t *IntType) packAny(w *binary.Writer, v any, path []string) error {
	if t.signed {
		i, ok := coerceInt(v)
		if !ok {
			return binerr.TypeMismatch(binerr.PhasePack, path, v, t.name)
		}
		bits := uint(t.width * 8)
		if t.width < 8 {
			lo := -(int64(1) << (bits - 1))
			hi := int64(1)<<(bits-1) - 1
			if i < lo || i > hi {
				return binerr.FieldWidthOverflow(path, i, t.name)
			}
		}
		w.WriteUint(uint64(i)&mask(t.width*8), t.width, t.little)
		return nil
	}
	u, ok := coerceUint(v)
	if !ok {
		return binerr.TypeMismatch(binerr.PhasePack, path, v, t.name)
	}
	if t.width < 8 && u > mask(t.width*8) {
		return binerr.FieldWidthOverflow(path, u, t.name)
	}
	w.WriteUint(u, t.width, t.little)
	return nil
}

func (t *IntType) sizeAny(any) int { return t.width }

func (t *IntType) newAny() any {
	if t.signed {
		return int64(0)
	}
	return uint64(0)
}

// CharType is a single byte. Char arrays are special: Array(Char, n) yields
// a fixed byte-string type rather than a list of one-byte values.
type CharType struct{}

// Char is the single-byte character descriptor.
var Char = &CharType{}

func (t *CharType) String() string  { return "char" }
func (t *CharType) fixedWidth() int { return 1 }
func (t *CharType) isGreedy() bool  { return false }

func (t *CharType) parseAny(r *binary.Reader, greedy bool) (any, error) {
	b, err := r.ReadByte()
	if err != nil {
		return nil, err
	}
	return []byte{b}, nil
}

func (t *CharType) packAny(w *binary.Writer, v any, path []string) error {
	b, ok := coerceBytes(v)
	if !ok || len(b) == 0 {
		return binerr.TypeMismatch(binerr.PhasePack, path, v, "char")
	}
	w.Byte(b[0])
	return nil
}

func (t *CharType) sizeAny(any) int { return 1 }
func (t *CharType) newAny() any     { return []byte{0} }

// BytesType is a fixed-length byte string (char[N]). Trailing zero bytes
// are stripped on parse and restored on pack, C-string style.
type BytesType struct {
	n int
}

func (t *BytesType) String() string  { return "char[" + strconv.Itoa(t.n) + "]" }
func (t *BytesType) fixedWidth() int { return t.n }
func (t *BytesType) isGreedy() bool  { return false }

func (t *BytesType) parseAny(r *binary.Reader, greedy bool) (any, error) {
	b, err := r.ReadBytes(t.n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), bytes.TrimRight(b, "\x00")...), nil
}

func (t *BytesType) packAny(w *binary.Writer, v any, path []string) error {
	b, ok := coerceBytes(v)
	if !ok {
		return binerr.TypeMismatch(binerr.PhasePack, path, v, t.String())
	}
	if len(b) > t.n {
		b = b[:t.n]
	}
	w.WriteBytes(b)
	w.Pad(t.n - len(b))
	return nil
}

func (t *BytesType) sizeAny(any) int { return t.n }
func (t *BytesType) newAny() any     { return []byte{} }

// RawType is a contiguous byte string whose length is dictated entirely by
// the enclosing size window; it never self-delimits. The VarChar variant
// strips trailing zero bytes on parse.
type RawType struct {
	varchr bool
}

// Raw and VarChar are the variable-length byte string descriptors.
var (
	Raw     = &RawType{}
	VarChar = &RawType{varchr: true}
)

func (t *RawType) String() string {
	if t.varchr {
		return "varchr"
	}
	return "raw"
}

func (t *RawType) fixedWidth() int { return -1 }
func (t *RawType) isGreedy() bool  { return true }

func (t *RawType) parseAny(r *binary.Reader, greedy bool) (any, error) {
	if !greedy {
		return []byte{}, nil
	}
	b := r.ReadRemaining()
	if t.varchr {
		b = bytes.TrimRight(b, "\x00")
	}
	return append([]byte(nil), b...), nil
}

func (t *RawType) packAny(w *binary.Writer, v any, path []string) error {
	b, ok := coerceBytes(v)
	if !ok {
		return binerr.TypeMismatch(binerr.PhasePack, path, v, t.String())
	}
	w.WriteBytes(b)
	return nil
}

func (t *RawType) sizeAny(v any) int {
	b, _ := coerceBytes(v)
	return len(b)
}

func (t *RawType) newAny() any { return []byte{} }

// CStrType is a zero-terminated byte string. Unlike Raw, its length is
// determined by the terminating zero, which is not part of the value.
type CStrType struct{}

// CStr is the zero-terminated byte string descriptor.
var CStr = &CStrType{}

func (t *CStrType) String() string  { return "cstr" }
func (t *CStrType) fixedWidth() int { return -1 }
func (t *CStrType) isGreedy() bool  { return false }

func (t *CStrType) parseAny(r *binary.Reader, greedy bool) (any, error) {
	var out []byte
	for {
		b, err := r.ReadByte()
		if err != nil {
			return nil, err
		}
		if b == 0 {
			return out, nil
		}
		out = append(out, b)
	}
}

func (t *CStrType) packAny(w *binary.Writer, v any, path []string) error {
	b, ok := coerceBytes(v)
	if !ok {
		return binerr.TypeMismatch(binerr.PhasePack, path, v, "cstr")
	}
	w.WriteBytes(b)
	w.Byte(0)
	return nil
}

func (t *CStrType) sizeAny(v any) int {
	b, _ := coerceBytes(v)
	return len(b) + 1
}

func (t *CStrType) newAny() any { return []byte{} }

// ArrayType is a fixed- or open-length array. A length of zero declares an
// open trailer whose element count is dictated by the enclosing window.
type ArrayType struct {
	elem Type
	n    int
}

// Array returns an array descriptor of n elements of t. n == 0 declares an
// open trailer. Char arrays collapse to fixed byte strings (or Raw for
// Array(Char, 0)); Raw and open arrays cannot form arrays and panic, as
// declaration mistakes should fail at startup.
func Array(t Type, n int) Type {
	if n < 0 {
		panic("nstruct: negative array length")
	}
	if _, ok := t.(*CharType); ok {
		if n == 0 {
			return Raw
		}
		return &BytesType{n: n}
	}
	if _, ok := t.(*RawType); ok {
		panic("nstruct: raw cannot form an array")
	}
	if at, ok := t.(*ArrayType); ok && at.n == 0 {
		panic("nstruct: open array cannot form an array")
	}
	return &ArrayType{elem: t, n: n}
}

func (t *ArrayType) String() string { return t.elem.String() + "[" + strconv.Itoa(t.n) + "]" }

func (t *ArrayType) fixedWidth() int {
	if t.n == 0 {
		return -1
	}
	w := t.elem.fixedWidth()
	if w < 0 {
		return -1
	}
	return w * t.n
}

func (t *ArrayType) isGreedy() bool { return t.n == 0 }

func (t *ArrayType) parseAny(r *binary.Reader, greedy bool) (any, error) {
	if t.n > 0 {
		out := make([]any, 0, t.n)
		for i := 0; i < t.n; i++ {
			v, err := t.elem.parseAny(r, false)
			if err != nil {
				return nil, err
			}
			out = append(out, v)
		}
		return out, nil
	}
	out := []any{}
	if !greedy {
		return out, nil
	}
	for r.Remaining() > 0 {
		v, err := t.elem.parseAny(r, false)
		if err != nil {
			// Trailing bytes too short to form another element are
			// left for the enclosing window to skip.
			if isShortRead(err) {
				break
			}
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func (t *ArrayType) packAny(w *binary.Writer, v any, path []string) error {
	list, ok := v.([]any)
	if !ok {
		if v == nil {
			list = nil
		} else {
			return binerr.TypeMismatch(binerr.PhasePack, path, v, t.String())
		}
	}
	n := t.n
	if n == 0 {
		n = len(list)
	}
	for i := 0; i < n; i++ {
		var elem any
		if i < len(list) {
			elem = list[i]
		} else {
			elem = t.elem.newAny()
		}
		if err := t.elem.packAny(w, elem, append(path, "["+strconv.Itoa(i)+"]")); err != nil {
			return err
		}
	}
	return nil
}

func (t *ArrayType) sizeAny(v any) int {
	list, _ := v.([]any)
	n := t.n
	if n == 0 {
		n = len(list)
	}
	size := 0
	for i := 0; i < n; i++ {
		if i < len(list) {
			size += t.elem.sizeAny(list[i])
		} else {
			size += t.elem.sizeAny(t.elem.newAny())
		}
	}
	return size
}

func (t *ArrayType) newAny() any {
	out := make([]any, t.n)
	for i := range out {
		out[i] = t.elem.newAny()
	}
	return out
}

// Elem returns the element descriptor.
func (t *ArrayType) Elem() Type { return t.elem }

// Len returns the declared length, 0 for an open trailer.
func (t *ArrayType) Len() int { return t.n }


package nstruct

import (
	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

// Type is a frozen type descriptor. All descriptors are immutable after
// construction; the same descriptor may be used concurrently from multiple
// goroutines as long as each works on distinct buffers and value trees.
type Type interface {
	String() string

	// fixedWidth returns the constant on-wire width in bytes, or -1 when
	// the width depends on data or on an enclosing size window.
	fixedWidth() int

	// isGreedy reports whether the type absorbs the remaining window when
	// placed in trailing position (raw bytes, open arrays, variable
	// structs without a size callback).
	isGreedy() bool

	parseAny(r *binary.Reader, greedy bool) (any, error)
	packAny(w *binary.Writer, v any, path []string) error
	sizeAny(v any) int
	newAny() any
}

// Composite is a Type whose values are *Value nodes: structs and bitfields.
type Composite interface {
	Type
	Name() string
	composite()
}

// Embeddable is a declaration that occupies an anonymous position in a
// struct and promotes its field names into the parent's namespace:
// embedded structs, Optional fields, and DArray fields.
type Embeddable interface {
	fieldNames() []string
	fieldTypesOf() map[string]Type
	embedFixedWidth() int
	embedGreedy() bool
	embedNew(v *Value) error
	embedParse(r *binary.Reader, v *Value, greedy bool) error
	embedPack(w *binary.Writer, v *Value) error
	embedSize(v *Value) int
	embedPrepack(v *Value) error
}

// SizeFunc computes a byte count or element count from sibling fields that
// are already populated.
type SizeFunc func(*Value) (int, error)

// HookFunc is an init or prepack callback run against a value.
type HookFunc func(*Value) error

// CriteriaFunc decides whether a derived descriptor matches a parsed base
// value, or whether an Optional field is present.
type CriteriaFunc func(*Value) (bool, error)

// ClassifierFunc computes the dispatch key a base descriptor uses to select
// a derived descriptor.
type ClassifierFunc func(*Value) (uint64, error)

// FormatterFunc rewrites the dump mapping of a whole struct value.
type FormatterFunc func(map[string]any) (any, error)

// ValueFormatter rewrites a single dumped field value.
type ValueFormatter func(any) (any, error)

// formatterType is implemented by types that carry a per-field formatter
// applied during human-readable dumps (enums, WithFormatter wrappers).
type formatterType interface {
	fieldFormatter() ValueFormatter
}

// formattedType attaches a dump formatter to an existing type without
// changing its wire behavior.
type formattedType struct {
	Type
	fn ValueFormatter
}

// WithFormatter returns a type identical to t on the wire whose dumped
// values are rewritten by fn when a dump is human-readable.
func WithFormatter(t Type, fn ValueFormatter) Type {
	return &formattedType{Type: t, fn: fn}
}

func (t *formattedType) fieldFormatter() ValueFormatter { return t.fn }

// Field is one entry in a struct declaration.
type Field struct {
	typ   Type
	name  string
	embed Embeddable
}

// F declares a named field of the given type.
func F(t Type, name string) Field {
	return Field{typ: t, name: name}
}

// Pad declares anonymous padding bytes occupying the width of the given
// fixed-size primitive.
func Pad(t Type) Field {
	return Field{typ: t}
}

// Embed declares an anonymous entry whose fields are promoted into the
// parent: an embedded struct, an Optional, or a DArray.
func Embed(e Embeddable) Field {
	return Field{embed: e}
}

func align(n, padding int) int {
	if padding <= 1 {
		return n
	}
	return (n + padding - 1) / padding * padding
}

func mask(width int) uint64 {
	if width >= 64 {
		return ^uint64(0)
	}
	return (uint64(1) << uint(width)) - 1
}

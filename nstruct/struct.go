package nstruct

import (
	binerr "github.com/wippyai/binstruct/errors"
)

// StructDef declares a struct descriptor. Fields appear on the wire in
// declaration order; a derived descriptor (Base set) appends its fields
// after the base's layout and is selected at parse time by the base's
// classifier key or by its own Criteria predicate.
type StructDef struct {
	// Name identifies the descriptor in dumps and errors.
	Name string

	// Fields is the ordered field list: named fields, anonymous padding,
	// and embedded entries.
	Fields []Field

	// Padding aligns the struct's on-wire length to a byte boundary.
	// Zero defaults to 8; use 1 to disable alignment.
	Padding int

	// LittleEndian reinterprets non-strict integer fields (and enums over
	// them) as little-endian. Nested structs keep their own declarations.
	LittleEndian bool

	// Size computes the struct's window from already-parsed fields. Bytes
	// within the window beyond the known fields belong to extensions.
	Size SizeFunc

	// Prepack runs immediately before serialization, typically writing a
	// length or checksum field.
	Prepack HookFunc

	// Init runs when a new value is instantiated.
	Init HookFunc

	// Base makes this a derived descriptor extending another struct.
	Base *StructType

	// Criteria reports whether a parsed base value should be specialized
	// into this descriptor. Evaluated in declaration order; first match
	// wins unless the base sets StrictDispatch.
	Criteria CriteriaFunc

	// Classifier, declared on a base, computes the dispatch key used to
	// select a derived descriptor in O(1).
	Classifier ClassifierFunc

	// ClassifyBy lists the classifier keys this derived descriptor claims.
	ClassifyBy []uint64

	// StrictDispatch makes parse fail with AmbiguousDerived when more than
	// one derived descriptor matches, instead of first-declared-wins.
	StrictDispatch bool

	// Extend overrides the formatting type of named fields during dump.
	// It never changes wire bytes.
	Extend map[string]Type

	// Formatter rewrites the whole dump mapping of this struct when a
	// dump is human-readable. Not inherited by derived descriptors.
	Formatter FormatterFunc

	// LastExtra forces whether the final field is treated as the
	// variable-length trailer. When nil it is inferred from the field's
	// type.
	LastExtra *bool
}

type fieldEntry struct {
	name  string
	typ   Type
	embed Embeddable
}

// StructType is a frozen struct descriptor.
type StructType struct {
	name         string
	entries      []fieldEntry
	padding      int
	little       bool
	sizeFn       SizeFunc
	prepackFn    HookFunc
	initFn       HookFunc
	criteriaFn   CriteriaFunc
	classifierFn ClassifierFunc
	classifyBy   []uint64
	strict       bool
	base         *StructType
	derived      []*StructType
	derivedByKey map[uint64][]*StructType
	extend       map[string]Type
	formatterFn  FormatterFunc
	fieldFmts    map[string]ValueFormatter
	listFmts     map[string]ValueFormatter
	lastExtra    bool
	fixed        int // total fixed width incl. padding, -1 when variable
	ownNames     []string
	fieldTypes   map[string]Type
}

// New freezes a struct declaration into an immutable descriptor.
func New(def StructDef) (*StructType, error) {
	t := &StructType{
		name:         def.Name,
		padding:      def.Padding,
		little:       def.LittleEndian,
		sizeFn:       def.Size,
		prepackFn:    def.Prepack,
		initFn:       def.Init,
		criteriaFn:   def.Criteria,
		classifierFn: def.Classifier,
		classifyBy:   def.ClassifyBy,
		strict:       def.StrictDispatch,
		base:         def.Base,
		derivedByKey: make(map[uint64][]*StructType),
		formatterFn:  def.Formatter,
		fieldFmts:    make(map[string]ValueFormatter),
		listFmts:     make(map[string]ValueFormatter),
		fieldTypes:   make(map[string]Type),
	}
	if t.padding == 0 {
		t.padding = 8
	}
	if t.padding < 1 || t.padding&(t.padding-1) != 0 {
		return nil, binerr.Declaration(t.name, "padding must be a power of two")
	}

	if def.Base == nil {
		if len(def.ClassifyBy) > 0 {
			return nil, binerr.Declaration(t.name, "classify keys without a base type")
		}
		if def.Criteria != nil {
			return nil, binerr.Declaration(t.name, "criteria without a base type")
		}
	} else {
		seen := map[*StructType]bool{t: true}
		for b := def.Base; b != nil; b = b.base {
			if seen[b] {
				return nil, binerr.CycleInDerivation(t.name)
			}
			seen[b] = true
		}
		if len(def.ClassifyBy) > 0 && def.Base.classifierFn == nil {
			return nil, binerr.NoClassifier(t.name)
		}
		// derived layout, padding and size semantics come from the base
		t.padding = def.Base.rootBase().padding
	}

	known := make(map[string]bool)
	for b := def.Base; b != nil; b = b.base {
		for _, n := range b.ownNames {
			known[n] = true
		}
	}
	// the immediate base already carries its own chain's merged formatters
	if def.Base != nil {
		for k, f := range def.Base.fieldFmts {
			t.fieldFmts[k] = f
		}
		for k, f := range def.Base.listFmts {
			t.listFmts[k] = f
		}
	}

	for _, f := range def.Fields {
		switch {
		case f.embed != nil:
			for _, n := range f.embed.fieldNames() {
				if known[n] {
					return nil, binerr.Declaration(t.name, "duplicate field "+n)
				}
				known[n] = true
				t.ownNames = append(t.ownNames, n)
			}
			for n, ft := range f.embed.fieldTypesOf() {
				t.fieldTypes[n] = ft
			}
			collectEmbedFormatters(f.embed, t.fieldFmts, t.listFmts)
			t.entries = append(t.entries, fieldEntry{embed: f.embed})
		case f.name == "":
			typ := f.typ
			if typ == nil {
				return nil, binerr.Declaration(t.name, "padding entry without a type")
			}
			if typ.fixedWidth() < 0 {
				return nil, binerr.Declaration(t.name, "padding entry must have a fixed width")
			}
			if def.LittleEndian {
				typ = adaptEndian(typ, true)
			}
			t.entries = append(t.entries, fieldEntry{typ: typ})
		default:
			typ := f.typ
			if typ == nil {
				return nil, binerr.Declaration(t.name, "field "+f.name+" without a type")
			}
			if known[f.name] {
				return nil, binerr.Declaration(t.name, "duplicate field "+f.name)
			}
			known[f.name] = true
			if def.LittleEndian {
				typ = adaptEndian(typ, true)
			}
			t.ownNames = append(t.ownNames, f.name)
			t.fieldTypes[f.name] = typ
			collectFieldFormatter(f.name, typ, t.fieldFmts, t.listFmts)
			t.entries = append(t.entries, fieldEntry{name: f.name, typ: typ})
		}
	}

	if def.Extend != nil {
		t.extend = def.Extend
		for name, et := range def.Extend {
			if !known[name] {
				return nil, binerr.UnknownField(binerr.PhaseDeclare, t.name, name)
			}
			collectFieldFormatter(name, et, t.fieldFmts, t.listFmts)
		}
	}

	if def.LastExtra != nil {
		t.lastExtra = *def.LastExtra && len(t.entries) > 0
	} else {
		t.lastExtra = t.inferLastExtra()
	}
	t.fixed = t.computeFixedWidth()

	if def.Base != nil {
		def.Base.derived = append(def.Base.derived, t)
		for _, k := range def.ClassifyBy {
			def.Base.derivedByKey[k] = append(def.Base.derivedByKey[k], t)
		}
	}
	return t, nil
}

// MustNew is like New but panics on a declaration error. Intended for
// package-level protocol declarations.
func MustNew(def StructDef) *StructType {
	t, err := New(def)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *StructType) inferLastExtra() bool {
	if len(t.entries) == 0 {
		return false
	}
	last := t.entries[len(t.entries)-1]
	if last.embed != nil {
		return last.embed.embedGreedy()
	}
	return last.typ.isGreedy()
}

func (t *StructType) computeFixedWidth() int {
	if t.sizeFn != nil || t.base != nil || t.lastExtra {
		return -1
	}
	total := 0
	for _, e := range t.entries {
		var w int
		if e.embed != nil {
			w = e.embed.embedFixedWidth()
		} else {
			w = e.typ.fixedWidth()
		}
		if w < 0 {
			return -1
		}
		total += w
	}
	return align(total, t.padding)
}

func (t *StructType) rootBase() *StructType {
	r := t
	for r.base != nil {
		r = r.base
	}
	return r
}

// chain returns the base-to-derived descriptor path ending at t.
func (t *StructType) chain() []*StructType {
	var rev []*StructType
	for c := t; c != nil; c = c.base {
		rev = append(rev, c)
	}
	out := make([]*StructType, len(rev))
	for i, c := range rev {
		out[len(rev)-1-i] = c
	}
	return out
}

func (t *StructType) String() string { return t.name }

// Name returns the descriptor name.
func (t *StructType) Name() string { return t.name }

// Padding returns the alignment boundary in bytes.
func (t *StructType) Padding() int { return t.padding }

// Base returns the descriptor this one extends, or nil.
func (t *StructType) Base() *StructType { return t.base }

func (t *StructType) composite() {}

func (t *StructType) fixedWidth() int { return t.fixed }

func (t *StructType) isGreedy() bool {
	return t.sizeFn == nil && t.base == nil && t.lastExtra
}

// Embeddable implementation: an anonymous struct entry promotes its fields
// into the parent and runs its callbacks against the parent value.

func (t *StructType) fieldNames() []string { return t.ownNames }

func (t *StructType) fieldTypesOf() map[string]Type { return t.fieldTypes }

func (t *StructType) embedFixedWidth() int { return t.fixed }

func (t *StructType) embedGreedy() bool { return t.isGreedy() }

func collectFieldFormatter(name string, typ Type, fieldFmts, listFmts map[string]ValueFormatter) {
	if at, ok := typ.(*ArrayType); ok {
		if ef, ok := at.elem.(formatterType); ok {
			listFmts[name] = ef.fieldFormatter()
		}
		return
	}
	if ft, ok := typ.(formatterType); ok {
		fieldFmts[name] = ft.fieldFormatter()
	}
}

func collectEmbedFormatters(e Embeddable, fieldFmts, listFmts map[string]ValueFormatter) {
	switch x := e.(type) {
	case *StructType:
		for k, f := range x.fieldFmts {
			fieldFmts[k] = f
		}
		for k, f := range x.listFmts {
			listFmts[k] = f
		}
	case *OptionalType:
		collectFieldFormatter(x.name, x.typ, fieldFmts, listFmts)
	case *DArrayType:
		if ef, ok := x.elem.(formatterType); ok {
			listFmts[x.name] = ef.fieldFormatter()
		}
	}
}

// adaptEndian reinterprets non-strict integer types (and enums over them)
// with the struct-wide byte order. Nested structs and bitfields keep their
// own declarations.
func adaptEndian(t Type, little bool) Type {
	switch x := t.(type) {
	case *IntType:
		return x.withEndian(little)
	case *Enum:
		return x.withEndian(little)
	case *ArrayType:
		elem := adaptEndian(x.elem, little)
		if elem == x.elem {
			return x
		}
		return &ArrayType{elem: elem, n: x.n}
	case *formattedType:
		inner := adaptEndian(x.Type, little)
		if inner == x.Type {
			return x
		}
		return &formattedType{Type: inner, fn: x.fn}
	}
	return t
}

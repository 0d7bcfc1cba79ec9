package nstruct

import (
	"errors"

	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

// Parse consumes a byte window and returns the parsed value and the number
// of bytes used, including alignment padding. Parsing always starts at the
// root of the base chain; derived descriptors are selected by dispatch.
func (t *StructType) Parse(data []byte) (*Value, int, error) {
	r := binary.NewReader(data)
	v, err := t.parseValue(r, false)
	if err != nil {
		return nil, 0, err
	}
	return v, r.Position(), nil
}

// Create parses greedily: every remaining byte is fed to the final
// variable-length field or kept as extension bytes, so the value packs
// back to the input, followed by zero padding up to the alignment boundary
// when the input length is not a multiple of it.
func (t *StructType) Create(data []byte) (*Value, error) {
	r := binary.NewReader(data)
	v, err := t.parseValue(r, true)
	if err != nil {
		return nil, err
	}
	return v, nil
}

// parseValue parses one value of t (starting at the chain root) from the
// current window, consuming the padded length.
func (t *StructType) parseValue(r *binary.Reader, greedy bool) (*Value, error) {
	root := t.rootBase()
	v := newStructValue(root)
	start := r.Position()
	if err := root.parseBody(r, v, greedy, func(b []byte) { v.extra = b }); err != nil {
		return nil, err
	}
	if err := dispatch(v); err != nil {
		return nil, err
	}
	if !greedy {
		padded := align(r.Position()-start, root.padding)
		if err := r.SkipTo(start + padded); err != nil {
			return nil, binerr.InsufficientBytes(root.name, nil, padded, r.Limit()-start)
		}
	}
	return v, nil
}

// parseBody parses t's own entries into v. Inherited base fields are
// handled by the caller (parseValue walks from the root; dispatch feeds
// derived bodies from the extension bytes). The sink receives window bytes
// beyond the known fields.
func (t *StructType) parseBody(r *binary.Reader, v *Value, greedy bool, sink func([]byte)) error {
	start := r.Position()
	last := len(t.entries) - 1
	for i, e := range t.entries {
		if t.lastExtra && i == last {
			break
		}
		if err := t.parseEntry(r, v, e, false); err != nil {
			return err
		}
	}

	var end int
	switch {
	case greedy:
		end = r.Limit()
	case t.sizeFn != nil:
		sz, err := t.sizeFn(v)
		if err != nil {
			if isStructured(err) {
				return err
			}
			return binerr.Callback(binerr.PhaseParse, "size", nil, err)
		}
		if sz < r.Position()-start {
			return binerr.SizeUnderflow(t.name, sz, r.Position()-start)
		}
		if start+sz > r.Limit() {
			return binerr.InsufficientBytes(t.name, nil, sz, r.Limit()-start)
		}
		end = start + sz
	default:
		end = r.Position()
	}

	oldLimit := r.Limit()
	r.SetLimit(end)
	defer r.SetLimit(oldLimit)

	if t.lastExtra {
		if err := t.parseEntry(r, v, t.entries[last], true); err != nil {
			return err
		}
	} else if end > r.Position() {
		sink(append([]byte(nil), r.ReadRemaining()...))
	}
	return r.SkipTo(end)
}

func (t *StructType) parseEntry(r *binary.Reader, v *Value, e fieldEntry, greedy bool) error {
	switch {
	case e.embed != nil:
		return e.embed.embedParse(r, v, greedy)
	case e.name == "":
		w := e.typ.fixedWidth()
		if err := r.Skip(w); err != nil {
			return binerr.InsufficientBytes(t.name, nil, w, r.Remaining())
		}
		return nil
	default:
		val, err := e.typ.parseAny(r, greedy)
		if err != nil {
			if errors.Is(err, binary.ErrShortBuffer) {
				return binerr.InsufficientBytes(t.name, []string{e.name}, max(e.typ.fixedWidth(), 0), r.Remaining())
			}
			return err
		}
		v.fields[e.name] = val
		return nil
	}
}

// embedParse parses an embedded struct into the parent value. The embedded
// descriptor keeps its own size window, padding and extension bytes, but
// all fields land in the parent's namespace.
func (t *StructType) embedParse(r *binary.Reader, v *Value, greedy bool) error {
	start := r.Position()
	err := t.parseBody(r, v, greedy, func(b []byte) {
		if v.embedExtra == nil {
			v.embedExtra = make(map[string][]byte)
		}
		v.embedExtra[t.name] = b
	})
	if err != nil {
		return err
	}
	if greedy {
		return nil
	}
	padded := align(r.Position()-start, t.padding)
	if err := r.SkipTo(start + padded); err != nil {
		return binerr.InsufficientBytes(t.name, nil, padded, r.Limit()-start)
	}
	return nil
}

func (t *StructType) embedNew(v *Value) error {
	if err := t.newBody(v); err != nil {
		return err
	}
	if t.initFn != nil {
		if err := t.initFn(v); err != nil {
			return binerr.Callback(binerr.PhaseDeclare, "init", nil, err)
		}
	}
	return nil
}

// parseAny lets a struct serve as a named field or array element type.
func (t *StructType) parseAny(r *binary.Reader, greedy bool) (any, error) {
	return t.parseValue(r, greedy)
}

// dispatch specializes a parsed value by walking derived descriptors:
// the classifier key (or criteria predicates) of the current descriptor
// selects the next one, whose own fields parse from the extension bytes.
func dispatch(v *Value) error {
	cur := v.variants[len(v.variants)-1]
	for {
		chosen, err := cur.selectDerived(v)
		if err != nil {
			return err
		}
		if chosen == nil {
			return nil
		}
		sub := binary.NewReader(v.extra)
		v.extra = nil
		err = chosen.parseBody(sub, v, true, func(b []byte) { v.extra = b })
		if err != nil {
			return err
		}
		v.variants = append(v.variants, chosen)
		cur = chosen
	}
}

func (t *StructType) selectDerived(v *Value) (*StructType, error) {
	if len(t.derived) == 0 {
		return nil, nil
	}
	if t.classifierFn != nil {
		key, err := t.classifierFn(v)
		if err != nil {
			return nil, binerr.Callback(binerr.PhaseParse, "classifier", nil, err)
		}
		if list := t.derivedByKey[key]; len(list) > 0 {
			if t.strict && len(list) > 1 {
				names := make([]string, len(list))
				for i, d := range list {
					names[i] = d.name
				}
				return nil, binerr.AmbiguousDerived(t.name, names)
			}
			return list[0], nil
		}
	}
	var matches []*StructType
	for _, d := range t.derived {
		if d.criteriaFn == nil {
			continue
		}
		ok, err := d.criteriaFn(v)
		if err != nil {
			return nil, binerr.Callback(binerr.PhaseParse, "criteria", nil, err)
		}
		if ok {
			if !t.strict {
				return d, nil
			}
			matches = append(matches, d)
		}
	}
	if len(matches) > 1 {
		names := make([]string, len(matches))
		for i, d := range matches {
			names[i] = d.name
		}
		return nil, binerr.AmbiguousDerived(t.name, names)
	}
	if len(matches) == 1 {
		return matches[0], nil
	}
	return nil, nil
}

// Reclassify re-runs derived dispatch after base fields were mutated by
// hand, extending the variant chain from the current extension bytes.
func (v *Value) Reclassify() error {
	if _, ok := v.ct.(*StructType); !ok {
		return nil
	}
	return dispatch(v)
}

// Clone deep-copies the value by packing and re-parsing it.
func (v *Value) Clone() (*Value, error) {
	data, err := v.ToBytes()
	if err != nil {
		return nil, err
	}
	switch ct := v.BaseType().(type) {
	case *StructType:
		return ct.Create(data)
	case *Bitfield:
		return ct.Create(data)
	}
	return nil, binerr.New(binerr.PhasePack, binerr.KindTypeMismatch).Detail("unsupported composite").Build()
}

// New instantiates a value of this descriptor: every flattened field gets
// its default, init callbacks run from the chain root down, then the
// caller's initializers apply. Unknown initializer names fail.
func (t *StructType) New(init map[string]any) (*Value, error) {
	chain := t.chain()
	root := chain[0]
	v := newStructValue(root)
	v.variants = chain
	for _, ct := range chain {
		if err := ct.newBody(v); err != nil {
			return nil, err
		}
	}
	for _, ct := range chain {
		if ct.initFn != nil {
			if err := ct.initFn(v); err != nil {
				return nil, binerr.Callback(binerr.PhaseDeclare, "init", nil, err)
			}
		}
	}
	for name, val := range init {
		if _, ok := v.fieldType(name); !ok {
			return nil, binerr.UnknownField(binerr.PhaseDeclare, t.name, name)
		}
		if err := v.Set(name, val); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// MustNewValue is like New but panics on error. Intended for tests and
// fixed protocol constants.
func (t *StructType) MustNewValue(init map[string]any) *Value {
	v, err := t.New(init)
	if err != nil {
		panic(err)
	}
	return v
}

func (t *StructType) newBody(v *Value) error {
	for _, e := range t.entries {
		switch {
		case e.embed != nil:
			if err := e.embed.embedNew(v); err != nil {
				return err
			}
		case e.name == "":
		default:
			v.fields[e.name] = e.typ.newAny()
		}
	}
	return nil
}

func (t *StructType) newAny() any {
	v, err := t.New(nil)
	if err != nil {
		// declaration-time init hooks are expected to succeed on an
		// all-defaults value; a default element is still needed
		v = newStructValue(t.rootBase())
		v.variants = t.chain()
	}
	return v
}

// isShortRead reports whether an error means the window had too few bytes,
// as opposed to malformed data.
func isShortRead(err error) bool {
	if errors.Is(err, binary.ErrShortBuffer) {
		return true
	}
	var e *binerr.Error
	return errors.As(err, &e) && e.Kind == binerr.KindInsufficientBytes
}

// isStructured reports whether err is already a structured module error.
func isStructured(err error) bool {
	var e *binerr.Error
	return errors.As(err, &e)
}

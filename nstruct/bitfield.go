package nstruct

import (
	binerr "github.com/wippyai/binstruct/errors"
	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

// BitField declares one sub-field of a bitfield: a bit width, an optional
// name (anonymous sub-fields are padding bits), and an optional array
// length.
type BitField struct {
	Width int
	Name  string
	Count int
}

// Bits declares a named sub-field of the given bit width.
func Bits(width int, name string) BitField {
	return BitField{Width: width, Name: name}
}

// BitsArray declares an array sub-field occupying width*count consecutive
// bits.
func BitsArray(width int, name string, count int) BitField {
	return BitField{Width: width, Name: name, Count: count}
}

// BitPad declares anonymous padding bits.
func BitPad(width int) BitField {
	return BitField{Width: width}
}

// BitfieldDef declares a bitfield descriptor over an unsigned backing
// integer. Sub-fields pack MSB-first into the backing integer regardless
// of its byte order; unclaimed low bits are padding.
type BitfieldDef struct {
	Name      string
	Backing   *IntType
	Fields    []BitField
	Init      HookFunc
	Prepack   HookFunc
	Extend    map[string]Type
	Formatter FormatterFunc
}

type bitSpan struct {
	name  string
	start int // bit offset from the MSB
	end   int
	width int // element width; equals end-start for scalars
	array bool
}

// Bitfield is a frozen bitfield descriptor.
type Bitfield struct {
	name        string
	backing     *IntType
	spans       []bitSpan
	initFn      HookFunc
	prepackFn   HookFunc
	formatterFn FormatterFunc
	fieldFmts   map[string]ValueFormatter
	listFmts    map[string]ValueFormatter
	order       []string
	fieldTypes  map[string]Type
}

// NewBitfield freezes a bitfield declaration.
func NewBitfield(def BitfieldDef) (*Bitfield, error) {
	if def.Backing == nil {
		return nil, binerr.Declaration(def.Name, "bitfield requires a backing integer type")
	}
	if def.Backing.signed {
		return nil, binerr.Declaration(def.Name, "bitfield backing type must be unsigned")
	}
	t := &Bitfield{
		name:        def.Name,
		backing:     def.Backing,
		initFn:      def.Init,
		prepackFn:   def.Prepack,
		formatterFn: def.Formatter,
		fieldFmts:   make(map[string]ValueFormatter),
		listFmts:    make(map[string]ValueFormatter),
		fieldTypes:  make(map[string]Type),
	}
	start := 0
	seen := make(map[string]bool)
	for _, f := range def.Fields {
		if f.Width <= 0 {
			return nil, binerr.Declaration(def.Name, "sub-field width must be positive")
		}
		if f.Name == "" {
			start += f.Width
			continue
		}
		if seen[f.Name] {
			return nil, binerr.Declaration(def.Name, "duplicate sub-field "+f.Name)
		}
		seen[f.Name] = true
		span := bitSpan{name: f.Name, start: start, width: f.Width}
		if f.Count > 0 {
			span.array = true
			span.end = start + f.Width*f.Count
			t.fieldTypes[f.Name] = Array(Uint64, f.Count)
		} else {
			span.end = start + f.Width
			t.fieldTypes[f.Name] = Uint64
		}
		start = span.end
		t.spans = append(t.spans, span)
		t.order = append(t.order, f.Name)
	}
	if bits := t.backing.width * 8; start > bits {
		return nil, binerr.BitfieldWidthMismatch(def.Name, start, bits)
	}
	for name, et := range def.Extend {
		if !seen[name] {
			return nil, binerr.UnknownField(binerr.PhaseDeclare, def.Name, name)
		}
		collectFieldFormatter(name, et, t.fieldFmts, t.listFmts)
	}
	return t, nil
}

// MustBitfield is like NewBitfield but panics on a declaration error.
func MustBitfield(def BitfieldDef) *Bitfield {
	t, err := NewBitfield(def)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Bitfield) String() string { return t.name }

// Name returns the descriptor name.
func (t *Bitfield) Name() string { return t.name }

func (t *Bitfield) composite() {}

func (t *Bitfield) fixedWidth() int { return t.backing.width }
func (t *Bitfield) isGreedy() bool  { return false }

func (t *Bitfield) parseAny(r *binary.Reader, greedy bool) (any, error) {
	u, err := r.ReadUint(t.backing.width, t.backing.little)
	if err != nil {
		return nil, err
	}
	total := t.backing.width * 8
	v := &Value{ct: t, fields: make(map[string]any)}
	for _, s := range t.spans {
		if s.array {
			list := make([]any, 0, (s.end-s.start)/s.width)
			for b := s.start; b < s.end; b += s.width {
				list = append(list, (u>>(uint(total-b-s.width)))&mask(s.width))
			}
			v.fields[s.name] = list
		} else {
			v.fields[s.name] = (u >> uint(total-s.end)) & mask(s.end-s.start)
		}
	}
	return v, nil
}

func (t *Bitfield) packAny(w *binary.Writer, val any, path []string) error {
	nv, ok := val.(*Value)
	if !ok {
		return binerr.TypeMismatch(binerr.PhasePack, path, val, t.name)
	}
	if err := nv.runPrepack(); err != nil {
		return err
	}
	return t.packBits(w, nv, path)
}

func (t *Bitfield) packBits(w *binary.Writer, v *Value, path []string) error {
	total := t.backing.width * 8
	var u uint64
	for _, s := range t.spans {
		m := mask(s.width)
		if !s.array {
			m = mask(s.end - s.start)
		}
		if s.array {
			list, _ := v.fields[s.name].([]any)
			i := 0
			for b := s.start; b < s.end; b += s.width {
				var x uint64
				if i < len(list) {
					x, _ = coerceUint(list[i])
				}
				if x > m {
					return binerr.FieldWidthOverflow(append(path, s.name), x, t.name)
				}
				u |= x << uint(total-b-s.width)
				i++
			}
			continue
		}
		x, _ := coerceUint(v.fields[s.name])
		if x > m {
			return binerr.FieldWidthOverflow(append(path, s.name), x, t.name)
		}
		u |= x << uint(total-s.end)
	}
	w.WriteUint(u, t.backing.width, t.backing.little)
	return nil
}

func (t *Bitfield) sizeAny(any) int { return t.backing.width }

func (t *Bitfield) newAny() any {
	v, err := t.New(nil)
	if err != nil {
		v = &Value{ct: t, fields: make(map[string]any)}
	}
	return v
}

// New instantiates a bitfield value with zeroed sub-fields, runs the init
// callback, then applies the caller's initializers.
func (t *Bitfield) New(init map[string]any) (*Value, error) {
	v := &Value{ct: t, fields: make(map[string]any)}
	for _, s := range t.spans {
		if s.array {
			n := (s.end - s.start) / s.width
			list := make([]any, n)
			for i := range list {
				list[i] = uint64(0)
			}
			v.fields[s.name] = list
		} else {
			v.fields[s.name] = uint64(0)
		}
	}
	if t.initFn != nil {
		if err := t.initFn(v); err != nil {
			return nil, binerr.Callback(binerr.PhaseDeclare, "init", nil, err)
		}
	}
	for name, val := range init {
		if _, ok := t.fieldTypes[name]; !ok {
			return nil, binerr.UnknownField(binerr.PhaseDeclare, t.name, name)
		}
		if err := v.Set(name, val); err != nil {
			return nil, err
		}
	}
	return v, nil
}

// Parse reads one bitfield value from the start of data.
func (t *Bitfield) Parse(data []byte) (*Value, int, error) {
	r := binary.NewReader(data)
	val, err := t.parseAny(r, false)
	if err != nil {
		return nil, 0, binerr.InsufficientBytes(t.name, nil, t.backing.width, len(data))
	}
	return val.(*Value), r.Position(), nil
}

// Create parses a bitfield from exactly its backing width of bytes.
func (t *Bitfield) Create(data []byte) (*Value, error) {
	if len(data) != t.backing.width {
		return nil, binerr.InsufficientBytes(t.name, nil, t.backing.width, len(data))
	}
	v, _, err := t.Parse(data)
	return v, err
}

// ToBytes packs a bitfield value. Equivalent to v.ToBytes.
func (t *Bitfield) ToBytes(v *Value) ([]byte, error) {
	return v.ToBytes()
}

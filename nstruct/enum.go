package nstruct

import (
	"fmt"
	"sort"

	"github.com/wippyai/binstruct/nstruct/internal/binary"
)

// Enum wraps an integer type with a symbolic name mapping. On the wire an
// enum is exactly its backing integer; the mapping only affects
// human-readable dumps. A bitmask enum formats as the space-joined names
// of the set flags, with any unmatched bits appended as a hex literal.
type Enum struct {
	name    string
	backing *IntType
	bitmask bool
	values  map[string]uint64
}

// NewEnum creates an enum descriptor over the given backing integer.
func NewEnum(name string, backing *IntType, bitmask bool, values map[string]uint64) *Enum {
	vals := make(map[string]uint64, len(values))
	for k, v := range values {
		vals[k] = v
	}
	return &Enum{name: name, backing: backing, bitmask: bitmask, values: vals}
}

func (e *Enum) String() string { return e.name }

// Bitmask reports whether the enum formats as OR-combinable flags.
func (e *Enum) Bitmask() bool { return e.bitmask }

// Backing returns the underlying integer descriptor.
func (e *Enum) Backing() *IntType { return e.backing }

// Value returns the integer for a symbol.
func (e *Enum) Value(symbol string) (uint64, bool) {
	v, ok := e.values[symbol]
	return v, ok
}

// SymbolName returns the symbol for an exact integer value.
func (e *Enum) SymbolName(value uint64) (string, bool) {
	for _, k := range e.sortedSymbols() {
		if e.values[k] == value {
			return k, true
		}
	}
	return "", false
}

// Contains reports whether the value is one of the defined symbols.
func (e *Enum) Contains(value uint64) bool {
	_, ok := e.SymbolName(value)
	return ok
}

// Values returns a copy of the symbol mapping.
func (e *Enum) Values() map[string]uint64 {
	out := make(map[string]uint64, len(e.values))
	for k, v := range e.values {
		out[k] = v
	}
	return out
}

// Extend returns a new enum with the current symbols merged with more.
func (e *Enum) Extend(name string, more map[string]uint64) *Enum {
	if name == "" {
		name = e.name
	}
	merged := e.Values()
	for k, v := range more {
		merged[k] = v
	}
	return &Enum{name: name, backing: e.backing, bitmask: e.bitmask, values: merged}
}

// Merge returns a new enum combining this enum's symbols with another's.
func (e *Enum) Merge(other *Enum) *Enum {
	return e.Extend(e.name, other.values)
}

// AsType returns the same symbol mapping over a different backing integer,
// for reusing one enum across field widths.
func (e *Enum) AsType(backing *IntType, bitmask bool) *Enum {
	return &Enum{name: e.name, backing: backing, bitmask: bitmask, values: e.values}
}

// Format converts a value to its human-readable form: the exact-match
// symbol, or for bitmask enums the space-joined set flags with residual
// bits as a hex token. Unmatched non-bitmask values pass through.
func (e *Enum) Format(value uint64) any {
	if !e.bitmask {
		if n, ok := e.SymbolName(value); ok {
			return n
		}
		return value
	}
	var names []string
	rest := value
	for _, k := range e.sortedSymbolsDesc() {
		v := e.values[k]
		if v&rest == v && v != 0 {
			names = append(names, k)
			rest ^= v
		}
	}
	for i, j := 0, len(names)-1; i < j; i, j = i+1, j-1 {
		names[i], names[j] = names[j], names[i]
	}
	if rest != 0 {
		names = append(names, fmt.Sprintf("%#x", rest))
	}
	if len(names) == 0 {
		return uint64(0)
	}
	out := names[0]
	for _, n := range names[1:] {
		out += " " + n
	}
	return out
}

// sortedSymbols returns symbols ordered by value then name, for
// deterministic formatting.
func (e *Enum) sortedSymbols() []string {
	keys := make([]string, 0, len(e.values))
	for k := range e.values {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if e.values[keys[i]] != e.values[keys[j]] {
			return e.values[keys[i]] < e.values[keys[j]]
		}
		return keys[i] < keys[j]
	})
	return keys
}

// sortedSymbolsDesc prefers matching more bits as a whole.
func (e *Enum) sortedSymbolsDesc() []string {
	keys := e.sortedSymbols()
	for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
		keys[i], keys[j] = keys[j], keys[i]
	}
	return keys
}

func (e *Enum) withEndian(little bool) *Enum {
	b := e.backing.withEndian(little)
	if b == e.backing {
		return e
	}
	c := *e
	c.backing = b
	return &c
}

func (e *Enum) fieldFormatter() ValueFormatter {
	return func(v any) (any, error) {
		u, ok := coerceUint(v)
		if !ok {
			return v, nil
		}
		return e.Format(u), nil
	}
}

func (e *Enum) fixedWidth() int { return e.backing.width }
func (e *Enum) isGreedy() bool  { return false }

func (e *Enum) parseAny(r *binary.Reader, greedy bool) (any, error) {
	return e.backing.parseAny(r, greedy)
}

func (e *Enum) packAny(w *binary.Writer, v any, path []string) error {
	return e.backing.packAny(w, v, path)
}

func (e *Enum) sizeAny(v any) int { return e.backing.width }
func (e *Enum) newAny() any       { return e.backing.newAny() }

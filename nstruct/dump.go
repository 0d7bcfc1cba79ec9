package nstruct

import (
	"fmt"
	"unicode/utf8"

	"go.uber.org/zap"

	binerr "github.com/wippyai/binstruct/errors"
)

// TypeKey is the reserved key carrying the effective type name in dumped
// mappings.
const TypeKey = "_type"

// ExtraKey is the reserved key carrying extension bytes when DumpExtra is
// set.
const ExtraKey = "_extra"

// DumpOptions controls the shape of the dumped tree.
type DumpOptions struct {
	// HumanReadable applies per-type formatters and enum symbolization.
	HumanReadable bool

	// IncludeType adds the reserved _type key with the effective type name.
	IncludeType bool

	// DumpExtra emits extension bytes under the reserved _extra key.
	DumpExtra bool

	// BytesAsString converts byte strings to Go strings after formatting,
	// so the tree encodes cleanly as JSON text rather than base64.
	BytesAsString bool
}

// Dump converts a value tree into a nested map/list tree of primitives
// suitable for JSON encoding, with type names included. Formatter failures
// are logged at debug level and leave the affected field unformatted.
func Dump(val any) any {
	d := &dumper{opts: DumpOptions{HumanReadable: true, IncludeType: true}}
	out := d.any(val)
	return out
}

// DumpWith is Dump with explicit options. Unlike Dump it propagates the
// first formatter failure instead of logging it.
func DumpWith(val any, opts DumpOptions) (any, error) {
	d := &dumper{opts: opts, strict: true}
	out := d.any(val)
	if d.firstErr != nil {
		return nil, d.firstErr
	}
	if opts.BytesAsString {
		out = bytesToString(out)
	}
	return out, nil
}

type dumper struct {
	opts     DumpOptions
	strict   bool
	firstErr error
}

func (d *dumper) any(val any) any {
	switch x := val.(type) {
	case *Value:
		return d.value(x)
	case []any:
		out := make([]any, len(x))
		for i, e := range x {
			out[i] = d.any(e)
		}
		return out
	case []byte:
		return append([]byte(nil), x...)
	default:
		return val
	}
}

func (d *dumper) value(v *Value) any {
	m := make(map[string]any)
	for _, name := range v.fieldOrder() {
		if val, ok := v.fields[name]; ok {
			m[name] = d.any(val)
		}
	}

	var result any = m
	if d.opts.HumanReadable {
		result = d.format(v, m)
	}

	out, isMap := result.(map[string]any)
	if !isMap {
		return result
	}
	if d.opts.DumpExtra && len(v.extra) > 0 {
		out[ExtraKey] = append([]byte(nil), v.extra...)
	}
	if d.opts.IncludeType {
		out[TypeKey] = v.Type().Name()
	}
	return out
}

// format applies the effective descriptor's field formatters (element
// formatters first, then whole-field formatters, Extend overrides already
// merged at freeze), then the descriptor's own formatter over the whole
// mapping.
func (d *dumper) format(v *Value, m map[string]any) any {
	listFmts, fieldFmts, structFmt := v.formatters()
	for name, f := range listFmts {
		list, ok := m[name].([]any)
		if !ok {
			continue
		}
		for i, e := range list {
			fe, err := f(e)
			if err != nil {
				d.formatterFailed(v, name, err)
				continue
			}
			list[i] = fe
		}
	}
	for name, f := range fieldFmts {
		cur, ok := m[name]
		if !ok {
			continue
		}
		fv, err := f(cur)
		if err != nil {
			d.formatterFailed(v, name, err)
			continue
		}
		m[name] = fv
	}
	if structFmt != nil {
		out, err := structFmt(m)
		if err != nil {
			d.formatterFailed(v, "", err)
			return m
		}
		return out
	}
	return m
}

func (d *dumper) formatterFailed(v *Value, field string, err error) {
	if d.strict && d.firstErr == nil {
		var path []string
		if field != "" {
			path = []string{field}
		}
		d.firstErr = binerr.Callback(binerr.PhaseDump, "formatter", path, err)
		return
	}
	Logger().Debug("formatter failed",
		zap.String("type", v.Type().Name()),
		zap.String("field", field),
		zap.Error(err))
}

// formatters resolves the formatter maps of the value's effective
// descriptor. For structs the effective (most derived) descriptor carries
// the inherited and extended maps; its own Formatter is not inherited.
func (v *Value) formatters() (listFmts, fieldFmts map[string]ValueFormatter, structFmt FormatterFunc) {
	switch ct := v.ct.(type) {
	case *Bitfield:
		return ct.listFmts, ct.fieldFmts, ct.formatterFn
	case *StructType:
		eff := v.variants[len(v.variants)-1]
		return eff.listFmts, eff.fieldFmts, eff.formatterFn
	}
	return nil, nil, nil
}

// bytesToString walks a dumped tree converting byte strings to text:
// valid UTF-8 becomes the string itself, anything else a quoted escape.
func bytesToString(val any) any {
	switch x := val.(type) {
	case map[string]any:
		for k, v := range x {
			x[k] = bytesToString(v)
		}
		return x
	case []any:
		for i, v := range x {
			x[i] = bytesToString(v)
		}
		return x
	case []byte:
		if utf8.Valid(x) {
			return string(x)
		}
		return fmt.Sprintf("%q", x)
	default:
		return val
	}
}

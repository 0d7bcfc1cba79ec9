package errors

import (
	"fmt"
	"strings"
)

// Phase indicates where in processing the error occurred
type Phase string

const (
	PhaseDeclare Phase = "declare" // type descriptor construction
	PhaseParse   Phase = "parse"   // bytes to value
	PhasePack    Phase = "pack"    // value to bytes
	PhaseDump    Phase = "dump"    // value to JSON-friendly tree
)

// Kind categorizes the error
type Kind string

const (
	KindInsufficientBytes     Kind = "insufficient_bytes"
	KindSizeUnderflow         Kind = "size_underflow"
	KindSizeLimitExceeded     Kind = "size_limit_exceeded"
	KindUnknownField          Kind = "unknown_field"
	KindFieldWidthOverflow    Kind = "field_width_overflow"
	KindBitfieldWidthMismatch Kind = "bitfield_width_mismatch"
	KindAmbiguousDerived      Kind = "ambiguous_derived"
	KindNoClassifier          Kind = "no_classifier"
	KindCycleInDerivation     Kind = "cycle_in_derivation"
	KindCallback              Kind = "callback"
	KindInvalidDeclaration    Kind = "invalid_declaration"
	KindTypeMismatch          Kind = "type_mismatch"
)

// Error is the structured error type used throughout the module
type Error struct {
	Value  any
	Cause  error
	Phase  Phase
	Kind   Kind
	Type   string // type descriptor name, when known
	Detail string
	Path   []string
}

// Error implements the error interface
func (e *Error) Error() string {
	var b strings.Builder

	b.WriteByte('[')
	b.WriteString(string(e.Phase))
	b.WriteString("] ")
	b.WriteString(string(e.Kind))

	if e.Type != "" {
		b.WriteString(" in ")
		b.WriteString(e.Type)
	}

	if len(e.Path) > 0 {
		b.WriteString(" at ")
		b.WriteString(strings.Join(e.Path, "."))
	}

	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}

	if e.Cause != nil {
		b.WriteString(" (caused by: ")
		b.WriteString(e.Cause.Error())
		b.WriteByte(')')
	}

	return b.String()
}

// Unwrap returns the underlying error
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Phase == t.Phase && e.Kind == t.Kind
	}
	return false
}

// Builder provides structured error construction
type Builder struct {
	err Error
}

// New creates a new error builder
func New(phase Phase, kind Kind) *Builder {
	return &Builder{
		err: Error{
			Phase: phase,
			Kind:  kind,
		},
	}
}

// Path sets the field path
func (b *Builder) Path(path ...string) *Builder {
	b.err.Path = path
	return b
}

// Type sets the type descriptor name
func (b *Builder) Type(t string) *Builder {
	b.err.Type = t
	return b
}

// Value sets the offending value
func (b *Builder) Value(v any) *Builder {
	b.err.Value = v
	return b
}

// Cause sets the underlying error
func (b *Builder) Cause(err error) *Builder {
	b.err.Cause = err
	return b
}

// Detail sets the human-readable detail message
func (b *Builder) Detail(msg string, args ...any) *Builder {
	if len(args) > 0 {
		b.err.Detail = fmt.Sprintf(msg, args...)
	} else {
		b.err.Detail = msg
	}
	return b
}

// Build returns the constructed error
func (b *Builder) Build() *Error {
	return &b.err
}

// Convenience constructors for common error patterns

// InsufficientBytes creates a short-read error
func InsufficientBytes(typ string, path []string, need, have int) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindInsufficientBytes,
		Type:   typ,
		Path:   path,
		Detail: fmt.Sprintf("need %d bytes, have %d", need, have),
	}
}

// SizeUnderflow is returned when a size callback yields less than the
// fixed prefix of the struct requires
func SizeUnderflow(typ string, declared, min int) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindSizeUnderflow,
		Type:   typ,
		Detail: fmt.Sprintf("declared size %d is smaller than the %d-byte fixed prefix", declared, min),
		Value:  declared,
	}
}

// SizeLimitExceeded is returned when a size read from a field exceeds the
// declared safety limit
func SizeLimitExceeded(typ string, size, limit int) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindSizeLimitExceeded,
		Type:   typ,
		Detail: fmt.Sprintf("size %d exceeds limit %d", size, limit),
		Value:  size,
	}
}

// UnknownField creates an unknown field error
func UnknownField(phase Phase, typ, fieldName string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindUnknownField,
		Type:   typ,
		Detail: fmt.Sprintf("unknown field %q", fieldName),
	}
}

// FieldWidthOverflow is returned when a value does not fit its on-wire width
func FieldWidthOverflow(path []string, value any, typ string) *Error {
	return &Error{
		Phase:  PhasePack,
		Kind:   KindFieldWidthOverflow,
		Path:   path,
		Type:   typ,
		Detail: fmt.Sprintf("value %v overflows %s", value, typ),
		Value:  value,
	}
}

// BitfieldWidthMismatch is returned at declaration when sub-field bit widths
// exceed the backing integer width
func BitfieldWidthMismatch(typ string, bits, backing int) *Error {
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   KindBitfieldWidthMismatch,
		Type:   typ,
		Detail: fmt.Sprintf("sub-fields need %d bits, backing type has %d", bits, backing),
	}
}

// AmbiguousDerived is returned in strict dispatch mode when more than one
// derived type matches
func AmbiguousDerived(base string, matches []string) *Error {
	return &Error{
		Phase:  PhaseParse,
		Kind:   KindAmbiguousDerived,
		Type:   base,
		Detail: fmt.Sprintf("multiple derived types match: %s", strings.Join(matches, ", ")),
	}
}

// NoClassifier is returned at declaration when classify keys are given but
// the immediate base declares no classifier
func NoClassifier(typ string) *Error {
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   KindNoClassifier,
		Type:   typ,
		Detail: "classify keys given but the base declares no classifier",
	}
}

// CycleInDerivation is returned when a base chain loops back on itself
func CycleInDerivation(typ string) *Error {
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   KindCycleInDerivation,
		Type:   typ,
		Detail: "base chain contains a cycle",
	}
}

// Callback wraps a failure from a user-supplied callback
func Callback(phase Phase, callback string, path []string, cause error) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindCallback,
		Path:   path,
		Detail: callback,
		Cause:  cause,
	}
}

// Declaration creates a generic declaration error
func Declaration(typ, detail string) *Error {
	return &Error{
		Phase:  PhaseDeclare,
		Kind:   KindInvalidDeclaration,
		Type:   typ,
		Detail: detail,
	}
}

// TypeMismatch is returned when a value cannot be coerced to its declared type
func TypeMismatch(phase Phase, path []string, value any, typ string) *Error {
	return &Error{
		Phase:  phase,
		Kind:   KindTypeMismatch,
		Path:   path,
		Type:   typ,
		Detail: fmt.Sprintf("cannot use %T as %s", value, typ),
		Value:  value,
	}
}

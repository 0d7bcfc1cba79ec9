// Package nstruct provides declarative descriptions of C-style binary wire
// formats and a runtime that parses, constructs, serializes, and introspects
// values of those formats.
//
// A format is declared once as a type descriptor and used everywhere:
//
//	message := nstruct.MustNew(nstruct.StructDef{
//	    Name: "message",
//	    Fields: []nstruct.Field{
//	        nstruct.F(nstruct.Uint16, "length"),
//	        nstruct.F(nstruct.Raw, "data"),
//	    },
//	    Padding: 1,
//	    Size:    nstruct.SizeFromField(65535, "length"),
//	    Prepack: nstruct.PackRealSize("length"),
//	})
//
// # Parsing and packing
//
// Parse consumes a byte window and returns the value and the number of
// bytes used; ToBytes is the reciprocal:
//
//	v, n, err := message.Parse(data)
//	out, err := v.ToBytes()
//
// Parse never reads past the window it is given, and a struct that
// declares a size callback clamps its children to the declared window.
// Create is the greedy variant: it feeds every remaining byte to the
// final variable-length field.
//
// # Composition
//
// Structs compose four ways:
//
//   - named fields of any type, including other structs
//   - anonymous padding bytes (Pad)
//   - embedded structs (Embed) whose fields are promoted into the
//     parent's namespace and whose callbacks see the parent value
//   - base/derived extension, where a tag field parsed in the base
//     selects a derived descriptor that appends its own fields
//
// Derived descriptors register against their base with a Classifier key
// or a Criteria predicate; parsing dispatches automatically and records
// the chosen chain on the value, so re-packing reproduces the same
// extension layers.
//
// # Variable sizes
//
// A struct's on-wire size may be driven by a sibling field through the
// Size callback, recomputed before packing through Prepack, and padded
// to the struct's alignment boundary. Optional and DArray cover
// conditional fields and count-driven arrays.
//
// # Introspection
//
// Dump converts a value tree into a nested map/list tree suitable for
// JSON encoding, honoring per-type formatters, per-field Extend
// overrides, and enum symbolization.
package nstruct

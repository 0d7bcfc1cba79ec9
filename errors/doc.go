// Package errors provides the structured error type used throughout the
// binstruct module.
//
// Every error carries a Phase (where in processing it occurred), a Kind
// (the error category), and optionally the field path that triggered it.
// Errors can be matched with errors.Is against a template carrying the
// same Phase and Kind:
//
//	_, _, err := myStruct.Parse(data)
//	if errors.Is(err, &binerr.Error{Phase: binerr.PhaseParse, Kind: binerr.KindInsufficientBytes}) {
//	    // short read
//	}
package errors

package errors_test

import (
	stderrors "errors"
	"strings"
	"testing"

	binerr "github.com/wippyai/binstruct/errors"
)

func TestErrorString(t *testing.T) {
	err := binerr.InsufficientBytes("myheader", []string{"payload"}, 8, 3)
	s := err.Error()
	if !strings.Contains(s, "[parse]") {
		t.Errorf("missing phase: %s", s)
	}
	if !strings.Contains(s, "insufficient_bytes") {
		t.Errorf("missing kind: %s", s)
	}
	if !strings.Contains(s, "payload") {
		t.Errorf("missing path: %s", s)
	}
	if !strings.Contains(s, "myheader") {
		t.Errorf("missing type: %s", s)
	}
}

func TestErrorIs(t *testing.T) {
	err := binerr.SizeUnderflow("mystruct", 2, 4)
	template := &binerr.Error{Phase: binerr.PhaseParse, Kind: binerr.KindSizeUnderflow}
	if !stderrors.Is(err, template) {
		t.Error("expected Is to match on phase+kind")
	}
	other := &binerr.Error{Phase: binerr.PhasePack, Kind: binerr.KindSizeUnderflow}
	if stderrors.Is(err, other) {
		t.Error("expected Is to reject different phase")
	}
}

func TestUnwrap(t *testing.T) {
	cause := stderrors.New("boom")
	err := binerr.Callback(binerr.PhasePack, "prepack", []string{"length"}, cause)
	if !stderrors.Is(err, cause) {
		t.Error("expected Unwrap chain to reach the cause")
	}
	if !strings.Contains(err.Error(), "boom") {
		t.Errorf("cause not rendered: %s", err.Error())
	}
}

func TestBuilder(t *testing.T) {
	err := binerr.New(binerr.PhaseDeclare, binerr.KindInvalidDeclaration).
		Type("mystruct").
		Path("a", "b").
		Detail("duplicate field %q", "b").
		Build()
	if err.Phase != binerr.PhaseDeclare || err.Kind != binerr.KindInvalidDeclaration {
		t.Fatalf("builder lost phase/kind: %+v", err)
	}
	if err.Detail != `duplicate field "b"` {
		t.Errorf("detail = %q", err.Detail)
	}
	if len(err.Path) != 2 {
		t.Errorf("path = %v", err.Path)
	}
}

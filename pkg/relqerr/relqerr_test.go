package relqerr

import (
	"errors"
	"testing"
)

func TestKindOfFindsWrappedKind(t *testing.T) {
	err := RecoverableError(errors.New("duplicate key"), "insert")
	kind, ok := KindOf(err)
	if !ok || kind != Recoverable {
		t.Fatalf("expected Recoverable, got %v ok=%v", kind, ok)
	}
}

func TestKindOfFalseForUntaggedError(t *testing.T) {
	if _, ok := KindOf(errors.New("plain")); ok {
		t.Fatalf("expected no kind for an untagged error")
	}
}

func TestBuildfFormatsMessage(t *testing.T) {
	err := Buildf("unknown alias %q", "foo")
	if err.Error() != `unknown alias "foo"` {
		t.Fatalf("got %q", err.Error())
	}
	kind, ok := KindOf(err)
	if !ok || kind != Build {
		t.Fatalf("expected Build, got %v ok=%v", kind, ok)
	}
}

func TestErrorWrapsUnderlyingCause(t *testing.T) {
	cause := errors.New("boom")
	err := FatalError(cause, "evaluating selector")
	if !errors.Is(err, cause) {
		t.Fatalf("expected errors.Is to reach the wrapped cause")
	}
	var tagged *Error
	if !errors.As(err, &tagged) {
		t.Fatalf("expected errors.As to find *Error")
	}
	if tagged.Kind() != Fatal {
		t.Fatalf("got kind %v", tagged.Kind())
	}
}

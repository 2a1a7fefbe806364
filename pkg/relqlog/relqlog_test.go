package relqlog

import "testing"

func TestResolveDefaultsToNop(t *testing.T) {
	l := Resolve()
	if l == nil {
		t.Fatalf("expected a non-nil no-op logger")
	}
	l.Info("should be discarded")
}

func TestResolveAppliesWithLogger(t *testing.T) {
	custom := Nop().Named("custom")
	l := Resolve(WithLogger(custom))
	if l != custom {
		t.Fatalf("expected WithLogger's logger to be returned")
	}
}

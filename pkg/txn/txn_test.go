package txn

import (
	"errors"
	"testing"
	"time"

	"github.com/relq/relq/pkg/value"
)

func TestIsSettledFalseUntilSettled(t *testing.T) {
	tr := New(nil)
	if tr.IsSettled() {
		t.Fatalf("fresh transaction should be unsettled")
	}
	if err := tr.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !tr.IsSettled() {
		t.Fatalf("expected settled after Complete")
	}
}

func TestCompleteIsIdempotent(t *testing.T) {
	tr := New(nil)
	if err := tr.Complete(); err != nil {
		t.Fatalf("first Complete: %v", err)
	}
	if err := tr.Abort(errors.New("too late")); err != nil {
		t.Fatalf("Abort after Complete should be a no-op, got %v", err)
	}
	if tr.IsSettled() != true {
		t.Fatalf("expected still settled")
	}
}

func TestAbortDiscardsOverlayWithoutFlushing(t *testing.T) {
	tr := New(nil)
	flushed := false
	tr.Write("k1", "name", value.String("a"), func(fields value.Record, deleted []string) error {
		flushed = true
		return nil
	})
	if err := tr.Abort(errors.New("boom")); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if flushed {
		t.Fatalf("flusher must not run on abort")
	}
}

func TestCompleteFlushesShadowedFields(t *testing.T) {
	tr := New(nil)
	var gotFields value.Record
	var gotDeleted []string
	tr.Write("k1", "name", value.String("bob"), func(fields value.Record, deleted []string) error {
		gotFields = fields
		gotDeleted = deleted
		return nil
	})
	tr.Delete("k1", "age", func(fields value.Record, deleted []string) error {
		gotFields = fields
		gotDeleted = deleted
		return nil
	})
	if err := tr.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if gotFields["name"].String() != "bob" {
		t.Fatalf("expected flushed name=bob, got %v", gotFields)
	}
	if len(gotDeleted) != 1 || gotDeleted[0] != "age" {
		t.Fatalf("expected deleted=[age], got %v", gotDeleted)
	}
}

func TestViewFallsThroughToBaseAndHidesDeletedFields(t *testing.T) {
	tr := New(nil)
	base := value.Record{"name": value.String("alice"), "age": value.Number(30)}

	if got := tr.View("k1", base); got["name"].String() != "alice" {
		t.Fatalf("expected unshadowed read to fall through, got %v", got)
	}

	tr.Write("k1", "name", value.String("shadowed"), noopFlush)
	view := tr.View("k1", base)
	if view["name"].String() != "shadowed" {
		t.Fatalf("expected shadow to override base field, got %v", view)
	}
	if view["age"].Number() != 30 {
		t.Fatalf("expected untouched field to fall through, got %v", view)
	}

	tr.Delete("k1", "age", noopFlush)
	view = tr.View("k1", base)
	if _, ok := view["age"]; ok {
		t.Fatalf("expected deleted field to be hidden from the view, got %v", view)
	}

	// base itself is never mutated by Write/Delete
	if base["name"].String() != "alice" {
		t.Fatalf("base must stay untouched, got %v", base)
	}
}

func TestOnSettleFiresOnceWithState(t *testing.T) {
	tr := New(nil)
	var got State
	calls := 0
	tr.OnSettle(func(s State, err error) {
		got = s
		calls++
	})
	tr.Complete()
	tr.Complete()
	if calls != 1 {
		t.Fatalf("expected hook to fire exactly once, got %d", calls)
	}
	if got != Completed {
		t.Fatalf("expected Completed, got %v", got)
	}
}

func TestOnSettleFiresImmediatelyIfAlreadySettled(t *testing.T) {
	tr := New(nil)
	tr.Abort(errors.New("x"))
	fired := false
	tr.OnSettle(func(s State, err error) { fired = true })
	if !fired {
		t.Fatalf("expected hook to fire immediately for an already-settled transaction")
	}
}

type fakeStoreTxn struct {
	committed, aborted bool
}

func (f *fakeStoreTxn) Commit() error { f.committed = true; return nil }
func (f *fakeStoreTxn) Abort() error  { f.aborted = true; return nil }

func TestCompleteCommitsUnderlyingStoreTxn(t *testing.T) {
	store := &fakeStoreTxn{}
	tr := New(store)
	if err := tr.Complete(); err != nil {
		t.Fatalf("Complete: %v", err)
	}
	if !store.committed || store.aborted {
		t.Fatalf("expected underlying store txn committed, got %+v", store)
	}
}

func TestAbortAbortsUnderlyingStoreTxn(t *testing.T) {
	store := &fakeStoreTxn{}
	tr := New(store)
	if err := tr.Abort(errors.New("x")); err != nil {
		t.Fatalf("Abort: %v", err)
	}
	if !store.aborted || store.committed {
		t.Fatalf("expected underlying store txn aborted, got %+v", store)
	}
}

func TestDelayCompleteIsNoOpForPersistentTransaction(t *testing.T) {
	store := &fakeStoreTxn{}
	tr := New(store)
	tr.DelayComplete()
	time.Sleep(10 * time.Millisecond)
	if tr.IsSettled() {
		t.Fatalf("persistent transaction must not auto-complete")
	}
}

func TestDelayCompleteAutoCompletesAfterTwoIdleTicks(t *testing.T) {
	tr := New(nil)
	tr.DelayComplete()
	deadline := time.Now().Add(200 * time.Millisecond)
	for !tr.IsSettled() && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !tr.IsSettled() {
		t.Fatalf("expected auto-completion after two idle ticks")
	}
}

func TestDelayCompleteRearmDefersCompletion(t *testing.T) {
	tr := New(nil)
	tr.DelayComplete()
	// Re-arm repeatedly for longer than a single tick pair would take,
	// so the transaction must still be unsettled throughout.
	for i := 0; i < 5; i++ {
		time.Sleep(time.Millisecond)
		tr.DelayComplete()
	}
	if tr.IsSettled() {
		t.Fatalf("re-arming DelayComplete must defer auto-completion")
	}
}

func noopFlush(fields value.Record, deleted []string) error { return nil }

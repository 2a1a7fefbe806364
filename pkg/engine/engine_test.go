package engine

import (
	"context"
	"testing"

	"github.com/relq/relq/pkg/exec"
	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/query"
	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/relalg"
	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/store/memstore"
	"github.com/relq/relq/pkg/stream"
	"github.com/relq/relq/pkg/value"
)

func seedUsers(t *testing.T, e *Engine, handle string) {
	t.Helper()
	st := memstore.New(map[string]store.SourceSpec{
		"users": {KeyPath: store.KeyPath{"id"}},
	})
	e.Register(handle, st)

	storeTxn, err := st.Transaction(context.Background(), []string{"users"}, store.ReadWrite)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	primary, err := storeTxn.Source("users")
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	rows := []value.Value{
		value.RecordValue(value.Record{"id": value.Number(1), "name": value.String("ada")}),
		value.RecordValue(value.Record{"id": value.Number(2), "name": value.String("bea")}),
	}
	for _, r := range rows {
		if _, err := primary.Put(context.Background(), r, nil); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	if err := storeTxn.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
}

func drain(t *testing.T, s stream.Stream) []value.Tuple {
	t.Helper()
	if err := s.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer s.Close()
	var out []value.Tuple
	for {
		ok, err := s.HasNext()
		if err != nil {
			t.Fatalf("HasNext: %v", err)
		}
		if !ok {
			return out
		}
		tup, err := s.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, tup)
	}
}

func TestRunScansRegisteredStoreThroughTransactionEnvelope(t *testing.T) {
	e := New()
	seedUsers(t, e, "main")

	tree, err := query.From("users").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s, err := e.Run(context.Background(), tree, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tuples := drain(t, s)
	if len(tuples) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(tuples))
	}
}

func TestRunWhereNarrowsResults(t *testing.T) {
	e := New()
	seedUsers(t, e, "main")

	tree, err := query.From("users").Where(expr.Plain("users.id == 2")).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	s, err := e.Run(context.Background(), tree, nil, nil)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tuples := drain(t, s)
	if len(tuples) != 1 {
		t.Fatalf("expected 1 row, got %d", len(tuples))
	}
	if tuples[0]["users"].Field("name").Str() != "bea" {
		t.Fatalf("expected bea, got %v", tuples[0]["users"])
	}
}

func TestRunUnknownStoreHandleFails(t *testing.T) {
	e := New()
	tree := relalg.TransactionEnvelope{
		Child:       relalg.NamedSource{Name: "users"},
		StoreHandle: "ghost",
		Stores:      []string{"users"},
	}
	if _, err := e.Run(context.Background(), tree, nil, nil); err == nil {
		t.Fatalf("expected error for unknown store handle")
	}
}

func TestRunLiteralSourceBypassesStoreRegistry(t *testing.T) {
	e := New()
	lit := literalSource{rows: []value.Value{value.RecordValue(value.Record{"n": value.Number(1)})}}
	tree, err := query.From("nums").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	s, err := e.Run(context.Background(), tree, nil, map[string]exec.Source{"nums": lit})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	tuples := drain(t, s)
	if len(tuples) != 1 {
		t.Fatalf("expected 1 row, got %d", len(tuples))
	}
}

// literalSource is the test's stand-in for an in-memory sequence literal
// (pkg/relalg/source.go's NamedSource doc comment lists this as one of
// the three things a Source can resolve to), ignoring ranges/evalCtx
// entirely since it has no index to narrow against.
type literalSource struct{ rows []value.Value }

func (l literalSource) Scan(ctx context.Context, ranges map[string]rangeset.KeyRange, evalCtx rangeset.EvalContext) (exec.RecordStream, error) {
	return &literalStream{rows: l.rows, i: -1}, nil
}

type literalStream struct {
	rows []value.Value
	i    int
}

func (s *literalStream) Open(ctx context.Context) error { s.i = -1; return nil }
func (s *literalStream) HasNext() (bool, error)         { return s.i+1 < len(s.rows), nil }
func (s *literalStream) Close() error                   { return nil }
func (s *literalStream) Next() (value.Value, error) {
	s.i++
	return s.rows[s.i], nil
}

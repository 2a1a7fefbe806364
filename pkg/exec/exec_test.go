package exec

import (
	"context"
	"testing"

	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/relalg"
	"github.com/relq/relq/pkg/stream"
	"github.com/relq/relq/pkg/value"
)

// fakeSource is an in-memory Store used only by these tests: it ignores
// the ranges argument (always a full scan) and appends written records to
// its slice, mirroring the simplest possible Scan/Put contract.
type fakeSource struct {
	records []value.Value
}

func (f *fakeSource) Scan(ctx context.Context, ranges map[string]rangeset.KeyRange, ec rangeset.EvalContext) (RecordStream, error) {
	return recordStreamOf(f.records), nil
}

func (f *fakeSource) Put(ctx context.Context, records []value.Value, opts WriteOptions) ([]value.Value, error) {
	f.records = append(f.records, records...)
	return records, nil
}

func rec(fields map[string]float64) value.Value {
	r := make(value.Record, len(fields))
	for k, v := range fields {
		r[k] = value.Number(v)
	}
	return value.RecordValue(r)
}

func newCtx(bindings map[string]Source) *Context {
	return &Context{Go: context.Background(), Bindings: bindings, Tuple: value.Tuple{}}
}

func compileOn(src string, schema expr.Schema) *expr.Expression {
	e, err := expr.CompileAll(expr.Plain(src), expr.CompileOptions{Schema: schema})
	if err != nil {
		panic(err)
	}
	return e
}

func drain(t *testing.T, s stream.Stream) []value.Tuple {
	t.Helper()
	out, err := stream.ToSlice(context.Background(), s)
	if err != nil {
		t.Fatalf("drain: %v", err)
	}
	return out
}

func TestExecNamedSourceAppliesPredicates(t *testing.T) {
	src := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 1}), rec(map[string]float64{"n": 2})}}
	pred := compileOn("thing.n === 2", expr.Schema{"thing": nil})
	n := relalg.NamedSource{Name: "thing"}.WithPredicate(pred)
	s, err := Execute(newCtx(map[string]Source{"thing": src}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 || out[0]["thing"].Field("n").Number() != 2 {
		t.Fatalf("got %v", out)
	}
}

func TestExecWhereFiltersChild(t *testing.T) {
	src := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 1}), rec(map[string]float64{"n": 2})}}
	pred := compileOn("thing.n > 1", expr.Schema{"thing": nil})
	n := relalg.Where{Child: relalg.NamedSource{Name: "thing"}, Predicate: pred}
	s, err := Execute(newCtx(map[string]Source{"thing": src}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 {
		t.Fatalf("got %v", out)
	}
}

func TestExecWhereUnresolvedFails(t *testing.T) {
	n := relalg.Where{Child: relalg.NamedSource{Name: "thing"}}
	if _, err := Execute(newCtx(nil), n); err == nil {
		t.Fatalf("expected error for unresolved Where")
	}
}

func TestExecSelectProjectsFields(t *testing.T) {
	src := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 5})}}
	double := compileOn("thing.n * 2", expr.Schema{"thing": nil})
	n := relalg.Select{
		Child:      relalg.NamedSource{Name: "thing"},
		Fields:     map[string]*expr.Expression{"doubled": double},
		FieldOrder: []string{"doubled"},
	}
	s, err := Execute(newCtx(map[string]Source{"thing": src}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 || out[0][relalg.RowName].Field("doubled").Number() != 10 {
		t.Fatalf("got %v", out)
	}
}

func TestExecInnerJoinMatchesOnPredicate(t *testing.T) {
	left := &fakeSource{records: []value.Value{rec(map[string]float64{"id": 1}), rec(map[string]float64{"id": 2})}}
	right := &fakeSource{records: []value.Value{rec(map[string]float64{"left_id": 1, "v": 100})}}
	on := compileOn("left.id === right.left_id", expr.Schema{"left": nil, "right": nil})
	n := relalg.InnerJoin{
		Left:  relalg.NamedSource{Name: "left"},
		Right: relalg.NamedSource{Name: "right"},
		On:    on,
	}
	s, err := Execute(newCtx(map[string]Source{"left": left, "right": right}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 || out[0]["right"].Field("v").Number() != 100 {
		t.Fatalf("got %v", out)
	}
}

func TestExecOuterJoinEmitsOtherwiseOnNoMatch(t *testing.T) {
	left := &fakeSource{records: []value.Value{rec(map[string]float64{"id": 1}), rec(map[string]float64{"id": 2})}}
	right := &fakeSource{records: []value.Value{rec(map[string]float64{"left_id": 1})}}
	on := compileOn("left.id === right.left_id", expr.Schema{"left": nil, "right": nil})
	n := relalg.OuterJoin{
		Left:  relalg.NamedSource{Name: "left"},
		Right: relalg.NamedSource{Name: "right"},
		On:    on,
	}
	s, err := Execute(newCtx(map[string]Source{"left": left, "right": right}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 2 {
		t.Fatalf("expected 2 rows (one matched, one outered), got %v", out)
	}
	var sawOtherwise bool
	for _, o := range out {
		if o["right"].Equal(value.Otherwise) {
			sawOtherwise = true
		}
	}
	if !sawOtherwise {
		t.Fatalf("expected one row with right bound to Otherwise, got %v", out)
	}
}

func TestExecAntiJoinKeepsUnmatchedLeftOnly(t *testing.T) {
	left := &fakeSource{records: []value.Value{rec(map[string]float64{"id": 1}), rec(map[string]float64{"id": 2})}}
	right := &fakeSource{records: []value.Value{rec(map[string]float64{"left_id": 1})}}
	on := compileOn("left.id === right.left_id", expr.Schema{"left": nil, "right": nil})
	n := relalg.AntiJoin{
		Left:  relalg.NamedSource{Name: "left"},
		Right: relalg.NamedSource{Name: "right"},
		On:    on,
	}
	s, err := Execute(newCtx(map[string]Source{"left": left, "right": right}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 || out[0]["left"].Field("id").Number() != 2 {
		t.Fatalf("got %v", out)
	}
	if _, ok := out[0]["right"]; ok {
		t.Fatalf("AntiJoin output must not bind right's schema")
	}
}

func TestExecGroupBySumsPerKey(t *testing.T) {
	src := &fakeSource{records: []value.Value{
		rec(map[string]float64{"grp": 1, "v": 10}),
		rec(map[string]float64{"grp": 1, "v": 20}),
		rec(map[string]float64{"grp": 2, "v": 5}),
	}}
	key := compileOn("thing.grp", expr.Schema{"thing": nil})
	selector, err := expr.CompileAll(expr.Plain("{grp: thing.grp, total: sum(thing.v)}"), expr.CompileOptions{Schema: expr.Schema{"thing": nil}, AllowAggregates: true})
	if err != nil {
		t.Fatalf("compile selector: %v", err)
	}
	n := relalg.GroupBy{Child: relalg.NamedSource{Name: "thing"}, Key: key, Selector: selector}
	s, err := Execute(newCtx(map[string]Source{"thing": src}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 2 {
		t.Fatalf("expected 2 groups, got %v", out)
	}
	var total1 float64
	for _, o := range out {
		row := o[relalg.RowName]
		if row.Field("grp").Number() == 1 {
			total1 = row.Field("total").Number()
		}
	}
	if total1 != 30 {
		t.Fatalf("expected group 1 total 30, got %v", total1)
	}
}

func TestExecOrderByAscending(t *testing.T) {
	src := &fakeSource{records: []value.Value{
		rec(map[string]float64{"n": 3}),
		rec(map[string]float64{"n": 1}),
		rec(map[string]float64{"n": 2}),
	}}
	key := compileOn("thing.n", expr.Schema{"thing": nil})
	n := relalg.OrderBy{Child: relalg.NamedSource{Name: "thing"}, Keys: []relalg.OrderKey{{Expr: key}}}
	s, err := Execute(newCtx(map[string]Source{"thing": src}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	want := []float64{1, 2, 3}
	for i, w := range want {
		if out[i]["thing"].Field("n").Number() != w {
			t.Fatalf("got %v, want ascending %v", out, want)
		}
	}
}

func TestExecSetOperationDedupsByDefault(t *testing.T) {
	left := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 1})}}
	right := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 1})}}
	n := relalg.SetOperation{Left: relalg.NamedSource{Name: "thing"}, Right: relalg.NamedSource{Name: "thing"}}
	ctx := newCtx(map[string]Source{"thing": left})
	_ = right
	s, err := Execute(ctx, n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 {
		t.Fatalf("expected dedup to 1 row, got %v", out)
	}
}

func TestExecCompositeUnionConcatenatesMembers(t *testing.T) {
	a := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 1}), rec(map[string]float64{"n": 3})}}
	b := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 2}), rec(map[string]float64{"n": 4})}}
	n := relalg.CompositeUnion{Members: []relalg.Node{relalg.NamedSource{Name: "a"}, relalg.NamedSource{Name: "b"}}}
	s, err := Execute(newCtx(map[string]Source{"a": a, "b": b}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 4 {
		t.Fatalf("got %v", out)
	}
}

func TestExecWriteAppendsAndReturnsWrittenRows(t *testing.T) {
	target := &fakeSource{}
	srcOfNew := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 9})}}
	n := relalg.Write{Child: relalg.NamedSource{Name: "staged"}, Target: "target", Mode: relalg.WriteInsert}
	s, err := Execute(newCtx(map[string]Source{"staged": srcOfNew, "target": target}), n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 || len(target.records) != 1 {
		t.Fatalf("expected one record written and echoed, got out=%v stored=%v", out, target.records)
	}
}

func TestExecMemoizeCachesSecondCall(t *testing.T) {
	src := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 1})}}
	n := relalg.Memoize{Child: relalg.NamedSource{Name: "thing"}, Key: "m1"}
	ctx := newCtx(map[string]Source{"thing": src})
	s1, err := Execute(ctx, n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	drain(t, s1)
	// mutate the underlying source after the first drain; a second Execute
	// over the same ctx.Memo must replay the cached recording, not rescan.
	src.records = append(src.records, rec(map[string]float64{"n": 2}))
	s2, err := Execute(ctx, n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s2)
	if len(out) != 1 {
		t.Fatalf("expected memoized single row, got %v", out)
	}
}

type fakeTxn struct {
	aborted bool
	settled bool
}

func (f *fakeTxn) IsSettled() bool { return f.settled }
func (f *fakeTxn) Abort(err error) error {
	f.aborted = true
	return nil
}

func TestExecTransactionEnvelopeOpensAndDrainsChild(t *testing.T) {
	src := &fakeSource{records: []value.Value{rec(map[string]float64{"n": 1})}}
	var opened *fakeTxn
	ctx := newCtx(map[string]Source{"thing": src})
	ctx.OpenTxn = func(storeHandle string, sources []string, mode TransactionModeHint) (Transaction, error) {
		opened = &fakeTxn{}
		return opened, nil
	}
	n := relalg.TransactionEnvelope{Child: relalg.NamedSource{Name: "thing"}, StoreHandle: "store", Stores: []string{"thing"}, Mode: relalg.ReadOnly}
	s, err := Execute(ctx, n)
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	out := drain(t, s)
	if len(out) != 1 {
		t.Fatalf("got %v", out)
	}
	if opened == nil {
		t.Fatalf("expected OpenTxn to have been called")
	}
	if opened.aborted {
		t.Fatalf("clean drain must not abort the transaction")
	}
}

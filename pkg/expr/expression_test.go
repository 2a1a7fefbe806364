package expr

import (
	"testing"

	"github.com/relq/relq/pkg/value"
)

func mustCompileAll(t *testing.T, src string, schema Schema) *Expression {
	t.Helper()
	e, err := CompileAll(Plain(src), CompileOptions{Schema: schema, AllowAggregates: true})
	if err != nil {
		t.Fatalf("CompileAll(%q): %v", src, err)
	}
	return e
}

func TestEvalArithmeticAndConcat(t *testing.T) {
	e := mustCompileAll(t, `"a" ++ "b" ++ (1 + 2 * 3)`, nil)
	v, err := e.Eval(value.Tuple{}, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Str() != "ab7" {
		t.Fatalf("expected %q, got %q", "ab7", v.Str())
	}
}

func TestEvalFieldAccessChain(t *testing.T) {
	schema := Schema{"thing": nil}
	e := mustCompileAll(t, "thing.meta.tag", schema)
	tuple := tupleOf("thing", value.RecordValue(value.Record{
		"meta": value.RecordValue(value.Record{"tag": value.String("x")}),
	}))
	v, err := e.Eval(tuple, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Str() != "x" {
		t.Fatalf("expected %q, got %q", "x", v.Str())
	}
}

func TestEvalRecordAndSequenceLiterals(t *testing.T) {
	e := mustCompileAll(t, "{a: 1, b: [1,2,3]}", nil)
	v, err := e.Eval(value.Tuple{}, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Field("a").Number() != 1 {
		t.Fatalf("expected field a == 1, got %v", v.Field("a"))
	}
	if len(v.Field("b").Seq()) != 3 {
		t.Fatalf("expected field b to be a 3-element sequence, got %v", v.Field("b"))
	}
}

func TestEvalShortCircuitAnd(t *testing.T) {
	// A right-hand aggregate call must not fold when the left operand of
	// && is already false — short-circuit evaluation per the native host
	// language's boolean operators.
	e, err := CompileAll(Plain("false && count(thing.id) > 0"), CompileOptions{Schema: Schema{"thing": nil}, AllowAggregates: true})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	gs := NewGroupState(e.AggregateSlots())
	tuple := tupleOf("thing", value.RecordValue(value.Record{"id": value.Number(1)}))
	v, err := e.Eval(tuple, gs)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Bool() {
		t.Fatalf("expected short-circuited false")
	}
}

func TestEvalAvgAggregate(t *testing.T) {
	e := mustCompileAll(t, "avg(thing.v)", Schema{"thing": nil})
	gs := NewGroupState(e.AggregateSlots())
	for _, n := range []float64{2, 4, 6} {
		tuple := tupleOf("thing", value.RecordValue(value.Record{"v": value.Number(n)}))
		if _, err := e.Eval(tuple, gs); err != nil {
			t.Fatalf("Eval: %v", err)
		}
	}
	final := tupleOf("thing", value.RecordValue(value.Record{"v": value.Number(8)}))
	v, err := e.Eval(final, gs)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Number() != 5 {
		t.Fatalf("expected avg(2,4,6,8) == 5, got %v", v.Number())
	}
}

func TestPartialFreezesBindingAndNarrowsDependencies(t *testing.T) {
	schema := Schema{"thing": nil, "type": nil}
	e := mustCompileAll(t, "thing.type_id === type.id", schema)
	deps := e.Dependencies(schema)
	if !deps.Equal(DependencySet{"thing": {}, "type": {}}) {
		t.Fatalf("expected deps {thing,type}, got %v", deps.Names())
	}

	bound := tupleOf("type", value.RecordValue(value.Record{"id": value.Number(7)}))
	partial := e.Partial(bound)
	remaining := partial.Dependencies(schema)
	if !remaining.Equal(DependencySet{"thing": {}}) {
		t.Fatalf("expected deps {thing} after binding type, got %v", remaining.Names())
	}

	thing := tupleOf("thing", value.RecordValue(value.Record{"type_id": value.Number(7)}))
	v, err := partial.Eval(thing, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool() {
		t.Fatalf("expected thing.type_id(7) === type.id(7) to be true after partial binding")
	}
}

func TestAndCombinesIndependentExpressionsWithShortCircuit(t *testing.T) {
	schema := Schema{"thing": nil}
	a := mustCompileAll(t, "thing.a > 0", schema)
	b := mustCompileAll(t, "thing.b > 0", schema)
	combined := And(a, b)

	ok := tupleOf("thing", value.RecordValue(value.Record{"a": value.Number(1), "b": value.Number(1)}))
	v, err := combined.Eval(ok, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool() {
		t.Fatalf("expected both-positive tuple to satisfy the conjunction")
	}

	bad := tupleOf("thing", value.RecordValue(value.Record{"a": value.Number(-1), "b": value.Number(1)}))
	v, err = combined.Eval(bad, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Bool() {
		t.Fatalf("expected a<=0 to fail the conjunction")
	}

	deps := combined.Dependencies(schema)
	if !deps.Equal(DependencySet{"thing": {}}) {
		t.Fatalf("expected combined deps {thing}, got %v", deps.Names())
	}
}

func TestAndOfSingleExpressionReturnsItUnchanged(t *testing.T) {
	e := mustCompileAll(t, "1 + 1", nil)
	if And(e) != e {
		t.Fatalf("expected And of one expression to return it unchanged")
	}
}

func TestEvalThisReferencesWholeTuple(t *testing.T) {
	schema := Schema{"thing": nil}
	e := mustCompileAll(t, "this.thing.id", schema)
	tuple := tupleOf("thing", value.RecordValue(value.Record{"id": value.Number(42)}))
	v, err := e.Eval(tuple, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Number() != 42 {
		t.Fatalf("expected 42, got %v", v)
	}
}

package expr

import (
	"testing"

	"github.com/relq/relq/pkg/value"
)

func tupleOf(pairs ...any) value.Tuple {
	t := make(value.Tuple)
	for i := 0; i < len(pairs); i += 2 {
		t[pairs[i].(string)] = pairs[i+1].(value.Value)
	}
	return t
}

func TestCompileSplitsTopLevelConjunction(t *testing.T) {
	schema := Schema{"thing": nil, "type": nil}
	terms, err := Compile(Plain("thing.type_id === type.id && thing.price > 10"), CompileOptions{Schema: schema})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(terms) != 2 {
		t.Fatalf("expected 2 terms from top-level &&, got %d", len(terms))
	}
}

func TestCompileRejectsUnknownAlias(t *testing.T) {
	schema := Schema{"thing": nil}
	_, err := Compile(Plain("thing.x === ghost.y"), CompileOptions{Schema: schema})
	if err == nil {
		t.Fatalf("expected error for unknown alias, got nil")
	}
}

func TestCompileUnknownSchemaAutoDeclaresDependency(t *testing.T) {
	terms, err := Compile(Plain("thing.x > 1"), CompileOptions{Schema: nil})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(terms) != 1 {
		t.Fatalf("expected 1 term, got %d", len(terms))
	}
	if !terms[0].Deps.Equal(DependencySet{UnknownDependency: {}}) {
		t.Fatalf("expected UnknownDependency, got %v", terms[0].Deps.Names())
	}
}

func TestCompileRejectsAggregateWhenDisallowed(t *testing.T) {
	schema := Schema{"thing": nil}
	_, err := Compile(Plain("count(thing.id) > 0"), CompileOptions{Schema: schema, AllowAggregates: false})
	if err == nil {
		t.Fatalf("expected error compiling aggregate outside an aggregate-permitting context")
	}
}

func TestCompileAllPermitsAggregate(t *testing.T) {
	schema := Schema{"thing": nil}
	e, err := CompileAll(Plain("count(thing.id)"), CompileOptions{Schema: schema, AllowAggregates: true})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	gs := NewGroupState(e.AggregateSlots())
	tuple := tupleOf("thing", value.RecordValue(value.Record{"id": value.Number(1)}))
	v, err := e.Eval(tuple, gs)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v.Number() != 1 {
		t.Fatalf("expected count 1 after first fold, got %v", v)
	}
	v2, err := e.Eval(tuple, gs)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if v2.Number() != 2 {
		t.Fatalf("expected count 2 after second fold, got %v", v2)
	}
}

func TestScopeNameShadowsSameNamedSource(t *testing.T) {
	// Unbound identifiers resolve to the standard scope before the schema,
	// so a source literally named "count" is shadowed by the count
	// aggregate even outside call position: the term has no dependency on
	// it at all, rather than silently aliasing to the source.
	schema := Schema{"count": nil}
	terms, err := Compile(Plain("count.n > 0"), CompileOptions{Schema: schema})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if len(terms[0].Deps) != 0 {
		t.Fatalf("expected no dependency (scope shadows source), got %v", terms[0].Deps.Names())
	}
}

func TestComparisonRewriteUsesTotalOrder(t *testing.T) {
	schema := Schema{"thing": nil}
	e, err := CompileAll(Plain("thing.v >= 10"), CompileOptions{Schema: schema})
	if err != nil {
		t.Fatalf("CompileAll: %v", err)
	}
	tuple := tupleOf("thing", value.RecordValue(value.Record{"v": value.Number(10)}))
	v, err := e.Eval(tuple, nil)
	if err != nil {
		t.Fatalf("Eval: %v", err)
	}
	if !v.Bool() {
		t.Fatalf("expected 10 >= 10 to be true")
	}
}

func TestExtractedRangeOnSimpleComparison(t *testing.T) {
	schema := Schema{"thing": nil}
	terms, err := Compile(Plain("thing.price >= 10"), CompileOptions{Schema: schema})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	r := terms[0].Ranges["thing"]["price"]
	if r == nil {
		t.Fatalf("expected an extracted range on thing.price")
	}
}

func TestDisjointOrBranchesDropUnmatchedPaths(t *testing.T) {
	schema := Schema{"thing": nil}
	terms, err := Compile(Plain("thing.a > 1 || thing.b > 1"), CompileOptions{Schema: schema})
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if terms[0].Ranges != nil {
		t.Fatalf("expected no ranges when || branches reference different paths, got %v", terms[0].Ranges)
	}
}

package termset

import (
	"testing"

	"github.com/relq/relq/pkg/expr"
)

func compileTerms(t *testing.T, src string, schema expr.Schema) []*expr.Term {
	t.Helper()
	terms, err := expr.Compile(expr.Plain(src), expr.CompileOptions{Schema: schema})
	if err != nil {
		t.Fatalf("Compile(%q): %v", src, err)
	}
	return terms
}

func TestNewGroupsByDependencySet(t *testing.T) {
	schema := expr.Schema{"thing": nil, "type": nil}
	terms := compileTerms(t, "thing.a > 1 && thing.b > 2 && thing.type_id === type.id", schema)
	tg := New(terms)
	if len(tg.Groups) != 2 {
		t.Fatalf("expected 2 groups (thing-only, thing+type), got %d", len(tg.Groups))
	}
	var thingOnly, joint int
	for _, g := range tg.Groups {
		switch len(g.Terms) {
		case 2:
			thingOnly++
		case 1:
			joint++
		}
	}
	if thingOnly != 1 || joint != 1 {
		t.Fatalf("expected one group of 2 terms and one group of 1 term, got groups=%v", tg.Groups)
	}
}

func TestMergeCombinesEqualDependencyGroups(t *testing.T) {
	schema := expr.Schema{"thing": nil}
	a := New(compileTerms(t, "thing.a > 1", schema))
	b := New(compileTerms(t, "thing.b > 2", schema))
	a.Merge(b)
	if len(a.Groups) != 1 {
		t.Fatalf("expected the two same-dependency groups to merge into 1, got %d", len(a.Groups))
	}
	if len(a.Groups[0].Terms) != 2 {
		t.Fatalf("expected merged group to hold 2 terms, got %d", len(a.Groups[0].Terms))
	}
}

func TestTakeMatchingRemovesAndPrunesEmptyGroups(t *testing.T) {
	schema := expr.Schema{"thing": nil, "type": nil}
	tg := New(compileTerms(t, "thing.a > 1 && thing.type_id === type.id", schema))
	if len(tg.Groups) != 2 {
		t.Fatalf("expected 2 groups before TakeMatching, got %d", len(tg.Groups))
	}
	taken := tg.TakeMatching(func(term *expr.Term) bool {
		_, ok := term.Deps["type"]
		return !ok
	})
	if len(taken) != 1 {
		t.Fatalf("expected 1 taken term (thing-only), got %d", len(taken))
	}
	if len(tg.Groups) != 1 {
		t.Fatalf("expected the thing-only group pruned away, leaving 1 group, got %d", len(tg.Groups))
	}
	if tg.IsEmpty() {
		t.Fatalf("expected the thing+type group to remain")
	}
}

func TestIsEmptyOnFreshTermGroups(t *testing.T) {
	if !(&TermGroups{}).IsEmpty() {
		t.Fatalf("expected a fresh TermGroups to be empty")
	}
}

func TestAllTermsFlattensGroups(t *testing.T) {
	schema := expr.Schema{"thing": nil}
	tg := New(compileTerms(t, "thing.a > 1 && thing.b > 2", schema))
	if len(tg.AllTerms()) != 2 {
		t.Fatalf("expected 2 flattened terms, got %d", len(tg.AllTerms()))
	}
}

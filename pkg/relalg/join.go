package relalg

import (
	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/termset"
)

func unionSchema(left, right Node) []string {
	out := make([]string, 0, len(left.Schema())+len(right.Schema()))
	out = append(out, left.Schema()...)
	out = append(out, right.Schema()...)
	return out
}

// InnerJoin yields, for every pair of left/right tuples satisfying On, the
// merged tuple left ∪ right (spec.md §4.7). A nil On denotes an
// unconstrained cross join. Terms carries the `on` clauses' TermGroups
// before finalization folds whatever hoistPredicates could not push
// further down into On (spec.md §4.5/§4.6).
type InnerJoin struct {
	Left, Right Node
	Terms       *termset.TermGroups
	On          *expr.Expression
}

func (j InnerJoin) Schema() []string { return unionSchema(j.Left, j.Right) }
func (j InnerJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j InnerJoin) WithChildren(c []Node) Node {
	return InnerJoin{Left: c[0], Right: c[1], Terms: j.Terms, On: j.On}
}
func (j InnerJoin) Explain() string { return "InnerJoin" }

// OuterJoin is InnerJoin plus, for every left tuple with zero matching
// right tuples, one output row binding every source name in Right's
// schema to value.Otherwise (spec.md §4.7's left-outer semantics).
type OuterJoin struct {
	Left, Right Node
	Terms       *termset.TermGroups
	On          *expr.Expression
}

func (j OuterJoin) Schema() []string { return unionSchema(j.Left, j.Right) }
func (j OuterJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j OuterJoin) WithChildren(c []Node) Node {
	return OuterJoin{Left: c[0], Right: c[1], Terms: j.Terms, On: j.On}
}
func (j OuterJoin) Explain() string { return "OuterJoin" }

// AntiJoin yields every left tuple with zero matching right tuples,
// unmerged (Right's schema is not present in the output) — the
// semi-join complement spec.md §4.7 uses for "not exists" style
// predicates.
type AntiJoin struct {
	Left, Right Node
	Terms       *termset.TermGroups
	On          *expr.Expression
}

func (j AntiJoin) Schema() []string { return append([]string{}, j.Left.Schema()...) }
func (j AntiJoin) Children() []Node { return []Node{j.Left, j.Right} }
func (j AntiJoin) WithChildren(c []Node) Node {
	return AntiJoin{Left: c[0], Right: c[1], Terms: j.Terms, On: j.On}
}
func (j AntiJoin) Explain() string { return "AntiJoin" }

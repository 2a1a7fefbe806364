package relalg

import (
	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/termset"
)

// Where filters Child's output tuples, per spec.md §4.7. Builder-produced
// Where nodes carry Terms (the predicate's TermGroups, not yet
// decided between pushdown and local evaluation); Predicate is nil at
// that point. hoistPredicates (spec.md §4.6) either dissolves the Where
// entirely (pushing every term down past a schema-bearing child) or
// settles it by folding the terms it could not push into Predicate and
// clearing Terms.
type Where struct {
	Child     Node
	Terms     *termset.TermGroups
	Predicate *expr.Expression
}

func (w Where) Schema() []string { return w.Child.Schema() }
func (w Where) Children() []Node { return []Node{w.Child} }
func (w Where) WithChildren(c []Node) Node {
	return Where{Child: c[0], Terms: w.Terms, Predicate: w.Predicate}
}
func (w Where) Explain() string {
	if w.Predicate != nil {
		return "Where"
	}
	return "Where(unresolved)"
}

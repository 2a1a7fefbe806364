// Package finalize implements the two finalization sub-passes spec.md
// §4.6 runs over a builder-produced relalg.Node tree before execution:
// hoistPredicates pushes each compiled predicate term as far down the
// tree as its dependencies allow, and prepareTransaction wraps the result
// in a TransactionEnvelope when it touches a persistent store.
//
// Grounded on utkarsh5026-StoreMy/pkg/optimizer's predicate-pushdown
// rewrite passes, generalized from a fixed SQL logical-plan shape (which
// only ever pushes a filter past a join or projection) to the tree's
// closed set of node types and the term/dependency-set bookkeeping
// pkg/termset provides.
package finalize

import (
	"fmt"

	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/relalg"
	"github.com/relq/relq/pkg/termset"
)

// Finalize runs hoistPredicates then prepareTransaction over n.
// persistentStores maps a source name appearing in the tree to the
// handle identifying the persistent store that backs it; a source name
// absent from persistentStores is treated as non-persistent (an
// in-memory sequence literal or overlay-only source), per spec.md §4.6's
// "if no persistent source is present, no envelope is added".
func Finalize(n relalg.Node, persistentStores map[string]string) (relalg.Node, error) {
	available := &termset.TermGroups{}
	hoisted, err := hoist(n, available, nil)
	if err != nil {
		return nil, err
	}
	if !available.IsEmpty() {
		return nil, fmt.Errorf("finalize: unassigned terms: %v", remainingDeps(available))
	}
	return prepareTransaction(hoisted, persistentStores)
}

// hasSchema reports whether n's output schema names real sources a
// predicate term could be attached against. GroupBy and Select bind only
// the RowName pseudo-source; Write and CompositeUnion are treated the same
// way here although their Schema methods report their children's names,
// per spec.md §4.6 sub-pass 1's second bullet.
func hasSchema(n relalg.Node) bool {
	switch n.(type) {
	case relalg.GroupBy, relalg.Select, relalg.Write, relalg.CompositeUnion:
		return false
	default:
		return true
	}
}

// hoist implements sub-pass 1. available accumulates terms as the
// traversal descends and is mutated in place — it is the same structure
// throughout the whole walk, not a per-branch copy, so a term consumed
// while visiting the left child of a Join is gone by the time the right
// child is visited. leftSchema is the set of source names already bound
// by left siblings of any enclosing Join.
func hoist(n relalg.Node, available *termset.TermGroups, leftSchema map[string]struct{}) (relalg.Node, error) {
	switch v := n.(type) {
	case relalg.Where:
		if hasSchema(v.Child) {
			if v.Terms != nil {
				available.Merge(v.Terms)
			}
			return hoist(v.Child, available, leftSchema)
		}
		newChild, err := hoist(v.Child, available, leftSchema)
		if err != nil {
			return nil, err
		}
		return relalg.Where{Child: newChild, Predicate: combinePredicate(v.Terms)}, nil

	case relalg.InnerJoin:
		return hoistJoin(false, v.Left, v.Right, v.Terms, available, leftSchema,
			func(l, r relalg.Node, on *expr.Expression) relalg.Node {
				return relalg.InnerJoin{Left: l, Right: r, On: on}
			})

	case relalg.OuterJoin:
		return hoistJoin(true, v.Left, v.Right, v.Terms, available, leftSchema,
			func(l, r relalg.Node, on *expr.Expression) relalg.Node {
				return relalg.OuterJoin{Left: l, Right: r, On: on}
			})

	case relalg.AntiJoin:
		return hoistJoin(true, v.Left, v.Right, v.Terms, available, leftSchema,
			func(l, r relalg.Node, on *expr.Expression) relalg.Node {
				return relalg.AntiJoin{Left: l, Right: r, On: on}
			})

	case relalg.NamedSource:
		return hoistNamedSource(v, available, leftSchema)

	case relalg.OrderBy:
		if child, ok := v.Child.(relalg.OrderBy); ok {
			fused := relalg.OrderBy{
				Child: child.Child,
				Keys:  append(append([]relalg.OrderKey{}, child.Keys...), v.Keys...),
			}
			return hoist(fused, available, leftSchema)
		}
		newChild, err := hoist(v.Child, available, leftSchema)
		if err != nil {
			return nil, err
		}
		return relalg.OrderBy{Child: newChild, Keys: v.Keys}, nil

	default:
		children := n.Children()
		if len(children) == 0 {
			return n, nil
		}
		newChildren := make([]relalg.Node, len(children))
		for i, c := range children {
			nc, err := hoist(c, available, leftSchema)
			if err != nil {
				return nil, err
			}
			newChildren[i] = nc
		}
		return n.WithChildren(newChildren), nil
	}
}

// hoistJoin implements the Join-entry bullet of sub-pass 1 and then
// descends into both sides, growing leftSchema with Left's schema before
// visiting Right so a NamedSource on the right sees the left side as
// already bound.
func hoistJoin(
	outerOrAnti bool,
	left, right relalg.Node,
	ownTerms *termset.TermGroups,
	available *termset.TermGroups,
	leftSchema map[string]struct{},
	build func(left, right relalg.Node, on *expr.Expression) relalg.Node,
) (relalg.Node, error) {
	var on *expr.Expression
	if outerOrAnti {
		rightNames := schemaSet(right.Schema())
		taken := available.TakeMatching(func(t *expr.Term) bool {
			return len(t.Ranges) == 0 && depsIntersects(t.Deps, rightNames)
		})
		if len(taken) > 0 {
			on = expr.And(exprsOf(taken)...)
		}
	}
	if ownTerms != nil {
		available.Merge(ownTerms)
	}

	newLeft, err := hoist(left, available, leftSchema)
	if err != nil {
		return nil, err
	}
	rightScope := unionSet(leftSchema, left.Schema())
	newRight, err := hoist(right, available, rightScope)
	if err != nil {
		return nil, err
	}
	return build(newLeft, newRight, on), nil
}

// hoistNamedSource implements the NamedSource-exit bullet: every term in
// available whose dependencies are covered by this source's own name plus
// leftSchema is pulled out and attached, its predicate to Predicates and
// its extracted ranges (if any, for this source) to KeyRanges.
func hoistNamedSource(n relalg.NamedSource, available *termset.TermGroups, leftSchema map[string]struct{}) (relalg.Node, error) {
	scope := unionSet(leftSchema, []string{n.Name})
	taken := available.TakeMatching(func(t *expr.Term) bool {
		return depsSubsetOf(t.Deps, scope)
	})
	out := n
	for _, t := range taken {
		out = out.WithPredicate(t.Expr)
		for path, r := range t.Ranges[n.Name] {
			out = out.WithKeyRange(path, r)
		}
	}
	return out, nil
}

func combinePredicate(tg *termset.TermGroups) *expr.Expression {
	if tg == nil {
		return nil
	}
	terms := tg.AllTerms()
	if len(terms) == 0 {
		return nil
	}
	return expr.And(exprsOf(terms)...)
}

func exprsOf(terms []*expr.Term) []*expr.Expression {
	out := make([]*expr.Expression, len(terms))
	for i, t := range terms {
		out[i] = t.Expr
	}
	return out
}

func schemaSet(names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(names))
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func unionSet(a map[string]struct{}, names []string) map[string]struct{} {
	out := make(map[string]struct{}, len(a)+len(names))
	for k := range a {
		out[k] = struct{}{}
	}
	for _, n := range names {
		out[n] = struct{}{}
	}
	return out
}

func depsSubsetOf(deps expr.DependencySet, scope map[string]struct{}) bool {
	for k := range deps {
		if _, ok := scope[k]; !ok {
			return false
		}
	}
	return true
}

func depsIntersects(deps expr.DependencySet, names map[string]struct{}) bool {
	for k := range deps {
		if _, ok := names[k]; ok {
			return true
		}
	}
	return false
}

func remainingDeps(tg *termset.TermGroups) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, t := range tg.AllTerms() {
		for _, n := range t.Deps.Names() {
			if _, ok := seen[n]; !ok {
				seen[n] = struct{}{}
				out = append(out, n)
			}
		}
	}
	return out
}

// Package termset implements TermGroups, the container spec.md §4.2
// describes for partitioning a compiled predicate's Terms by dependency
// set: every Term whose free variables are exactly the same source names
// lands in the same Group, so finalization can later attach each Group at
// the one plan node whose scope exactly covers it.
package termset

import "github.com/relq/relq/pkg/expr"

// Group is a set of Terms sharing one dependency set.
type Group struct {
	Deps  expr.DependencySet
	Terms []*expr.Term
}

// TermGroups partitions a compiled predicate's Terms by the same-
// dependency-set rule of spec.md §4.2.
type TermGroups struct {
	Groups []*Group
}

// New partitions terms into groups by dependency-set equality.
func New(terms []*expr.Term) *TermGroups {
	tg := &TermGroups{}
	for _, t := range terms {
		tg.add(t)
	}
	return tg
}

func (tg *TermGroups) add(t *expr.Term) {
	for _, g := range tg.Groups {
		if g.Deps.Equal(t.Deps) {
			g.Terms = append(g.Terms, t)
			return
		}
	}
	tg.Groups = append(tg.Groups, &Group{Deps: t.Deps, Terms: []*expr.Term{t}})
}

// Merge folds other's terms into tg, combining groups with equal
// dependency sets and appending the rest as new groups. Each Term's
// compiled Expression is self-contained (it closes over its own
// substitution slice captured at Compile time rather than indexing into a
// table shared across TermGroups instances), so merging never needs to
// re-index substitution references the way a single shared table would —
// terms from either side keep evaluating correctly regardless of which
// TermGroups they end up grouped under.
func (tg *TermGroups) Merge(other *TermGroups) {
	for _, g := range other.Groups {
		for _, t := range g.Terms {
			tg.add(t)
		}
	}
}

// TakeMatching removes every Term satisfying fn from tg (pruning any group
// left empty) and returns them, in group order. hoistPredicates (spec.md
// §4.6) uses this to pull terms whose dependencies are now satisfied out
// of the `available` accumulator as the traversal descends.
func (tg *TermGroups) TakeMatching(fn func(*expr.Term) bool) []*expr.Term {
	var taken []*expr.Term
	kept := make([]*Group, 0, len(tg.Groups))
	for _, g := range tg.Groups {
		var remaining []*expr.Term
		for _, t := range g.Terms {
			if fn(t) {
				taken = append(taken, t)
			} else {
				remaining = append(remaining, t)
			}
		}
		if len(remaining) > 0 {
			g.Terms = remaining
			kept = append(kept, g)
		}
	}
	tg.Groups = kept
	return taken
}

// IsEmpty reports whether tg holds no terms.
func (tg *TermGroups) IsEmpty() bool {
	for _, g := range tg.Groups {
		if len(g.Terms) > 0 {
			return false
		}
	}
	return true
}

// AllTerms flattens every group back into a single slice, used when a
// caller needs the full set of conjuncts regardless of grouping (e.g. to
// rebuild a combined predicate expression for a node that cannot attach
// groups individually).
func (tg *TermGroups) AllTerms() []*expr.Term {
	var out []*expr.Term
	for _, g := range tg.Groups {
		out = append(out, g.Terms...)
	}
	return out
}

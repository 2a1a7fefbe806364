package relalg

import (
	"fmt"

	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/rangeset"
)

// NamedSource is a leaf node: the named relation bound to Name at this
// point in the tree, resolved against the executing query's store
// bindings at execution time rather than carrying a live handle itself —
// a plan is data, not a running query (spec.md §4.5/§6.3).
//
// Predicates and KeyRanges are empty on a freshly built NamedSource;
// hoistPredicates (spec.md §4.6) attaches each term that can be decided
// from this source's own schema alone, keyed by the dotted key path for
// KeyRanges.
type NamedSource struct {
	Name       string
	Predicates []*expr.Expression
	KeyRanges  map[string]rangeset.KeyRange
}

func (n NamedSource) Schema() []string { return []string{n.Name} }
func (n NamedSource) Children() []Node { return nil }
func (n NamedSource) WithChildren([]Node) Node { return n }
func (n NamedSource) Explain() string {
	return fmt.Sprintf("NamedSource(%s, predicates=%d, ranges=%d)", n.Name, len(n.Predicates), len(n.KeyRanges))
}

// WithPredicate returns a copy of n with pred appended to Predicates.
func (n NamedSource) WithPredicate(pred *expr.Expression) NamedSource {
	out := n
	out.Predicates = append(append([]*expr.Expression{}, n.Predicates...), pred)
	return out
}

// WithKeyRange returns a copy of n with the range for path intersected
// into any range already present for that path, per spec.md §4.6's
// "intersecting with any already present" rule.
func (n NamedSource) WithKeyRange(path string, r rangeset.KeyRange) NamedSource {
	out := n
	out.KeyRanges = make(map[string]rangeset.KeyRange, len(n.KeyRanges)+1)
	for k, v := range n.KeyRanges {
		out.KeyRanges[k] = v
	}
	if existing, ok := out.KeyRanges[path]; ok {
		out.KeyRanges[path] = rangeset.Intersect(existing, r)
	} else {
		out.KeyRanges[path] = r
	}
	return out
}

package relalg

import (
	"fmt"

	"github.com/relq/relq/pkg/expr"
)

// OrderKey is one ORDER BY term: a compiled key expression, its sort
// direction, and where a null/absent key value sorts relative to every
// non-null value for this key, per spec.md §4.7's comparator ("+1 = later,
// -1 = earlier").
type OrderKey struct {
	Expr      *expr.Expression
	Desc      bool
	NullsLast bool
}

// OrderBy sorts Child's output by Keys in priority order, per spec.md
// §4.7. It is schema-preserving: sorting does not change what a tuple
// contains, only the order tuples are produced in.
type OrderBy struct {
	Child Node
	Keys  []OrderKey
}

func (o OrderBy) Schema() []string           { return o.Child.Schema() }
func (o OrderBy) Children() []Node           { return []Node{o.Child} }
func (o OrderBy) WithChildren(c []Node) Node { return OrderBy{Child: c[0], Keys: o.Keys} }
func (o OrderBy) Explain() string            { return fmt.Sprintf("OrderBy(keys=%d)", len(o.Keys)) }

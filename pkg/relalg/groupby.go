package relalg

import (
	"fmt"

	"github.com/relq/relq/pkg/expr"
)

// GroupBy buckets Child's output tuples by Key's value and, for each
// bucket, folds Selector over every member tuple via its aggregate slots,
// emitting one output tuple per bucket binding the selector's result
// under RowName (spec.md §4.7). Selector is compiled with
// AllowAggregates: true; Key is compiled without (grouping keys are plain
// per-tuple values, not folds).
type GroupBy struct {
	Child    Node
	Key      *expr.Expression
	Selector *expr.Expression
}

func (g GroupBy) Schema() []string           { return []string{RowName} }
func (g GroupBy) Children() []Node           { return []Node{g.Child} }
func (g GroupBy) WithChildren(c []Node) Node { return GroupBy{Child: c[0], Key: g.Key, Selector: g.Selector} }
func (g GroupBy) Explain() string            { return fmt.Sprintf("GroupBy(slots=%d)", len(g.Selector.AggregateSlots())) }

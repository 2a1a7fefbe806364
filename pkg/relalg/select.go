package relalg

import (
	"fmt"

	"github.com/relq/relq/pkg/expr"
)

// Select projects Child's output tuples into a single result record per
// tuple, evaluating each Fields entry against Child's schema and binding
// the record under RowName in FieldOrder's declared order (spec.md
// §4.5/§4.7's final projection stage).
type Select struct {
	Child      Node
	Fields     map[string]*expr.Expression
	FieldOrder []string
}

func (s Select) Schema() []string { return []string{RowName} }
func (s Select) Children() []Node { return []Node{s.Child} }
func (s Select) WithChildren(c []Node) Node {
	return Select{Child: c[0], Fields: s.Fields, FieldOrder: s.FieldOrder}
}
func (s Select) Explain() string { return fmt.Sprintf("Select(fields=%d)", len(s.FieldOrder)) }

package relalg

import "fmt"

// SetOperation concatenates Left and Right's output streams, which must
// share the same schema. When All is false, structurally equal tuples
// (value.Tuple.AsValue().Equal) are deduplicated across the whole
// combined stream, per spec.md §4.7's union/unionAll operation.
type SetOperation struct {
	Left, Right Node
	All         bool
}

func (s SetOperation) Schema() []string { return s.Left.Schema() }
func (s SetOperation) Children() []Node { return []Node{s.Left, s.Right} }
func (s SetOperation) WithChildren(c []Node) Node {
	return SetOperation{Left: c[0], Right: c[1], All: s.All}
}
func (s SetOperation) Explain() string {
	if s.All {
		return "SetOperation(all)"
	}
	return "SetOperation(dedup)"
}

// CompositeUnion concatenates N children, in order, that all scan the same
// logical source under different prepared key ranges (spec.md §4.9(4)).
// Neither the builder nor index selection constructs one: pkg/store's scan
// walks a composite range's prepared rows itself.
// Unlike SetOperation it never deduplicates: the ranges are disjoint by
// construction, so no tuple can appear under more than one child.
type CompositeUnion struct {
	Members []Node
}

func (c CompositeUnion) Schema() []string {
	if len(c.Members) == 0 {
		return nil
	}
	return c.Members[0].Schema()
}
func (c CompositeUnion) Children() []Node { return c.Members }
func (c CompositeUnion) WithChildren(ch []Node) Node { return CompositeUnion{Members: ch} }
func (c CompositeUnion) Explain() string { return fmt.Sprintf("CompositeUnion(members=%d)", len(c.Members)) }

// Package relalg implements the relational algebra tree spec.md §4.5/§4.7
// compiles queries into: a small closed set of node types, each reporting
// the source names in scope at its output and able to rebuild itself with
// replacement children, so later passes (predicate hoisting, transaction
// wrapping, index selection) can rewrite the tree without a separate
// mutable-node representation.
//
// Grounded on utkarsh5026-StoreMy/pkg/plan's PlanNode interface
// (GetChildren/String/GetNodeType) and its closed set of concrete node
// structs (FilterNode, JoinNode, ScanNode, ...), generalized from a
// SQL-shaped logical plan to the spec's named-source/tuple-stream algebra.
package relalg

// RowName is the reserved source name a node that collapses its input into
// a single output record (Select, GroupBy) binds that record under, so
// downstream nodes address "the projected row" uniformly regardless of how
// many underlying sources fed it.
const RowName = "$$row"

// Node is one operator in the relational algebra tree. Every node reports
// the source names bound in the tuples it produces (Schema), its
// immediate children, and can rebuild itself with a replacement child
// list (WithChildren) — the mechanism Rewrite and the finalization passes
// use to transform the tree without a parallel mutable representation.
type Node interface {
	// Schema returns the source names bound in this node's output tuples,
	// in a stable order.
	Schema() []string
	Children() []Node
	WithChildren(children []Node) Node
	// Explain returns a one-line, node-local description (no children),
	// used by the tree printer in explain.go.
	Explain() string
}

// Rewrite walks n post-order, replacing every child with the result of
// rewriting it first and then applying fn to the (already-rewritten) node
// itself. It is a general traversal-with-replacement primitive; the
// finalization passes in pkg/finalize walk the tree with their own
// recursion and Walk rather than through Rewrite.
func Rewrite(n Node, fn func(Node) Node) Node {
	children := n.Children()
	if len(children) > 0 {
		newChildren := make([]Node, len(children))
		for i, c := range children {
			newChildren[i] = Rewrite(c, fn)
		}
		n = n.WithChildren(newChildren)
	}
	return fn(n)
}

// Walk visits every node in the tree pre-order, for read-only inspection
// (e.g. collecting every NamedSource touched by a subtree).
func Walk(n Node, visit func(Node)) {
	visit(n)
	for _, c := range n.Children() {
		Walk(c, visit)
	}
}

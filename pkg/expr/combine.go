package expr

// And folds several independently compiled predicate expressions into one
// conjunctive Expression, short-circuiting left to right exactly like a
// hand-written "&&" chain would. Used by hoistPredicates (spec.md §4.6) to
// re-attach a TermGroups' remaining terms as a single predicate once they
// can no longer be pushed further down the tree.
//
// The returned Expression is a thin conjunction over the inputs — it does
// not re-parse or re-index their substitution slices, since each input
// already evaluates independently via exprNode.
func And(exprs ...*Expression) *Expression {
	switch len(exprs) {
	case 0:
		return &Expression{root: boolLit{v: true}}
	case 1:
		return exprs[0]
	}
	root := node(exprNode{e: exprs[0]})
	for _, e := range exprs[1:] {
		root = binary{op: "&&", left: root, right: exprNode{e: e}}
	}
	return &Expression{root: root}
}

package expr

// node is a parsed (pre-compilation) expression-tree node. Compilation
// rewrites a node tree in place (conceptually; this implementation returns
// rewritten copies) per the transformation passes of spec.md §4.1(3).
//
// Grounded on utkarsh5026-StoreMy/pkg/planner's plan-node shape (a small
// closed set of concrete struct types implementing a common interface)
// generalized from physical-plan nodes to expression-AST nodes.
type node interface {
	// rewritten marks cmp-rewritten comparison nodes so the rewrite pass
	// in compile.go stays idempotent, per spec.md §4.1(3)'s first bullet.
	isRewrittenCmp() bool
}

type numberLit struct{ v float64 }
type stringLit struct{ v string }
type boolLit struct{ v bool }
type nullLit struct{}
type thisRef struct{}
type identRef struct{ name string }
type paramRef struct{ suffix string } // $name -> this.params.<suffix>
type subRef struct{ index int }       // $$subs[i]

type fieldAccess struct {
	obj  node
	name string
}

type indexAccess struct {
	obj   node
	index node
}

type recordLit struct {
	fields []recordField
}

type recordField struct {
	name  string
	value node
}

type sequenceLit struct {
	items []node
}

type lambda struct {
	params []string
	body   node
}

type call struct {
	callee node
	args   []node
}

type unary struct {
	op      string // "!" or "-"
	operand node
}

// boundRef is a resolved reference to a lambda parameter — shadows both
// standard scope and schema per spec.md §4.1(3)'s scoping note. Lambdas are
// grammar-complete but never invoked by any standard-scope function, so
// evaluating a boundRef is unreached in practice; Expression.Eval rejects
// it rather than silently returning Null.
type boundRef struct{ name string }

// stdRef is a resolved reference to a name in the standard scope of §6.4
// (cmp, avg, count, max, min, sum, self) — produced by the identifier
// resolution pass from an identRef that matched a standard-scope name.
type stdRef struct{ name string }

// aggRef is what an aggregate call() is rewritten into: evaluating it
// folds args into the group-state slot and returns the aggregate's
// current externally-visible value, per spec.md §4.1(3) and §9's
// "aggregates as a sequence mutation" design note.
type aggRef struct {
	slot int
	agg  Aggregate
	args []node
}

// exprNode wraps an already-compiled *Expression as a node, so several
// independently compiled expressions can be combined into one Expression
// tree without re-parsing or re-indexing their substitution slices — used
// by And to fold a TermGroups' terms into a single conjunctive predicate
// during finalization (spec.md §4.6's hoistPredicates).
type exprNode struct{ e *Expression }

type binary struct {
	op          string // "&&" "||" "+" "-" "*" "/" "%" "++" "==" "===" "!=" ">=" ">" "<=" "<"
	left, right node
	// cmpRewritten is set once this binary node has been rewritten from a
	// comparison operator into cmp(lhs,rhs) <op'> 0 form (it is then a
	// binary node with op one of "===" "!=" ">=" ">" "<=" "<" and left is a
	// *call to cmp). A plain arithmetic/boolean binary leaves this false.
	cmpRewritten bool
}

func (numberLit) isRewrittenCmp() bool   { return false }
func (stringLit) isRewrittenCmp() bool   { return false }
func (boolLit) isRewrittenCmp() bool     { return false }
func (nullLit) isRewrittenCmp() bool     { return false }
func (thisRef) isRewrittenCmp() bool     { return false }
func (identRef) isRewrittenCmp() bool    { return false }
func (boundRef) isRewrittenCmp() bool    { return false }
func (stdRef) isRewrittenCmp() bool      { return false }
func (aggRef) isRewrittenCmp() bool      { return false }
func (paramRef) isRewrittenCmp() bool    { return false }
func (subRef) isRewrittenCmp() bool      { return false }
func (fieldAccess) isRewrittenCmp() bool { return false }
func (indexAccess) isRewrittenCmp() bool { return false }
func (recordLit) isRewrittenCmp() bool   { return false }
func (sequenceLit) isRewrittenCmp() bool { return false }
func (lambda) isRewrittenCmp() bool      { return false }
func (call) isRewrittenCmp() bool        { return false }
func (unary) isRewrittenCmp() bool       { return false }
func (b binary) isRewrittenCmp() bool    { return b.cmpRewritten }
func (exprNode) isRewrittenCmp() bool    { return false }

// isComparisonOp reports whether op is one of the five comparison
// operators spec.md §4.1(3) rewrites into cmp(...) form.
func isComparisonOp(op string) bool {
	switch op {
	case "==", ">=", ">", "<=", "<":
		return true
	default:
		return false
	}
}

// strictOpFor maps a loose comparison operator to the strict three-way
// form used against cmp's result, per spec.md §4.1(3): "==" becomes "===".
func strictOpFor(op string) string {
	if op == "==" {
		return "==="
	}
	return op
}

// isConjunction reports whether op is the top-level conjunction operator
// term decomposition splits on (spec.md §4.1(3)'s "term root" definition).
func isConjunction(op string) bool { return op == "&&" }

package expr

import (
	"strings"

	"github.com/relq/relq/pkg/rangeset"
)

// CompileOptions configures a Compile/CompileAll call, per spec.md
// §4.1(1)/(3).
type CompileOptions struct {
	// Schema is the set of source names in scope. Nil means "unknown
	// schema": every unbound identifier auto-declares a dependency on
	// UnknownDependency instead of failing to resolve.
	Schema Schema
	// AllowAggregates permits aggregate-name calls to be rewritten into
	// group-state folds. Compiling a WHERE predicate, a Select field, a
	// GroupBy key or an ORDER BY key leaves this false; compiling a GroupBy
	// selector sets it true.
	AllowAggregates bool
}

// Term is one maximal conjunct of a compiled predicate — the unit
// TermGroups groups by dependency set, per spec.md §4.1(3)'s "term root"
// definition and §4.2.
type Term struct {
	Deps DependencySet
	Expr *Expression
	// Ranges maps a dependency name to the key ranges extractable against
	// it, keyed by the dotted key path (e.g. "id" or "meta.tag"). A term
	// with no extractable comparisons against a given dependency simply
	// has no entry for it — range extraction is an optimization layer,
	// never required for correctness, since Expr is always still
	// available to filter directly (spec.md §4.3).
	Ranges map[string]map[string]rangeset.KeyRange
}

type compileCtx struct {
	schema   Schema
	allowAgg bool
	aggSlots []Aggregate
	bound    []map[string]struct{}
}

func (c *compileCtx) isBound(name string) bool {
	for i := len(c.bound) - 1; i >= 0; i-- {
		if _, ok := c.bound[i][name]; ok {
			return true
		}
	}
	return false
}

// compileCore stitches, parses, and rewrites a Template into a single
// resolved node tree plus the aggregate slots it accumulated, per the
// ordered transformation passes of spec.md §4.1(3): comparison-operator
// rewriting, aggregate-call rewriting, this-renaming (handled directly by
// the parser producing thisRef), and identifier resolution against Schema.
func compileCore(tmpl Template, opts CompileOptions) (node, []Aggregate, error) {
	src, err := tmpl.stitch(0)
	if err != nil {
		return nil, nil, err
	}
	root, err := parseExpr(src)
	if err != nil {
		return nil, nil, err
	}
	ctx := &compileCtx{schema: opts.Schema, allowAgg: opts.AllowAggregates}
	rewritten, err := rewrite(root, ctx)
	if err != nil {
		return nil, nil, err
	}
	return rewritten, ctx.aggSlots, nil
}

// Compile compiles tmpl as a predicate, splitting it into Terms at every
// top-level conjunction per spec.md §4.1(3)'s term-root definition.
func Compile(tmpl Template, opts CompileOptions) ([]*Term, error) {
	root, aggSlots, err := compileCore(tmpl, opts)
	if err != nil {
		return nil, err
	}
	roots := flattenConjunction(root)
	terms := make([]*Term, len(roots))
	for i, r := range roots {
		terms[i] = &Term{
			Deps:   depsOf(r, opts.Schema),
			Expr:   &Expression{root: r, subs: tmpl.Subs, aggSlots: aggSlots},
			Ranges: extractRanges(r, false, opts.Schema, tmpl.Subs, aggSlots),
		}
	}
	return terms, nil
}

// CompileAll compiles tmpl as a single expression without term
// decomposition, per spec.md §9's "compile_all" — used for projections,
// GroupBy selectors, and ORDER BY keys, where the whole expression is one
// evaluation unit rather than a set of independently attachable
// conjuncts.
func CompileAll(tmpl Template, opts CompileOptions) (*Expression, error) {
	root, aggSlots, err := compileCore(tmpl, opts)
	if err != nil {
		return nil, err
	}
	return &Expression{root: root, subs: tmpl.Subs, aggSlots: aggSlots}, nil
}

// flattenConjunction splits n at every top-level "&&", returning the
// maximal non-conjunction sub-nodes — spec.md §4.1(3)'s term roots.
func flattenConjunction(n node) []node {
	b, ok := n.(binary)
	if !ok || !isConjunction(b.op) {
		return []node{n}
	}
	return append(flattenConjunction(b.left), flattenConjunction(b.right)...)
}

// rewrite performs the compilation passes bottom-up: children are always
// rewritten before their parent, so a cmp-rewrite wrapping already-resolved
// operands and an aggregate-rewrite over already-resolved arguments both
// see fully resolved subtrees regardless of the ordering between the
// distinct passes (they act on disjoint node shapes, so a single combined
// bottom-up walk is equivalent to running each pass to fixpoint in
// sequence).
func rewrite(n node, ctx *compileCtx) (node, error) {
	switch v := n.(type) {
	case numberLit, stringLit, boolLit, nullLit, thisRef, subRef:
		return n, nil
	case identRef:
		return resolveIdent(v.name, ctx)
	case paramRef:
		return n, nil
	case fieldAccess:
		obj, err := rewrite(v.obj, ctx)
		if err != nil {
			return nil, err
		}
		return fieldAccess{obj: obj, name: v.name}, nil
	case indexAccess:
		obj, err := rewrite(v.obj, ctx)
		if err != nil {
			return nil, err
		}
		idx, err := rewrite(v.index, ctx)
		if err != nil {
			return nil, err
		}
		return indexAccess{obj: obj, index: idx}, nil
	case recordLit:
		fields := make([]recordField, len(v.fields))
		for i, f := range v.fields {
			fv, err := rewrite(f.value, ctx)
			if err != nil {
				return nil, err
			}
			fields[i] = recordField{name: f.name, value: fv}
		}
		return recordLit{fields: fields}, nil
	case sequenceLit:
		items := make([]node, len(v.items))
		for i, it := range v.items {
			iv, err := rewrite(it, ctx)
			if err != nil {
				return nil, err
			}
			items[i] = iv
		}
		return sequenceLit{items: items}, nil
	case lambda:
		bound := make(map[string]struct{}, len(v.params))
		for _, p := range v.params {
			bound[p] = struct{}{}
		}
		ctx.bound = append(ctx.bound, bound)
		body, err := rewrite(v.body, ctx)
		ctx.bound = ctx.bound[:len(ctx.bound)-1]
		if err != nil {
			return nil, err
		}
		return lambda{params: v.params, body: body}, nil
	case call:
		return rewriteCall(v, ctx)
	case unary:
		operand, err := rewrite(v.operand, ctx)
		if err != nil {
			return nil, err
		}
		return unary{op: v.op, operand: operand}, nil
	case binary:
		return rewriteBinary(v, ctx)
	default:
		return nil, exprErrorf("internal: unhandled node type %T during compilation", n)
	}
}

func rewriteCall(c call, ctx *compileCtx) (node, error) {
	if id, ok := c.callee.(identRef); ok && !ctx.isBound(id.name) && !strings.HasPrefix(id.name, "$$") {
		if agg, ok := aggregates[id.name]; ok {
			if !ctx.allowAgg {
				return nil, exprErrorf("aggregate %q is not permitted in this expression", id.name)
			}
			args := make([]node, len(c.args))
			for i, a := range c.args {
				av, err := rewrite(a, ctx)
				if err != nil {
					return nil, err
				}
				args[i] = av
			}
			slot := len(ctx.aggSlots)
			ctx.aggSlots = append(ctx.aggSlots, agg)
			return aggRef{slot: slot, agg: agg, args: args}, nil
		}
	}
	callee, err := rewrite(c.callee, ctx)
	if err != nil {
		return nil, err
	}
	args := make([]node, len(c.args))
	for i, a := range c.args {
		av, err := rewrite(a, ctx)
		if err != nil {
			return nil, err
		}
		args[i] = av
	}
	if sr, ok := callee.(stdRef); ok {
		if _, isAgg := aggregates[sr.name]; isAgg {
			return nil, exprErrorf("aggregate %q is not permitted in this expression", sr.name)
		}
	}
	return call{callee: callee, args: args}, nil
}

func rewriteBinary(b binary, ctx *compileCtx) (node, error) {
	left, err := rewrite(b.left, ctx)
	if err != nil {
		return nil, err
	}
	right, err := rewrite(b.right, ctx)
	if err != nil {
		return nil, err
	}
	if isComparisonOp(b.op) {
		cmpCall := call{callee: stdRef{name: "cmp"}, args: []node{left, right}}
		return binary{op: strictOpFor(b.op), left: cmpCall, right: numberLit{v: 0}, cmpRewritten: true}, nil
	}
	return binary{op: b.op, left: left, right: right}, nil
}

// resolveIdent implements spec.md §4.1(3)'s identifier-resolution order:
// a lambda-bound name shadows everything; otherwise the standard scope is
// checked before the schema, so a source literally named "count" does not
// shadow the count aggregate/function.
func resolveIdent(name string, ctx *compileCtx) (node, error) {
	if ctx.isBound(name) {
		return boundRef{name: name}, nil
	}
	if strings.HasPrefix(name, "$$") {
		switch name {
		case "$$this", "$$g", "$$subs":
			return identRef{name: name}, nil
		}
		trimmed := strings.TrimPrefix(name, "$$")
		if _, ok := stdScopeNames[trimmed]; ok {
			return stdRef{name: trimmed}, nil
		}
		return nil, exprErrorf("unknown reserved name %q", name)
	}
	if _, ok := stdScopeNames[name]; ok {
		return stdRef{name: name}, nil
	}
	if ctx.schema == nil {
		return identRef{name: name}, nil
	}
	if _, ok := ctx.schema[name]; ok {
		return identRef{name: name}, nil
	}
	return nil, exprErrorf("unknown alias %q", name)
}

// depsOf walks a resolved node tree collecting the dependency set: every
// identRef contributes its own name against a known schema, or the shared
// UnknownDependency sentinel against an unknown one; thisRef conservatively
// depends on every source in scope, since it evaluates to the whole tuple.
func depsOf(n node, schema Schema) DependencySet {
	d := newDeps()
	var walk func(node)
	walk = func(n node) {
		switch t := n.(type) {
		case identRef:
			if schema == nil {
				d.add(UnknownDependency)
			} else {
				d.add(t.name)
			}
		case thisRef:
			if schema == nil {
				d.add(UnknownDependency)
			} else {
				for k := range schema {
					d.add(k)
				}
			}
		case fieldAccess:
			walk(t.obj)
		case indexAccess:
			walk(t.obj)
			walk(t.index)
		case recordLit:
			for _, f := range t.fields {
				walk(f.value)
			}
		case sequenceLit:
			for _, it := range t.items {
				walk(it)
			}
		case lambda:
			walk(t.body)
		case call:
			walk(t.callee)
			for _, a := range t.args {
				walk(a)
			}
		case unary:
			walk(t.operand)
		case binary:
			walk(t.left)
			walk(t.right)
		case aggRef:
			for _, a := range t.args {
				walk(a)
			}
		case exprNode:
			d.addAll(t.e.Dependencies(schema))
		}
	}
	walk(n)
	return d
}

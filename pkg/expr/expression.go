package expr

import (
	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/value"
)

// paramsKey is the reserved Tuple key an Expression reads host-provided
// query parameters from: $name compiles to paramRef and evaluates as
// tuple[paramsKey].Field(name), keeping the Eval(tuple, groupState)
// contract of spec.md §4.1(3) to exactly two arguments while still giving
// parameter access the same per-call-context lifetime as everything else
// bound in the tuple.
const paramsKey = "$$params"

// WithParams binds host-provided query parameters into a Tuple under the
// reserved key Expression.Eval reads $name references from.
func WithParams(t value.Tuple, params value.Record) value.Tuple {
	return t.With(paramsKey, value.RecordValue(params))
}

// Expression is a compiled, per-tuple-evaluable expression tree — the
// output of Compile/CompileAll, and the shared unit both the executor and
// (via the structural rangeset.Evaluator interface) RangeExpression
// consume. The zero value is not usable; construct via Compile/CompileAll.
type Expression struct {
	root     node
	subs     []value.Value
	aggSlots []Aggregate
	prefix   value.Tuple // frozen bindings installed by Partial
}

// Eval evaluates the expression against tuple (the source bindings in
// scope) and, if the expression contains aggregate calls, state (the
// current group's fold state — nil if the expression has none).
func (e *Expression) Eval(tuple value.Tuple, state *GroupState) (value.Value, error) {
	t := tuple
	if len(e.prefix) > 0 {
		t = e.prefix.Merge(tuple)
	}
	return evalNode(e.root, t, state, e.subs)
}

// AsEvaluator adapts the expression to rangeset.Evaluator, letting a
// compiled Expression serve directly as a RangeExpression bound, per
// spec.md §4.3. rangeset.Evaluator's Eval(ctx) signature differs from
// Expression.Eval(tuple, state), so this returns a small wrapper rather
// than Expression itself satisfying the interface directly.
func (e *Expression) AsEvaluator() rangeset.Evaluator { return exprEvaluator{e} }

type exprEvaluator struct{ expr *Expression }

func (a exprEvaluator) Eval(ctx rangeset.EvalContext) (value.Value, error) {
	return a.expr.Eval(WithParams(ctx.Tuple, ctx.Params), nil)
}

// Dependencies reports the source names (or UnknownDependency) this
// expression is free in. Names whose values Partial has frozen are not
// included.
func (e *Expression) Dependencies(schema Schema) DependencySet {
	deps := depsOf(e.root, schema)
	for k := range e.prefix {
		delete(deps, k)
	}
	return deps
}

// Partial freezes binding's values into the expression, returning a new
// Expression that can be evaluated with fewer remaining bindings — the
// mechanism spec.md §4.5's predicate hoisting relies on to specialize a
// join predicate to one side's tuple ahead of the other side existing.
func (e *Expression) Partial(binding value.Tuple) *Expression {
	np := make(value.Tuple, len(e.prefix)+len(binding))
	for k, v := range e.prefix {
		np[k] = v
	}
	for k, v := range binding {
		np[k] = v
	}
	return &Expression{root: e.root, subs: e.subs, aggSlots: e.aggSlots, prefix: np}
}

// AggregateSlots reports this expression's aggregate slots in declaration
// order, for allocating a matching GroupState.
func (e *Expression) AggregateSlots() []Aggregate { return e.aggSlots }

func evalNode(n node, t value.Tuple, state *GroupState, subs []value.Value) (value.Value, error) {
	switch v := n.(type) {
	case numberLit:
		return value.Number(v.v), nil
	case stringLit:
		return value.String(v.v), nil
	case boolLit:
		return value.Bool(v.v), nil
	case nullLit:
		return value.Null, nil
	case thisRef:
		return t.AsValue(), nil
	case identRef:
		return t[v.name], nil
	case boundRef:
		return value.Null, exprErrorf("lambda parameter %q referenced outside a call", v.name)
	case stdRef:
		if v.name == "self" {
			return selfValue, nil
		}
		return value.Null, exprErrorf("standard scope name %q is not a value", v.name)
	case paramRef:
		return t[paramsKey].Field(v.suffix), nil
	case subRef:
		if v.index < 0 || v.index >= len(subs) {
			return value.Null, exprErrorf("substitution index %d out of range", v.index)
		}
		return subs[v.index], nil
	case fieldAccess:
		obj, err := evalNode(v.obj, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		return obj.Field(v.name), nil
	case indexAccess:
		obj, err := evalNode(v.obj, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		idx, err := evalNode(v.index, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		return obj.Index(int(idx.Number())), nil
	case recordLit:
		rec := make(value.Record, len(v.fields))
		for _, f := range v.fields {
			fv, err := evalNode(f.value, t, state, subs)
			if err != nil {
				return value.Null, err
			}
			rec[f.name] = fv
		}
		return value.RecordValue(rec), nil
	case sequenceLit:
		items := make([]value.Value, len(v.items))
		for i, it := range v.items {
			iv, err := evalNode(it, t, state, subs)
			if err != nil {
				return value.Null, err
			}
			items[i] = iv
		}
		return value.Sequence(items...), nil
	case lambda:
		return value.Null, exprErrorf("lambda expressions cannot be evaluated standalone")
	case call:
		return evalCall(v, t, state, subs)
	case unary:
		return evalUnary(v, t, state, subs)
	case binary:
		return evalBinary(v, t, state, subs)
	case aggRef:
		return evalAgg(v, t, state, subs)
	case exprNode:
		return v.e.Eval(t, state)
	default:
		return value.Null, exprErrorf("internal: unhandled node type %T", n)
	}
}

func evalCall(c call, t value.Tuple, state *GroupState, subs []value.Value) (value.Value, error) {
	callee, ok := c.callee.(stdRef)
	if !ok {
		return value.Null, exprErrorf("callee is not a standard scope function")
	}
	args := make([]value.Value, len(c.args))
	for i, a := range c.args {
		av, err := evalNode(a, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		args[i] = av
	}
	return callStd(callee.name, args)
}

func evalAgg(a aggRef, t value.Tuple, state *GroupState, subs []value.Value) (value.Value, error) {
	if state == nil {
		return value.Null, exprErrorf("aggregate reference evaluated without group state")
	}
	if a.slot < 0 || a.slot >= len(state.slots) {
		return value.Null, exprErrorf("internal: aggregate slot %d out of range", a.slot)
	}
	args := make([]value.Value, len(a.args))
	for i, arg := range a.args {
		av, err := evalNode(arg, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		args[i] = av
	}
	next, err := a.agg.Fold(state.slots[a.slot], args)
	if err != nil {
		return value.Null, err
	}
	state.slots[a.slot] = next
	return a.agg.Value(next), nil
}

func evalUnary(u unary, t value.Tuple, state *GroupState, subs []value.Value) (value.Value, error) {
	v, err := evalNode(u.operand, t, state, subs)
	if err != nil {
		return value.Null, err
	}
	switch u.op {
	case "!":
		return value.Bool(!truthy(v)), nil
	case "-":
		return value.Number(-v.Number()), nil
	default:
		return value.Null, exprErrorf("internal: unhandled unary operator %q", u.op)
	}
}

func evalBinary(b binary, t value.Tuple, state *GroupState, subs []value.Value) (value.Value, error) {
	if b.op == "&&" {
		l, err := evalNode(b.left, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		if !truthy(l) {
			return value.Bool(false), nil
		}
		r, err := evalNode(b.right, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(truthy(r)), nil
	}
	if b.op == "||" {
		l, err := evalNode(b.left, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		if truthy(l) {
			return value.Bool(true), nil
		}
		r, err := evalNode(b.right, t, state, subs)
		if err != nil {
			return value.Null, err
		}
		return value.Bool(truthy(r)), nil
	}

	l, err := evalNode(b.left, t, state, subs)
	if err != nil {
		return value.Null, err
	}
	r, err := evalNode(b.right, t, state, subs)
	if err != nil {
		return value.Null, err
	}
	switch b.op {
	case "===":
		return value.Bool(value.Compare(l, r) == 0 && l.Kind() == r.Kind()), nil
	case "!=":
		return value.Bool(!(value.Compare(l, r) == 0 && l.Kind() == r.Kind())), nil
	case ">=":
		return value.Bool(value.Compare(l, r) >= 0), nil
	case ">":
		return value.Bool(value.Compare(l, r) > 0), nil
	case "<=":
		return value.Bool(value.Compare(l, r) <= 0), nil
	case "<":
		return value.Bool(value.Compare(l, r) < 0), nil
	case "++":
		return value.String(l.String() + r.String()), nil
	case "+":
		return value.Number(l.Number() + r.Number()), nil
	case "-":
		return value.Number(l.Number() - r.Number()), nil
	case "*":
		return value.Number(l.Number() * r.Number()), nil
	case "/":
		return value.Number(l.Number() / r.Number()), nil
	case "%":
		return value.Number(mod(l.Number(), r.Number())), nil
	default:
		return value.Null, exprErrorf("internal: unhandled binary operator %q", b.op)
	}
}

func truthy(v value.Value) bool {
	switch v.Kind() {
	case value.KindNull:
		return false
	case value.KindBool:
		return v.Bool()
	case value.KindNumber:
		return v.Number() != 0
	case value.KindString:
		return v.Str() != ""
	default:
		return true
	}
}

func mod(a, b float64) float64 {
	m := a - b*float64(int64(a/b))
	return m
}

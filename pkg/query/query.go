// Package query is the fluent builder surface named (but not required by
// THE CORE) in spec.md §4.5/§6.1: a chain of method calls accumulating a
// relalg.Node tree, compiling each Template argument against the schema
// in scope at the point it's attached. It carries no semantics beyond
// that accumulation — Finalize and Execute are separate calls the caller
// makes once a Builder's tree is complete.
//
// Grounded on the teacher's constructor-injection style (NewX(deps...)
// taking collaborators explicitly) generalized to method chaining, since
// nothing in utkarsh5026-StoreMy builds a logical plan this way — its
// plans come from a SQL parser, not a builder. The chaining/error-
// deferral shape (every method short-circuits once b.err is set, so a
// long chain can be written without an error check after every step and
// inspected once at Build) follows dianpeng-sql2awk's plan package habit
// of accumulating into a single result checked at the end of a pass.
package query

import (
	"fmt"

	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/relalg"
	"github.com/relq/relq/pkg/termset"
)

// Builder accumulates a relalg.Node tree one operator at a time. The zero
// value is not usable — start a chain with From.
type Builder struct {
	node   relalg.Node
	schema map[string]struct{}
	err    error
}

func newBuilder(n relalg.Node, schema map[string]struct{}, err error) *Builder {
	return &Builder{node: n, schema: schema, err: err}
}

// From starts a Builder at a single named source, bound at execution time
// against the executing Context's Bindings (spec.md §4.5's NamedSource).
func From(name string) *Builder {
	return newBuilder(relalg.NamedSource{Name: name}, map[string]struct{}{name: {}}, nil)
}

// Build returns the accumulated tree, or the first error encountered
// anywhere in the chain.
func (b *Builder) Build() (relalg.Node, error) {
	if b.err != nil {
		return nil, b.err
	}
	return b.node, nil
}

func (b *Builder) fail(err error) *Builder {
	return newBuilder(b.node, b.schema, err)
}

func (b *Builder) schemaOf() expr.Schema {
	s := make(expr.Schema, len(b.schema))
	for name := range b.schema {
		s[name] = struct{}{}
	}
	return s
}

// Where filters the chain's current output by tmpl, compiled against
// every source name bound so far (spec.md §4.1(3)'s term decomposition —
// Finalize's hoistPredicates later decides how far down the tree each
// resulting term can be pushed).
func (b *Builder) Where(tmpl expr.Template) *Builder {
	if b.err != nil {
		return b
	}
	terms, err := expr.Compile(tmpl, expr.CompileOptions{Schema: b.schemaOf()})
	if err != nil {
		return b.fail(fmt.Errorf("query: compile where: %w", err))
	}
	return newBuilder(relalg.Where{Child: b.node, Terms: termset.New(terms)}, b.schema, nil)
}

func (b *Builder) unionSchema(other *Builder) map[string]struct{} {
	out := make(map[string]struct{}, len(b.schema)+len(other.schema))
	for k := range b.schema {
		out[k] = struct{}{}
	}
	for k := range other.schema {
		out[k] = struct{}{}
	}
	return out
}

func (b *Builder) joinTerms(other *Builder, on *expr.Template) (*termset.TermGroups, error) {
	if on == nil {
		return nil, nil
	}
	joined := b.unionSchema(other)
	s := make(expr.Schema, len(joined))
	for k := range joined {
		s[k] = struct{}{}
	}
	terms, err := expr.Compile(*on, expr.CompileOptions{Schema: s})
	if err != nil {
		return nil, err
	}
	return termset.New(terms), nil
}

// InnerJoin yields the merged tuple of every left/right pair satisfying
// on (spec.md §4.7). A nil on denotes an unconstrained cross join.
func (b *Builder) InnerJoin(right *Builder, on *expr.Template) *Builder {
	return b.join(right, on, func(l, r relalg.Node, terms *termset.TermGroups) relalg.Node {
		return relalg.InnerJoin{Left: l, Right: r, Terms: terms}
	})
}

// OuterJoin is InnerJoin plus one output row per unmatched left tuple,
// binding every right-side source name to value.Otherwise.
func (b *Builder) OuterJoin(right *Builder, on *expr.Template) *Builder {
	return b.join(right, on, func(l, r relalg.Node, terms *termset.TermGroups) relalg.Node {
		return relalg.OuterJoin{Left: l, Right: r, Terms: terms}
	})
}

// AntiJoin yields every left tuple with zero matching right tuples,
// unmerged — the semi-join complement for "not exists" predicates.
func (b *Builder) AntiJoin(right *Builder, on *expr.Template) *Builder {
	return b.join(right, on, func(l, r relalg.Node, terms *termset.TermGroups) relalg.Node {
		return relalg.AntiJoin{Left: l, Right: r, Terms: terms}
	})
}

func (b *Builder) join(right *Builder, on *expr.Template, build func(l, r relalg.Node, terms *termset.TermGroups) relalg.Node) *Builder {
	if b.err != nil {
		return b
	}
	if right.err != nil {
		return b.fail(right.err)
	}
	terms, err := b.joinTerms(right, on)
	if err != nil {
		return b.fail(fmt.Errorf("query: compile join on: %w", err))
	}
	return newBuilder(build(b.node, right.node, terms), b.unionSchema(right), nil)
}

// Field is one Select output column: its output name and the template
// computing its value, evaluated against the schema bound so far.
type Field struct {
	Name string
	Expr expr.Template
}

// Select projects the chain's current output into a single result record
// per tuple, in fields' declared order, bound under relalg.RowName
// (spec.md §4.5/§4.7's final projection stage).
func (b *Builder) Select(fields ...Field) *Builder {
	if b.err != nil {
		return b
	}
	schema := b.schemaOf()
	compiled := make(map[string]*expr.Expression, len(fields))
	order := make([]string, len(fields))
	for i, f := range fields {
		e, err := expr.CompileAll(f.Expr, expr.CompileOptions{Schema: schema})
		if err != nil {
			return b.fail(fmt.Errorf("query: compile select field %q: %w", f.Name, err))
		}
		compiled[f.Name] = e
		order[i] = f.Name
	}
	return newBuilder(relalg.Select{Child: b.node, Fields: compiled, FieldOrder: order}, map[string]struct{}{relalg.RowName: {}}, nil)
}

// GroupBy buckets the chain's current output by key and folds selector
// over each bucket's members, emitting one row per bucket under
// relalg.RowName (spec.md §4.7). selector is compiled with aggregate
// calls enabled; key is not, since a grouping key is a plain per-tuple
// value.
func (b *Builder) GroupBy(key, selector expr.Template) *Builder {
	if b.err != nil {
		return b
	}
	schema := b.schemaOf()
	keyExpr, err := expr.CompileAll(key, expr.CompileOptions{Schema: schema})
	if err != nil {
		return b.fail(fmt.Errorf("query: compile group key: %w", err))
	}
	selExpr, err := expr.CompileAll(selector, expr.CompileOptions{Schema: schema, AllowAggregates: true})
	if err != nil {
		return b.fail(fmt.Errorf("query: compile group selector: %w", err))
	}
	return newBuilder(relalg.GroupBy{Child: b.node, Key: keyExpr, Selector: selExpr}, map[string]struct{}{relalg.RowName: {}}, nil)
}

// OrderKey is one ORDER BY term, compiled from tmpl against the schema
// bound so far.
type OrderKey struct {
	Expr      expr.Template
	Desc      bool
	NullsLast bool
}

// OrderBy sorts the chain's current output by keys in priority order.
// Schema-preserving: it does not change what a tuple contains.
func (b *Builder) OrderBy(keys ...OrderKey) *Builder {
	if b.err != nil {
		return b
	}
	schema := b.schemaOf()
	out := make([]relalg.OrderKey, len(keys))
	for i, k := range keys {
		e, err := expr.CompileAll(k.Expr, expr.CompileOptions{Schema: schema})
		if err != nil {
			return b.fail(fmt.Errorf("query: compile order key %d: %w", i, err))
		}
		out[i] = relalg.OrderKey{Expr: e, Desc: k.Desc, NullsLast: k.NullsLast}
	}
	return newBuilder(relalg.OrderBy{Child: b.node, Keys: out}, b.schema, nil)
}

// Union concatenates b and other's output streams, deduplicating
// structurally equal tuples across the combined stream. Both sides must
// share the same schema.
func (b *Builder) Union(other *Builder) *Builder { return b.setOp(other, false) }

// UnionAll is Union without deduplication.
func (b *Builder) UnionAll(other *Builder) *Builder { return b.setOp(other, true) }

func (b *Builder) setOp(other *Builder, all bool) *Builder {
	if b.err != nil {
		return b
	}
	if other.err != nil {
		return b.fail(other.err)
	}
	return newBuilder(relalg.SetOperation{Left: b.node, Right: other.node, All: all}, b.schema, nil)
}

// Memoize marks the chain's current output for single-materialization
// replay under key, so two sibling branches of a larger tree that both
// reference this Builder's result share one underlying production
// instead of each rescanning it (spec.md §4.8).
func (b *Builder) Memoize(key string) *Builder {
	if b.err != nil {
		return b
	}
	return newBuilder(relalg.Memoize{Child: b.node, Key: key}, b.schema, nil)
}

// Write applies mode to target for every tuple the chain currently
// produces, yielding each record as the target store returned it, bound
// under target, so a write can sit inside a larger plan (spec.md §4.6).
func (b *Builder) Write(target string, mode relalg.WriteMode) *Builder {
	if b.err != nil {
		return b
	}
	return newBuilder(relalg.Write{Child: b.node, Target: target, Mode: mode}, b.schema, nil)
}

// Insert, Update, Delete, Upsert are Write's named shorthands.
func (b *Builder) Insert(target string) *Builder { return b.Write(target, relalg.WriteInsert) }
func (b *Builder) Update(target string) *Builder { return b.Write(target, relalg.WriteUpdate) }
func (b *Builder) Delete(target string) *Builder { return b.Write(target, relalg.WriteDelete) }
func (b *Builder) Upsert(target string) *Builder { return b.Write(target, relalg.WriteUpsert) }

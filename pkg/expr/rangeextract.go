package expr

import (
	"strings"

	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/value"
)

// rangeMap is dependency name -> dotted key path -> KeyRange, the shape
// Term.Ranges and the &&/|| combination rules of spec.md §4.3 operate on.
type rangeMap map[string]map[string]rangeset.KeyRange

func (m rangeMap) set(source, path string, r rangeset.KeyRange) {
	if m[source] == nil {
		m[source] = make(map[string]rangeset.KeyRange)
	}
	m[source][path] = r
}

// extractRanges walks a compiled term-root expression looking for KeyRanges
// it can prove, per spec.md §4.3. complement tracks whether the current
// subtree is under an odd number of enclosing negations. Extraction is
// sound but incomplete by design: any shape it does not recognize
// contributes no range, and the term's Expr remains the authoritative
// filter regardless — range extraction is purely an index-selection
// optimization, never required for correctness.
func extractRanges(n node, complement bool, schema Schema, subs []value.Value, aggSlots []Aggregate) rangeMap {
	switch t := n.(type) {
	case unary:
		if t.op == "!" {
			return extractRanges(t.operand, !complement, schema, subs, aggSlots)
		}
		return nil
	case binary:
		if cmp, ok := asCmpComparison(t); ok {
			return extractFromCmp(cmp, complement, schema, subs, aggSlots)
		}
		switch t.op {
		case "&&":
			l := extractRanges(t.left, complement, schema, subs, aggSlots)
			r := extractRanges(t.right, complement, schema, subs, aggSlots)
			if complement {
				return combine(l, r, rangeset.Union)
			}
			return combine(l, r, rangeset.Intersect)
		case "||":
			l := extractRanges(t.left, complement, schema, subs, aggSlots)
			r := extractRanges(t.right, complement, schema, subs, aggSlots)
			if complement {
				return combine(l, r, rangeset.Intersect)
			}
			return combine(l, r, rangeset.Union)
		}
	}
	return nil
}

// cmpComparison is the shape a loose comparison operator gets rewritten
// into by the compile pass: cmp(lhs, rhs) <op> 0.
type cmpComparison struct {
	op       string
	lhs, rhs node
}

func asCmpComparison(b binary) (cmpComparison, bool) {
	if !b.cmpRewritten {
		return cmpComparison{}, false
	}
	c, ok := b.left.(call)
	if !ok || len(c.args) != 2 {
		return cmpComparison{}, false
	}
	sr, ok := c.callee.(stdRef)
	if !ok || sr.name != "cmp" {
		return cmpComparison{}, false
	}
	return cmpComparison{op: b.op, lhs: c.args[0], rhs: c.args[1]}, true
}

func extractFromCmp(c cmpComparison, complement bool, schema Schema, subs []value.Value, aggSlots []Aggregate) rangeMap {
	out := make(rangeMap)
	if src, path, ok := extractKeyPath(c.lhs); ok && !dependsOn(c.rhs, src, schema) {
		if r := rangeFor(c.op, c.rhs, complement, subs, aggSlots); r != nil {
			out.set(src, strings.Join(path, "."), r)
		}
	}
	if src, path, ok := extractKeyPath(c.rhs); ok && !dependsOn(c.lhs, src, schema) {
		if r := rangeFor(flipOp(c.op), c.lhs, complement, subs, aggSlots); r != nil {
			out.set(src, strings.Join(path, "."), r)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// extractKeyPath recognizes a chain of field accesses rooted at a bare
// source identifier, e.g. "thing.meta.tag" -> ("thing", ["meta","tag"]).
func extractKeyPath(n node) (source string, path []string, ok bool) {
	switch t := n.(type) {
	case identRef:
		return t.name, nil, true
	case fieldAccess:
		src, p, ok := extractKeyPath(t.obj)
		if !ok {
			return "", nil, false
		}
		return src, append(p, t.name), true
	default:
		return "", nil, false
	}
}

func dependsOn(n node, source string, schema Schema) bool {
	_, ok := depsOf(n, schema)[source]
	return ok
}

// rangeFor builds the one-sided or equality KeyRange a strict comparison
// op against bound denotes, inverted under complement per spec.md §4.3's
// "complement inverts" rule. An equality comparison under complement
// yields no single range (its complement is two disjoint pieces), so this
// returns nil for that case rather than fabricating an unsound bound.
func rangeFor(op string, bound node, complement bool, subs []value.Value, aggSlots []Aggregate) rangeset.KeyRange {
	ev := (&Expression{root: bound, subs: subs, aggSlots: aggSlots}).AsEvaluator()
	if complement {
		switch op {
		case "===":
			return nil
		case ">=":
			op = "<"
		case ">":
			op = "<="
		case "<=":
			op = ">"
		case "<":
			op = ">="
		default:
			return nil
		}
	}
	switch op {
	case "===":
		return rangeset.RangeExpression{HasLower: true, Lower: ev, HasUpper: true, Upper: ev}
	case ">=":
		return rangeset.RangeExpression{HasLower: true, Lower: ev}
	case ">":
		return rangeset.RangeExpression{HasLower: true, Lower: ev, LowerOpen: true}
	case "<=":
		return rangeset.RangeExpression{HasUpper: true, Upper: ev}
	case "<":
		return rangeset.RangeExpression{HasUpper: true, Upper: ev, UpperOpen: true}
	default:
		return nil
	}
}

// flipOp reverses a comparison operator for the "keyPath on the right"
// case: "a <op> keyPath" is equivalent to "keyPath <flip(op)> a".
func flipOp(op string) string {
	switch op {
	case ">=":
		return "<="
	case ">":
		return "<"
	case "<=":
		return ">="
	case "<":
		return ">"
	default:
		return op // "===" flips to itself
	}
}

// combine intersects/unions two rangeMaps, keeping only (source, path)
// pairs present in both — pairs present in only one branch are dropped per
// spec.md §4.3, since a range on a variable the other branch doesn't
// mention cannot soundly be combined into a single-path range.
func combine(a, b rangeMap, op func(x, y rangeset.KeyRange) rangeset.KeyRange) rangeMap {
	if a == nil || b == nil {
		return nil
	}
	out := make(rangeMap)
	for src, paths := range a {
		bPaths, ok := b[src]
		if !ok {
			continue
		}
		for path, ra := range paths {
			rb, ok := bPaths[path]
			if !ok {
				continue
			}
			out.set(src, path, op(ra, rb))
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

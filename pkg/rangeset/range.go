// Package rangeset implements the range algebra of spec.md §3/§4.3/§4.9:
// closed/open intervals over the Value domain, interval expressions
// evaluated per-tuple, their union/intersection, and the composite-range
// synthesis that drives composite index scans.
//
// Grounded on utkarsh5026-StoreMy's pkg/execution/scanner/indexscan.go
// (EqualityScan vs RangeScan, startKey/endKey pair) for the shape of a
// "search key or key pair" a scan is driven by, generalized here into a
// closed algebra of intervals that can be unioned, intersected, and
// composed across a prefix of equalities plus a trailing range.
package rangeset

import "github.com/relq/relq/pkg/value"

// EvalContext is what a RangeExpression needs to resolve its bound
// expressions against: the tuple accumulated so far and any host-provided
// query parameters. It is intentionally minimal so this package need not
// import pkg/expr — RangeExpression takes an Evaluator interface instead of
// a concrete compiled-expression type, avoiding a cycle between the
// expression compiler (which constructs KeyRanges) and this package.
type EvalContext struct {
	Tuple  value.Tuple
	Params value.Record
}

// Evaluator is satisfied by pkg/expr's compiled Expression type
// structurally; this package never imports pkg/expr.
type Evaluator interface {
	Eval(ctx EvalContext) (value.Value, error)
}

// Interval is a single non-empty closed/open interval over the Value
// domain. HasLower/HasUpper false mean unbounded on that side.
type Interval struct {
	HasLower  bool
	Lower     value.Value
	LowerOpen bool
	HasUpper  bool
	Upper     value.Value
	UpperOpen bool
}

// Equality reports whether the interval denotes exactly one point.
func (iv Interval) Equality() bool {
	return iv.HasLower && iv.HasUpper && !iv.LowerOpen && !iv.UpperOpen && value.Compare(iv.Lower, iv.Upper) == 0
}

// Empty reports whether the interval, taken at face value, contains no
// points (e.g. a lower bound at or above an exclusive upper bound).
func (iv Interval) Empty() bool {
	if !iv.HasLower || !iv.HasUpper {
		return false
	}
	c := value.Compare(iv.Lower, iv.Upper)
	if c > 0 {
		return true
	}
	if c == 0 && (iv.LowerOpen || iv.UpperOpen) {
		return true
	}
	return false
}

// Contains reports whether v falls within the interval.
func (iv Interval) Contains(v value.Value) bool {
	if iv.HasLower {
		c := value.Compare(v, iv.Lower)
		if c < 0 || (c == 0 && iv.LowerOpen) {
			return false
		}
	}
	if iv.HasUpper {
		c := value.Compare(v, iv.Upper)
		if c > 0 || (c == 0 && iv.UpperOpen) {
			return false
		}
	}
	return true
}

// openUpper rewrites a closed upper bound [a,b] into the half-open [a,
// NextUp(b)) form native half-open cursor ranges require, per spec.md
// §4.9's Range.openUpper().
func (iv Interval) openUpper() Interval {
	if !iv.HasUpper || iv.UpperOpen {
		return iv
	}
	iv.Upper = value.NextUp(iv.Upper)
	iv.UpperOpen = true
	return iv
}

// overlaps reports whether two intervals share any point; intervals that
// only touch at an endpoint excluded by either side do not overlap. union
// still merges such a touching pair when adjacent reports that at most one
// of the two endpoints is open.
func overlaps(a, b Interval) bool {
	if a.HasLower && b.HasUpper {
		c := value.Compare(a.Lower, b.Upper)
		if c > 0 || (c == 0 && (a.LowerOpen || b.UpperOpen)) {
			return false
		}
	}
	if b.HasLower && a.HasUpper {
		c := value.Compare(b.Lower, a.Upper)
		if c > 0 || (c == 0 && (b.LowerOpen || a.UpperOpen)) {
			return false
		}
	}
	return true
}

// cmpLower orders two intervals by their lower endpoint, unbounded-below
// sorting first, per spec.md testable property 3(c).
func cmpLower(a, b Interval) int {
	switch {
	case !a.HasLower && !b.HasLower:
		return 0
	case !a.HasLower:
		return -1
	case !b.HasLower:
		return 1
	}
	if c := value.Compare(a.Lower, b.Lower); c != 0 {
		return c
	}
	if a.LowerOpen == b.LowerOpen {
		return 0
	}
	if a.LowerOpen {
		return 1 // exclusive lower sorts after inclusive lower at the same point
	}
	return -1
}

// union merges a list of possibly-overlapping intervals into the canonical
// ordered, non-overlapping form required by spec.md testable property 3.
func union(intervals []Interval) []Interval {
	filtered := make([]Interval, 0, len(intervals))
	for _, iv := range intervals {
		if !iv.Empty() {
			filtered = append(filtered, iv)
		}
	}
	if len(filtered) == 0 {
		return nil
	}
	sortIntervals(filtered)

	out := []Interval{filtered[0]}
	for _, iv := range filtered[1:] {
		last := &out[len(out)-1]
		if overlaps(*last, iv) || adjacent(*last, iv) {
			*last = mergeTwo(*last, iv)
			continue
		}
		out = append(out, iv)
	}
	return out
}

func adjacent(a, b Interval) bool {
	if !a.HasUpper || !b.HasLower {
		return false
	}
	if value.Compare(a.Upper, b.Lower) != 0 {
		return false
	}
	return !a.UpperOpen || !b.LowerOpen
}

func mergeTwo(a, b Interval) Interval {
	out := a
	if !b.HasLower {
		out.HasLower = false
	} else if a.HasLower {
		c := value.Compare(a.Lower, b.Lower)
		if c > 0 || (c == 0 && a.LowerOpen && !b.LowerOpen) {
			out.Lower, out.LowerOpen, out.HasLower = b.Lower, b.LowerOpen, true
		}
	}
	if !b.HasUpper {
		out.HasUpper = false
	} else if a.HasUpper {
		c := value.Compare(a.Upper, b.Upper)
		if c < 0 || (c == 0 && a.UpperOpen && !b.UpperOpen) {
			out.Upper, out.UpperOpen, out.HasUpper = b.Upper, b.UpperOpen, true
		}
	}
	return out
}

func sortIntervals(ivs []Interval) {
	// insertion sort: prepared lists are small (a handful of terms per
	// key path), and stability under cmpLower ties matters less than
	// simplicity here.
	for i := 1; i < len(ivs); i++ {
		j := i
		for j > 0 && cmpLower(ivs[j-1], ivs[j]) > 0 {
			ivs[j-1], ivs[j] = ivs[j], ivs[j-1]
			j--
		}
	}
}

func intersect(a, b []Interval) []Interval {
	var out []Interval
	for _, x := range a {
		for _, y := range b {
			if iv, ok := intersectTwo(x, y); ok {
				out = append(out, iv)
			}
		}
	}
	return union(out)
}

func intersectTwo(a, b Interval) (Interval, bool) {
	out := Interval{HasLower: true, HasUpper: true}
	// lower
	switch {
	case !a.HasLower:
		out.HasLower, out.Lower, out.LowerOpen = b.HasLower, b.Lower, b.LowerOpen
	case !b.HasLower:
		out.HasLower, out.Lower, out.LowerOpen = a.HasLower, a.Lower, a.LowerOpen
	default:
		c := value.Compare(a.Lower, b.Lower)
		switch {
		case c > 0:
			out.Lower, out.LowerOpen = a.Lower, a.LowerOpen
		case c < 0:
			out.Lower, out.LowerOpen = b.Lower, b.LowerOpen
		default:
			out.Lower, out.LowerOpen = a.Lower, a.LowerOpen || b.LowerOpen
		}
	}
	// upper
	switch {
	case !a.HasUpper:
		out.HasUpper, out.Upper, out.UpperOpen = b.HasUpper, b.Upper, b.UpperOpen
	case !b.HasUpper:
		out.HasUpper, out.Upper, out.UpperOpen = a.HasUpper, a.Upper, a.UpperOpen
	default:
		c := value.Compare(a.Upper, b.Upper)
		switch {
		case c < 0:
			out.Upper, out.UpperOpen = a.Upper, a.UpperOpen
		case c > 0:
			out.Upper, out.UpperOpen = b.Upper, b.UpperOpen
		default:
			out.Upper, out.UpperOpen = a.Upper, a.UpperOpen || b.UpperOpen
		}
	}
	if out.Empty() {
		return Interval{}, false
	}
	return out, true
}

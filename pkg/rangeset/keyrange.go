package rangeset

import "github.com/relq/relq/pkg/value"

// KeyRange is an interval over the Value domain, specified either by
// literal bounds or by per-tuple expressions, per spec.md §3. Prepare
// always returns a canonical ordered list of non-overlapping intervals; an
// empty list denotes the empty relation. IsEquality is sound but may be
// conservatively false (e.g. a RangeExpression cannot know it is an
// equality until it's evaluated).
type KeyRange interface {
	Prepare(ctx EvalContext) ([]Interval, error)
	IsEquality() bool
}

// Range is a KeyRange specified by literal bounds, already known at plan
// time.
type Range struct {
	iv Interval
}

func NewRange(iv Interval) Range { return Range{iv: iv} }

// Eq builds the equality range [v, v].
func Eq(v value.Value) Range {
	return Range{iv: Interval{HasLower: true, Lower: v, HasUpper: true, Upper: v}}
}

// GTE/GT/LTE/LT build the four one-sided ranges of spec.md §4.3.
func GTE(v value.Value) Range { return Range{iv: Interval{HasLower: true, Lower: v}} }
func GT(v value.Value) Range {
	return Range{iv: Interval{HasLower: true, Lower: v, LowerOpen: true}}
}
func LTE(v value.Value) Range { return Range{iv: Interval{HasUpper: true, Upper: v}} }
func LT(v value.Value) Range {
	return Range{iv: Interval{HasUpper: true, Upper: v, UpperOpen: true}}
}

// All is the unconstrained range covering the whole domain.
var All = Range{}

func (r Range) Prepare(ctx EvalContext) ([]Interval, error) {
	if r.iv.Empty() {
		return nil, nil
	}
	return []Interval{r.iv}, nil
}

func (r Range) IsEquality() bool { return r.iv.Equality() }

// OpenUpper returns a Range with its closed upper bound rewritten via
// NextUp, per spec.md §4.9.
func (r Range) OpenUpper() Range { return Range{iv: r.iv.openUpper()} }

// RangeExpression is a KeyRange whose bounds are expressions evaluated
// per-tuple/per-context rather than known at plan time.
type RangeExpression struct {
	HasLower  bool
	Lower     Evaluator
	LowerOpen bool
	HasUpper  bool
	Upper     Evaluator
	UpperOpen bool
}

func (r RangeExpression) Prepare(ctx EvalContext) ([]Interval, error) {
	iv := Interval{LowerOpen: r.LowerOpen, UpperOpen: r.UpperOpen}
	if r.HasLower {
		v, err := r.Lower.Eval(ctx)
		if err != nil {
			return nil, err
		}
		iv.HasLower, iv.Lower = true, v
	}
	if r.HasUpper {
		v, err := r.Upper.Eval(ctx)
		if err != nil {
			return nil, err
		}
		iv.HasUpper, iv.Upper = true, v
	}
	if iv.Empty() {
		return nil, nil
	}
	return []Interval{iv}, nil
}

func (r RangeExpression) IsEquality() bool {
	// Conservatively false: soundness only requires that this never
	// over-claims equality, since a false negative merely forgoes an
	// equality-prefix optimization in index selection (spec.md §3's
	// KeyRange invariant).
	return false
}

// RangeUnion is the union of two KeyRanges.
type RangeUnion struct {
	Left, Right KeyRange
}

func (r RangeUnion) Prepare(ctx EvalContext) ([]Interval, error) {
	l, err := r.Left.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	rr, err := r.Right.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return union(append(append([]Interval{}, l...), rr...)), nil
}

func (r RangeUnion) IsEquality() bool { return false }

// RangeIntersection is the intersection of two KeyRanges.
type RangeIntersection struct {
	Left, Right KeyRange
}

func (r RangeIntersection) Prepare(ctx EvalContext) ([]Interval, error) {
	l, err := r.Left.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	rr, err := r.Right.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	return intersect(l, rr), nil
}

func (r RangeIntersection) IsEquality() bool {
	return r.Left.IsEquality() && r.Right.IsEquality()
}

// Union/Intersect are convenience constructors that fold KeyRanges
// attached to the same (dependency, keyPath) pair during term
// decomposition/finalization, per spec.md §4.3's "&&"/"||" combination
// rule.
func Union(a, b KeyRange) KeyRange        { return RangeUnion{Left: a, Right: b} }
func Intersect(a, b KeyRange) KeyRange    { return RangeIntersection{Left: a, Right: b} }

package rangeset

// CompositeEquality names one component of a composite index's equality
// prefix: a key path together with the KeyRange (expected to be an
// equality) constraining it.
type CompositeEquality struct {
	KeyPath []string
	Range   KeyRange
}

// CompositeRange drives a composite index scan: a sequence of equalities
// on the leading key-path components followed by a final, possibly
// non-equality, range on the trailing component. PrepareComposite returns
// the cross product of each equality's prepared points with the final
// range's prepared intervals, each entry a PreparedComponents row (one
// Interval per equality, then the final one) — this is the shape
// pkg/store's nativeRangeFor turns into a single native composite key
// range per spec.md §4.9(4).
type CompositeRange struct {
	Equalities []CompositeEquality
	Final      KeyRange
}

// PreparedComponents is one row of the cross product described above: one
// Interval per equality component (always a single-point equality
// interval) plus the final component's interval.
type PreparedComponents struct {
	Equalities []Interval
	Final      Interval
}

func (c CompositeRange) PrepareComposite(ctx EvalContext) ([]PreparedComponents, error) {
	eqIntervals := make([][]Interval, len(c.Equalities))
	for i, eq := range c.Equalities {
		ivs, err := eq.Range.Prepare(ctx)
		if err != nil {
			return nil, err
		}
		if len(ivs) == 0 {
			return nil, nil
		}
		eqIntervals[i] = ivs
	}
	finalIvs, err := c.Final.Prepare(ctx)
	if err != nil {
		return nil, err
	}
	if len(finalIvs) == 0 {
		return nil, nil
	}

	rows := []PreparedComponents{{}}
	for _, ivs := range eqIntervals {
		var next []PreparedComponents
		for _, row := range rows {
			for _, iv := range ivs {
				eqs := append(append([]Interval{}, row.Equalities...), iv)
				next = append(next, PreparedComponents{Equalities: eqs})
			}
		}
		rows = next
	}
	var out []PreparedComponents
	for _, row := range rows {
		for _, fiv := range finalIvs {
			out = append(out, PreparedComponents{Equalities: row.Equalities, Final: fiv})
		}
	}
	return out, nil
}

// Prepare satisfies KeyRange by flattening PrepareComposite's rows to their
// Final interval alone — used when a CompositeRange is treated as an
// ordinary KeyRange on its trailing key path (e.g. by a caller that
// doesn't care about the equality prefix).
func (c CompositeRange) Prepare(ctx EvalContext) ([]Interval, error) {
	rows, err := c.PrepareComposite(ctx)
	if err != nil {
		return nil, err
	}
	ivs := make([]Interval, 0, len(rows))
	for _, r := range rows {
		ivs = append(ivs, r.Final)
	}
	return union(ivs), nil
}

func (c CompositeRange) IsEquality() bool {
	return len(c.Equalities) == 0 && c.Final.IsEquality()
}

package value

import (
	"math"
	"time"
)

// typeRank fixes the cross-type ordering of spec.md §3: null < boolean <
// number < timestamp < string < sequence. Records are not part of the
// total order (they are never legal operands of cmp per §4.1) but are
// ranked last defensively so Compare never panics.
func typeRank(k Kind) int {
	switch k {
	case KindNull:
		return 0
	case KindBool:
		return 1
	case KindNumber:
		return 2
	case KindTimestamp:
		return 3
	case KindString:
		return 4
	case KindSequence:
		return 5
	default:
		return 6
	}
}

// Compare implements the total order cmp of spec.md §3/§4.1: values compare
// across types by the fixed type sequence; within a type, natural order
// applies. Returns a negative number, zero, or a positive number as a < b,
// a == b, or a > b.
func Compare(a, b Value) int {
	ra, rb := typeRank(a.kind), typeRank(b.kind)
	if ra != rb {
		return ra - rb
	}
	switch a.kind {
	case KindNull:
		return 0
	case KindBool:
		if a.b == b.b {
			return 0
		}
		if !a.b {
			return -1
		}
		return 1
	case KindNumber:
		switch {
		case a.n < b.n:
			return -1
		case a.n > b.n:
			return 1
		default:
			return 0
		}
	case KindTimestamp:
		switch {
		case a.ts.Before(b.ts):
			return -1
		case a.ts.After(b.ts):
			return 1
		default:
			return 0
		}
	case KindString:
		switch {
		case a.s < b.s:
			return -1
		case a.s > b.s:
			return 1
		default:
			return 0
		}
	case KindSequence:
		for i := 0; i < len(a.seq) && i < len(b.seq); i++ {
			if c := Compare(a.seq[i], b.seq[i]); c != 0 {
				return c
			}
		}
		return len(a.seq) - len(b.seq)
	default:
		return 0
	}
}

// Less reports whether a < b under Compare.
func Less(a, b Value) bool { return Compare(a, b) < 0 }

// NextUp returns the least value strictly greater than v in the total
// order, per spec.md §4.9. It is used to rewrite a closed upper bound
// [a,b] as the half-open [a, NextUp(b)) required by native cursor ranges.
func NextUp(v Value) Value {
	switch v.kind {
	case KindNumber:
		if math.IsInf(v.n, 1) {
			// crosses the number/timestamp type boundary: the earliest
			// timestamp is the next value after +∞ in the total order.
			return Timestamp(time.Time{})
		}
		return Number(math.Nextafter(v.n, math.Inf(1)))
	case KindString:
		return String(v.s + "\x00")
	case KindTimestamp:
		maxTS := time.Unix(1<<62, 0)
		if v.ts.After(maxTS) || v.ts.Equal(maxTS) {
			return String("")
		}
		return Timestamp(v.ts.Add(time.Millisecond))
	case KindSequence:
		return Sequence(append(append([]Value{}, v.seq...), Value{kind: KindNumber, n: math.Inf(-1)})...)
	default:
		// null and bool have no successor representable in-domain without
		// crossing a type boundary that the spec does not define; return v
		// unchanged rather than fabricate a boundary. Callers only invoke
		// NextUp on range endpoints extracted from comparisons against
		// number/string/timestamp/sequence key paths (§4.9), so this branch
		// is unreached in practice.
		return v
	}
}

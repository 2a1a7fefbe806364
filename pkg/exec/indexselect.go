package exec

import "github.com/relq/relq/pkg/rangeset"

// SelectRange builds the CompositeRange a composite-key scan over keyOrder
// (the index's key paths, leading to trailing) should use given the
// constraints a NamedSource carries in its KeyRanges map, per spec.md
// §4.9(4): walk keyOrder from the front, consuming each leading key path
// whose KeyRanges entry is an equality as a prefix component, stopping at
// the first key path that either has no entry at all or has a non-equality
// entry — that key path (if present) becomes the trailing, possibly
// range-bounded, component; every key path after it is left unconstrained,
// since the NamedSource's own Predicates re-check every extracted range
// tuple-by-tuple regardless of how far index selection reached.
//
// A keyOrder of length zero (no declared index — a bare linear scan)
// returns the unconstrained CompositeRange{Final: rangeset.All}.
func SelectRange(keyOrder []string, ranges map[string]rangeset.KeyRange) rangeset.CompositeRange {
	if len(keyOrder) == 0 {
		return rangeset.CompositeRange{Final: rangeset.All}
	}
	var equalities []rangeset.CompositeEquality
	for i, path := range keyOrder {
		r, ok := ranges[path]
		if !ok {
			return rangeset.CompositeRange{Equalities: equalities, Final: rangeset.All}
		}
		if r.IsEquality() {
			equalities = append(equalities, rangeset.CompositeEquality{KeyPath: keyOrder[:i+1], Range: r})
			continue
		}
		return rangeset.CompositeRange{Equalities: equalities, Final: r}
	}
	// Every key path had an equality constraint: the whole composite key is
	// pinned, so the trailing component collapses to the last equality
	// rather than an unconstrained range.
	last := equalities[len(equalities)-1]
	return rangeset.CompositeRange{Equalities: equalities[:len(equalities)-1], Final: last.Range}
}

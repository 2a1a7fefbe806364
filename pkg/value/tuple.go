package value

// Tuple maps a source name (identifier) in scope at a point in the plan to
// the record currently bound to it. spec.md §3 invariant: a query's tuple
// always has as keys exactly the set of source names in scope at that
// point; absent mappings are an internal bug, not a runtime condition —
// callers index Tuple directly rather than through a checked accessor.
type Tuple map[string]Value

// Merge returns a new Tuple containing every binding of t plus every
// binding of other, with other's bindings taking precedence on collision.
// Used by Join to build "outer ∪ left" and "left ∪ right" contexts (§4.7).
func (t Tuple) Merge(other Tuple) Tuple {
	out := make(Tuple, len(t)+len(other))
	for k, v := range t {
		out[k] = v
	}
	for k, v := range other {
		out[k] = v
	}
	return out
}

// With returns a new Tuple with name bound to v, all other bindings
// unchanged.
func (t Tuple) With(name string, v Value) Tuple {
	out := make(Tuple, len(t)+1)
	for k, ov := range t {
		out[k] = ov
	}
	out[name] = v
	return out
}

// Otherwise is the sentinel record OuterJoin/AntiJoin bind a right-hand
// source name to when the right side yields zero matches (§4.7).
var Otherwise = RecordValue(Record{"otherwise": Bool(true)})

// AsValue lifts a Tuple to a record Value keyed by source name, used by
// set-operation structural dedup and GroupBy's group-key hashing when the
// grouped-by expression evaluates over the whole tuple.
func (t Tuple) AsValue() Value {
	r := make(Record, len(t))
	for k, v := range t {
		r[k] = v
	}
	return RecordValue(r)
}

package expr

import "github.com/relq/relq/pkg/value"

// Aggregate is a tagged standard-scope function whose per-group state is
// threaded through a (state, args) -> state' fold, per spec.md §6.4/§9's
// "aggregates as a sequence mutation" design note. This implementation
// pre-binds each aggregate call to a closure over its group-state slot
// (the design note's suggested alternative to textual comma-sequence
// rewriting) rather than rewriting the AST into g[k]=aggregate(g[k],...)
// text.
type Aggregate interface {
	Name() string
	Init() value.Value
	Fold(state value.Value, args []value.Value) (value.Value, error)
	// Value extracts the externally-visible aggregate result from
	// internal fold state (identity for count/sum/max/min; sum/count for
	// avg).
	Value(state value.Value) value.Value
}

type countAgg struct{}

func (countAgg) Name() string { return "count" }
func (countAgg) Init() value.Value { return value.Number(0) }
func (countAgg) Fold(state value.Value, args []value.Value) (value.Value, error) {
	if len(args) > 0 && args[0].IsNull() {
		return state, nil
	}
	return value.Number(state.Number() + 1), nil
}
func (countAgg) Value(state value.Value) value.Value { return state }

type sumAgg struct{}

func (sumAgg) Name() string { return "sum" }
func (sumAgg) Init() value.Value { return value.Number(0) }
func (sumAgg) Fold(state value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 || args[0].IsNull() {
		return state, nil
	}
	return value.Number(state.Number() + args[0].Number()), nil
}
func (sumAgg) Value(state value.Value) value.Value { return state }

type avgAgg struct{}

func (avgAgg) Name() string { return "avg" }
func (avgAgg) Init() value.Value {
	return value.RecordValue(value.Record{"sum": value.Number(0), "count": value.Number(0)})
}
func (avgAgg) Fold(state value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 || args[0].IsNull() {
		return state, nil
	}
	r := state.Rec()
	return value.RecordValue(value.Record{
		"sum":   value.Number(r["sum"].Number() + args[0].Number()),
		"count": value.Number(r["count"].Number() + 1),
	}), nil
}
func (avgAgg) Value(state value.Value) value.Value {
	r := state.Rec()
	count := r["count"].Number()
	if count == 0 {
		return value.Null
	}
	return value.Number(r["sum"].Number() / count)
}

type minAgg struct{}

func (minAgg) Name() string { return "min" }
func (minAgg) Init() value.Value { return value.Null }
func (minAgg) Fold(state value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 || args[0].IsNull() {
		return state, nil
	}
	if state.IsNull() || value.Compare(args[0], state) < 0 {
		return args[0], nil
	}
	return state, nil
}
func (minAgg) Value(state value.Value) value.Value { return state }

type maxAgg struct{}

func (maxAgg) Name() string { return "max" }
func (maxAgg) Init() value.Value { return value.Null }
func (maxAgg) Fold(state value.Value, args []value.Value) (value.Value, error) {
	if len(args) == 0 || args[0].IsNull() {
		return state, nil
	}
	if state.IsNull() || value.Compare(args[0], state) > 0 {
		return args[0], nil
	}
	return state, nil
}
func (maxAgg) Value(state value.Value) value.Value { return state }

// aggregates is the tagged standard-scope set spec.md §4.1(3) checks
// unbound call-callees against.
var aggregates = map[string]Aggregate{
	"count": countAgg{},
	"sum":   sumAgg{},
	"avg":   avgAgg{},
	"min":   minAgg{},
	"max":   maxAgg{},
}

// GroupState is the per-group fold state a GroupBy execution thread
// through repeated Expression.Eval calls (spec.md §4.7).
type GroupState struct {
	slots []value.Value
	kinds []Aggregate
}

// NewGroupState allocates fresh per-group state for an Expression with the
// given ordered aggregate slots.
func NewGroupState(slotAggs []Aggregate) *GroupState {
	gs := &GroupState{slots: make([]value.Value, len(slotAggs)), kinds: slotAggs}
	for i, a := range slotAggs {
		gs.slots[i] = a.Init()
	}
	return gs
}

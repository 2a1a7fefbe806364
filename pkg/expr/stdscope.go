package expr

import "github.com/relq/relq/pkg/value"

// stdScopeNames is the standard scope of spec.md §6.4: cmp and the five
// aggregate names are callable; self is a bare value. Aggregate names are
// only routed here when they occur outside call position — a call such as
// count(...)/sum(...)/etc. is intercepted earlier by the call-rewrite pass,
// which folds it into an aggregate slot when aggregates are permitted and
// rejects it with a compile error otherwise.
var stdScopeNames = map[string]struct{}{
	"cmp":   {},
	"avg":   {},
	"count": {},
	"max":   {},
	"min":   {},
	"sum":   {},
	"self":  {},
}

// selfValue is the bare value bound to the standard scope's "self" name: an
// introspective record naming the scope's own callable members. Nothing in
// this implementation depends on its shape beyond identity/field-lookup, so
// it stands in for the "reference to the standard scope object itself" that
// spec.md §6.4 alludes to without prescribing a concrete representation.
var selfValue = value.RecordValue(value.Record{
	"cmp":   value.String("cmp"),
	"avg":   value.String("avg"),
	"count": value.String("count"),
	"max":   value.String("max"),
	"min":   value.String("min"),
	"sum":   value.String("sum"),
})

// callStd invokes a standard-scope function by name outside the aggregate
// call-rewrite path — currently only "cmp" is callable this way (the
// aggregate names route through aggRef when calls are permitted, and are
// otherwise not callable).
func callStd(name string, args []value.Value) (value.Value, error) {
	switch name {
	case "cmp":
		if len(args) != 2 {
			return value.Null, exprErrorf("cmp expects 2 arguments, got %d", len(args))
		}
		return value.Number(float64(value.Compare(args[0], args[1]))), nil
	default:
		return value.Null, exprErrorf("%q is not callable", name)
	}
}

// Package value implements the ordered value domain over which relq's
// comparator, key ranges, and tuple records are defined.
//
// Grounded on utkarsh5026-StoreMy's pkg/types (Field interface, Type enum,
// Predicate) for the shape of a typed, comparable value; generalized from
// that package's two concrete types (int, string) to the full domain
// spec.md §3 requires: null, boolean, number, string, timestamp, sequence,
// and record.
package value

import (
	"fmt"
	"time"
)

// Kind identifies which member of the ordered domain a Value holds.
// Order here is significant: it is the fixed cross-type ordering of
// spec.md §3 (null < boolean < number < timestamp < string < sequence),
// with record treated as unordered/opaque and sorted last.
type Kind int

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindTimestamp
	KindString
	KindSequence
	KindRecord
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindTimestamp:
		return "timestamp"
	case KindString:
		return "string"
	case KindSequence:
		return "sequence"
	case KindRecord:
		return "record"
	default:
		return "unknown"
	}
}

// Record is an opaque, string-keyed mapping from identifier to Value.
type Record map[string]Value

// Value is a member of the ordered domain described in spec.md §3.
// Exactly one of the typed fields is meaningful, selected by Kind.
type Value struct {
	kind Kind
	b    bool
	n    float64
	ts   time.Time
	s    string
	seq  []Value
	rec  Record
}

// Null is the absent/null value.
var Null = Value{kind: KindNull}

func Bool(b bool) Value      { return Value{kind: KindBool, b: b} }
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }
func Timestamp(t time.Time) Value {
	return Value{kind: KindTimestamp, ts: t}
}
func String(s string) Value { return Value{kind: KindString, s: s} }
func Sequence(vs ...Value) Value {
	cp := make([]Value, len(vs))
	copy(cp, vs)
	return Value{kind: KindSequence, seq: cp}
}
func RecordValue(r Record) Value { return Value{kind: KindRecord, rec: r} }

func (v Value) Kind() Kind { return v.kind }
func (v Value) IsNull() bool {
	return v.kind == KindNull
}

func (v Value) Bool() bool           { return v.b }
func (v Value) Number() float64      { return v.n }
func (v Value) Time() time.Time      { return v.ts }
func (v Value) Str() string          { return v.s }
func (v Value) Seq() []Value         { return v.seq }
func (v Value) Rec() Record          { return v.rec }

// Field looks up a named field on a record value. Returns Null if v is not
// a record or the field is absent — field access on a non-record is a
// runtime condition, not a compile-time error, matching the host language's
// permissive property access.
func (v Value) Field(name string) Value {
	if v.kind != KindRecord || v.rec == nil {
		return Null
	}
	if fv, ok := v.rec[name]; ok {
		return fv
	}
	return Null
}

// Index looks up a positional element of a sequence value.
func (v Value) Index(i int) Value {
	if v.kind != KindSequence || i < 0 || i >= len(v.seq) {
		return Null
	}
	return v.seq[i]
}

func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.b)
	case KindNumber:
		return fmt.Sprintf("%g", v.n)
	case KindTimestamp:
		return v.ts.Format(time.RFC3339Nano)
	case KindString:
		return v.s
	case KindSequence:
		return fmt.Sprintf("%v", v.seq)
	case KindRecord:
		return fmt.Sprintf("%v", v.rec)
	default:
		return "<invalid>"
	}
}

// Equal implements structural Value equality, used by GroupBy's group-key
// comparison and set-operation dedup (spec.md §4.7).
func (v Value) Equal(o Value) bool {
	if v.kind != o.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == o.b
	case KindNumber:
		return v.n == o.n
	case KindTimestamp:
		return v.ts.Equal(o.ts)
	case KindString:
		return v.s == o.s
	case KindSequence:
		if len(v.seq) != len(o.seq) {
			return false
		}
		for i := range v.seq {
			if !v.seq[i].Equal(o.seq[i]) {
				return false
			}
		}
		return true
	case KindRecord:
		if len(v.rec) != len(o.rec) {
			return false
		}
		for k, vv := range v.rec {
			ov, ok := o.rec[k]
			if !ok || !vv.Equal(ov) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// HashKey returns a comparable Go value suitable for use as a Go map key,
// used by GroupBy. Sequences and records
// hash via their String() form since Go maps cannot key on slices/maps
// directly; this is sound for grouping purposes because Equal on those
// kinds implies equal String() output for values built from this package's
// constructors only.
func (v Value) HashKey() any {
	switch v.kind {
	case KindNull:
		return nil
	case KindBool:
		return v.b
	case KindNumber:
		return v.n
	case KindTimestamp:
		return v.ts.UnixNano()
	case KindString:
		return v.s
	default:
		return v.String()
	}
}

package store

import (
	"context"

	"github.com/relq/relq/pkg/exec"
	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/relqerr"
	"github.com/relq/relq/pkg/value"
)

// Bind resolves name against txn and returns the exec.Store a
// NamedSource/Write binds to — the bridge between this package's
// store-specific Index/Cursor contract and the executor's own Source/
// Store vocabulary, written once here so neither memstore nor boltstore
// needs its own copy of index selection or cursor-to-stream adaptation.
func Bind(txn Txn, name string, spec SourceSpec) (exec.Store, error) {
	primary, err := txn.Source(name)
	if err != nil {
		return nil, err
	}
	return &boundSource{txn: txn, name: name, spec: spec, primary: primary, secondaries: map[string]Index{}}, nil
}

type boundSource struct {
	txn         Txn
	name        string
	spec        SourceSpec
	primary     Index
	secondaries map[string]Index
}

func (b *boundSource) secondaryIndex(name string) (Index, error) {
	if idx, ok := b.secondaries[name]; ok {
		return idx, nil
	}
	idx, err := b.txn.SecondaryIndex(b.name, name)
	if err != nil {
		return nil, err
	}
	b.secondaries[name] = idx
	return idx, nil
}

// chooseIndex picks whichever of the primary key or a declared secondary
// index has the longest leading equality prefix against ranges, per
// spec.md §4.9's rule-based (not cost-based) index selection —
// ties, including "no index has any equality match at all", favor the
// primary key, so an unindexable query still gets a deterministic full
// scan rather than a wasted secondary-index round trip.
func (b *boundSource) chooseIndex(ranges map[string]rangeset.KeyRange) (KeyPath, Index, error) {
	bestPath, bestScore := b.spec.KeyPath, equalityPrefixLen(b.spec.KeyPath, ranges)
	bestName := ""
	for _, ix := range b.spec.Indexes {
		if score := equalityPrefixLen(ix.KeyPath, ranges); score > bestScore {
			bestScore, bestPath, bestName = score, ix.KeyPath, ix.Name
		}
	}
	if bestName == "" {
		return bestPath, b.primary, nil
	}
	idx, err := b.secondaryIndex(bestName)
	return bestPath, idx, err
}

func equalityPrefixLen(keyOrder []string, ranges map[string]rangeset.KeyRange) int {
	n := 0
	for _, p := range keyOrder {
		r, ok := ranges[p]
		if !ok || !r.IsEquality() {
			break
		}
		n++
	}
	return n
}

func (b *boundSource) Scan(ctx context.Context, ranges map[string]rangeset.KeyRange, evalCtx rangeset.EvalContext) (exec.RecordStream, error) {
	keyOrder, idx, err := b.chooseIndex(ranges)
	if err != nil {
		return nil, err
	}
	composite := exec.SelectRange(keyOrder, ranges)
	rows, err := composite.PrepareComposite(evalCtx)
	if err != nil {
		return nil, err
	}
	var records []value.Value
	for _, pc := range rows {
		nr := nativeRangeFor(pc, len(keyOrder))
		if err := drainInto(ctx, idx, nr, &records); err != nil {
			return nil, err
		}
	}
	return &sliceRecordStream{records: records, index: -1}, nil
}

func drainInto(ctx context.Context, idx Index, nr *NativeRange, out *[]value.Value) error {
	cur, err := idx.OpenCursor(ctx, nr)
	if err != nil {
		return err
	}
	if err := cur.Open(ctx); err != nil {
		return err
	}
	defer cur.Close()
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		has, err := cur.HasNext()
		if err != nil {
			return err
		}
		if !has {
			return nil
		}
		rec, _, err := cur.Next()
		if err != nil {
			return err
		}
		*out = append(*out, rec)
	}
}

// nativeRangeFor converts one prepared composite-range row into the
// single NativeRange an Index's cursor is opened with. A one-component
// key path (keyLen == 1 and no equality prefix) scans the trailing
// interval directly over scalar keys; a composite key path scans over
// the value.Sequence keys memstore/boltstore both use to represent
// composite keys, whose lexicographic Compare already sorts
// shorter-prefix-before-any-extension — so the equality prefix alone,
// with no trailing component, is already a correct inclusive lower bound
// covering every continuation, and the same prefix with its last
// component bumped by value.NextUp is a correct exclusive upper bound
// excluding every continuation, when the trailing range itself is
// unbounded on that side.
func nativeRangeFor(pc rangeset.PreparedComponents, keyLen int) *NativeRange {
	prefix := make([]value.Value, len(pc.Equalities))
	for i, iv := range pc.Equalities {
		prefix[i] = iv.Lower
	}
	nr := &NativeRange{}
	if keyLen <= 1 && len(prefix) == 0 {
		if pc.Final.HasLower {
			nr.HasLower, nr.Lower, nr.LowerOpen = true, pc.Final.Lower, pc.Final.LowerOpen
		}
		if pc.Final.HasUpper {
			nr.HasUpper, nr.Upper, nr.UpperOpen = true, pc.Final.Upper, pc.Final.UpperOpen
		}
		return nr
	}
	if pc.Final.HasLower {
		nr.HasLower, nr.Lower, nr.LowerOpen = true, value.Sequence(append(append([]value.Value{}, prefix...), pc.Final.Lower)...), pc.Final.LowerOpen
	} else if len(prefix) > 0 {
		nr.HasLower, nr.Lower, nr.LowerOpen = true, value.Sequence(prefix...), false
	}
	if pc.Final.HasUpper {
		nr.HasUpper, nr.Upper, nr.UpperOpen = true, value.Sequence(append(append([]value.Value{}, prefix...), pc.Final.Upper)...), pc.Final.UpperOpen
	} else if len(prefix) > 0 {
		bumped := append([]value.Value{}, prefix...)
		bumped[len(bumped)-1] = value.NextUp(bumped[len(bumped)-1])
		nr.HasUpper, nr.Upper, nr.UpperOpen = true, value.Sequence(bumped...), true
	}
	return nr
}

func (b *boundSource) Put(ctx context.Context, records []value.Value, opts exec.WriteOptions) ([]value.Value, error) {
	out := make([]value.Value, 0, len(records))
	for _, rec := range records {
		key := KeyOf(b.spec.KeyPath, rec)
		if opts.Delete {
			if err := b.primary.Delete(ctx, key); err != nil {
				return nil, err
			}
			out = append(out, rec)
			continue
		}
		var explicitKey any
		if len(b.spec.KeyPath) > 0 || !rec.Field(PrimaryKeyAttr).IsNull() {
			explicitKey = key
		}
		var written any
		var err error
		if opts.Overwrite {
			written, err = b.primary.Put(ctx, rec, explicitKey)
		} else {
			written, err = b.primary.Add(ctx, rec, explicitKey)
		}
		if err != nil {
			return nil, relqerr.RecoverableError(err, "write")
		}
		out = append(out, attachKey(rec, b.spec.KeyPath, written))
	}
	return out, nil
}

// KeyOf derives the native key a record resolves to under keyPath — the
// record's own fields when keyPath is declared, or the previously
// assigned primary-key attribute (§6.3's sentinel) when it is absent.
// Shared by both adapters (memstore, boltstore) so key derivation has one
// definition regardless of which one a record passes through.
func KeyOf(keyPath KeyPath, rec value.Value) value.Value {
	if len(keyPath) == 0 {
		return rec.Field(PrimaryKeyAttr)
	}
	if len(keyPath) == 1 {
		return rec.Field(keyPath[0])
	}
	parts := make([]value.Value, len(keyPath))
	for i, p := range keyPath {
		parts[i] = rec.Field(p)
	}
	return value.Sequence(parts...)
}

// IndexKeysOf derives the indexed value(s) a record contributes to one of
// a source's declared secondary indexes: normally a single value (or a
// composite Sequence for a multi-path index), but a MultiEntry index over
// a sequence-valued field contributes one index entry per element.
func IndexKeysOf(ix IndexSpec, rec value.Value) []value.Value {
	if len(ix.KeyPath) == 1 {
		v := rec.Field(ix.KeyPath[0])
		if ix.MultiEntry && v.Kind() == value.KindSequence {
			return v.Seq()
		}
		return []value.Value{v}
	}
	parts := make([]value.Value, len(ix.KeyPath))
	for i, p := range ix.KeyPath {
		parts[i] = rec.Field(p)
	}
	return []value.Value{value.Sequence(parts...)}
}

// attachKey exposes a store-assigned key under the primary-key sentinel
// when the source declares no keyPath of its own (§6.3); a keyed source
// already carries its key in the record's own fields, so rec passes
// through unchanged.
func attachKey(rec value.Value, keyPath KeyPath, key any) value.Value {
	if len(keyPath) > 0 || rec.Kind() != value.KindRecord {
		return rec
	}
	fields := rec.Rec()
	out := make(value.Record, len(fields)+1)
	for k, v := range fields {
		out[k] = v
	}
	out[PrimaryKeyAttr] = key.(value.Value)
	return value.RecordValue(out)
}

// sliceRecordStream adapts a materialized []value.Value to
// exec.RecordStream — the store package's own copy of the same tiny
// adapter pkg/exec keeps privately, since the two packages share no
// common dependency that could host it once instead.
type sliceRecordStream struct {
	records []value.Value
	index   int
}

func (s *sliceRecordStream) Open(ctx context.Context) error { s.index = -1; return nil }
func (s *sliceRecordStream) HasNext() (bool, error)         { return s.index+1 < len(s.records), nil }
func (s *sliceRecordStream) Close() error                   { return nil }
func (s *sliceRecordStream) Next() (value.Value, error) {
	s.index++
	if s.index >= len(s.records) {
		return value.Null, nil
	}
	return s.records[s.index], nil
}

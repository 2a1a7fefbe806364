package exec

import (
	"context"
	"fmt"
	"sort"

	"github.com/relq/relq/pkg/expr"
	"github.com/relq/relq/pkg/relalg"
	"github.com/relq/relq/pkg/stream"
	"github.com/relq/relq/pkg/value"
)

// Execute turns a finalized relalg.Node into a pkg/stream.Stream of
// value.Tuple, dispatching on concrete node type per spec.md §4.7. The
// returned stream is lazy: no Source is scanned and no predicate is
// evaluated until the caller pulls from it via Open/HasNext/Next.
func Execute(ctx *Context, n relalg.Node) (stream.Stream, error) {
	switch node := n.(type) {
	case relalg.NamedSource:
		return execNamedSource(ctx, node)
	case relalg.Where:
		return execWhere(ctx, node)
	case relalg.Select:
		return execSelect(ctx, node)
	case relalg.InnerJoin:
		return execInnerJoin(ctx, node)
	case relalg.OuterJoin:
		return execOuterJoin(ctx, node)
	case relalg.AntiJoin:
		return execAntiJoin(ctx, node)
	case relalg.GroupBy:
		return execGroupBy(ctx, node)
	case relalg.OrderBy:
		return execOrderBy(ctx, node)
	case relalg.SetOperation:
		return execSetOperation(ctx, node)
	case relalg.CompositeUnion:
		return execCompositeUnion(ctx, node)
	case relalg.Write:
		return execWrite(ctx, node)
	case relalg.Memoize:
		return execMemoize(ctx, node)
	case relalg.TransactionEnvelope:
		return execTransactionEnvelope(ctx, node)
	default:
		return nil, fmt.Errorf("exec: unhandled node type %T", n)
	}
}

// execNamedSource resolves n.Name against ctx.Bindings, asks the bound
// Source to scan under n.KeyRanges (via index selection, done by the
// Source itself since only it knows its declared key order), wraps each
// raw record under n.Name into the accumulating tuple, and filters by
// n.Predicates — the residual check every extracted range needs regardless
// of how precisely the Source's scan already narrowed it (spec.md §4.7).
func execNamedSource(ctx *Context, n relalg.NamedSource) (stream.Stream, error) {
	src, ok := ctx.Bindings[n.Name]
	if !ok {
		return nil, fmt.Errorf("exec: no binding for source %q", n.Name)
	}
	rs, err := src.Scan(ctx.Go, n.KeyRanges, evalCtx(ctx))
	if err != nil {
		return nil, err
	}
	raw, err := recordStreamToValueSlice(ctx.Go, rs)
	if err != nil {
		return nil, err
	}
	tuples := make([]value.Tuple, len(raw))
	for i, rec := range raw {
		tuples[i] = ctx.Tuple.With(n.Name, rec)
	}
	s := stream.FromSlice(tuples)
	for _, pred := range n.Predicates {
		p := pred
		s = stream.Filter(s, func(t value.Tuple) (bool, error) {
			v, err := p.Eval(expr.WithParams(t, ctx.Params), nil)
			if err != nil {
				return false, err
			}
			return truthyValue(v), nil
		})
	}
	return s, nil
}

func execWhere(ctx *Context, n relalg.Where) (stream.Stream, error) {
	if n.Predicate == nil {
		return nil, fmt.Errorf("exec: Where reached execution unresolved (finalize must run first)")
	}
	child, err := Execute(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	pred := n.Predicate
	return stream.Filter(child, func(t value.Tuple) (bool, error) {
		v, err := pred.Eval(expr.WithParams(t, ctx.Params), nil)
		if err != nil {
			return false, err
		}
		return truthyValue(v), nil
	}), nil
}

func execSelect(ctx *Context, n relalg.Select) (stream.Stream, error) {
	child, err := Execute(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	return stream.Map(child, func(t value.Tuple) (value.Tuple, error) {
		rec := make(value.Record, len(n.FieldOrder))
		for _, name := range n.FieldOrder {
			v, err := n.Fields[name].Eval(expr.WithParams(t, ctx.Params), nil)
			if err != nil {
				return nil, err
			}
			rec[name] = v
		}
		return value.Tuple{relalg.RowName: value.RecordValue(rec)}, nil
	}), nil
}

// execInnerJoin drives Left, and for every left tuple, drives a fresh scan
// of Right under the left tuple's bindings (a nested-loop join, per
// spec.md §4.7), filtering by On and merging left ∪ right into one tuple
// per match via stream.MergeMap.
func execInnerJoin(ctx *Context, n relalg.InnerJoin) (stream.Stream, error) {
	left, err := Execute(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	return stream.MergeMap(left, func(lt value.Tuple) (stream.Stream, error) {
		rightCtx := ctx.withTuple(lt)
		right, err := Execute(rightCtx, n.Right)
		if err != nil {
			return nil, err
		}
		merged := stream.Map(right, func(rt value.Tuple) (value.Tuple, error) {
			return lt.Merge(rt), nil
		})
		if n.On == nil {
			return merged, nil
		}
		on := n.On
		return stream.Filter(merged, func(t value.Tuple) (bool, error) {
			v, err := on.Eval(expr.WithParams(t, ctx.Params), nil)
			if err != nil {
				return false, err
			}
			return truthyValue(v), nil
		}), nil
	}), nil
}

// execOuterJoin is execInnerJoin plus, for every left tuple whose matched
// stream is empty, one output row binding Right's schema to
// value.Otherwise (spec.md §4.7).
func execOuterJoin(ctx *Context, n relalg.OuterJoin) (stream.Stream, error) {
	left, err := Execute(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	def := otherwiseTuple(n.Right.Schema())
	return stream.MergeMap(left, func(lt value.Tuple) (stream.Stream, error) {
		rightCtx := ctx.withTuple(lt)
		right, err := Execute(rightCtx, n.Right)
		if err != nil {
			return nil, err
		}
		merged := stream.Map(right, func(rt value.Tuple) (value.Tuple, error) {
			return lt.Merge(rt), nil
		})
		matched := merged
		if n.On != nil {
			on := n.On
			matched = stream.Filter(merged, func(t value.Tuple) (bool, error) {
				v, err := on.Eval(expr.WithParams(t, ctx.Params), nil)
				if err != nil {
					return false, err
				}
				return truthyValue(v), nil
			})
		}
		return stream.DefaultIfEmpty(matched, lt.Merge(def)), nil
	}), nil
}

// execAntiJoin yields every left tuple for which Right, filtered by On,
// produces no match — the semi-join complement (spec.md §4.7).
func execAntiJoin(ctx *Context, n relalg.AntiJoin) (stream.Stream, error) {
	left, err := Execute(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	return stream.Filter(left, func(lt value.Tuple) (bool, error) {
		rightCtx := ctx.withTuple(lt)
		right, err := Execute(rightCtx, n.Right)
		if err != nil {
			return false, err
		}
		matched := stream.Map(right, func(rt value.Tuple) (value.Tuple, error) {
			return lt.Merge(rt), nil
		})
		if n.On != nil {
			on := n.On
			matched = stream.Filter(matched, func(t value.Tuple) (bool, error) {
				v, err := on.Eval(expr.WithParams(t, ctx.Params), nil)
				if err != nil {
					return false, err
				}
				return truthyValue(v), nil
			})
		}
		empty, err := stream.IsEmpty(ctx.Go, matched)
		if err != nil {
			return false, err
		}
		return empty, nil
	}), nil
}

func otherwiseTuple(rightSchema []string) value.Tuple {
	t := make(value.Tuple, len(rightSchema))
	for _, name := range rightSchema {
		t[name] = value.Otherwise
	}
	return t
}

// execGroupBy buckets Child's output by Key's HashKey, folding Selector's
// aggregate slots over every member of each bucket in arrival order, then
// emits one Select-shaped row per bucket once Child is exhausted — GroupBy
// is not pull-lazy in the bucket dimension, since a fold needs every member
// of its bucket before it can be finalized (spec.md §4.7).
func execGroupBy(ctx *Context, n relalg.GroupBy) (stream.Stream, error) {
	child, err := Execute(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	tuples, err := stream.ToSlice(ctx.Go, child)
	if err != nil {
		return nil, err
	}

	type bucket struct {
		state  *expr.GroupState
		result value.Value
	}
	order := make([]any, 0, len(tuples))
	buckets := make(map[any]*bucket, len(tuples))

	for _, t := range tuples {
		bt := expr.WithParams(t, ctx.Params)
		kv, err := n.Key.Eval(bt, nil)
		if err != nil {
			return nil, err
		}
		hk := kv.HashKey()
		b, ok := buckets[hk]
		if !ok {
			b = &bucket{state: expr.NewGroupState(n.Selector.AggregateSlots())}
			buckets[hk] = b
			order = append(order, hk)
		}
		v, err := n.Selector.Eval(bt, b.state)
		if err != nil {
			return nil, err
		}
		b.result = v
	}

	out := make([]value.Tuple, 0, len(order))
	for _, hk := range order {
		out = append(out, value.Tuple{relalg.RowName: buckets[hk].result})
	}
	return stream.FromSlice(out), nil
}

func execOrderBy(ctx *Context, n relalg.OrderBy) (stream.Stream, error) {
	child, err := Execute(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	tuples, err := stream.ToSlice(ctx.Go, child)
	if err != nil {
		return nil, err
	}
	keyed := make([][]value.Value, len(tuples))
	for i, t := range tuples {
		bt := expr.WithParams(t, ctx.Params)
		ks := make([]value.Value, len(n.Keys))
		for j, k := range n.Keys {
			v, err := k.Expr.Eval(bt, nil)
			if err != nil {
				return nil, err
			}
			ks[j] = v
		}
		keyed[i] = ks
	}
	idx := make([]int, len(tuples))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool {
		return compareOrderKeys(keyed[idx[a]], keyed[idx[b]], n.Keys) < 0
	})
	out := make([]value.Tuple, len(tuples))
	for i, j := range idx {
		out[i] = tuples[j]
	}
	return stream.FromSlice(out), nil
}

// compareOrderKeys compares two key vectors key-by-key in priority order,
// honoring each key's Desc and NullsLast per spec.md §4.7's comparator
// ("+1 = later, -1 = earlier"). Desc reverses only the comparison of two
// non-null values; where a null sorts is set by NullsLast alone.
func compareOrderKeys(a, b []value.Value, keys []relalg.OrderKey) int {
	for i, k := range keys {
		c := compareOneKey(a[i], b[i], k.NullsLast)
		if k.Desc && !a[i].IsNull() && !b[i].IsNull() {
			c = -c
		}
		if c != 0 {
			return c
		}
	}
	return 0
}

func compareOneKey(a, b value.Value, nullsLast bool) int {
	an, bn := a.IsNull(), b.IsNull()
	if an && bn {
		return 0
	}
	if an {
		if nullsLast {
			return 1
		}
		return -1
	}
	if bn {
		if nullsLast {
			return -1
		}
		return 1
	}
	return value.Compare(a, b)
}

func execSetOperation(ctx *Context, n relalg.SetOperation) (stream.Stream, error) {
	left, err := Execute(ctx, n.Left)
	if err != nil {
		return nil, err
	}
	right, err := Execute(ctx, n.Right)
	if err != nil {
		return nil, err
	}
	combined := stream.Concat(left, right)
	if n.All {
		return combined, nil
	}
	return stream.Distinct(combined), nil
}

func execCompositeUnion(ctx *Context, n relalg.CompositeUnion) (stream.Stream, error) {
	members := make([]stream.Stream, len(n.Members))
	for i, m := range n.Members {
		s, err := Execute(ctx, m)
		if err != nil {
			return nil, err
		}
		members[i] = s
	}
	return stream.Concat(members...), nil
}

func execWrite(ctx *Context, n relalg.Write) (stream.Stream, error) {
	child, err := Execute(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	store, ok := ctx.Bindings[n.Target]
	if !ok {
		return nil, fmt.Errorf("exec: no binding for write target %q", n.Target)
	}
	w, ok := store.(Store)
	if !ok {
		return nil, fmt.Errorf("exec: source %q is not writable", n.Target)
	}
	tuples, err := stream.ToSlice(ctx.Go, child)
	if err != nil {
		return nil, err
	}
	schema := n.Child.Schema()
	if len(schema) != 1 {
		return nil, fmt.Errorf("exec: Write's child must have exactly one source in scope, got %v", schema)
	}
	source := schema[0]
	records := make([]value.Value, len(tuples))
	for i, t := range tuples {
		records[i] = t[source]
	}
	opts := WriteOptions{
		Overwrite: n.Mode == relalg.WriteUpsert || n.Mode == relalg.WriteUpdate || n.Mode == relalg.WriteDelete,
		Delete:    n.Mode == relalg.WriteDelete,
	}
	written, err := w.Put(ctx.Go, records, opts)
	if err != nil {
		return nil, err
	}
	out := make([]value.Tuple, len(written))
	for i, rec := range written {
		out[i] = ctx.Tuple.With(n.Target, rec)
	}
	return stream.FromSlice(out), nil
}

// execMemoize returns a fresh cursor over the stream.Replay registered
// under n.Key in ctx.Memo, building Child and registering a new Replay the
// first time this Key is reached. A later Execute call over the same
// Context reusing the same Key — including one reentering Memoize from a
// sibling branch before the first cursor has finished draining — shares
// that one Replay's production instead of re-running Child (spec.md §4.8's
// shared-subplan reuse, generalized to concurrent/reentrant consumers per
// §5).
func execMemoize(ctx *Context, n relalg.Memoize) (stream.Stream, error) {
	if r, ok := ctx.Memo[n.Key]; ok {
		return r.Cursor(), nil
	}
	child, err := Execute(ctx, n.Child)
	if err != nil {
		return nil, err
	}
	r := stream.NewReplay(child)
	if ctx.Memo == nil {
		ctx.Memo = map[string]*stream.Replay{}
	}
	ctx.Memo[n.Key] = r
	return r.Cursor(), nil
}

// execTransactionEnvelope installs a Transaction in ctx (opening one via
// ctx.OpenTxn if none is already ambient) before executing Child —
// spec.md §4.7/§4.8's execution-time transaction lifecycle. A transaction
// it opened itself is aborted at once if building Child fails; otherwise
// the returned stream aborts it on Close if Child's stream raised an
// error. A clean drain leaves the transaction to settle on its own.
func execTransactionEnvelope(ctx *Context, n relalg.TransactionEnvelope) (stream.Stream, error) {
	nc := *ctx
	owns := false
	if nc.Txn == nil {
		if nc.OpenTxn == nil {
			return nil, fmt.Errorf("exec: TransactionEnvelope needs a Transaction but Context.OpenTxn is nil")
		}
		mode := ReadOnly
		if n.Mode == relalg.ReadWrite {
			mode = ReadWrite
		}
		txn, err := nc.OpenTxn(n.StoreHandle, n.Stores, mode)
		if err != nil {
			return nil, err
		}
		nc.Txn, owns = txn, true
	} else if nc.Txn.IsSettled() {
		return nil, fmt.Errorf("exec: ambient transaction already settled")
	}
	child, err := Execute(&nc, n.Child)
	if err != nil {
		if owns {
			nc.Txn.Abort(err)
		}
		return nil, err
	}
	if !owns {
		return child, nil
	}
	return &settlingStream{inner: child, txn: nc.Txn}, nil
}

// settlingStream wraps Child's stream so that closing it aborts the
// transaction execTransactionEnvelope opened for it if the child raised an
// error. It never commits: after a clean drain the transaction is left to
// settle on its own.
type settlingStream struct {
	inner    stream.Stream
	txn      Transaction
	settled  bool
	sawError error
}

func (s *settlingStream) Open(ctx context.Context) error { return s.inner.Open(ctx) }

func (s *settlingStream) HasNext() (bool, error) {
	ok, err := s.inner.HasNext()
	if err != nil {
		s.sawError = err
	}
	return ok, err
}

func (s *settlingStream) Next() (value.Tuple, error) {
	t, err := s.inner.Next()
	if err != nil {
		s.sawError = err
	}
	return t, err
}

func (s *settlingStream) Close() error {
	err := s.inner.Close()
	if !s.settled {
		s.settled = true
		if abortErr := s.settle(); abortErr != nil && err == nil {
			err = abortErr
		}
	}
	return err
}

func (s *settlingStream) settle() error {
	if s.sawError != nil {
		return s.txn.Abort(s.sawError)
	}
	return nil
}

func truthyValue(v value.Value) bool {
	switch v.Kind() {
	case value.KindNull:
		return false
	case value.KindBool:
		return v.Bool()
	case value.KindNumber:
		return v.Number() != 0
	case value.KindString:
		return v.Str() != ""
	default:
		return true
	}
}

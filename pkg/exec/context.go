// Package exec implements the executor of spec.md §4.7: Execute turns a
// finalized relalg.Node tree into a pkg/stream.Stream, dispatching on node
// type exactly as the traversal-with-context rules of §4.7 describe.
//
// Grounded on utkarsh5026-StoreMy/pkg/execution's operator implementations
// (scan/filter/join/project/aggregate, each driven by the shared
// iterator.DbIterator contract) for the shape of "one Go type per
// physical operator, composed by wrapping the child's iterator" —
// generalized here from a fixed SQL-operator set bound to on-disk heap
// files to the spec's named-source/tuple-stream algebra, and built on
// pkg/stream's combinators instead of a bespoke iterator per operator.
package exec

import (
	"context"

	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/stream"
	"github.com/relq/relq/pkg/value"
)

// RecordStream is what a Source scan yields: raw records, not yet bound
// under a source name — NamedSource's execute wraps each one into the
// ambient tuple before applying its predicates (spec.md §4.7).
type RecordStream interface {
	Open(ctx context.Context) error
	HasNext() (bool, error)
	Next() (value.Value, error)
	Close() error
}

// Source is what a NamedSource resolves to at execution time, bound by
// name in a Context's Bindings — a persistent store's index, an
// in-memory sequence literal, or a transaction's overlay view. ranges is
// the NamedSource's whole KeyRanges map, keyed by dotted key path; a
// Source backed by a composite index narrows it to a rangeset.CompositeRange
// via SelectRange using its own declared key order before scanning, while
// a Source with no usable index is free to ignore ranges and scan
// everything, since NamedSource's own predicates (spec.md §4.7) re-check
// every extracted range tuple-by-tuple regardless.
type Source interface {
	Scan(ctx context.Context, ranges map[string]rangeset.KeyRange, evalCtx rangeset.EvalContext) (RecordStream, error)
}

// WriteOptions carries the mutation options a Write node's options map
// compiles to (spec.md §4.5's builder note: upsert/update/delete set
// Overwrite, delete sets Delete).
type WriteOptions struct {
	Overwrite bool
	Delete    bool
}

// Store is a Source that can also be written to — what a NamedSource
// bound to a persistent relation, and the Write node targeting it, both
// resolve to.
type Store interface {
	Source
	Put(ctx context.Context, records []value.Value, opts WriteOptions) ([]value.Value, error)
}

// Transaction is the ambient ["a Transaction"] spec.md §4.8 describes,
// narrowed to exactly what the executor needs: whether it has already
// settled (so a reused, already-committed context can be rejected per
// §4.7's TransactionEnvelope rule) and how to abort it when a child's
// stream raises an error mid-execution.
type Transaction interface {
	IsSettled() bool
	Abort(err error) error
}

// Context is the per-execution context spec.md §4.7 threads through
// every node's execute call: the current parameter record, the tuple
// accumulated so far (starts empty, grows under Join), a memoization map
// for Memoize nodes (one stream.Replay per Key, so two sibling branches
// reentering the same Memoize node share one underlying production rather
// than each rescanning Child — spec.md §5's Memoize-replay requirement),
// the ambient transaction (nil until a TransactionEnvelope installs one),
// and the name->Source/Store bindings a NamedSource/Write resolves against.
type Context struct {
	Go       context.Context
	Params   value.Record
	Tuple    value.Tuple
	Memo     map[string]*stream.Replay
	Txn      Transaction
	Bindings map[string]Source

	// OpenTxn installs ctx.Txn for a TransactionEnvelope that finds none
	// already ambient — either by opening the named persistent store's
	// transaction over the given source names in the given mode, or by
	// creating an in-memory Transaction when storeHandle is empty. Left as
	// a field rather than an interface method on Context because pkg/txn
	// (the implementation) would otherwise have to import pkg/exec to
	// satisfy a constructor signature, inverting the natural dependency.
	OpenTxn func(storeHandle string, sources []string, mode TransactionModeHint) (Transaction, error)
}

// TransactionModeHint mirrors relalg.TransactionMode without pkg/exec
// importing pkg/relalg's full node vocabulary just for this one enum.
type TransactionModeHint int

const (
	ReadOnly TransactionModeHint = iota
	ReadWrite
)

// withTuple derives a new Context for a nested scope (e.g. the right side
// of a join), sharing every field except Tuple.
func (c *Context) withTuple(t value.Tuple) *Context {
	nc := *c
	nc.Tuple = t
	return &nc
}

func evalCtx(c *Context) rangeset.EvalContext {
	return rangeset.EvalContext{Tuple: c.Tuple, Params: c.Params}
}

// recordStreamToValueSlice drains rs, checking ctx.Err() between fetches so
// a canceled query stops pulling from (and closes) the native cursor
// instead of draining it to completion regardless (spec.md §5/§9's
// cancellation-propagation requirement — the teacher's on-disk iterators
// have no such checkpoint, since they predate context.Context entirely).
func recordStreamToValueSlice(ctx context.Context, rs RecordStream) ([]value.Value, error) {
	if err := rs.Open(ctx); err != nil {
		return nil, err
	}
	defer rs.Close()
	var out []value.Value
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		ok, err := rs.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		v, err := rs.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
}

// recordStreamOf adapts a []value.Value slice to a RecordStream, the
// mirror of stream.FromSlice for the raw-record layer Source.Scan works
// at.
func recordStreamOf(records []value.Value) RecordStream { return &sliceRecordStream{records: records, index: -1} }

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

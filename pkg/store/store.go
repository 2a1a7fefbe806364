// Package store defines the abstract persistent key/value store contract
// of spec.md §6.3: a store exposes named sources, each with a primary
// index and zero or more secondary indexes, opened under a transaction
// that raises completion/abort events. THE CORE treats a concrete store
// as an external collaborator — this package is the contract alone, plus
// the two adapters SPEC_FULL.md's domain-stack section adds on top of it
// (pkg/store/memstore, pkg/store/boltstore) so the engine has something
// real to execute against.
//
// Grounded on utkarsh5026-StoreMy/pkg/storage/index.Index (Insert/Delete/
// Search/RangeSearch/GetIndexType/GetKeyType/Close) for the shape of "one
// interface, many index implementations, interchangeable by the
// executor" — generalized from a page-backed on-disk index bound to a
// transaction.TransactionContext to an abstract cursor/txn contract with
// no page or WAL concept at all.
package store

import (
	"context"
	"fmt"

	"github.com/relq/relq/pkg/value"
)

// Mode is the two-valued transaction mode spec.md §6.3's transaction(...)
// call takes.
type Mode int

const (
	ReadOnly Mode = iota
	ReadWrite
)

// KeyPath names a source's primary or secondary key: nil means the
// store's native key is used (exposed to the runtime under the
// "primary-key" sentinel attribute per §6.3); one element is a single
// field path; more than one is a composite key, ordered leading to
// trailing.
type KeyPath []string

// PrimaryKeyAttr is the sentinel attribute under which a record's native
// primary key is exposed when its source declares no KeyPath.
const PrimaryKeyAttr = "primary-key"

// IndexSpec describes one of a source's named secondary indexes.
type IndexSpec struct {
	Name       string
	KeyPath    KeyPath
	MultiEntry bool
	Unique     bool
}

// SourceSpec is a named source's static shape, as exposed by a Store
// independent of any open transaction.
type SourceSpec struct {
	KeyPath       KeyPath
	AutoIncrement bool
	Indexes       []IndexSpec
}

// Store is the top-level abstract contract spec.md §6.3 describes.
type Store interface {
	// Sources reports the static shape of every source this store
	// exposes, by name.
	Sources() map[string]SourceSpec

	// Transaction opens a handle exposing each of sourceNames under mode.
	Transaction(ctx context.Context, sourceNames []string, mode Mode) (Txn, error)
}

// Txn is the handle spec.md §6.3's transaction(...) call returns: each
// listed source resolved to an Index, plus completion/abort hooks a
// pkg/txn.Transaction observes to settle itself when backed by this
// store (spec.md §4.8's "observes the store's native complete/abort
// events" rule).
type Txn interface {
	// Source resolves name's primary index. name must have been listed
	// in the Transaction call that produced this Txn.
	Source(name string) (Index, error)

	// SecondaryIndex resolves one of name's declared secondary indexes.
	SecondaryIndex(name, indexName string) (Index, error)

	Commit() error
	Abort() error

	// OnSettle registers a hook fired exactly once, when this Txn
	// commits or aborts, telling the caller which and (on abort) why.
	OnSettle(hook func(committed bool, err error))
}

// NativeRange is the cursor range spec.md §6.3 describes: lower-bound,
// upper-bound, both, or neither (a full scan), each bound independently
// open or closed. A zero-value NativeRange with both Has* false is a full
// scan.
type NativeRange struct {
	HasLower  bool
	Lower     any
	LowerOpen bool
	HasUpper  bool
	Upper     any
	UpperOpen bool
}

// Full reports whether r constrains neither bound.
func (r NativeRange) Full() bool { return !r.HasLower && !r.HasUpper }

// Cursor is the sequence spec.md §6.3's openCursor(nativeRange?) yields:
// records plus their native primary key, one at a time.
type Cursor interface {
	Open(ctx context.Context) error
	HasNext() (bool, error)
	Next() (record value.Value, nativeKey any, err error)
	Close() error
}

// Index is one of a source's primary or secondary indexes, opened within
// a Txn — spec.md §6.3's put/add/delete/openCursor surface.
type Index interface {
	OpenCursor(ctx context.Context, r *NativeRange) (Cursor, error)

	// Put inserts or overwrites record under explicitKey (nil defers to
	// the source's own key assignment, e.g. autoIncrement), returning the
	// key actually used.
	Put(ctx context.Context, record value.Value, explicitKey any) (any, error)

	// Add is Put's insert-only counterpart: it fails if explicitKey (or
	// the record's own declared key) already exists, per spec.md §6.3's
	// distinction between put and add.
	Add(ctx context.Context, record value.Value, explicitKey any) (any, error)

	Delete(ctx context.Context, key any) error
}

// Row pairs a native key with its record — the materialized shape both
// memstore and boltstore build their OpenCursor results from, so neither
// adapter needs its own copy of the trivial "iterate a []Row" Cursor.
type Row struct {
	Key    value.Value
	Record value.Value
}

// Rows adapts a pre-materialized []Row to Cursor.
func Rows(rows []Row) Cursor { return &rowsCursor{rows: rows, i: -1} }

type rowsCursor struct {
	rows []Row
	i    int
}

func (c *rowsCursor) Open(ctx context.Context) error { c.i = -1; return nil }
func (c *rowsCursor) HasNext() (bool, error)          { return c.i+1 < len(c.rows), nil }
func (c *rowsCursor) Close() error                    { return nil }
func (c *rowsCursor) Next() (value.Value, any, error) {
	c.i++
	if c.i >= len(c.rows) {
		return value.Null, nil, fmt.Errorf("store: Next called past end of cursor")
	}
	return c.rows[c.i].Record, c.rows[c.i].Key, nil
}

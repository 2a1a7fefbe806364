// Package memstore is the in-memory pkg/store.Store adapter: an ordered
// primary index kept as a sorted slice (binary-searched, not a real
// B+tree, since there is no page budget to amortize here), with
// secondary indexes as their own sorted key lists pointing back at a
// primary key — grounded on the *shape* of utkarsh5026-StoreMy's
// pkg/memory/wrappers/btree_index and hash_index (an Index interface
// wrapping either a B-tree-like or hash-like structure, Insert/Delete/
// Search/RangeSearch) without any of the on-disk page/B+tree-file
// machinery those packages actually use, since paging is explicitly the
// persistent store's own concern and out of scope here (DESIGN.md).
//
// A memstore Txn carries no isolation of its own: spec.md §4.8's
// copy-on-write overlay is what gives an in-memory source transactional
// visibility, sitting in pkg/txn in front of whatever Source/Store a
// NamedSource resolves to. memstore's Commit/Abort therefore do nothing
// beyond firing the registered OnSettle hooks — they exist so memstore
// satisfies the same store.Store contract boltstore does, letting the
// executor open a transaction over either uniformly.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/relq/relq/pkg/relqerr"
	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/value"
)

type row struct {
	key    value.Value
	record value.Value
}

// primaryIndex is a sorted-slice ordered index over the Value domain.
type primaryIndex struct {
	mu   sync.RWMutex
	rows []row
}

func (p *primaryIndex) search(key value.Value) (int, bool) {
	i := sort.Search(len(p.rows), func(i int) bool { return value.Compare(p.rows[i].key, key) >= 0 })
	if i < len(p.rows) && value.Compare(p.rows[i].key, key) == 0 {
		return i, true
	}
	return i, false
}

func (p *primaryIndex) get(key value.Value) (value.Value, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if i, ok := p.search(key); ok {
		return p.rows[i].record, true
	}
	return value.Null, false
}

func (p *primaryIndex) put(key, record value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	i, ok := p.search(key)
	if ok {
		p.rows[i].record = record
		return
	}
	p.rows = append(p.rows, row{})
	copy(p.rows[i+1:], p.rows[i:])
	p.rows[i] = row{key: key, record: record}
}

func (p *primaryIndex) delete(key value.Value) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if i, ok := p.search(key); ok {
		p.rows = append(p.rows[:i], p.rows[i+1:]...)
	}
}

func (p *primaryIndex) scan(r *store.NativeRange) []row {
	p.mu.RLock()
	defer p.mu.RUnlock()
	lo, hi := 0, len(p.rows)
	if r != nil && r.HasLower {
		lower := r.Lower.(value.Value)
		lo = sort.Search(len(p.rows), func(i int) bool {
			c := value.Compare(p.rows[i].key, lower)
			if r.LowerOpen {
				return c > 0
			}
			return c >= 0
		})
	}
	if r != nil && r.HasUpper {
		upper := r.Upper.(value.Value)
		hi = sort.Search(len(p.rows), func(i int) bool {
			c := value.Compare(p.rows[i].key, upper)
			if r.UpperOpen {
				return c >= 0
			}
			return c > 0
		})
	}
	if lo > hi {
		return nil
	}
	out := make([]row, hi-lo)
	copy(out, p.rows[lo:hi])
	return out
}

type secEntry struct {
	key        value.Value
	primaryKey value.Value
}

// secondaryIndex maps an indexed value to the primary keys of every
// record whose key path evaluates to it.
type secondaryIndex struct {
	mu         sync.RWMutex
	rows       []secEntry
	unique     bool
	multiEntry bool
}

func (s *secondaryIndex) less(a, b secEntry) bool {
	if c := value.Compare(a.key, b.key); c != 0 {
		return c < 0
	}
	return value.Compare(a.primaryKey, b.primaryKey) < 0
}

func (s *secondaryIndex) insert(key, primaryKey value.Value) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e := secEntry{key: key, primaryKey: primaryKey}
	i := sort.Search(len(s.rows), func(i int) bool { return !s.less(s.rows[i], e) })
	if s.unique && i < len(s.rows) && value.Compare(s.rows[i].key, key) == 0 {
		return relqerr.RecoverableError(fmt.Errorf("duplicate key %s on unique index", key), "secondary index insert")
	}
	s.rows = append(s.rows, secEntry{})
	copy(s.rows[i+1:], s.rows[i:])
	s.rows[i] = e
	return nil
}

func (s *secondaryIndex) removeAllFor(primaryKey value.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.rows[:0]
	for _, e := range s.rows {
		if value.Compare(e.primaryKey, primaryKey) != 0 {
			out = append(out, e)
		}
	}
	s.rows = out
}

func (s *secondaryIndex) scan(r *store.NativeRange) []secEntry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []secEntry
	for _, e := range s.rows {
		if r != nil {
			if r.HasLower {
				c := value.Compare(e.key, r.Lower.(value.Value))
				if c < 0 || (c == 0 && r.LowerOpen) {
					continue
				}
			}
			if r.HasUpper {
				c := value.Compare(e.key, r.Upper.(value.Value))
				if c > 0 || (c == 0 && r.UpperOpen) {
					continue
				}
			}
		}
		out = append(out, e)
	}
	return out
}

// source is one named memstore collection.
type source struct {
	spec      store.SourceSpec
	primary   *primaryIndex
	secondary map[string]*secondaryIndex
	autoKey   int64
}

func newSource(spec store.SourceSpec) *source {
	secs := make(map[string]*secondaryIndex, len(spec.Indexes))
	for _, ix := range spec.Indexes {
		secs[ix.Name] = &secondaryIndex{unique: ix.Unique, multiEntry: ix.MultiEntry}
	}
	return &source{spec: spec, primary: &primaryIndex{}, secondary: secs}
}

// assignKey resolves the primary key a record should be stored under:
// explicitKey wins when given, then the source's own declared key path,
// falling back to an auto-assigned sequential number either way — the
// fallback covers both a declared autoIncrement source and a keyless
// source with no explicit key supplied, since both need some opaque
// native key to store the record under.
func (s *source) assignKey(record value.Value, explicitKey any) value.Value {
	if explicitKey != nil {
		return explicitKey.(value.Value)
	}
	if len(s.spec.KeyPath) > 0 {
		return store.KeyOf(s.spec.KeyPath, record)
	}
	return value.Number(float64(atomic.AddInt64(&s.autoKey, 1)))
}

func (s *source) reindex(key, record value.Value) error {
	for _, ix := range s.spec.Indexes {
		sec := s.secondary[ix.Name]
		sec.removeAllFor(key)
		for _, k := range store.IndexKeysOf(ix, record) {
			if err := sec.insert(k, key); err != nil {
				return err
			}
		}
	}
	return nil
}

func (s *source) put(record value.Value, explicitKey any, insertOnly bool) (value.Value, error) {
	key := s.assignKey(record, explicitKey)
	if _, exists := s.primary.get(key); exists && insertOnly {
		return value.Null, relqerr.RecoverableError(fmt.Errorf("duplicate key %s", key), "insert")
	}
	s.primary.put(key, withPrimaryKeyAttr(record, s, key))
	if err := s.reindex(key, record); err != nil {
		return value.Null, err
	}
	return key, nil
}

func withPrimaryKeyAttr(record value.Value, s *source, key value.Value) value.Value {
	if len(s.spec.KeyPath) > 0 || record.Kind() != value.KindRecord {
		return record
	}
	rec := make(value.Record, len(record.Rec())+1)
	for k, v := range record.Rec() {
		rec[k] = v
	}
	rec[store.PrimaryKeyAttr] = key
	return value.RecordValue(rec)
}

// Store is a collection of named, independently-transacted in-memory
// sources.
type Store struct {
	mu      sync.RWMutex
	sources map[string]*source
}

// New creates an empty Store whose sources are declared up front, per
// spec.md §6.3's static shape (keyPath/autoIncrement/secondary indexes
// fixed at source-declaration time, not discovered per-query).
func New(specs map[string]store.SourceSpec) *Store {
	s := &Store{sources: make(map[string]*source, len(specs))}
	for name, spec := range specs {
		s.sources[name] = newSource(spec)
	}
	return s
}

func (s *Store) Sources() map[string]store.SourceSpec {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]store.SourceSpec, len(s.sources))
	for name, src := range s.sources {
		out[name] = src.spec
	}
	return out
}

func (s *Store) Transaction(ctx context.Context, sourceNames []string, mode store.Mode) (store.Txn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, name := range sourceNames {
		if _, ok := s.sources[name]; !ok {
			return nil, relqerr.Planf("memstore: unknown source %q", name)
		}
	}
	return &txn{store: s, names: sourceNames, mode: mode}, nil
}

type txn struct {
	store *Store
	names []string
	mode  store.Mode

	mu        sync.Mutex
	settled   bool
	committed bool
	hooks     []func(bool, error)
}

func (t *txn) Source(name string) (store.Index, error) {
	t.store.mu.RLock()
	src, ok := t.store.sources[name]
	t.store.mu.RUnlock()
	if !ok {
		return nil, relqerr.Planf("memstore: unknown source %q", name)
	}
	return &primaryAdapter{src: src}, nil
}

func (t *txn) SecondaryIndex(name, indexName string) (store.Index, error) {
	t.store.mu.RLock()
	src, ok := t.store.sources[name]
	t.store.mu.RUnlock()
	if !ok {
		return nil, relqerr.Planf("memstore: unknown source %q", name)
	}
	sec, ok := src.secondary[indexName]
	if !ok {
		return nil, relqerr.Planf("memstore: unknown index %q on source %q", indexName, name)
	}
	return &secondaryAdapter{src: src, sec: sec}, nil
}

func (t *txn) settle(committed bool, cause error) error {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return nil
	}
	t.settled = true
	t.committed = committed
	hooks := t.hooks
	t.mu.Unlock()
	for _, h := range hooks {
		h(committed, cause)
	}
	return nil
}

func (t *txn) Commit() error { return t.settle(true, nil) }
func (t *txn) Abort() error  { return t.settle(false, nil) }

func (t *txn) OnSettle(hook func(committed bool, err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled {
		hook(t.committed, nil)
		return
	}
	t.hooks = append(t.hooks, hook)
}

// primaryAdapter satisfies store.Index over a source's primary key.
type primaryAdapter struct{ src *source }

func (a *primaryAdapter) OpenCursor(ctx context.Context, r *store.NativeRange) (store.Cursor, error) {
	return store.Rows(toStoreRows(a.src.primary.scan(r))), nil
}

func (a *primaryAdapter) Put(ctx context.Context, record value.Value, explicitKey any) (any, error) {
	return a.src.put(record, explicitKey, false)
}

func (a *primaryAdapter) Add(ctx context.Context, record value.Value, explicitKey any) (any, error) {
	return a.src.put(record, explicitKey, true)
}

func (a *primaryAdapter) Delete(ctx context.Context, key any) error {
	k := key.(value.Value)
	a.src.primary.delete(k)
	for _, sec := range a.src.secondary {
		sec.removeAllFor(k)
	}
	return nil
}

// secondaryAdapter satisfies store.Index over one named secondary index,
// resolving each matched key back to its primary record for Cursor.Next.
type secondaryAdapter struct {
	src *source
	sec *secondaryIndex
}

func (a *secondaryAdapter) OpenCursor(ctx context.Context, r *store.NativeRange) (store.Cursor, error) {
	entries := a.sec.scan(r)
	rows := make([]store.Row, 0, len(entries))
	for _, e := range entries {
		if rec, ok := a.src.primary.get(e.primaryKey); ok {
			rows = append(rows, store.Row{Key: e.primaryKey, Record: rec})
		}
	}
	return store.Rows(rows), nil
}

func toStoreRows(rs []row) []store.Row {
	out := make([]store.Row, len(rs))
	for i, r := range rs {
		out[i] = store.Row{Key: r.key, Record: r.record}
	}
	return out
}

func (a *secondaryAdapter) Put(context.Context, value.Value, any) (any, error) {
	return nil, relqerr.Buildf("cannot Put directly through a secondary index")
}
func (a *secondaryAdapter) Add(context.Context, value.Value, any) (any, error) {
	return nil, relqerr.Buildf("cannot Add directly through a secondary index")
}
func (a *secondaryAdapter) Delete(context.Context, any) error {
	return relqerr.Buildf("cannot Delete directly through a secondary index")
}


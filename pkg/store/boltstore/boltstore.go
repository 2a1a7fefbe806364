// Package boltstore is the pkg/store.Store adapter over go.etcd.io/bbolt,
// a real ordered embedded key/value store — the "external ordered
// key/value store supporting primary and secondary indexes with range
// cursors" spec.md §1 names as the persistent store's collaborator.
//
// Each named source gets its own bucket holding primaryKey -> record;
// each of its declared secondary indexes gets its own bucket keyed
// indexKey||primaryKey so a range scan over the index value alone still
// yields every matching primary key in order. bbolt's cursors walk keys
// in raw byte-lexicographic order, so every key this package writes uses
// the order-preserving encoding documented as an invariant on
// pkg/value.Compare (pkg/value/doc.go) — a type tag byte (already in
// Compare's cross-type rank order) followed by a big-endian,
// sign-flipped numeric encoding or a NUL-escaped, NUL-NUL-terminated
// string encoding, concatenated component-by-component for a composite
// key exactly as pkg/value.Compare compares a Sequence element-by-element
// with the shorter prefix sorting first.
//
// Grounded on memstore's source/primaryIndex/secondaryIndex split for the
// package shape (one bucket-backed type standing in for each sorted-slice
// type), adapted from an in-memory slice to bbolt's Bucket/Cursor.
package boltstore

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"sync"
	"time"

	"go.etcd.io/bbolt"

	"github.com/relq/relq/pkg/relqerr"
	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/value"
)

// Store is a collection of named, bbolt-backed sources sharing one
// underlying database.
type Store struct {
	db    *bbolt.DB
	specs map[string]store.SourceSpec
}

// New declares every source's primary and secondary buckets up front, per
// spec.md §6.3's static shape — a source's keyPath/autoIncrement/indexes
// are fixed at construction, not discovered per-query.
func New(db *bbolt.DB, specs map[string]store.SourceSpec) (*Store, error) {
	err := db.Update(func(tx *bbolt.Tx) error {
		for name, spec := range specs {
			if _, err := tx.CreateBucketIfNotExists(primaryBucketName(name)); err != nil {
				return err
			}
			for _, ix := range spec.Indexes {
				if _, err := tx.CreateBucketIfNotExists(secondaryBucketName(name, ix.Name)); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, relqerr.RecoverableError(err, "boltstore: declare buckets")
	}
	return &Store{db: db, specs: specs}, nil
}

func (s *Store) Sources() map[string]store.SourceSpec {
	out := make(map[string]store.SourceSpec, len(s.specs))
	for name, spec := range s.specs {
		out[name] = spec
	}
	return out
}

func (s *Store) Transaction(ctx context.Context, sourceNames []string, mode store.Mode) (store.Txn, error) {
	for _, name := range sourceNames {
		if _, ok := s.specs[name]; !ok {
			return nil, relqerr.Planf("boltstore: unknown source %q", name)
		}
	}
	btx, err := s.db.Begin(mode == store.ReadWrite)
	if err != nil {
		return nil, relqerr.RecoverableError(err, "boltstore: begin transaction")
	}
	return &txn{store: s, tx: btx}, nil
}

type txn struct {
	store *Store
	tx    *bbolt.Tx

	mu        sync.Mutex
	settled   bool
	committed bool
	hooks     []func(bool, error)
}

func (t *txn) Source(name string) (store.Index, error) {
	spec, ok := t.store.specs[name]
	if !ok {
		return nil, relqerr.Planf("boltstore: unknown source %q", name)
	}
	b := t.tx.Bucket(primaryBucketName(name))
	if b == nil {
		return nil, relqerr.FatalError(fmt.Errorf("missing bucket for source %q", name), "boltstore")
	}
	return &primaryIndex{tx: t.tx, bucket: b, name: name, spec: spec}, nil
}

func (t *txn) SecondaryIndex(name, indexName string) (store.Index, error) {
	spec, ok := t.store.specs[name]
	if !ok {
		return nil, relqerr.Planf("boltstore: unknown source %q", name)
	}
	var ixSpec store.IndexSpec
	found := false
	for _, ix := range spec.Indexes {
		if ix.Name == indexName {
			ixSpec, found = ix, true
			break
		}
	}
	if !found {
		return nil, relqerr.Planf("boltstore: unknown index %q on source %q", indexName, name)
	}
	primary := t.tx.Bucket(primaryBucketName(name))
	secondary := t.tx.Bucket(secondaryBucketName(name, indexName))
	if primary == nil || secondary == nil {
		return nil, relqerr.FatalError(fmt.Errorf("missing bucket for index %q on source %q", indexName, name), "boltstore")
	}
	return &secondaryIndexAdapter{inner: &secondaryIndex{bucket: secondary, primary: primary, sourceKeyPath: spec.KeyPath, ix: ixSpec}}, nil
}

func (t *txn) settle(commit bool) error {
	t.mu.Lock()
	if t.settled {
		t.mu.Unlock()
		return nil
	}
	t.settled = true
	t.committed = commit
	hooks := t.hooks
	t.mu.Unlock()

	var err error
	if commit {
		err = t.tx.Commit()
	} else {
		err = t.tx.Rollback()
	}
	for _, h := range hooks {
		h(commit, err)
	}
	return err
}

func (t *txn) Commit() error { return t.settle(true) }
func (t *txn) Abort() error  { return t.settle(false) }

func (t *txn) OnSettle(hook func(committed bool, err error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.settled {
		hook(t.committed, nil)
		return
	}
	t.hooks = append(t.hooks, hook)
}

// primaryBucketName and secondaryBucketName share one namespace separated
// by a NUL byte, which source/index identifiers never legally contain, so
// a secondary bucket name can never collide with a primary one.
func primaryBucketName(source string) []byte { return []byte(source) }
func secondaryBucketName(source, index string) []byte {
	return []byte(source + "\x00" + index)
}

// primaryIndex is a source's primary-key bucket.
type primaryIndex struct {
	tx     *bbolt.Tx
	bucket *bbolt.Bucket
	name   string
	spec   store.SourceSpec
}

func (p *primaryIndex) OpenCursor(ctx context.Context, r *store.NativeRange) (store.Cursor, error) {
	return &primaryCursor{cur: p.bucket.Cursor(), r: r, arity: keyArity(p.spec.KeyPath)}, nil
}

func (p *primaryIndex) Put(ctx context.Context, record value.Value, explicitKey any) (any, error) {
	return p.put(record, explicitKey, false)
}

func (p *primaryIndex) Add(ctx context.Context, record value.Value, explicitKey any) (any, error) {
	return p.put(record, explicitKey, true)
}

func (p *primaryIndex) put(record value.Value, explicitKey any, insertOnly bool) (value.Value, error) {
	key, err := p.assignKey(record, explicitKey)
	if err != nil {
		return value.Null, err
	}
	kb := encodeKey(key)
	old := p.bucket.Get(kb)
	if insertOnly && old != nil {
		return value.Null, relqerr.RecoverableError(fmt.Errorf("duplicate key %s", key), "insert")
	}
	if old != nil {
		oldRec, _, err := decodeValue(old)
		if err != nil {
			return value.Null, relqerr.FatalError(err, "boltstore: decode existing record")
		}
		if err := p.unindex(key, oldRec); err != nil {
			return value.Null, err
		}
	}
	stored := withPrimaryKeyAttr(record, p.spec, key)
	if err := p.bucket.Put(kb, encodeValue(stored)); err != nil {
		return value.Null, relqerr.RecoverableError(err, "boltstore: put")
	}
	if err := p.index(key, record); err != nil {
		return value.Null, err
	}
	return key, nil
}

func (p *primaryIndex) Delete(ctx context.Context, key any) error {
	k := key.(value.Value)
	kb := encodeKey(k)
	if old := p.bucket.Get(kb); old != nil {
		if oldRec, _, err := decodeValue(old); err == nil {
			if err := p.unindex(k, oldRec); err != nil {
				return err
			}
		}
	}
	if err := p.bucket.Delete(kb); err != nil {
		return relqerr.RecoverableError(err, "boltstore: delete")
	}
	return nil
}

func (p *primaryIndex) assignKey(record value.Value, explicitKey any) (value.Value, error) {
	if explicitKey != nil {
		return explicitKey.(value.Value), nil
	}
	if len(p.spec.KeyPath) > 0 {
		return store.KeyOf(p.spec.KeyPath, record), nil
	}
	seq, err := p.bucket.NextSequence()
	if err != nil {
		return value.Null, relqerr.RecoverableError(err, "boltstore: assign key")
	}
	return value.Number(float64(seq)), nil
}

func (p *primaryIndex) index(key, record value.Value) error {
	for _, ix := range p.spec.Indexes {
		b := p.tx.Bucket(secondaryBucketName(p.name, ix.Name))
		if b == nil {
			return relqerr.FatalError(fmt.Errorf("missing secondary bucket %q", ix.Name), "boltstore")
		}
		sec := &secondaryIndex{bucket: b, primary: p.bucket, sourceKeyPath: p.spec.KeyPath, ix: ix}
		if err := sec.insert(key, record); err != nil {
			return err
		}
	}
	return nil
}

func (p *primaryIndex) unindex(key, record value.Value) error {
	for _, ix := range p.spec.Indexes {
		b := p.tx.Bucket(secondaryBucketName(p.name, ix.Name))
		if b == nil {
			continue
		}
		sec := &secondaryIndex{bucket: b, primary: p.bucket, sourceKeyPath: p.spec.KeyPath, ix: ix}
		if err := sec.removeAllFor(key, record); err != nil {
			return err
		}
	}
	return nil
}

func withPrimaryKeyAttr(record value.Value, spec store.SourceSpec, key value.Value) value.Value {
	if len(spec.KeyPath) > 0 || record.Kind() != value.KindRecord {
		return record
	}
	rec := make(value.Record, len(record.Rec())+1)
	for k, v := range record.Rec() {
		rec[k] = v
	}
	rec[store.PrimaryKeyAttr] = key
	return value.RecordValue(rec)
}

// secondaryIndex is the internal bucket-level surface primaryIndex's
// index/unindex drive; it is distinct from secondaryIndexAdapter, which is
// what's actually handed to the executor and refuses direct mutation —
// mirroring memstore's own secondaryIndex/secondaryAdapter split.
type secondaryIndex struct {
	bucket        *bbolt.Bucket
	primary       *bbolt.Bucket
	sourceKeyPath store.KeyPath
	ix            store.IndexSpec
}

func (s *secondaryIndex) insert(primaryKey, record value.Value) error {
	for _, v := range store.IndexKeysOf(s.ix, record) {
		entryKey := append(encodeKey(v), encodeKey(primaryKey)...)
		if s.ix.Unique {
			if dup, err := s.hasOtherEntryWithValue(v, primaryKey); err != nil {
				return err
			} else if dup {
				return relqerr.RecoverableError(fmt.Errorf("duplicate key %s on unique index %q", v, s.ix.Name), "secondary index insert")
			}
		}
		if err := s.bucket.Put(entryKey, nil); err != nil {
			return relqerr.RecoverableError(err, "boltstore: secondary index insert")
		}
	}
	return nil
}

func (s *secondaryIndex) hasOtherEntryWithValue(v, primaryKey value.Value) (bool, error) {
	prefix := encodeKey(v)
	c := s.bucket.Cursor()
	for k, _ := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, _ = c.Next() {
		_, n, err := decodeKey(k, keyArity(s.ix.KeyPath))
		if err != nil {
			return false, relqerr.FatalError(err, "boltstore: decode secondary key")
		}
		existingPrimary, _, err := decodeKey(k[n:], keyArity(s.sourceKeyPath))
		if err != nil {
			return false, relqerr.FatalError(err, "boltstore: decode secondary key")
		}
		if value.Compare(existingPrimary, primaryKey) != 0 {
			return true, nil
		}
	}
	return false, nil
}

func (s *secondaryIndex) removeAllFor(primaryKey, record value.Value) error {
	for _, v := range store.IndexKeysOf(s.ix, record) {
		entryKey := append(encodeKey(v), encodeKey(primaryKey)...)
		if err := s.bucket.Delete(entryKey); err != nil {
			return relqerr.RecoverableError(err, "boltstore: secondary index delete")
		}
	}
	return nil
}

// secondaryIndexAdapter satisfies store.Index over a secondary bucket,
// rejecting direct mutation: a secondary index is only ever written to by
// primaryIndex.index/unindex as a side effect of a primary write.
type secondaryIndexAdapter struct{ inner *secondaryIndex }

func (a *secondaryIndexAdapter) OpenCursor(ctx context.Context, r *store.NativeRange) (store.Cursor, error) {
	return &secondaryCursor{
		cur:     a.inner.bucket.Cursor(),
		primary: a.inner.primary,
		r:       r,
		ixArity: keyArity(a.inner.ix.KeyPath),
		pkArity: keyArity(a.inner.sourceKeyPath),
	}, nil
}

func (a *secondaryIndexAdapter) Put(context.Context, value.Value, any) (any, error) {
	return nil, relqerr.Buildf("cannot Put directly through a secondary index")
}
func (a *secondaryIndexAdapter) Add(context.Context, value.Value, any) (any, error) {
	return nil, relqerr.Buildf("cannot Add directly through a secondary index")
}
func (a *secondaryIndexAdapter) Delete(context.Context, any) error {
	return relqerr.Buildf("cannot Delete directly through a secondary index")
}

// keyArity is the number of components decodeKey/encodeKey expects for a
// key path: a declared multi-field path decodes as a Sequence of that many
// scalars; an empty or single-field path is a bare scalar.
func keyArity(kp store.KeyPath) int {
	if len(kp) <= 1 {
		return 1
	}
	return len(kp)
}

// primaryCursor lazily walks a primary bucket in key order, seeking to the
// range's lower bound and decoding+comparing each key against the bound
// (rather than relying on raw byte comparison against a composite bound)
// so LowerOpen/UpperOpen match pkg/value.Compare exactly regardless of how
// many components the key has.
type primaryCursor struct {
	cur   *bbolt.Cursor
	r     *store.NativeRange
	arity int
	k, v  []byte
}

func (c *primaryCursor) Open(ctx context.Context) error {
	if c.r != nil && c.r.HasLower {
		c.k, c.v = c.cur.Seek(encodeKey(c.r.Lower.(value.Value)))
	} else {
		c.k, c.v = c.cur.First()
	}
	c.skipUntilValid()
	return nil
}

func (c *primaryCursor) skipUntilValid() {
	for c.k != nil {
		key, _, err := decodeKey(c.k, c.arity)
		if err != nil {
			c.k = nil
			return
		}
		if c.r != nil && c.r.HasLower && c.r.LowerOpen && value.Compare(key, c.r.Lower.(value.Value)) == 0 {
			c.k, c.v = c.cur.Next()
			continue
		}
		if c.r != nil && c.r.HasUpper {
			cmp := value.Compare(key, c.r.Upper.(value.Value))
			if cmp > 0 || (cmp == 0 && c.r.UpperOpen) {
				c.k = nil
			}
		}
		return
	}
}

func (c *primaryCursor) HasNext() (bool, error) { return c.k != nil, nil }

func (c *primaryCursor) Next() (value.Value, any, error) {
	if c.k == nil {
		return value.Null, nil, fmt.Errorf("boltstore: Next called past end of cursor")
	}
	key, _, err := decodeKey(c.k, c.arity)
	if err != nil {
		return value.Null, nil, relqerr.FatalError(err, "boltstore: decode key")
	}
	rec, _, err := decodeValue(c.v)
	if err != nil {
		return value.Null, nil, relqerr.FatalError(err, "boltstore: decode record")
	}
	c.k, c.v = c.cur.Next()
	c.skipUntilValid()
	return rec, key, nil
}

func (c *primaryCursor) Close() error { return nil }

// secondaryCursor walks a secondary bucket the same way primaryCursor
// walks the primary one, but filters on the leading indexKey component(s)
// of a longer indexKey||primaryKey entry and joins each match back to its
// full record via the primary bucket, mirroring memstore's
// secondaryAdapter.OpenCursor.
type secondaryCursor struct {
	cur             *bbolt.Cursor
	primary         *bbolt.Bucket
	r               *store.NativeRange
	ixArity, pkArity int
	k               []byte
}

func (c *secondaryCursor) Open(ctx context.Context) error {
	if c.r != nil && c.r.HasLower {
		c.k, _ = c.cur.Seek(encodeKey(c.r.Lower.(value.Value)))
	} else {
		c.k, _ = c.cur.First()
	}
	c.skipUntilValid()
	return nil
}

func (c *secondaryCursor) skipUntilValid() {
	for c.k != nil {
		ixVal, _, err := decodeKey(c.k, c.ixArity)
		if err != nil {
			c.k = nil
			return
		}
		if c.r != nil && c.r.HasLower && c.r.LowerOpen && value.Compare(ixVal, c.r.Lower.(value.Value)) == 0 {
			c.k, _ = c.cur.Next()
			continue
		}
		if c.r != nil && c.r.HasUpper {
			cmp := value.Compare(ixVal, c.r.Upper.(value.Value))
			if cmp > 0 || (cmp == 0 && c.r.UpperOpen) {
				c.k = nil
			}
		}
		return
	}
}

func (c *secondaryCursor) HasNext() (bool, error) { return c.k != nil, nil }

func (c *secondaryCursor) Next() (value.Value, any, error) {
	if c.k == nil {
		return value.Null, nil, fmt.Errorf("boltstore: Next called past end of cursor")
	}
	_, n, err := decodeKey(c.k, c.ixArity)
	if err != nil {
		return value.Null, nil, relqerr.FatalError(err, "boltstore: decode secondary key")
	}
	primaryKey, _, err := decodeKey(c.k[n:], c.pkArity)
	if err != nil {
		return value.Null, nil, relqerr.FatalError(err, "boltstore: decode secondary key")
	}
	rec := value.Null
	if raw := c.primary.Get(encodeKey(primaryKey)); raw != nil {
		rec, _, err = decodeValue(raw)
		if err != nil {
			return value.Null, nil, relqerr.FatalError(err, "boltstore: decode joined record")
		}
	}
	c.k, _ = c.cur.Next()
	c.skipUntilValid()
	return rec, primaryKey, nil
}

func (c *secondaryCursor) Close() error { return nil }

// --- order-preserving key encoding (pkg/value/doc.go's invariant) ---

// encodeKey encodes key for use as a bbolt key component: a bare scalar
// for a single-path key, or the concatenation of each element's own
// encoding (tag-prefixed Sequence marker included) for a composite one.
// Every component is self-delimiting, so concatenating several in a row
// (a composite key, or an indexKey followed by a primaryKey in a
// secondary bucket) replicates pkg/value.Compare's element-by-element,
// shorter-prefix-sorts-first comparison at the byte level.
func encodeKey(v value.Value) []byte {
	if v.Kind() == value.KindSequence {
		buf := []byte{byte(value.KindSequence)}
		for _, e := range v.Seq() {
			buf = append(buf, encodeScalar(e)...)
		}
		return buf
	}
	return encodeScalar(v)
}

// decodeKey is encodeKey's inverse, returning the number of bytes
// consumed so a caller holding extra trailing bytes (a secondary bucket's
// appended primaryKey) knows where this component's encoding ends.
func decodeKey(b []byte, arity int) (value.Value, int, error) {
	if arity <= 1 {
		return decodeScalar(b)
	}
	if len(b) == 0 || value.Kind(b[0]) != value.KindSequence {
		return value.Null, 0, fmt.Errorf("boltstore: expected sequence tag decoding composite key")
	}
	off := 1
	elems := make([]value.Value, arity)
	for i := 0; i < arity; i++ {
		v, n, err := decodeScalar(b[off:])
		if err != nil {
			return value.Null, 0, err
		}
		elems[i] = v
		off += n
	}
	return value.Sequence(elems...), off, nil
}

func encodeScalar(v value.Value) []byte {
	switch v.Kind() {
	case value.KindNull:
		return []byte{byte(value.KindNull)}
	case value.KindBool:
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return []byte{byte(value.KindBool), b}
	case value.KindNumber:
		buf := make([]byte, 9)
		buf[0] = byte(value.KindNumber)
		binary.BigEndian.PutUint64(buf[1:], orderedFloatBits(v.Number()))
		return buf
	case value.KindTimestamp:
		buf := make([]byte, 9)
		buf[0] = byte(value.KindTimestamp)
		binary.BigEndian.PutUint64(buf[1:], orderedIntBits(v.Time().UnixNano()))
		return buf
	case value.KindString:
		buf := []byte{byte(value.KindString)}
		for _, b := range []byte(v.Str()) {
			if b == 0x00 {
				buf = append(buf, 0x00, 0xFF)
			} else {
				buf = append(buf, b)
			}
		}
		return append(buf, 0x00, 0x00)
	default:
		// Sequence/Record are not legal scalar key components; encodeKey
		// handles Sequence at the top level, and a key path never
		// resolves to a bare Record (spec.md §3/§6.3).
		return []byte{byte(value.KindNull)}
	}
}

func decodeScalar(b []byte) (value.Value, int, error) {
	if len(b) == 0 {
		return value.Null, 0, fmt.Errorf("boltstore: empty key component")
	}
	switch value.Kind(b[0]) {
	case value.KindNull:
		return value.Null, 1, nil
	case value.KindBool:
		if len(b) < 2 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated bool key component")
		}
		return value.Bool(b[1] != 0), 2, nil
	case value.KindNumber:
		if len(b) < 9 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated number key component")
		}
		n := decodeOrderedFloatBits(binary.BigEndian.Uint64(b[1:9]))
		return value.Number(n), 9, nil
	case value.KindTimestamp:
		if len(b) < 9 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated timestamp key component")
		}
		ns := decodeOrderedIntBits(binary.BigEndian.Uint64(b[1:9]))
		return value.Timestamp(time.Unix(0, ns).UTC()), 9, nil
	case value.KindString:
		rest := b[1:]
		var out []byte
		for i := 0; i < len(rest); i++ {
			if rest[i] == 0x00 {
				if i+1 >= len(rest) {
					return value.Null, 0, fmt.Errorf("boltstore: truncated string key component")
				}
				if rest[i+1] == 0x00 {
					return value.String(string(out)), 1 + i + 2, nil
				}
				out = append(out, 0x00)
				i++
				continue
			}
			out = append(out, rest[i])
		}
		return value.Null, 0, fmt.Errorf("boltstore: unterminated string key component")
	default:
		return value.Null, 0, fmt.Errorf("boltstore: unsupported key component tag %d", b[0])
	}
}

func orderedFloatBits(f float64) uint64 {
	bits := math.Float64bits(f)
	if bits&(1<<63) != 0 {
		return ^bits
	}
	return bits | (1 << 63)
}

func decodeOrderedFloatBits(ordered uint64) float64 {
	if ordered&(1<<63) != 0 {
		return math.Float64frombits(ordered &^ (1 << 63))
	}
	return math.Float64frombits(^ordered)
}

func orderedIntBits(n int64) uint64 { return uint64(n) ^ (1 << 63) }
func decodeOrderedIntBits(u uint64) int64 { return int64(u ^ (1 << 63)) }

// --- generic value encoding, for full record payloads (not order-preserving) ---

func encodeValue(v value.Value) []byte {
	switch v.Kind() {
	case value.KindNull:
		return []byte{byte(value.KindNull)}
	case value.KindBool:
		b := byte(0)
		if v.Bool() {
			b = 1
		}
		return []byte{byte(value.KindBool), b}
	case value.KindNumber:
		buf := make([]byte, 9)
		buf[0] = byte(value.KindNumber)
		binary.BigEndian.PutUint64(buf[1:], math.Float64bits(v.Number()))
		return buf
	case value.KindTimestamp:
		buf := make([]byte, 9)
		buf[0] = byte(value.KindTimestamp)
		binary.BigEndian.PutUint64(buf[1:], uint64(v.Time().UnixNano()))
		return buf
	case value.KindString:
		s := []byte(v.Str())
		buf := make([]byte, 5+len(s))
		buf[0] = byte(value.KindString)
		binary.BigEndian.PutUint32(buf[1:5], uint32(len(s)))
		copy(buf[5:], s)
		return buf
	case value.KindSequence:
		buf := []byte{byte(value.KindSequence)}
		count := make([]byte, 4)
		binary.BigEndian.PutUint32(count, uint32(len(v.Seq())))
		buf = append(buf, count...)
		for _, e := range v.Seq() {
			buf = append(buf, lengthPrefixed(encodeValue(e))...)
		}
		return buf
	case value.KindRecord:
		rec := v.Rec()
		buf := []byte{byte(value.KindRecord)}
		count := make([]byte, 4)
		binary.BigEndian.PutUint32(count, uint32(len(rec)))
		buf = append(buf, count...)
		for k, fv := range rec {
			buf = append(buf, lengthPrefixed([]byte(k))...)
			buf = append(buf, lengthPrefixed(encodeValue(fv))...)
		}
		return buf
	default:
		return []byte{byte(value.KindNull)}
	}
}

func lengthPrefixed(b []byte) []byte {
	out := make([]byte, 4+len(b))
	binary.BigEndian.PutUint32(out, uint32(len(b)))
	copy(out[4:], b)
	return out
}

func decodeValue(b []byte) (value.Value, int, error) {
	if len(b) == 0 {
		return value.Null, 0, fmt.Errorf("boltstore: empty value payload")
	}
	switch value.Kind(b[0]) {
	case value.KindNull:
		return value.Null, 1, nil
	case value.KindBool:
		if len(b) < 2 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated bool payload")
		}
		return value.Bool(b[1] != 0), 2, nil
	case value.KindNumber:
		if len(b) < 9 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated number payload")
		}
		return value.Number(math.Float64frombits(binary.BigEndian.Uint64(b[1:9]))), 9, nil
	case value.KindTimestamp:
		if len(b) < 9 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated timestamp payload")
		}
		ns := int64(binary.BigEndian.Uint64(b[1:9]))
		return value.Timestamp(time.Unix(0, ns).UTC()), 9, nil
	case value.KindString:
		if len(b) < 5 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated string payload")
		}
		n := int(binary.BigEndian.Uint32(b[1:5]))
		if len(b) < 5+n {
			return value.Null, 0, fmt.Errorf("boltstore: truncated string payload")
		}
		return value.String(string(b[5 : 5+n])), 5 + n, nil
	case value.KindSequence:
		if len(b) < 5 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated sequence payload")
		}
		count := int(binary.BigEndian.Uint32(b[1:5]))
		off := 5
		elems := make([]value.Value, count)
		for i := 0; i < count; i++ {
			blob, n, err := readLengthPrefixed(b[off:])
			if err != nil {
				return value.Null, 0, err
			}
			off += n
			e, _, err := decodeValue(blob)
			if err != nil {
				return value.Null, 0, err
			}
			elems[i] = e
		}
		return value.Sequence(elems...), off, nil
	case value.KindRecord:
		if len(b) < 5 {
			return value.Null, 0, fmt.Errorf("boltstore: truncated record payload")
		}
		count := int(binary.BigEndian.Uint32(b[1:5]))
		off := 5
		rec := make(value.Record, count)
		for i := 0; i < count; i++ {
			kb, n, err := readLengthPrefixed(b[off:])
			if err != nil {
				return value.Null, 0, err
			}
			off += n
			vb, n, err := readLengthPrefixed(b[off:])
			if err != nil {
				return value.Null, 0, err
			}
			off += n
			fv, _, err := decodeValue(vb)
			if err != nil {
				return value.Null, 0, err
			}
			rec[string(kb)] = fv
		}
		return value.RecordValue(rec), off, nil
	default:
		return value.Null, 0, fmt.Errorf("boltstore: unsupported value tag %d", b[0])
	}
}

func readLengthPrefixed(b []byte) ([]byte, int, error) {
	if len(b) < 4 {
		return nil, 0, fmt.Errorf("boltstore: truncated length prefix")
	}
	n := int(binary.BigEndian.Uint32(b[:4]))
	if len(b) < 4+n {
		return nil, 0, fmt.Errorf("boltstore: truncated length-prefixed payload")
	}
	return b[4 : 4+n], 4 + n, nil
}

package memstore

import (
	"context"
	"testing"

	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/value"
)

func rec(fields map[string]value.Value) value.Value {
	r := make(value.Record, len(fields))
	for k, v := range fields {
		r[k] = v
	}
	return value.RecordValue(r)
}

func newStore(t *testing.T, name string, spec store.SourceSpec) (*Store, store.Index) {
	t.Helper()
	s := New(map[string]store.SourceSpec{name: spec})
	tx, err := s.Transaction(context.Background(), []string{name}, store.ReadWrite)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	idx, err := tx.Source(name)
	if err != nil {
		t.Fatalf("Source: %v", err)
	}
	return s, idx
}

func TestPutAssignsAutoKeyWhenSourceIsKeyless(t *testing.T) {
	_, idx := newStore(t, "widgets", store.SourceSpec{})
	k1, err := idx.Put(context.Background(), rec(map[string]value.Value{"name": value.String("a")}), nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	k2, err := idx.Put(context.Background(), rec(map[string]value.Value{"name": value.String("b")}), nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if value.Compare(k1.(value.Value), k2.(value.Value)) == 0 {
		t.Fatalf("expected distinct auto-assigned keys, got %v and %v", k1, k2)
	}
}

func TestPutDerivesKeyFromDeclaredKeyPath(t *testing.T) {
	_, idx := newStore(t, "users", store.SourceSpec{KeyPath: store.KeyPath{"id"}})
	k, err := idx.Put(context.Background(), rec(map[string]value.Value{"id": value.Number(7), "name": value.String("zoe")}), nil)
	if err != nil {
		t.Fatalf("Put: %v", err)
	}
	if k.(value.Value).Number() != 7 {
		t.Fatalf("expected key derived from id field, got %v", k)
	}
}

func TestAddRejectsDuplicateKey(t *testing.T) {
	_, idx := newStore(t, "users", store.SourceSpec{KeyPath: store.KeyPath{"id"}})
	r := rec(map[string]value.Value{"id": value.Number(1)})
	if _, err := idx.Add(context.Background(), r, nil); err != nil {
		t.Fatalf("first Add: %v", err)
	}
	if _, err := idx.Add(context.Background(), r, nil); err == nil {
		t.Fatalf("expected duplicate key rejection from Add")
	}
}

func TestPutOverwritesExistingKey(t *testing.T) {
	_, idx := newStore(t, "users", store.SourceSpec{KeyPath: store.KeyPath{"id"}})
	r1 := rec(map[string]value.Value{"id": value.Number(1), "name": value.String("a")})
	r2 := rec(map[string]value.Value{"id": value.Number(1), "name": value.String("b")})
	if _, err := idx.Put(context.Background(), r1, nil); err != nil {
		t.Fatalf("Put r1: %v", err)
	}
	if _, err := idx.Put(context.Background(), r2, nil); err != nil {
		t.Fatalf("Put r2: %v", err)
	}
	cur, err := idx.OpenCursor(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	rows := drainCursor(t, cur)
	if len(rows) != 1 || rows[0].Field("name").String() != "b" {
		t.Fatalf("expected single overwritten row name=b, got %v", rows)
	}
}

func TestDeleteRemovesFromPrimaryAndSecondary(t *testing.T) {
	s, idx := newStore(t, "users", store.SourceSpec{
		KeyPath: store.KeyPath{"id"},
		Indexes: []store.IndexSpec{{Name: "by_email", KeyPath: store.KeyPath{"email"}, Unique: true}},
	})
	r := rec(map[string]value.Value{"id": value.Number(1), "email": value.String("a@x.com")})
	if _, err := idx.Put(context.Background(), r, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	if err := idx.Delete(context.Background(), value.Number(1)); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	tx, _ := s.Transaction(context.Background(), []string{"users"}, store.ReadOnly)
	sec, err := tx.SecondaryIndex("users", "by_email")
	if err != nil {
		t.Fatalf("SecondaryIndex: %v", err)
	}
	cur, err := sec.OpenCursor(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	if rows := drainCursor(t, cur); len(rows) != 0 {
		t.Fatalf("expected secondary index entry removed, got %v", rows)
	}
}

func TestSecondaryIndexResolvesToFullPrimaryRecord(t *testing.T) {
	s, idx := newStore(t, "users", store.SourceSpec{
		KeyPath: store.KeyPath{"id"},
		Indexes: []store.IndexSpec{{Name: "by_email", KeyPath: store.KeyPath{"email"}, Unique: true}},
	})
	r := rec(map[string]value.Value{"id": value.Number(1), "email": value.String("a@x.com")})
	if _, err := idx.Put(context.Background(), r, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	tx, _ := s.Transaction(context.Background(), []string{"users"}, store.ReadOnly)
	sec, err := tx.SecondaryIndex("users", "by_email")
	if err != nil {
		t.Fatalf("SecondaryIndex: %v", err)
	}
	cur, err := sec.OpenCursor(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	rows := drainCursor(t, cur)
	if len(rows) != 1 || rows[0].Field("id").Number() != 1 {
		t.Fatalf("expected secondary lookup to resolve to full primary record, got %v", rows)
	}
}

func TestMultiEntryIndexAddsOneEntryPerSequenceElement(t *testing.T) {
	s, idx := newStore(t, "posts", store.SourceSpec{
		KeyPath: store.KeyPath{"id"},
		Indexes: []store.IndexSpec{{Name: "by_tag", KeyPath: store.KeyPath{"tags"}, MultiEntry: true}},
	})
	r := rec(map[string]value.Value{
		"id":   value.Number(1),
		"tags": value.Sequence(value.String("go"), value.String("db")),
	})
	if _, err := idx.Put(context.Background(), r, nil); err != nil {
		t.Fatalf("Put: %v", err)
	}
	tx, _ := s.Transaction(context.Background(), []string{"posts"}, store.ReadOnly)
	sec, err := tx.SecondaryIndex("posts", "by_tag")
	if err != nil {
		t.Fatalf("SecondaryIndex: %v", err)
	}
	cur, err := sec.OpenCursor(context.Background(), nil)
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	if rows := drainCursor(t, cur); len(rows) != 2 {
		t.Fatalf("expected two index entries (one per tag), got %d", len(rows))
	}
}

func TestOpenCursorHonorsNativeRangeBounds(t *testing.T) {
	_, idx := newStore(t, "nums", store.SourceSpec{KeyPath: store.KeyPath{"n"}})
	for i := 1; i <= 5; i++ {
		if _, err := idx.Put(context.Background(), rec(map[string]value.Value{"n": value.Number(float64(i))}), nil); err != nil {
			t.Fatalf("Put: %v", err)
		}
	}
	r := &store.NativeRange{HasLower: true, Lower: value.Number(2), HasUpper: true, Upper: value.Number(4), UpperOpen: true}
	cur, err := idx.OpenCursor(context.Background(), r)
	if err != nil {
		t.Fatalf("OpenCursor: %v", err)
	}
	rows := drainCursor(t, cur)
	if len(rows) != 2 {
		t.Fatalf("expected [2,4) to yield 2 rows, got %d", len(rows))
	}
}

func TestTxnOnSettleFiresOnceOnCommit(t *testing.T) {
	s := New(map[string]store.SourceSpec{"x": {}})
	tx, err := s.Transaction(context.Background(), []string{"x"}, store.ReadWrite)
	if err != nil {
		t.Fatalf("Transaction: %v", err)
	}
	calls := 0
	tx.OnSettle(func(committed bool, cause error) {
		calls++
		if !committed {
			t.Fatalf("expected committed=true")
		}
	})
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("second Commit: %v", err)
	}
	if calls != 1 {
		t.Fatalf("expected hook to fire exactly once, got %d", calls)
	}
}

func drainCursor(t *testing.T, cur store.Cursor) []value.Value {
	t.Helper()
	if err := cur.Open(context.Background()); err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer cur.Close()
	var out []value.Value
	for {
		has, err := cur.HasNext()
		if err != nil {
			t.Fatalf("HasNext: %v", err)
		}
		if !has {
			return out
		}
		rec, _, err := cur.Next()
		if err != nil {
			t.Fatalf("Next: %v", err)
		}
		out = append(out, rec)
	}
}

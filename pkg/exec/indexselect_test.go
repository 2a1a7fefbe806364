package exec

import (
	"reflect"
	"testing"

	"github.com/relq/relq/pkg/rangeset"
	"github.com/relq/relq/pkg/value"
)

func TestSelectRangeNoIndexReturnsUnconstrained(t *testing.T) {
	r := SelectRange(nil, map[string]rangeset.KeyRange{"id": rangeset.Eq(value.Number(1))})
	if len(r.Equalities) != 0 {
		t.Fatalf("expected no equalities, got %v", r.Equalities)
	}
}

func TestSelectRangeBuildsEqualityPrefixThenTrailingRange(t *testing.T) {
	ranges := map[string]rangeset.KeyRange{
		"store_id": rangeset.Eq(value.Number(1)),
		"isbn":     rangeset.GTE(value.Number(100)),
	}
	r := SelectRange([]string{"store_id", "isbn"}, ranges)
	if len(r.Equalities) != 1 || r.Equalities[0].KeyPath[0] != "store_id" {
		t.Fatalf("expected one equality prefix component, got %v", r.Equalities)
	}
	if !reflect.DeepEqual(r.Final, ranges["isbn"]) {
		t.Fatalf("expected trailing range to be the isbn range")
	}
}

func TestSelectRangeStopsAtFirstUnconstrainedComponent(t *testing.T) {
	ranges := map[string]rangeset.KeyRange{
		"store_id": rangeset.Eq(value.Number(1)),
	}
	r := SelectRange([]string{"store_id", "isbn"}, ranges)
	if len(r.Equalities) != 1 {
		t.Fatalf("expected one equality component, got %v", r.Equalities)
	}
	if !reflect.DeepEqual(r.Final, rangeset.All) {
		t.Fatalf("expected unconstrained trailing range when isbn has no entry")
	}
}

func TestSelectRangeFullyPinnedKeyCollapsesLastComponent(t *testing.T) {
	ranges := map[string]rangeset.KeyRange{
		"store_id": rangeset.Eq(value.Number(1)),
		"isbn":     rangeset.Eq(value.Number(42)),
	}
	r := SelectRange([]string{"store_id", "isbn"}, ranges)
	if len(r.Equalities) != 1 || r.Equalities[0].KeyPath[0] != "store_id" {
		t.Fatalf("expected store_id to remain an equality component, got %v", r.Equalities)
	}
	if !reflect.DeepEqual(r.Final, ranges["isbn"]) {
		t.Fatalf("expected isbn's equality range to become the trailing component, got %v", r.Final)
	}
}

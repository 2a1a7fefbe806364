// Package stream implements the pull-based tuple-stream contract spec.md
// §4.7's executor produces and consumes: every relalg.Node's execute(ctx)
// yields one of these, and the combinators here (Filter/Map/MergeMap/
// Concat/Merge/Reduce/ToSlice/IsEmpty/DefaultIfEmpty/Distinct/Replay) are the
// vocabulary pkg/exec composes them with.
//
// Grounded on utkarsh5026-StoreMy/pkg/iterator's DbIterator contract
// (HasNext/Next/Open/Close/Rewind over *tuple.Tuple), generalized from a
// single concrete struct wrapping a backing []*Tuple slice to an
// interface any source (a slice, a store cursor, a join's nested loop)
// can implement, and re-keyed on value.Tuple instead of a fixed-schema
// on-disk tuple.
package stream

import (
	"context"

	"github.com/relq/relq/pkg/value"
)

// Stream is a pull iterator over value.Tuple, following the teacher's
// Open/HasNext/Next/Close lifecycle: Open before any other call, HasNext
// peeks without consuming, Next consumes, Close releases resources. A
// Stream not yet Open'd or already Closed is not safe to call HasNext/Next
// on.
type Stream interface {
	Open(ctx context.Context) error
	HasNext() (bool, error)
	Next() (value.Tuple, error)
	Close() error
}

// FromSlice returns a Stream over an in-memory slice of tuples, the
// leaf-level source every other combinator here is ultimately built on —
// grounded directly on utkarsh5026-StoreMy/pkg/tuple's Iterator.
func FromSlice(tuples []value.Tuple) Stream { return &sliceStream{tuples: tuples, index: -1} }

type sliceStream struct {
	tuples []value.Tuple
	index  int
	opened bool
}

func (s *sliceStream) Open(ctx context.Context) error {
	s.opened = true
	s.index = -1
	return nil
}

func (s *sliceStream) HasNext() (bool, error) {
	return s.index+1 < len(s.tuples), nil
}

func (s *sliceStream) Next() (value.Tuple, error) {
	s.index++
	if s.index >= len(s.tuples) {
		return nil, nil
	}
	return s.tuples[s.index], nil
}

func (s *sliceStream) Close() error {
	s.opened = false
	return nil
}

// ToSlice drains src into a slice, per spec.md §4.7's Write/OrderBy/
// SetOperation nodes, which all need the whole stream materialized before
// they can do their work.
func ToSlice(ctx context.Context, src Stream) ([]value.Tuple, error) {
	if err := src.Open(ctx); err != nil {
		return nil, err
	}
	defer src.Close()
	var out []value.Tuple
	for {
		ok, err := src.HasNext()
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		t, err := src.Next()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
}

// IsEmpty reports whether src yields zero tuples, consuming at most one —
// AntiJoin/OuterJoin's "zero matching right tuples" test.
func IsEmpty(ctx context.Context, src Stream) (bool, error) {
	if err := src.Open(ctx); err != nil {
		return false, err
	}
	defer src.Close()
	ok, err := src.HasNext()
	if err != nil {
		return false, err
	}
	return !ok, nil
}

// Reduce folds src left to right via step, starting from init.
func Reduce(ctx context.Context, src Stream, init value.Value, step func(acc value.Value, t value.Tuple) (value.Value, error)) (value.Value, error) {
	if err := src.Open(ctx); err != nil {
		return value.Null, err
	}
	defer src.Close()
	acc := init
	for {
		ok, err := src.HasNext()
		if err != nil {
			return value.Null, err
		}
		if !ok {
			return acc, nil
		}
		t, err := src.Next()
		if err != nil {
			return value.Null, err
		}
		acc, err = step(acc, t)
		if err != nil {
			return value.Null, err
		}
	}
}

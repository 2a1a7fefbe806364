package stream

import (
	"context"

	"github.com/relq/relq/pkg/value"
)

// MergeMap expands every tuple of src through fn into a nested Stream and
// flattens the results — InnerJoin/OuterJoin/AntiJoin's nested-loop
// execution is exactly this: for each left tuple, fn opens the right side
// bound to a context carrying that left tuple (spec.md §4.7).
func MergeMap(src Stream, fn func(value.Tuple) (Stream, error)) Stream {
	return &mergeMapStream{src: src, fn: fn}
}

type mergeMapStream struct {
	src     Stream
	fn      func(value.Tuple) (Stream, error)
	ctx     context.Context
	current Stream
}

func (m *mergeMapStream) Open(ctx context.Context) error {
	m.ctx = ctx
	return m.src.Open(ctx)
}

func (m *mergeMapStream) advance() (bool, error) {
	for {
		if m.current != nil {
			ok, err := m.current.HasNext()
			if err != nil {
				return false, err
			}
			if ok {
				return true, nil
			}
			if err := m.current.Close(); err != nil {
				return false, err
			}
			m.current = nil
		}
		ok, err := m.src.HasNext()
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
		outer, err := m.src.Next()
		if err != nil {
			return false, err
		}
		inner, err := m.fn(outer)
		if err != nil {
			return false, err
		}
		if err := inner.Open(m.ctx); err != nil {
			return false, err
		}
		m.current = inner
	}
}

func (m *mergeMapStream) HasNext() (bool, error) { return m.advance() }

func (m *mergeMapStream) Next() (value.Tuple, error) {
	ok, err := m.advance()
	if err != nil || !ok {
		return nil, err
	}
	return m.current.Next()
}

func (m *mergeMapStream) Close() error {
	if m.current != nil {
		if err := m.current.Close(); err != nil {
			return err
		}
		m.current = nil
	}
	return m.src.Close()
}

package stream

import (
	"context"

	"github.com/relq/relq/pkg/value"
)

// Map transforms every tuple of src through fn, one-to-one — Select's
// projection stage (spec.md §4.7).
func Map(src Stream, fn func(value.Tuple) (value.Tuple, error)) Stream {
	return &mapStream{src: src, fn: fn}
}

type mapStream struct {
	src Stream
	fn  func(value.Tuple) (value.Tuple, error)
}

func (m *mapStream) Open(ctx context.Context) error { return m.src.Open(ctx) }
func (m *mapStream) Close() error                   { return m.src.Close() }
func (m *mapStream) HasNext() (bool, error)         { return m.src.HasNext() }

func (m *mapStream) Next() (value.Tuple, error) {
	t, err := m.src.Next()
	if err != nil || t == nil {
		return t, err
	}
	return m.fn(t)
}

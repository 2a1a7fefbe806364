package stream

import (
	"context"

	"github.com/relq/relq/pkg/value"
)

// Concat drains each of streams in order, opening the next only once the
// current one is exhausted — SetOperation/CompositeUnion's "execute both
// legs" when emission order should reflect legs left-to-right (spec.md
// §4.7).
func Concat(streams ...Stream) Stream {
	return &concatStream{streams: streams}
}

type concatStream struct {
	streams []Stream
	idx     int
	ctx     context.Context
}

func (c *concatStream) Open(ctx context.Context) error {
	c.ctx = ctx
	c.idx = 0
	if len(c.streams) == 0 {
		return nil
	}
	return c.streams[0].Open(ctx)
}

func (c *concatStream) HasNext() (bool, error) {
	for c.idx < len(c.streams) {
		ok, err := c.streams[c.idx].HasNext()
		if err != nil {
			return false, err
		}
		if ok {
			return true, nil
		}
		if err := c.streams[c.idx].Close(); err != nil {
			return false, err
		}
		c.idx++
		if c.idx < len(c.streams) {
			if err := c.streams[c.idx].Open(c.ctx); err != nil {
				return false, err
			}
		}
	}
	return false, nil
}

func (c *concatStream) Next() (value.Tuple, error) {
	ok, err := c.HasNext()
	if err != nil || !ok {
		return nil, err
	}
	return c.streams[c.idx].Next()
}

func (c *concatStream) Close() error {
	if c.idx < len(c.streams) {
		return c.streams[c.idx].Close()
	}
	return nil
}

// Merge interleaves streams round-robin rather than draining them in
// order, for callers whose emission order need not favor one member over
// another. CompositeUnion does not use it: its members are drained in
// order with Concat.
func Merge(streams ...Stream) Stream {
	return &mergeStream{streams: streams}
}

type mergeStream struct {
	streams []Stream
	ctx     context.Context
	turn    int
	opened  bool
}

func (m *mergeStream) Open(ctx context.Context) error {
	m.ctx = ctx
	m.turn = 0
	m.opened = true
	for _, s := range m.streams {
		if err := s.Open(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (m *mergeStream) HasNext() (bool, error) {
	n := len(m.streams)
	for i := 0; i < n; i++ {
		idx := (m.turn + i) % n
		ok, err := m.streams[idx].HasNext()
		if err != nil {
			return false, err
		}
		if ok {
			m.turn = idx
			return true, nil
		}
	}
	return false, nil
}

func (m *mergeStream) Next() (value.Tuple, error) {
	ok, err := m.HasNext()
	if err != nil || !ok {
		return nil, err
	}
	t, err := m.streams[m.turn].Next()
	if len(m.streams) > 0 {
		m.turn = (m.turn + 1) % len(m.streams)
	}
	return t, err
}

func (m *mergeStream) Close() error {
	var firstErr error
	for _, s := range m.streams {
		if err := s.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

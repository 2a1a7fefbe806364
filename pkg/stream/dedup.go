package stream

import (
	"context"

	"github.com/relq/relq/pkg/value"
)

// Distinct drops any tuple structurally equal (value.Tuple.AsValue().Equal)
// to one already emitted — SetOperation(union)'s dedup, as
// opposed to unionAll (spec.md §4.7). Seen tuples are kept in a plain
// slice and compared linearly: Value is not a Go map key (a Record can
// nest slices/maps), so this is the teacher's own linear dedup style
// rather than a hash-set, traded off against the modest result sizes an
// embedded query engine expects.
func Distinct(src Stream) Stream {
	return &distinctStream{src: src}
}

type distinctStream struct {
	src      Stream
	seen     []value.Value
	buffered bool
	next     value.Tuple
	done     bool
}

func (d *distinctStream) Open(ctx context.Context) error {
	d.seen, d.buffered, d.done = nil, false, false
	return d.src.Open(ctx)
}

func (d *distinctStream) Close() error { return d.src.Close() }

func (d *distinctStream) advance() error {
	if d.buffered || d.done {
		return nil
	}
	for {
		ok, err := d.src.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			d.done = true
			return nil
		}
		t, err := d.src.Next()
		if err != nil {
			return err
		}
		v := t.AsValue()
		if d.seenBefore(v) {
			continue
		}
		d.seen = append(d.seen, v)
		d.next, d.buffered = t, true
		return nil
	}
}

func (d *distinctStream) seenBefore(v value.Value) bool {
	for _, s := range d.seen {
		if s.Equal(v) {
			return true
		}
	}
	return false
}

func (d *distinctStream) HasNext() (bool, error) {
	if err := d.advance(); err != nil {
		return false, err
	}
	return d.buffered, nil
}

func (d *distinctStream) Next() (value.Tuple, error) {
	if err := d.advance(); err != nil {
		return nil, err
	}
	if !d.buffered {
		return nil, nil
	}
	t := d.next
	d.buffered = false
	return t, nil
}

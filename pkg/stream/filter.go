package stream

import (
	"context"

	"github.com/relq/relq/pkg/value"
)

// Filter yields only the tuples of src satisfying pred, buffering ahead by
// exactly one tuple so HasNext can answer without double-consuming —
// Where's (surviving finalization) and NamedSource's per-predicate
// filtering (spec.md §4.7) are both built on this.
func Filter(src Stream, pred func(value.Tuple) (bool, error)) Stream {
	return &filterStream{src: src, pred: pred}
}

type filterStream struct {
	src      Stream
	pred     func(value.Tuple) (bool, error)
	buffered bool
	next     value.Tuple
	done     bool
}

func (f *filterStream) Open(ctx context.Context) error {
	f.buffered, f.done = false, false
	return f.src.Open(ctx)
}

func (f *filterStream) Close() error { return f.src.Close() }

func (f *filterStream) advance() error {
	if f.buffered || f.done {
		return nil
	}
	for {
		ok, err := f.src.HasNext()
		if err != nil {
			return err
		}
		if !ok {
			f.done = true
			return nil
		}
		t, err := f.src.Next()
		if err != nil {
			return err
		}
		match, err := f.pred(t)
		if err != nil {
			return err
		}
		if match {
			f.next, f.buffered = t, true
			return nil
		}
	}
}

func (f *filterStream) HasNext() (bool, error) {
	if err := f.advance(); err != nil {
		return false, err
	}
	return f.buffered, nil
}

func (f *filterStream) Next() (value.Tuple, error) {
	if err := f.advance(); err != nil {
		return nil, err
	}
	if !f.buffered {
		return nil, nil
	}
	t := f.next
	f.buffered = false
	return t, nil
}

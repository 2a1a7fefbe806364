package stream

import (
	"context"

	"github.com/relq/relq/pkg/value"
)

// DefaultIfEmpty passes src through unchanged unless it yields zero
// tuples, in which case it yields exactly one copy of def — the building
// block OuterJoin/AntiJoin's "zero matching right tuples" rule (spec.md
// §4.7) composes per left tuple.
func DefaultIfEmpty(src Stream, def value.Tuple) Stream {
	return &defaultIfEmptyStream{src: src, def: def}
}

type defaultIfEmptyStream struct {
	src             Stream
	def             value.Tuple
	checked         bool
	useDefault      bool
	consumedDefault bool
}

func (d *defaultIfEmptyStream) Open(ctx context.Context) error {
	d.checked, d.useDefault, d.consumedDefault = false, false, false
	return d.src.Open(ctx)
}

func (d *defaultIfEmptyStream) HasNext() (bool, error) {
	if !d.checked {
		ok, err := d.src.HasNext()
		if err != nil {
			return false, err
		}
		d.checked = true
		d.useDefault = !ok
		if d.useDefault {
			return !d.consumedDefault, nil
		}
		return true, nil
	}
	if d.useDefault {
		return !d.consumedDefault, nil
	}
	return d.src.HasNext()
}

func (d *defaultIfEmptyStream) Next() (value.Tuple, error) {
	ok, err := d.HasNext()
	if err != nil || !ok {
		return nil, err
	}
	if d.useDefault {
		d.consumedDefault = true
		return d.def, nil
	}
	return d.src.Next()
}

func (d *defaultIfEmptyStream) Close() error { return d.src.Close() }

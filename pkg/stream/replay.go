package stream

import (
	"context"
	"strconv"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/relq/relq/pkg/value"
)

// Replay shares one underlying production of source across any number of
// independent cursors. Memoize (spec.md §4.8's shared-subplan reuse) needs
// this whenever two sibling branches of a plan reenter the same Memoize
// node during one logically-sequential-but-reentrant execution: whichever
// cursor reaches position i first pulls source and buffers the result,
// every other cursor at or behind i replays the buffer instead of pulling
// source again. A golang.org/x/sync/singleflight group collapses concurrent
// requests for the same not-yet-produced position onto one source.Next
// call, so source is never pulled twice for the same position even if two
// cursors ask for it at once.
type Replay struct {
	source Stream

	mu      sync.Mutex
	opened  bool
	openErr error
	buf     []value.Tuple
	done    bool
	doneErr error
	group   singleflight.Group
}

// NewReplay wraps source for shared replay. source itself must not be
// shared with any other consumer; every consumer pulls through a Cursor
// instead.
func NewReplay(source Stream) *Replay { return &Replay{source: source} }

// Cursor returns a new independent Stream over the shared production.
func (r *Replay) Cursor() Stream { return &replayCursor{r: r, idx: -1} }

func (r *Replay) ensureOpen(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.opened {
		r.opened = true
		r.openErr = r.source.Open(ctx)
	}
	return r.openErr
}

// at returns the tuple at position i (0-based), producing it from source
// if no cursor has reached it yet.
func (r *Replay) at(i int) (value.Tuple, bool, error) {
	for {
		r.mu.Lock()
		if i < len(r.buf) {
			t := r.buf[i]
			r.mu.Unlock()
			return t, true, nil
		}
		if r.done {
			err := r.doneErr
			r.mu.Unlock()
			return nil, false, err
		}
		key := strconv.Itoa(len(r.buf))
		r.mu.Unlock()

		_, err, _ := r.group.Do(key, func() (any, error) {
			return nil, r.produceOne()
		})
		if err != nil {
			return nil, false, err
		}
		// Loop: the position we wanted may not be the one this round
		// produced, if another caller's Do call for an earlier key is
		// still catching the buffer up.
	}
}

// produceOne pulls exactly one more tuple from source and appends it to
// the shared buffer, or marks the replay done.
func (r *Replay) produceOne() error {
	r.mu.Lock()
	if r.done {
		err := r.doneErr
		r.mu.Unlock()
		return err
	}
	r.mu.Unlock()

	ok, err := r.source.HasNext()
	if err != nil {
		r.mu.Lock()
		r.done, r.doneErr = true, err
		r.mu.Unlock()
		return err
	}
	if !ok {
		r.mu.Lock()
		r.done = true
		r.mu.Unlock()
		return nil
	}
	t, err := r.source.Next()
	if err != nil {
		r.mu.Lock()
		r.done, r.doneErr = true, err
		r.mu.Unlock()
		return err
	}
	r.mu.Lock()
	r.buf = append(r.buf, t)
	r.mu.Unlock()
	return nil
}

type replayCursor struct {
	r   *Replay
	idx int
}

func (c *replayCursor) Open(ctx context.Context) error {
	c.idx = -1
	return c.r.ensureOpen(ctx)
}

func (c *replayCursor) HasNext() (bool, error) {
	_, ok, err := c.r.at(c.idx + 1)
	return ok, err
}

func (c *replayCursor) Next() (value.Tuple, error) {
	c.idx++
	t, ok, err := c.r.at(c.idx)
	if err != nil || !ok {
		return nil, err
	}
	return t, nil
}

// Close is a no-op: the shared source outlives any one cursor, since other
// cursors may still be draining it.
func (c *replayCursor) Close() error { return nil }

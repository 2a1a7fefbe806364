// Package txn implements the transaction model of spec.md §4.8: a
// settlement machine (unsettled -> {completed, aborted}) bound at most
// once, carrying an optional reference to a persistent-store transaction
// and a copy-on-write overlay used by in-memory stores. Grounded on the
// teacher's pkg/concurrency/transaction (TransactionContext's
// mutex-guarded status field and String() summary) for the
// settlement-machine shape, adapted from WAL-backed durability/page
// locking to the spec's overlay-plus-two-tick-auto-commit behavior, which
// the teacher does not have and is built fresh here.
package txn

import (
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/relq/relq/pkg/relqlog"
	"github.com/relq/relq/pkg/value"
)

// State is a Transaction's position in the settlement machine.
type State int

const (
	Unsettled State = iota
	Completed
	Aborted
)

func (s State) String() string {
	switch s {
	case Completed:
		return "completed"
	case Aborted:
		return "aborted"
	default:
		return "unsettled"
	}
}

// StoreTxn is the minimal surface a persistent store's own transaction
// handle must provide for a Transaction to drive it — satisfied
// structurally by pkg/store.Txn without this package importing pkg/store.
type StoreTxn interface {
	Commit() error
	Abort() error
}

// ShadowFlusher is called exactly once, when a Transaction completes, with
// the final shadowed fields and deleted-field names recorded for one key
// — the in-memory store that created the shadow via Write/Delete is
// responsible for applying it back to the underlying record. It is never
// called on abort: an aborted overlay is simply discarded.
type ShadowFlusher func(fields value.Record, deleted []string) error

type shadowEntry struct {
	fields  value.Record
	deleted map[string]bool
	flush   ShadowFlusher
}

// Transaction is the settlement machine spec.md §4.8 describes. A single
// struct serves both the in-memory and persistent-store-backed variants:
// StoreTxn is nil for a purely in-memory transaction (satisfies exec.
// Transaction's Abort directly; Complete has nothing beyond the overlay to
// settle), and non-nil for one backed by a real store, in which case
// Complete/Abort additionally commit/abort the underlying StoreTxn.
type Transaction struct {
	id       uuid.UUID
	storeTxn StoreTxn
	log      relqlog.Logger

	mu      sync.Mutex
	state   State
	hooks   []func(State, error)
	overlay map[any]*shadowEntry

	// two-tick auto-commit, in-memory variant only (storeTxn == nil)
	gen int
}

// New creates a Transaction. storeTxn may be nil for a purely in-memory
// transaction with no persistent-store backing.
func New(storeTxn StoreTxn, opts ...relqlog.Option) *Transaction {
	return &Transaction{
		id:       uuid.New(),
		storeTxn: storeTxn,
		log:      relqlog.Resolve(opts...),
		overlay:  make(map[any]*shadowEntry),
	}
}

func (t *Transaction) ID() string { return t.id.String() }

func (t *Transaction) String() string {
	t.mu.Lock()
	defer t.mu.Unlock()
	return fmt.Sprintf("Transaction %s [state=%s, overlay=%d]", t.id, t.state, len(t.overlay))
}

// IsSettled reports whether this Transaction has already completed or
// aborted — satisfies exec.Transaction.
func (t *Transaction) IsSettled() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.state != Unsettled
}

// OnSettle registers a hook invoked exactly once, synchronously, the
// moment this Transaction settles (the in-memory source model's primary
// hook point, though any caller interested in lifecycle events can use
// it). If the Transaction has already settled, hook runs immediately.
func (t *Transaction) OnSettle(hook func(state State, err error)) {
	t.mu.Lock()
	if t.state == Unsettled {
		t.hooks = append(t.hooks, hook)
		t.mu.Unlock()
		return
	}
	state := t.state
	t.mu.Unlock()
	hook(state, nil)
}

// Complete settles this Transaction as completed — idempotent, a no-op if
// already settled (spec.md §4.8's "settlement is idempotent; any
// subsequent complete/abort is a no-op"). On completion, every shadow
// entry's flusher is invoked so its store can write the overlay back to
// the underlying record; if storeTxn is non-nil, it is committed too.
func (t *Transaction) Complete() error {
	return t.settle(Completed, nil)
}

// Abort settles this Transaction as aborted, discarding the overlay —
// satisfies exec.Transaction. err is the causing error, surfaced to
// OnSettle hooks; idempotent like Complete.
func (t *Transaction) Abort(err error) error {
	return t.settle(Aborted, err)
}

func (t *Transaction) settle(state State, cause error) error {
	t.mu.Lock()
	if t.state != Unsettled {
		t.mu.Unlock()
		return nil
	}
	t.state = state
	hooks := t.hooks
	t.hooks = nil
	var overlay map[any]*shadowEntry
	if state == Completed {
		overlay = t.overlay
	}
	t.overlay = nil
	t.mu.Unlock()

	var firstErr error
	if state == Completed {
		for _, entry := range overlay {
			deleted := make([]string, 0, len(entry.deleted))
			for f := range entry.deleted {
				deleted = append(deleted, f)
			}
			if err := entry.flush(entry.fields, deleted); err != nil && firstErr == nil {
				firstErr = err
			}
		}
	}
	if t.storeTxn != nil {
		var err error
		if state == Completed {
			err = t.storeTxn.Commit()
		} else {
			err = t.storeTxn.Abort()
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}

	t.log.Info("transaction settled", zap.String("id", t.id.String()), zap.Stringer("state", state))
	for _, hook := range hooks {
		hook(state, cause)
	}
	return firstErr
}

// View returns base overlaid with whatever Write/Delete has recorded for
// key so far in this transaction — reads fall through to base for any
// field with no shadow entry, deleted fields are omitted entirely, per
// spec.md §4.8's "view(x) returns a shadow linked by prototype".
func (t *Transaction) View(key any, base value.Record) value.Record {
	t.mu.Lock()
	entry, ok := t.overlay[key]
	t.mu.Unlock()
	if !ok {
		return base
	}
	out := make(value.Record, len(base)+len(entry.fields))
	for f, v := range base {
		if entry.deleted[f] {
			continue
		}
		out[f] = v
	}
	for f, v := range entry.fields {
		out[f] = v
	}
	return out
}

// Write shadows field on key as v for the remainder of this transaction.
// flush registers (idempotently; later calls for the same key reuse the
// first flush) the callback Complete will invoke with this key's final
// shadowed state.
func (t *Transaction) Write(key any, field string, v value.Value, flush ShadowFlusher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entry(key, flush)
	delete(entry.deleted, field)
	entry.fields[field] = v
}

// Delete shadows field on key as removed for the remainder of this
// transaction.
func (t *Transaction) Delete(key any, field string, flush ShadowFlusher) {
	t.mu.Lock()
	defer t.mu.Unlock()
	entry := t.entry(key, flush)
	delete(entry.fields, field)
	entry.deleted[field] = true
}

func (t *Transaction) entry(key any, flush ShadowFlusher) *shadowEntry {
	e, ok := t.overlay[key]
	if !ok {
		e = &shadowEntry{fields: value.Record{}, deleted: map[string]bool{}, flush: flush}
		t.overlay[key] = e
	}
	return e
}

// DelayComplete arms this Transaction's two-tick auto-commit, per spec.md
// §4.8: every execute call on a TransactionEnvelope over an in-memory
// transaction must call this so that a chain of queued writes holds the
// transaction open, but it eventually commits on its own once two
// successive idle ticks elapse with no re-arm in between. A no-op for a
// persistent-store-backed Transaction, whose commit timing is the
// caller's concern instead.
func (t *Transaction) DelayComplete() {
	if t.storeTxn != nil {
		return
	}
	t.mu.Lock()
	if t.state != Unsettled {
		t.mu.Unlock()
		return
	}
	t.gen++
	gen := t.gen
	t.mu.Unlock()
	go t.tick(gen, 1)
}

func (t *Transaction) tick(gen, n int) {
	time.Sleep(time.Millisecond)
	t.mu.Lock()
	if t.state != Unsettled || t.gen != gen {
		t.mu.Unlock()
		return
	}
	if n >= 2 {
		t.mu.Unlock()
		t.Complete()
		return
	}
	t.mu.Unlock()
	go t.tick(gen, n+1)
}

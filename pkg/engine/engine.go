// Package engine is the query-engine library spec.md §4.A.3 describes:
// "the query engine core takes no configuration of its own — it is a
// library, configured entirely through constructor parameters". It ties
// together the pieces that, until now, only existed as separately
// testable packages: it registers one or more pkg/store.Store instances
// under a handle name, and Run finalizes a pkg/relalg.Node tree and
// executes it, installing an exec.Context.OpenTxn closure that opens the
// right store's pkg/store.Txn, wraps it in a pkg/txn.Transaction, and
// binds every source the envelope covers into the executing Context's
// Bindings map — the glue spec.md §4.7/§4.8/§6.3 describe but leave to
// "a Context" and "a Transaction" in the abstract.
//
// Grounded on the teacher's NewX(deps...) constructor-injection
// convention (e.g. NewIndexManager(catalog, pageStore, wal) taking its
// collaborators explicitly rather than reaching for globals), generalized
// from one fixed database wiring to a registry of interchangeable named
// stores.
package engine

import (
	"context"
	"fmt"

	"github.com/relq/relq/pkg/exec"
	"github.com/relq/relq/pkg/finalize"
	"github.com/relq/relq/pkg/relalg"
	"github.com/relq/relq/pkg/relqerr"
	"github.com/relq/relq/pkg/relqlog"
	"github.com/relq/relq/pkg/store"
	"github.com/relq/relq/pkg/stream"
	"github.com/relq/relq/pkg/txn"
	"github.com/relq/relq/pkg/value"
)

// Engine registers named persistent stores and runs finalized query
// trees against them.
type Engine struct {
	stores       map[string]store.Store
	sourceHandle map[string]string
	log          relqlog.Logger
	logOpts      []relqlog.Option
}

// New creates an empty Engine. Every pkg/txn.Transaction this Engine
// opens is constructed with opts, so a caller wanting transaction-lifecycle
// logging need only pass relqlog.WithLogger(...) once here.
func New(opts ...relqlog.Option) *Engine {
	return &Engine{
		stores:       map[string]store.Store{},
		sourceHandle: map[string]string{},
		log:          relqlog.Resolve(opts...),
		logOpts:      opts,
	}
}

// Register binds st under handle. Every source name st reports via
// Sources() becomes resolvable against handle for TransactionEnvelope's
// StoreHandle/Stores fields and for Finalize's persistentStores map;
// registering two stores that both own the same source name is a
// programmer error (the second registration wins silently, since nothing
// downstream can tell which store a shared name should resolve to).
func (e *Engine) Register(handle string, st store.Store) {
	e.stores[handle] = st
	for name := range st.Sources() {
		e.sourceHandle[name] = handle
	}
}

// PersistentStores reports, for every source name Register has seen so
// far, the store handle that backs it — the map Finalize's
// prepareTransaction pass needs to decide which NamedSources sit inside a
// TransactionEnvelope (spec.md §4.6).
func (e *Engine) PersistentStores() map[string]string {
	out := make(map[string]string, len(e.sourceHandle))
	for name, handle := range e.sourceHandle {
		out[name] = handle
	}
	return out
}

// Run finalizes tree against every source Register has already declared,
// then executes it with params bound as the query's parameter record.
// literals, if non-nil, supplies exec.Source bindings for source names
// Finalize treats as non-persistent (in-memory sequence literals) —
// absent here, a NamedSource naming neither a registered store's source
// nor a literal fails at execution with "no binding for source".
func (e *Engine) Run(ctx context.Context, tree relalg.Node, params value.Record, literals map[string]exec.Source) (stream.Stream, error) {
	finalized, err := finalize.Finalize(tree, e.PersistentStores())
	if err != nil {
		return nil, relqerr.Planf("engine: finalize: %v", err)
	}

	bindings := map[string]exec.Source{}
	for name, src := range literals {
		bindings[name] = src
	}

	ectx := &exec.Context{
		Go:       ctx,
		Params:   params,
		Tuple:    value.Tuple{},
		Memo:     map[string]*stream.Replay{},
		Bindings: bindings,
	}
	ectx.OpenTxn = e.openTxn(bindings)

	s, err := exec.Execute(ectx, finalized)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// openTxn builds the exec.Context.OpenTxn closure Run installs. bindings
// is the same map instance backing the Context it will be installed on,
// so binding a source here is immediately visible to every NamedSource
// the envelope's subtree resolves afterward — pkg/exec.Context's
// OpenTxn doc comment explains why this is a closure field rather than an
// interface method.
func (e *Engine) openTxn(bindings map[string]exec.Source) func(string, []string, exec.TransactionModeHint) (exec.Transaction, error) {
	return func(storeHandle string, sources []string, mode exec.TransactionModeHint) (exec.Transaction, error) {
		st, ok := e.stores[storeHandle]
		if !ok {
			return nil, relqerr.Planf("engine: unknown store handle %q", storeHandle)
		}
		storeMode := store.ReadOnly
		if mode == exec.ReadWrite {
			storeMode = store.ReadWrite
		}
		storeTxn, err := st.Transaction(context.Background(), sources, storeMode)
		if err != nil {
			return nil, relqerr.RecoverableError(err, "engine: open store transaction")
		}
		t := txn.New(storeTxn, e.logOpts...)
		specs := st.Sources()
		for _, name := range sources {
			spec, ok := specs[name]
			if !ok {
				t.Abort(fmt.Errorf("engine: store %q has no source %q", storeHandle, name))
				return nil, relqerr.Planf("engine: store %q has no source %q", storeHandle, name)
			}
			bound, err := store.Bind(storeTxn, name, spec)
			if err != nil {
				t.Abort(err)
				return nil, relqerr.RecoverableError(err, "engine: bind source")
			}
			bindings[name] = bound
		}
		return t, nil
	}
}
